package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/athena/internal/model"
)

func resetConfig(t *testing.T, file string) {
	t.Helper()
	viper.Reset()
	cfgFile = file
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})
}

func TestLoadConfig_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "api:\n  base_url: http://from-file:9000\npolling:\n  max_attempts: 7\n  max_delay: 3s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	resetConfig(t, path)
	t.Setenv("ATHENA_POLLING_MAX_ATTEMPTS", "12")
	t.Setenv("ATHENA_LLM_API_KEY", "sk-env")

	c, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if c.API.BaseURL != "http://from-file:9000" {
		t.Errorf("Expected base URL from file, got %s", c.API.BaseURL)
	}
	if c.Polling.MaxAttempts != 12 {
		t.Errorf("Expected env to override file, got %d", c.Polling.MaxAttempts)
	}
	if c.Polling.MaxDelay != 3*time.Second {
		t.Errorf("Expected max delay 3s from file, got %v", c.Polling.MaxDelay)
	}
	if c.Polling.InitialDelay != time.Second {
		t.Errorf("Expected default initial delay, got %v", c.Polling.InitialDelay)
	}
	if c.LLM.APIKey != "sk-env" {
		t.Errorf("Expected API key from env, got %q", c.LLM.APIKey)
	}
	if len(c.Authority.PrimaryDomains) == 0 {
		t.Error("Expected default authority domains to survive")
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	resetConfig(t, filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := loadConfig(); err == nil {
		t.Error("Expected error for missing --config file")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "athena", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	if err := writeDefaultConfig(path); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected refusal to overwrite, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "OPENAI_API_KEY") {
		t.Error("Expected credential hints in the generated file")
	}

	// the generated file must load back to the defaults
	resetConfig(t, path)
	c, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig(generated): %v", err)
	}
	want := model.DefaultConfig()
	if c.Polling != want.Polling || c.API != want.API {
		t.Errorf("Round-trip mismatch:\n got %+v %+v\nwant %+v %+v", c.Polling, c.API, want.Polling, want.API)
	}
}

func TestReportName(t *testing.T) {
	tests := []struct {
		index int
		input string
		want  string
	}{
		{0, "The sky is blue", "001-the-sky-is-blue.json"},
		{9, "  Is 5G / COVID linked?? ", "010-is-5g-covid-linked.json"},
		{2, "!!!", "003-input.json"},
		{3, strings.Repeat("a", 80), "004-" + strings.Repeat("a", 48) + ".json"},
	}
	for _, tt := range tests {
		if got := reportName(tt.index, tt.input); got != tt.want {
			t.Errorf("reportName(%d, %q) = %q, want %q", tt.index, tt.input, got, tt.want)
		}
	}
}

func newBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var starts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/fact-check":
			starts.Add(1)
			_, _ = w.Write([]byte(`{"status":"started","task_id":"t-1"}`))
		case "/api/fact-check-result":
			_, _ = w.Write([]byte(`{"status":"completed","verdict":"True","confidence":0.9,"explanation":"Rayleigh scattering.","sources":["https://nasa.gov/sky"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &starts
}

func testApp(t *testing.T, baseURL string) *app {
	t.Helper()
	c := model.DefaultConfig()
	c.API.BaseURL = baseURL
	c.Cache.Enabled = true
	c.Cache.Dir = ""
	c.RateLimiting.RequestsPerSecond = 0

	a, err := newApp(c, zap.NewNop(), appOptions{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.close)
	return a
}

func TestRunShell(t *testing.T) {
	server, starts := newBackend(t)
	a := testApp(t, server.URL)

	var out bytes.Buffer
	if err := runShell(context.Background(), a, strings.NewReader("The sky is blue\n\n"), &out); err != nil {
		t.Fatalf("runShell: %v", err)
	}

	s := out.String()
	if !strings.Contains(s, "» The sky is blue") || !strings.Contains(s, "SUPPORTED (90% confidence)") {
		t.Errorf("Unexpected shell output:\n%s", s)
	}
	if starts.Load() != 1 {
		t.Errorf("Expected one start, got %d", starts.Load())
	}

	// a repeated line is answered from the cache
	out.Reset()
	if err := runShell(context.Background(), a, strings.NewReader("The sky is blue\n:stats\n"), &out); err != nil {
		t.Fatal(err)
	}
	if starts.Load() != 1 {
		t.Errorf("Expected cached verdict, got %d starts", starts.Load())
	}
	if !strings.Contains(out.String(), "cache_hits=1") && !strings.Contains(out.String(), ", cached") {
		t.Errorf("Expected a cache hit, got:\n%s", out.String())
	}
}

func TestRunShell_ReportsInvalidInput(t *testing.T) {
	server, _ := newBackend(t)
	a := testApp(t, server.URL)

	var out bytes.Buffer
	if err := runShell(context.Background(), a, strings.NewReader("\xff\xfe\n"), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "✗") {
		t.Errorf("Expected invalid input to be reported, got %q", out.String())
	}
}

func TestRunShell_QuitWithdrawsPendingChecks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/fact-check":
			_, _ = w.Write([]byte(`{"status":"started","task_id":"t-2"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"processing"}`))
		}
	}))
	t.Cleanup(server.Close)
	a := testApp(t, server.URL)

	done := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		done <- runShell(context.Background(), a, strings.NewReader("Water boils at 100 degrees\n:quit\nnever read\n"), &out)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runShell: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal(":quit did not return promptly")
	}

	if n := a.coord.Stats().InFlight; n != 0 {
		t.Errorf("Expected no checks in flight after :quit, got %d", n)
	}
	if strings.Contains(out.String(), "never read") {
		t.Errorf("Expected input after :quit to be ignored, got %q", out.String())
	}
}
