package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/athena/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func skyOutcome() *model.Outcome {
	return &model.Outcome{
		SubmissionID: "sub-1",
		InputText:    "The sky is blue",
		Verdict: model.Verdict{
			Label:       model.LabelSupported,
			RawVerdict:  "True",
			Confidence:  92,
			Explanation: "Rayleigh scattering.",
			Sources: []model.Source{
				{URL: "https://nasa.gov/sky", Domain: "nasa.gov", Title: "Why is the sky blue?", Reliable: boolPtr(true), Authority: model.TierPrimary, Reachable: boolPtr(true)},
				{URL: "https://blog.example/sky", Domain: "blog.example", Reliable: boolPtr(false), Authority: model.TierTertiary, Reachable: boolPtr(false), StatusCode: 404},
			},
		},
		DurationMS: 1234,
	}
}

func TestRenderJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	doc := NewDocument("ignored", skyOutcome(), nil)

	if err := NewRenderer(true).RenderJSON(doc, path); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"verdict", "confidence", "explanation", "sources", "durationMs"} {
		if _, ok := got[key]; !ok {
			t.Errorf("Expected key %q in JSON report", key)
		}
	}
	if got["verdict"] != "supported" || got["input"] != "The sky is blue" {
		t.Errorf("Unexpected report %v", got)
	}
	if got["durationMs"].(float64) != 1234 {
		t.Errorf("Unexpected durationMs %v", got["durationMs"])
	}
	if _, ok := got["error"]; ok {
		t.Error("Successful report should not carry an error")
	}
}

func TestNewDocument_Failure(t *testing.T) {
	doc := NewDocument("The moon is cheese", nil, errors.New("verification timed out"))
	if doc.Input != "The moon is cheese" || doc.Error != "verification timed out" {
		t.Errorf("Unexpected document %+v", doc)
	}
	if doc.Sources == nil {
		t.Error("Sources should marshal as an empty list, not null")
	}
}

func TestMarkdown(t *testing.T) {
	md := NewRenderer(true).Markdown(NewDocument("", skyOutcome(), nil))

	for _, want := range []string{
		"> The sky is blue",
		"**Verdict:** SUPPORTED",
		"**Confidence:** 92%",
		"**Duration:** 1.2s",
		"## Explanation",
		"## Sources (2)",
		"| 1 | Why is the sky blue? | primary | yes | https://nasa.gov/sky (ok) |",
		"| 2 | blog.example | tertiary | no | https://blog.example/sky (dead, 404) |",
		"Generated by Athena",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q\n%s", want, md)
		}
	}
}

func TestMarkdown_NoFooterAndFailure(t *testing.T) {
	md := NewRenderer(false).Markdown(NewDocument("x", nil, errors.New("backend unavailable")))
	if !strings.Contains(md, "**Check failed:** backend unavailable") {
		t.Errorf("Expected failure line, got\n%s", md)
	}
	if strings.Contains(md, "Generated by Athena") {
		t.Error("Footer should be omitted")
	}
}

func TestRenderMarkdown_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := NewRenderer(true).RenderMarkdown(NewDocument("", skyOutcome(), nil), path); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("Expected non-empty markdown file, err=%v", err)
	}
}

func TestRenderSummary(t *testing.T) {
	out := skyOutcome()
	out.Cached = true
	out.Educational = "Prefer primary sources."

	var buf bytes.Buffer
	NewRenderer(true).RenderSummary(&buf, NewDocument("", out, nil))
	s := buf.String()

	for _, want := range []string{
		"Verdict:     SUPPORTED (92% confidence)",
		"✓ Why is the sky blue?  https://nasa.gov/sky [primary]",
		"· blog.example  https://blog.example/sky [tertiary] (unreachable)",
		"Prefer primary sources.",
		"Took 1.2s, cached",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary missing %q\n%s", want, s)
		}
	}

	buf.Reset()
	NewRenderer(true).RenderSummary(&buf, NewDocument("x", nil, errors.New("cancelled")))
	if buf.String() != "✗ cancelled\n" {
		t.Errorf("Unexpected failure summary %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int64]string{0: "0ms", 999: "999ms", 1000: "1.0s", 12345: "12.3s"}
	for ms, want := range tests {
		if got := formatDuration(ms); got != want {
			t.Errorf("formatDuration(%d) = %q, want %q", ms, got, want)
		}
	}
}
