package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/athena/internal/util"
)

// maxReplyBytes bounds how much of a provider reply is read
const maxReplyBytes = 4 << 20

// newHTTPClient builds the proxy-aware client shared by the HTTP providers
func newHTTPClient(config Config, fallback time.Duration) *http.Client {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = fallback
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}
}

// postJSON sends in as a JSON body and decodes a 200 reply into out.
// describe extracts the provider's error message from a non-200 body; "" means none.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any, describe func([]byte) string) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if describe != nil {
			if msg := describe(reply); msg != "" {
				return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
			}
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncateReply(reply))
	}

	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateReply(b []byte) string {
	const limit = 300
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
