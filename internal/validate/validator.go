package validate

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/athena/internal/model"
	"github.com/ppiankov/athena/internal/util"
)

const validateMaxRetries = 3

// validateSleepFunc waits between retries and reports false if ctx ended first
// (injectable for tests)
var validateSleepFunc = func(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Waiter gates outgoing requests per host (see worker.Limiter)
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// LinkChecker checks that verdict sources are reachable
type LinkChecker struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	limiter    Waiter
	logger     *zap.Logger
}

// LinkCheckerOptions configures a LinkChecker
type LinkCheckerOptions struct {
	Timeout    time.Duration
	MaxWorkers int
	UserAgent  string
	HTTP       model.HTTPConfig
	Limiter    Waiter
	Logger     *zap.Logger
}

// NewLinkChecker creates a new link checker
func NewLinkChecker(opts LinkCheckerOptions) *LinkChecker {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy: util.NewProxyFunc(opts.HTTP.HTTPProxy, opts.HTTP.HTTPSProxy, opts.HTTP.NoProxy),
	}
	if opts.HTTP.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	return &LinkChecker{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		maxWorkers: opts.MaxWorkers,
		userAgent:  opts.UserAgent,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
	}
}

// LinkResult is the outcome of checking one URL
type LinkResult struct {
	URL         string
	Reachable   bool
	StatusCode  int
	RedirectURL string
	Error       string
}

// Check returns a copy of sources annotated with Reachable and StatusCode.
// Sources without a URL are returned unchanged.
func (v *LinkChecker) Check(ctx context.Context, sources []model.Source) []model.Source {
	annotated := make([]model.Source, len(sources))
	copy(annotated, sources)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, v.maxWorkers)

	for i := range annotated {
		if annotated[i].URL == "" {
			continue
		}

		wg.Add(1)
		go func(src *model.Source) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			result := v.checkWithRetry(ctx, src.URL)
			reachable := result.Reachable
			src.Reachable = &reachable
			src.StatusCode = result.StatusCode
			if result.Error != "" {
				v.logger.Debug("source unreachable", zap.String("url", src.URL), zap.String("error", result.Error))
			}
		}(&annotated[i])
	}

	wg.Wait()
	return annotated
}

// checkURL issues a HEAD request, falling back to GET when HEAD is refused
func (v *LinkChecker) checkURL(ctx context.Context, rawURL string) LinkResult {
	result := LinkResult{URL: rawURL}

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx, rawURL); err != nil {
			result.Error = fmt.Sprintf("rate limit: %v", err)
			return result
		}
	}

	resp, err := v.do(ctx, http.MethodHead, rawURL)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		_ = resp.Body.Close()
		resp, err = v.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Reachable = resp.StatusCode >= 200 && resp.StatusCode < 400

	if final := resp.Request.URL.String(); final != rawURL {
		result.RedirectURL = final
	}

	return result
}

func (v *LinkChecker) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}
	return v.httpClient.Do(req)
}

// checkWithRetry retries transient failures with exponential backoff
func (v *LinkChecker) checkWithRetry(ctx context.Context, rawURL string) LinkResult {
	var result LinkResult
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		result = v.checkURL(ctx, rawURL)
		if !isRetryableLinkResult(result) || ctx.Err() != nil {
			return result
		}
		if attempt < validateMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if !validateSleepFunc(ctx, backoff) {
				return result
			}
		}
	}
	return result
}

// isRetryableLinkResult returns true for results that indicate transient failures
func isRetryableLinkResult(result LinkResult) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return result.Error != "" && isRetryableNetworkError(result.Error)
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
