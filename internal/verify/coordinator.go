// Package verify coordinates asynchronous verification requests: cache lookup,
// joining identical in-flight submissions, the start/poll loop and fan-out of
// the single terminal result to every waiting handle.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/athena/internal/cache"
	"github.com/ppiankov/athena/internal/client"
	"github.com/ppiankov/athena/internal/model"
)

// Backend is the remote verification service
type Backend interface {
	Start(ctx context.Context, text string) (*client.StartResponse, error)
	Poll(ctx context.Context, taskID string) (*client.PollResult, error)
}

// SourceRater assigns an authority tier to a source URL (see validate.AuthorityClassifier)
type SourceRater interface {
	Classify(rawURL string) model.AuthorityTier
}

// Stats are running counters for one coordinator
type Stats struct {
	Submissions int `json:"submissions"`
	CacheHits   int `json:"cache_hits"`
	Joins       int `json:"joins"`
	Starts      int `json:"starts"` // Start requests issued, including retries
	Polls       int `json:"polls"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Cancelled   int `json:"cancelled"`
	InFlight    int `json:"in_flight"`
}

// flight is one active Submission and the handles waiting on it
type flight struct {
	sub     model.Submission
	cancel  context.CancelFunc
	waiters map[string]*Handle
}

// Coordinator owns the verdict cache and the in-flight map
type Coordinator struct {
	backend       Backend
	cache         cache.Cache
	cacheTTL      time.Duration
	logger        *zap.Logger
	cadence       Cadence
	maxAttempts   int
	maxInputChars int
	rater         SourceRater
	now           func() time.Time

	mu       sync.Mutex
	inflight map[string]*flight
	stats    Stats
	wg       sync.WaitGroup
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithCache enables the verdict cache. ttl <= 0 uses the cache's default.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(co *Coordinator) {
		co.cache = c
		co.cacheTTL = ttl
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(co *Coordinator) {
		if l != nil {
			co.logger = l
		}
	}
}

// WithCadence sets the wait between attempts
func WithCadence(c Cadence) Option {
	return func(co *Coordinator) { co.cadence = c }
}

// WithMaxAttempts sets the shared budget for failed starts and polls
func WithMaxAttempts(n int) Option {
	return func(co *Coordinator) {
		if n > 0 {
			co.maxAttempts = n
		}
	}
}

// WithMaxInputChars sets the input truncation bound; 0 disables it
func WithMaxInputChars(n int) Option {
	return func(co *Coordinator) { co.maxInputChars = n }
}

// WithSourceRater rates sources the backend left unrated
func WithSourceRater(r SourceRater) Option {
	return func(co *Coordinator) { co.rater = r }
}

// New creates a Coordinator
func New(backend Backend, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend:       backend,
		logger:        zap.NewNop(),
		cadence:       DefaultCadence(),
		maxAttempts:   30,
		maxInputChars: 2000,
		now:           time.Now,
		inflight:      make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit starts or joins verification of text. A cached verdict yields an
// already resolved handle without any network call.
func (c *Coordinator) Submit(text string) (*Handle, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInput)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	text = truncateRunes(text, c.maxInputChars)
	fp := cache.Fingerprint(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Submissions++
	id := uuid.NewString()

	if v, ok := c.lookup(fp); ok {
		c.stats.CacheHits++
		c.logger.Debug("cache hit", zap.String("fingerprint", fp), zap.String("handle", id))
		h := newHandle(id, c, nil)
		h.resolve(&model.Outcome{
			SubmissionID: id,
			InputText:    text,
			Verdict:      v,
			Cached:       true,
		}, nil)
		return h, nil
	}

	if fl, ok := c.inflight[fp]; ok {
		c.stats.Joins++
		h := newHandle(id, c, fl)
		fl.waiters[id] = h
		c.logger.Debug("joined in-flight submission",
			zap.String("submission", fl.sub.ID),
			zap.String("handle", id),
			zap.Int("waiters", len(fl.waiters)))
		return h, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	fl := &flight{
		sub: model.Submission{
			ID:          id,
			Fingerprint: fp,
			InputText:   text,
			SubmittedAt: c.now(),
			State:       model.StatePending,
		},
		cancel:  cancel,
		waiters: make(map[string]*Handle),
	}
	h := newHandle(id, c, fl)
	fl.waiters[id] = h
	c.inflight[fp] = fl

	c.logger.Debug("submission created",
		zap.String("submission", id),
		zap.String("fingerprint", fp),
		zap.Int("chars", utf8.RuneCountInString(text)))

	c.wg.Add(1)
	go c.run(ctx, fl, id, text)

	return h, nil
}

// Check submits text and waits for the outcome (implements worker.Checker)
func (c *Coordinator) Check(ctx context.Context, text string) (*model.Outcome, error) {
	h, err := c.Submit(text)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// Cancel withdraws a handle. Cancelling the last handle of a submission stops
// its poll loop; the cache is never touched.
func (c *Coordinator) Cancel(h *Handle) {
	if h == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !h.resolve(nil, ErrCancelled) {
		return
	}
	fl := h.fl
	if fl == nil {
		return
	}
	delete(fl.waiters, h.id)
	c.logger.Debug("handle cancelled",
		zap.String("submission", fl.sub.ID),
		zap.String("handle", h.id),
		zap.Int("remaining", len(fl.waiters)))

	if len(fl.waiters) > 0 || fl.sub.State.Terminal() {
		return
	}

	fl.sub.State = model.StateCancelled
	c.stats.Cancelled++
	if c.inflight[fl.sub.Fingerprint] == fl {
		delete(c.inflight, fl.sub.Fingerprint)
	}
	fl.cancel()
	c.logger.Debug("submission cancelled", zap.String("submission", fl.sub.ID))
}

// ClearCache drops every cached verdict. In-flight submissions are unaffected.
func (c *Coordinator) ClearCache() error {
	if c.cache == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Clear()
}

// Stats returns a snapshot of the counters
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.InFlight = len(c.inflight)
	return s
}

// Shutdown cancels every outstanding handle and waits for poll loops to exit
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	var handles []*Handle
	for _, fl := range c.inflight {
		for _, h := range fl.waiters {
			handles = append(handles, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handles {
		c.Cancel(h)
	}
	c.wg.Wait()
}

// run drives one flight. id and text are passed in because fl.sub is only
// read or written under c.mu.
func (c *Coordinator) run(ctx context.Context, fl *flight, id, text string) {
	defer c.wg.Done()

	attempts := 0
	var lastErr error

	// Start phase: a successful start does not spend the budget
	var taskID string
	for {
		if attempts >= c.maxAttempts {
			c.fail(fl, timeoutError(attempts, lastErr))
			return
		}
		if !c.count(fl, func(s *Stats) { s.Starts++ }) {
			return
		}

		resp, err := c.backend.Start(ctx, text)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			if resp != nil {
				taskID = resp.TaskID
			}
			break
		}

		attempts++
		lastErr = err
		if !client.IsRetryable(err) {
			c.fail(fl, fmt.Errorf("%w: %w", ErrStartFailed, err))
			return
		}
		c.logger.Debug("start failed, retrying",
			zap.String("submission", id),
			zap.Int("attempt", attempts),
			zap.Error(err))
		if !sleepFunc(ctx, c.cadence.Delay(attempts)) {
			return
		}
	}

	c.mu.Lock()
	if fl.sub.State != model.StatePending {
		c.mu.Unlock()
		return
	}
	fl.sub.State = model.StatePolling
	fl.sub.TaskID = taskID
	c.mu.Unlock()
	c.logger.Debug("polling", zap.String("submission", id), zap.String("task_id", taskID))

	polls := 0
	for {
		if attempts >= c.maxAttempts {
			c.fail(fl, timeoutError(attempts, lastErr))
			return
		}
		if !c.count(fl, func(s *Stats) { s.Polls++ }) {
			return
		}
		attempts++
		polls++

		res, err := c.backend.Poll(ctx, taskID)
		if ctx.Err() != nil {
			// Cancelled while the request was in flight; discard
			return
		}

		switch {
		case err != nil:
			lastErr = err
			c.logger.Debug("poll failed",
				zap.String("submission", id),
				zap.Int("attempt", attempts),
				zap.Error(err))
		case res.Status == client.PollComplete:
			c.complete(fl, res.Verdict)
			return
		case res.Status == client.PollFailed:
			msg := res.Message
			if msg == "" {
				msg = "no detail"
			}
			c.fail(fl, fmt.Errorf("%w: %s", ErrRemoteFailed, msg))
			return
		default:
			lastErr = nil
			c.logger.Debug("still processing",
				zap.String("submission", id),
				zap.Int("attempt", attempts))
		}

		if attempts >= c.maxAttempts {
			continue
		}
		if !sleepFunc(ctx, c.cadence.Delay(polls)) {
			return
		}
	}
}

// count bumps a counter if the submission is still live
func (c *Coordinator) count(fl *flight, bump func(*Stats)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fl.sub.State.Terminal() {
		return false
	}
	bump(&c.stats)
	fl.sub.Attempts++
	return true
}

func (c *Coordinator) complete(fl *flight, v *model.Verdict) {
	if v == nil {
		c.fail(fl, fmt.Errorf("%w: empty verdict", ErrRemoteFailed))
		return
	}
	verdict := c.rate(*v)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.settle(fl, model.StateComplete) {
		return
	}
	c.stats.Completed++
	c.store(fl.sub.Fingerprint, verdict)

	elapsed := c.now().Sub(fl.sub.SubmittedAt)
	c.logger.Debug("submission complete",
		zap.String("submission", fl.sub.ID),
		zap.String("label", string(verdict.Label)),
		zap.Int("waiters", len(fl.waiters)),
		zap.Duration("elapsed", elapsed))

	for id, h := range fl.waiters {
		h.resolve(&model.Outcome{
			SubmissionID: fl.sub.ID,
			InputText:    fl.sub.InputText,
			Verdict:      copyVerdict(verdict),
			Duration:     elapsed,
			DurationMS:   elapsed.Milliseconds(),
		}, nil)
		delete(fl.waiters, id)
	}
}

func (c *Coordinator) fail(fl *flight, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.settle(fl, model.StateFailed) {
		return
	}
	c.stats.Failed++
	c.logger.Debug("submission failed",
		zap.String("submission", fl.sub.ID),
		zap.Int("attempts", fl.sub.Attempts),
		zap.Error(err))

	for id, h := range fl.waiters {
		h.resolve(nil, err)
		delete(fl.waiters, id)
	}
}

// settle moves fl into a terminal state; false if it already was terminal.
// Must be called with c.mu held.
func (c *Coordinator) settle(fl *flight, state model.State) bool {
	if fl.sub.State.Terminal() {
		return false
	}
	fl.sub.State = state
	if c.inflight[fl.sub.Fingerprint] == fl {
		delete(c.inflight, fl.sub.Fingerprint)
	}
	fl.cancel()
	return true
}

// lookup must be called with c.mu held
func (c *Coordinator) lookup(fp string) (model.Verdict, bool) {
	if c.cache == nil {
		return model.Verdict{}, false
	}
	data, ok := c.cache.Get(fp)
	if !ok {
		return model.Verdict{}, false
	}
	var v model.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("dropping unreadable cache entry", zap.String("fingerprint", fp), zap.Error(err))
		_ = c.cache.Delete(fp)
		return model.Verdict{}, false
	}
	return v, true
}

// store must be called with c.mu held
func (c *Coordinator) store(fp string, v model.Verdict) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("failed to encode verdict for cache", zap.Error(err))
		return
	}
	if err := c.cache.Set(fp, data, c.cacheTTL); err != nil {
		c.logger.Warn("failed to cache verdict", zap.String("fingerprint", fp), zap.Error(err))
	}
}

// rate fills in authority and reliability for sources the backend left unrated
func (c *Coordinator) rate(v model.Verdict) model.Verdict {
	v = copyVerdict(v)
	if c.rater == nil {
		return v
	}
	for i := range v.Sources {
		src := &v.Sources[i]
		if src.URL == "" {
			continue
		}
		src.Authority = c.rater.Classify(src.URL)
		if src.Reliable == nil {
			reliable := src.Authority.Reliable()
			src.Reliable = &reliable
		}
	}
	return v
}

func copyVerdict(v model.Verdict) model.Verdict {
	sources := make([]model.Source, len(v.Sources))
	copy(sources, v.Sources)
	v.Sources = sources
	return v
}

func timeoutError(attempts int, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrTimeout, attempts, cause)
	}
	return fmt.Errorf("%w after %d attempts", ErrTimeout, attempts)
}

// truncateRunes cuts s to at most n runes; n <= 0 means no bound
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return strings.TrimSpace(s[:pos])
		}
		i++
	}
	return s
}
