package cli

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/athena/internal/cache"
	"github.com/ppiankov/athena/internal/client"
	"github.com/ppiankov/athena/internal/llm"
	"github.com/ppiankov/athena/internal/model"
	"github.com/ppiankov/athena/internal/page"
	"github.com/ppiankov/athena/internal/report"
	"github.com/ppiankov/athena/internal/util"
	"github.com/ppiankov/athena/internal/validate"
	"github.com/ppiankov/athena/internal/verify"
	"github.com/ppiankov/athena/internal/worker"
)

const memoryCleanupInterval = 10 * time.Minute

// app holds everything a command needs, built once from the loaded config
type app struct {
	cfg      *model.Config
	logger   *zap.Logger
	limiter  *worker.Limiter
	client   *client.Client
	coord    *verify.Coordinator
	renderer *report.Renderer
}

type appOptions struct {
	noCache bool
}

func newApp(cfg *model.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	c, err := client.New(client.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Pipeline:  cfg.API.Pipeline,
		Limiter:   limiter,
		Logger:    logger.Named("client"),
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	coordOpts := []verify.Option{
		verify.WithLogger(logger.Named("verify")),
		verify.WithCadence(verify.CadenceFromConfig(cfg.Polling)),
		verify.WithMaxAttempts(cfg.Polling.MaxAttempts),
		verify.WithMaxInputChars(cfg.API.MaxInputChars),
		verify.WithSourceRater(validate.NewAuthorityClassifier(&cfg.Authority)),
	}

	var verdicts cache.Cache
	if cfg.Cache.Enabled && !opts.noCache {
		verdicts = buildCache(cfg.Cache)
		coordOpts = append(coordOpts, verify.WithCache(verdicts, cfg.Cache.TTL))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		limiter:  limiter,
		client:   c,
		coord:    verify.New(c, coordOpts...),
		renderer: report.NewRenderer(cfg.Output.IncludeFooter),
	}, nil
}

// buildCache returns the memory cache, layered over a disk cache when a directory is configured
func buildCache(cc model.CacheConfig) cache.Cache {
	memory := cache.NewMemoryCache(cc.TTL, memoryCleanupInterval, cc.MaxEntries)
	if cc.Dir == "" {
		return memory
	}
	return cache.NewLayeredCache(memory, cache.NewDiskCache(cc.Dir, cc.DiskTTL))
}

func (a *app) fetcher() *page.Fetcher {
	h := a.cfg.HTTP
	f := page.NewFetcher(h.Timeout, a.cfg.API.UserAgent, h.MaxBodyBytes, h.InsecureTLS, h.HTTPProxy, h.HTTPSProxy, h.NoProxy)
	if h.RespectRobots {
		f.SetRobots(util.NewRobotsChecker(a.cfg.API.UserAgent, nil))
	}
	f.SetLimiter(a.limiter)
	return f
}

func (a *app) linkChecker() *validate.LinkChecker {
	return validate.NewLinkChecker(validate.LinkCheckerOptions{
		Timeout:    a.cfg.HTTP.Timeout,
		MaxWorkers: a.cfg.Concurrency.ValidationWorkers,
		UserAgent:  a.cfg.API.UserAgent,
		HTTP:       a.cfg.HTTP,
		Limiter:    a.limiter,
		Logger:     a.logger.Named("links"),
	})
}

func (a *app) explainer() (*llm.Explainer, error) {
	lc := llm.ApplyEnv(llm.ConfigFromModel(a.cfg.LLM, a.cfg.HTTP))
	if lc.Provider == "" {
		return nil, fmt.Errorf("no LLM provider configured (set llm.provider or ATHENA_LLM_PROVIDER)")
	}
	provider, err := llm.NewProvider(lc, a.logger.Named("llm"))
	if err != nil {
		return nil, err
	}
	return llm.NewExplainer(provider, lc.StrictEvidence, a.logger.Named("llm")), nil
}

func (a *app) close() {
	a.coord.Shutdown()
}
