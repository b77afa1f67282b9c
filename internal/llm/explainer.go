package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/athena/internal/model"
)

// Explainer attaches educational notes to outcomes
type Explainer struct {
	provider Provider
	strict   bool
	logger   *zap.Logger
}

// NewExplainer wraps provider. With strict set, notes citing URLs outside
// the verdict's sources are rejected.
func NewExplainer(provider Provider, strict bool, logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explainer{provider: provider, strict: strict, logger: logger}
}

// Enabled reports whether a provider is configured
func (e *Explainer) Enabled() bool {
	return e != nil && e.provider != nil
}

// ProviderName returns the configured provider, or "none"
func (e *Explainer) ProviderName() string {
	if !e.Enabled() {
		return "none"
	}
	return e.provider.Name()
}

// Annotate sets out.Educational. On error out is left unchanged.
func (e *Explainer) Annotate(ctx context.Context, out *model.Outcome) error {
	if !e.Enabled() {
		return errors.New("no LLM provider configured")
	}
	if out == nil {
		return errors.New("nil outcome")
	}

	allowed := out.Verdict.URLs()
	resp, err := e.provider.Explain(ctx, ExplainRequest{
		Input:        out.InputText,
		Verdict:      out.Verdict,
		EvidenceURLs: allowed,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", e.provider.Name(), err)
	}

	if e.strict {
		if err := checkCitations(resp.CitedURLs, allowed); err != nil {
			e.logger.Warn("explanation rejected",
				zap.String("provider", e.provider.Name()),
				zap.Strings("cited", resp.CitedURLs),
				zap.Error(err))
			return err
		}
	}

	e.logger.Debug("explanation generated",
		zap.String("provider", e.provider.Name()),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.TokensUsed))

	out.Educational = resp.Text
	return nil
}
