package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/athena/internal/model"
)

type stubProvider struct {
	text string
	err  error
	got  ExplainRequest
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Explain(ctx context.Context, req ExplainRequest) (*ExplainResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &ExplainResponse{Text: s.text, CitedURLs: extractURLs(s.text), Model: "stub-1"}, nil
}

func (s *stubProvider) IsAvailable(ctx context.Context) bool { return true }

func skyOutcome() *model.Outcome {
	return &model.Outcome{
		SubmissionID: "sub-1",
		InputText:    "The sky is blue",
		Verdict:      skyVerdict(),
	}
}

func TestExplainer_Annotate(t *testing.T) {
	p := &stubProvider{text: "Scattering is explained at https://nasa.gov/sky."}
	e := NewExplainer(p, true, nil)

	out := skyOutcome()
	if err := e.Annotate(context.Background(), out); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if out.Educational != p.text {
		t.Errorf("Unexpected note %q", out.Educational)
	}
	if p.got.Input != "The sky is blue" {
		t.Errorf("Expected input to be forwarded, got %q", p.got.Input)
	}
	if len(p.got.EvidenceURLs) != 2 {
		t.Errorf("Expected the verdict's URLs as allowlist, got %v", p.got.EvidenceURLs)
	}
}

func TestExplainer_CitationLeak(t *testing.T) {
	p := &stubProvider{text: "See https://random-blog.example/post for more."}
	out := skyOutcome()
	before := out.Verdict

	err := NewExplainer(p, true, nil).Annotate(context.Background(), out)
	if !errors.Is(err, ErrCitationLeak) {
		t.Fatalf("Expected ErrCitationLeak, got %v", err)
	}
	if out.Educational != "" {
		t.Errorf("Expected no note on leak, got %q", out.Educational)
	}
	if out.Verdict.Label != before.Label || out.Verdict.Confidence != before.Confidence {
		t.Error("Verdict must not change when explanation fails")
	}
}

func TestExplainer_NonStrictAllowsAnyCitation(t *testing.T) {
	p := &stubProvider{text: "See https://random-blog.example/post."}
	out := skyOutcome()
	if err := NewExplainer(p, false, nil).Annotate(context.Background(), out); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if out.Educational == "" {
		t.Error("Expected note in non-strict mode")
	}
}

func TestExplainer_ProviderError(t *testing.T) {
	p := &stubProvider{err: errors.New("boom")}
	out := skyOutcome()
	err := NewExplainer(p, true, nil).Annotate(context.Background(), out)
	if err == nil || !strings.Contains(err.Error(), "stub: boom") {
		t.Fatalf("Expected wrapped provider error, got %v", err)
	}
	if out.Educational != "" {
		t.Error("Expected no note on provider error")
	}
}

func TestExplainer_Disabled(t *testing.T) {
	var nilExplainer *Explainer
	if nilExplainer.Enabled() {
		t.Error("nil explainer should be disabled")
	}

	e := NewExplainer(nil, true, nil)
	if e.Enabled() || e.ProviderName() != "none" {
		t.Error("Expected explainer without provider to be disabled")
	}
	if err := e.Annotate(context.Background(), skyOutcome()); err == nil {
		t.Error("Expected error when disabled")
	}
}
