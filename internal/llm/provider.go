// Package llm writes an optional media-literacy note for a verdict.
// Every provider is held to the same citation allowlist: the verdict's own sources.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/athena/internal/model"
)

// ErrCitationLeak is returned when a note cites a URL outside the allowlist
var ErrCitationLeak = errors.New("citation leak")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Explain generates an educational note about a verdict
	Explain(ctx context.Context, req ExplainRequest) (*ExplainResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ExplainRequest contains the input for an educational note
type ExplainRequest struct {
	// Input is the text that was checked
	Input string

	Verdict model.Verdict

	// EvidenceURLs is the allowlist of URLs the note may cite
	EvidenceURLs []string

	// Prompt overrides BuildPrompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// ExplainResponse contains the generated note
type ExplainResponse struct {
	Text       string
	CitedURLs  []string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  int // seconds

	// StrictEvidence rejects notes that cite URLs outside the verdict's sources
	StrictEvidence bool
	MaxTokens      int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns the explainer defaults (disabled)
func DefaultConfig() Config {
	return Config{
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      600,
	}
}

const systemPrompt = "You write short media-literacy notes about fact-check results and only cite the sources you are given."

// BuildPrompt constructs the default prompt for an educational note
func BuildPrompt(input string, verdict model.Verdict, evidenceURLs []string) string {
	reliable := 0
	for _, s := range verdict.Sources {
		if s.IsReliable() {
			reliable++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `A reader just fact-checked a piece of text. Write a short media-literacy note for them.

RULES:
1. You may ONLY cite URLs from this list:
%s

2. Do not cite, invent or guess any other source.
3. Do not argue with the verdict. Explain what the reader could check themselves and which signals matter.
4. If the sources are weak or few, say so plainly.

Checked text:
%q

Result:
- Verdict: %s
- Confidence: %.0f%%
- Sources: %d (%d rated reliable)
`, joinURLs(evidenceURLs), input, verdict.Label, verdict.Confidence, len(verdict.Sources), reliable)

	if verdict.Explanation != "" {
		fmt.Fprintf(&b, "- Fact-checker explanation: %s\n", verdict.Explanation)
	}

	b.WriteString("\nReply with 3-4 sentences of plain text.")
	return b.String()
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(no sources available, cite nothing)"
	}
	var b strings.Builder
	for i, u := range urls {
		if i >= 20 {
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", u)
	}
	return b.String()
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"]+`)

// extractURLs returns the distinct URLs cited in text
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:!?'")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

// checkCitations fails on the first cited URL missing from allowed
func checkCitations(cited, allowed []string) error {
	for _, u := range cited {
		if !contains(allowed, u) {
			return fmt.Errorf("%w: note cited %s", ErrCitationLeak, u)
		}
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item || strings.TrimSuffix(s, "/") == strings.TrimSuffix(item, "/") {
			return true
		}
	}
	return false
}

func resolveModel(reqModel, configModel, fallback string) string {
	if reqModel != "" {
		return reqModel
	}
	if configModel != "" {
		return configModel
	}
	return fallback
}

func resolveMaxTokens(reqMax, configMax int) int {
	if reqMax > 0 {
		return reqMax
	}
	if configMax > 0 {
		return configMax
	}
	return 600
}
