// Package report renders verification outcomes as JSON, Markdown, and a terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/athena/internal/model"
)

// Document is the file form of one outcome
type Document struct {
	SubmissionID   string         `json:"submissionId,omitempty"`
	Input          string         `json:"input"`
	Verdict        string         `json:"verdict,omitempty"`
	RawVerdict     string         `json:"rawVerdict,omitempty"`
	Confidence     float64        `json:"confidence"`
	Explanation    string         `json:"explanation,omitempty"`
	Sources        []model.Source `json:"sources"`
	ClaimsAnalyzed int            `json:"claimsAnalyzed,omitempty"`
	DurationMS     int64          `json:"durationMs"`
	Cached         bool           `json:"cached"`
	Educational    string         `json:"educational,omitempty"`
	Error          string         `json:"error,omitempty"`
	GeneratedAt    time.Time      `json:"generatedAt"`
}

// NewDocument builds a Document from an outcome, or from the error that
// replaced it. input is used when out is nil.
func NewDocument(input string, out *model.Outcome, err error) Document {
	doc := Document{
		Input:       input,
		Sources:     []model.Source{},
		GeneratedAt: time.Now().UTC(),
	}
	if err != nil {
		doc.Error = err.Error()
	}
	if out == nil {
		return doc
	}

	doc.SubmissionID = out.SubmissionID
	if out.InputText != "" {
		doc.Input = out.InputText
	}
	doc.Verdict = string(out.Verdict.Label)
	doc.RawVerdict = out.Verdict.RawVerdict
	doc.Confidence = out.Verdict.Confidence
	doc.Explanation = out.Verdict.Explanation
	if out.Verdict.Sources != nil {
		doc.Sources = out.Verdict.Sources
	}
	doc.ClaimsAnalyzed = out.Verdict.ClaimsAnalyzed
	doc.DurationMS = out.DurationMS
	doc.Cached = out.Cached
	doc.Educational = out.Educational
	return doc
}

// Renderer writes outcomes to files and terminals
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a Renderer. The footer is appended to Markdown output.
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes doc as indented JSON to path, creating parent directories
func (r *Renderer) RenderJSON(doc Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes doc as Markdown to path
func (r *Renderer) RenderMarkdown(doc Document, path string) error {
	return writeFile(path, []byte(r.Markdown(doc)))
}

// Markdown returns the Markdown form of doc
func (r *Renderer) Markdown(doc Document) string {
	var b strings.Builder

	b.WriteString("# Fact check\n\n")
	b.WriteString("> " + strings.ReplaceAll(doc.Input, "\n", "\n> ") + "\n\n")

	if doc.Error != "" {
		fmt.Fprintf(&b, "**Check failed:** %s\n", doc.Error)
		r.footer(&b)
		return b.String()
	}

	fmt.Fprintf(&b, "**Verdict:** %s  \n", strings.ToUpper(doc.Verdict))
	fmt.Fprintf(&b, "**Confidence:** %.0f%%  \n", doc.Confidence)
	if doc.ClaimsAnalyzed > 0 {
		fmt.Fprintf(&b, "**Claims analyzed:** %d  \n", doc.ClaimsAnalyzed)
	}
	fmt.Fprintf(&b, "**Duration:** %s", formatDuration(doc.DurationMS))
	if doc.Cached {
		b.WriteString(" (cached)")
	}
	b.WriteString("\n\n")

	if doc.Explanation != "" {
		b.WriteString("## Explanation\n\n")
		b.WriteString(doc.Explanation + "\n\n")
	}

	fmt.Fprintf(&b, "## Sources (%d)\n\n", len(doc.Sources))
	if len(doc.Sources) == 0 {
		b.WriteString("_No sources returned._\n\n")
	} else {
		b.WriteString("| # | Source | Tier | Reliable | Link |\n")
		b.WriteString("|---|--------|------|----------|------|\n")
		for i, s := range doc.Sources {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				i+1, escapeCell(sourceName(s)), s.Authority, yesNo(s.IsReliable()), linkState(s))
		}
		b.WriteString("\n")
	}

	if doc.Educational != "" {
		b.WriteString("## Reading the result\n\n")
		b.WriteString(doc.Educational + "\n\n")
	}

	r.footer(&b)
	return b.String()
}

func (r *Renderer) footer(b *strings.Builder) {
	if !r.includeFooter {
		return
	}
	b.WriteString("\n---\n_Generated by Athena. A verdict reflects the sources the fact-checker found; read them before sharing._\n")
}

// RenderSummary prints a short human summary of doc to w
func (r *Renderer) RenderSummary(w io.Writer, doc Document) {
	if doc.Error != "" {
		_, _ = fmt.Fprintf(w, "✗ %s\n", doc.Error)
		return
	}

	cached := ""
	if doc.Cached {
		cached = ", cached"
	}
	_, _ = fmt.Fprintf(w, "Verdict:     %s (%.0f%% confidence)\n", strings.ToUpper(doc.Verdict), doc.Confidence)
	if doc.Explanation != "" {
		_, _ = fmt.Fprintf(w, "Explanation: %s\n", doc.Explanation)
	}

	_, _ = fmt.Fprintf(w, "Sources:     %d\n", len(doc.Sources))
	for _, s := range doc.Sources {
		mark := "·"
		if s.IsReliable() {
			mark = "✓"
		}
		line := fmt.Sprintf("  %s %s", mark, sourceName(s))
		if s.URL != "" && s.URL != sourceName(s) {
			line += "  " + s.URL
		}
		if s.Authority != model.TierUnknown {
			line += fmt.Sprintf(" [%s]", s.Authority)
		}
		if s.Reachable != nil && !*s.Reachable {
			line += " (unreachable)"
		}
		_, _ = fmt.Fprintln(w, line)
	}

	if doc.Educational != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", doc.Educational)
	}
	_, _ = fmt.Fprintf(w, "Took %s%s\n", formatDuration(doc.DurationMS), cached)
}

func sourceName(s model.Source) string {
	switch {
	case s.Title != "":
		return s.Title
	case s.Domain != "":
		return s.Domain
	default:
		return s.URL
	}
}

func linkState(s model.Source) string {
	if s.URL == "" {
		return "-"
	}
	if s.Reachable == nil {
		return s.URL
	}
	if *s.Reachable {
		return fmt.Sprintf("%s (ok)", s.URL)
	}
	if s.StatusCode > 0 {
		return fmt.Sprintf("%s (dead, %d)", s.URL, s.StatusCode)
	}
	return fmt.Sprintf("%s (dead)", s.URL)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
