package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/athena/internal/model"
)

// PollStatus classifies a poll response
type PollStatus int

const (
	PollProcessing PollStatus = iota // Keep polling
	PollComplete                     // Verdict is set
	PollFailed                       // Backend reported its own failure
)

func (s PollStatus) String() string {
	switch s {
	case PollComplete:
		return "complete"
	case PollFailed:
		return "failed"
	default:
		return "processing"
	}
}

// PollResult is a classified poll response
type PollResult struct {
	Status  PollStatus
	Verdict *model.Verdict
	Message string // Failure detail when Status == PollFailed
}

// resultPayload covers both the flat result shape and the
// {status, result} wrapper; fields are optional
type resultPayload struct {
	Status              string          `json:"status"`
	Result              json.RawMessage `json:"result"`
	Error               json.RawMessage `json:"error"`
	Verdict             string          `json:"verdict"`
	OverallVerdict      string          `json:"overall_verdict"`
	Confidence          json.RawMessage `json:"confidence"`
	ConfidenceScore     json.RawMessage `json:"confidence_score"`
	Response            string          `json:"response"`
	Explanation         string          `json:"explanation"`
	DetailedExplanation string          `json:"detailed_explanation"`
	ProcessedAnswer     string          `json:"processed_answer"`
	Reasoning           string          `json:"reasoning"`
	Sources             json.RawMessage `json:"sources"`
	SourcesUsed         json.RawMessage `json:"sources_used"`
	IsFake              *bool           `json:"is_fake"`
	ClaimsAnalyzed      int             `json:"claims_analyzed"`
}

var (
	processingStatuses = map[string]bool{"processing": true, "pending": true, "running": true, "started": true, "queued": true, "in_progress": true}
	completeStatuses   = map[string]bool{"complete": true, "completed": true, "done": true, "success": true}
	failedStatuses     = map[string]bool{"error": true, "failed": true}
	placeholderVerdict = map[string]bool{"processing": true, "pending": true, "in progress": true, "analyzing": true}
)

// noSourceSentinels are placeholder strings the backend sends instead of an empty list
var noSourceSentinels = map[string]bool{
	"no specific sources found": true,
	"no sources found":          true,
	"no sources":                true,
	"no sources available":      true,
	"n/a":                       true,
	"none":                      true,
}

// ParsePollPayload classifies a poll response body
func ParsePollPayload(data []byte) (*PollResult, error) {
	var p resultPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return classify(&p, 0)
}

func classify(p *resultPayload, depth int) (*PollResult, error) {
	status := strings.ToLower(strings.TrimSpace(p.Status))

	if failedStatuses[status] {
		msg := rawString(p.Error)
		if msg == "" {
			msg = stripResponseHeader(p.Response)
		}
		return &PollResult{Status: PollFailed, Message: msg}, nil
	}

	if hasValue(p.Result) && depth == 0 {
		var nested resultPayload
		if err := json.Unmarshal(p.Result, &nested); err != nil {
			return nil, fmt.Errorf("decode nested result: %w", err)
		}
		if completeStatuses[status] || status == "" {
			return classify(&nested, depth+1)
		}
	}

	if processingStatuses[status] {
		return &PollResult{Status: PollProcessing}, nil
	}

	verdict := strings.TrimSpace(p.Verdict)
	if verdict == "" {
		verdict = strings.TrimSpace(p.OverallVerdict)
	}
	if verdict == "" && p.IsFake == nil {
		return &PollResult{Status: PollProcessing}, nil
	}

	lowered := strings.ToLower(verdict)
	if placeholderVerdict[lowered] {
		return &PollResult{Status: PollProcessing}, nil
	}
	if lowered == "error" {
		return &PollResult{Status: PollFailed, Message: stripResponseHeader(p.Response)}, nil
	}

	v, err := buildVerdict(p, verdict)
	if err != nil {
		return nil, err
	}
	return &PollResult{Status: PollComplete, Verdict: v}, nil
}

func buildVerdict(p *resultPayload, verdict string) (*model.Verdict, error) {
	label := model.ParseLabel(verdict)
	if p.IsFake != nil && *p.IsFake {
		label = model.LabelRefuted
	}

	confidenceRaw := p.Confidence
	if !hasValue(confidenceRaw) {
		confidenceRaw = p.ConfidenceScore
	}
	confidence, err := parseConfidence(confidenceRaw)
	if err != nil {
		return nil, err
	}

	sourcesRaw := p.Sources
	if !hasValue(sourcesRaw) {
		sourcesRaw = p.SourcesUsed
	}
	sources, err := parseSources(sourcesRaw)
	if err != nil {
		return nil, err
	}

	return &model.Verdict{
		Label:          label,
		RawVerdict:     verdict,
		Confidence:     confidence,
		Explanation:    pickExplanation(p),
		Sources:        sources,
		ClaimsAnalyzed: p.ClaimsAnalyzed,
	}, nil
}

func pickExplanation(p *resultPayload) string {
	for _, candidate := range []string{p.Explanation, p.DetailedExplanation, p.ProcessedAnswer, p.Reasoning} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return stripResponseHeader(p.Response)
}

// stripResponseHeader drops the "Verdict\nConfidence: N%" lines the backend
// prepends to its human-readable response
func stripResponseHeader(response string) string {
	lines := strings.Split(strings.TrimSpace(response), "\n")
	if len(lines) <= 1 {
		return strings.TrimSpace(response)
	}

	start := 1
	for start < len(lines) {
		line := strings.TrimSpace(lines[start])
		if line == "" || strings.HasPrefix(strings.ToLower(line), "confidence:") {
			start++
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n"))
}

func parseConfidence(raw json.RawMessage) (float64, error) {
	if !hasValue(raw) {
		return 0, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return model.NormalizeConfidence(n), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("decode confidence: %w", err)
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("decode confidence %q: %w", s, err)
	}
	return model.NormalizeConfidence(n), nil
}

type sourceObject struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Domain         string   `json:"domain"`
	IsReliable     *bool    `json:"isReliable"`
	IsReliableAlt  *bool    `json:"is_reliable"`
	Credibility    *float64 `json:"credibility_score"`
	CredibilityAlt *float64 `json:"credibility"`
}

func parseSources(raw json.RawMessage) ([]model.Source, error) {
	sources := []model.Source{}
	if !hasValue(raw) {
		return sources, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}

	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}

		if trimmed[0] == '"' {
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return nil, fmt.Errorf("decode source: %w", err)
			}
			if src, ok := sourceFromString(s); ok {
				sources = append(sources, src)
			}
			continue
		}

		var obj sourceObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode source: %w", err)
		}
		sources = append(sources, sourceFromObject(obj))
	}

	return sources, nil
}

func sourceFromString(s string) (model.Source, bool) {
	s = strings.TrimSpace(s)
	if s == "" || noSourceSentinels[strings.ToLower(s)] {
		return model.Source{}, false
	}

	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return model.Source{URL: s, Domain: domainOf(u)}, true
	}

	// Bare domain such as "nasa.gov"
	if !strings.ContainsAny(s, " \t/") && strings.Contains(s, ".") {
		domain := strings.ToLower(strings.TrimPrefix(s, "www."))
		return model.Source{URL: "https://" + s, Domain: domain}, true
	}

	return model.Source{Title: s}, true
}

func sourceFromObject(obj sourceObject) model.Source {
	src := model.Source{
		URL:         strings.TrimSpace(obj.URL),
		Title:       strings.TrimSpace(obj.Title),
		Domain:      strings.TrimSpace(obj.Domain),
		Reliable:    obj.IsReliable,
		Credibility: obj.Credibility,
	}
	if src.Reliable == nil {
		src.Reliable = obj.IsReliableAlt
	}
	if src.Credibility == nil {
		src.Credibility = obj.CredibilityAlt
	}
	if src.Domain == "" && src.URL != "" {
		if u, err := url.Parse(src.URL); err == nil && u.Host != "" {
			src.Domain = domainOf(u)
		}
	}
	return src
}

func domainOf(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func hasValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// rawString renders an arbitrary JSON value as a message
func rawString(raw json.RawMessage) string {
	if !hasValue(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
