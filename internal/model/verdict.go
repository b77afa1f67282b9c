package model

import "strings"

// Label is the categorical outcome of a verification
type Label string

const (
	LabelSupported    Label = "supported"    // Claim is backed by the evidence
	LabelRefuted      Label = "refuted"      // Evidence contradicts the claim
	LabelInsufficient Label = "insufficient" // Not enough evidence either way
	LabelConflicting  Label = "conflicting"  // Sources disagree
)

// Verdict is the terminal result of a verification request
type Verdict struct {
	Label          Label    `json:"label"`
	RawVerdict     string   `json:"raw_verdict,omitempty"` // Verdict string exactly as the backend sent it
	Confidence     float64  `json:"confidence"`            // 0-100
	Explanation    string   `json:"explanation"`
	Sources        []Source `json:"sources"`
	ClaimsAnalyzed int      `json:"claims_analyzed,omitempty"`
}

// Source is a citation returned with a verdict
type Source struct {
	URL         string        `json:"url,omitempty"`
	Title       string        `json:"title,omitempty"`
	Domain      string        `json:"domain,omitempty"`
	Reliable    *bool         `json:"reliable,omitempty"`    // nil when neither backend nor classifier rated it
	Credibility *float64      `json:"credibility,omitempty"` // Backend credibility score, if any
	Authority   AuthorityTier `json:"authority,omitempty"`
	Reachable   *bool         `json:"reachable,omitempty"` // Set by the link checker
	StatusCode  int           `json:"status_code,omitempty"`
}

// IsReliable reports the reliability flag, treating an unknown flag as unreliable
func (s Source) IsReliable() bool {
	return s.Reliable != nil && *s.Reliable
}

// URLs returns the source URLs in order, skipping sources without one
func (v Verdict) URLs() []string {
	urls := make([]string, 0, len(v.Sources))
	for _, s := range v.Sources {
		if s.URL != "" {
			urls = append(urls, s.URL)
		}
	}
	return urls
}

var labelAliases = map[string]Label{
	"true":                  LabelSupported,
	"supported":             LabelSupported,
	"likely true":           LabelSupported,
	"mostly true":           LabelSupported,
	"correct":               LabelSupported,
	"accurate":              LabelSupported,
	"verified":              LabelSupported,
	"false":                 LabelRefuted,
	"refuted":               LabelRefuted,
	"likely false":          LabelRefuted,
	"mostly false":          LabelRefuted,
	"fake":                  LabelRefuted,
	"incorrect":             LabelRefuted,
	"mixed":                 LabelConflicting,
	"conflicting":           LabelConflicting,
	"partially true":        LabelConflicting,
	"half true":             LabelConflicting,
	"disputed":              LabelConflicting,
	"misleading":            LabelConflicting,
	"insufficient":          LabelInsufficient,
	"insufficient evidence": LabelInsufficient,
	"not enough info":       LabelInsufficient,
	"unverifiable":          LabelInsufficient,
	"unknown":               LabelInsufficient,
}

// ParseLabel maps the backend's free-form verdict onto a Label.
// Unrecognised verdicts map to LabelInsufficient.
func ParseLabel(raw string) Label {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")

	if label, ok := labelAliases[key]; ok {
		return label
	}
	return LabelInsufficient
}

// NormalizeConfidence converts a backend confidence into the 0-100 range.
// Values in (0, 1] are treated as fractions.
func NormalizeConfidence(c float64) float64 {
	if c > 0 && c <= 1 {
		c *= 100
	}
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
