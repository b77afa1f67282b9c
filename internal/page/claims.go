package page

import (
	"strings"
	"unicode"
)

// Claim is a sentence from a page that looks worth fact-checking
type Claim struct {
	Text      string `json:"text"`
	Heuristic string `json:"heuristic,omitempty"` // e.g. "keyword:according to" or "number"
	Sentence  int    `json:"sentence"`            // sentence index in the page text
}

// ClaimExtractor picks check-worthy sentences out of page text
type ClaimExtractor struct {
	keywords []string
	minLen   int
	maxLen   int
}

// NewClaimExtractor creates an extractor with the default keyword list
func NewClaimExtractor() *ClaimExtractor {
	return &ClaimExtractor{
		keywords: []string{
			"according to", "study", "studies", "research", "scientists", "experts",
			"percent", "%", "million", "billion",
			"causes", "cures", "prevents", "linked to", "proven", "confirmed",
			"first", "invented", "discovered", "founded", "originated",
			"always", "never", "every", "only",
			"is the largest", "is the most", "is the highest",
			"announced", "reported", "claims", "said",
		},
		minLen: 30,
		maxLen: 500,
	}
}

// Extract returns claim-like sentences from text in page order, without duplicates
func (e *ClaimExtractor) Extract(text string) []Claim {
	var claims []Claim
	seen := make(map[string]bool)

	for i, sentence := range splitSentences(text, e.minLen, e.maxLen) {
		heuristic := e.match(sentence)
		if heuristic == "" {
			continue
		}
		key := strings.ToLower(sentence)
		if seen[key] {
			continue
		}
		seen[key] = true
		claims = append(claims, Claim{Text: sentence, Heuristic: heuristic, Sentence: i})
	}
	return claims
}

func (e *ClaimExtractor) match(sentence string) string {
	lower := strings.ToLower(sentence)
	if strings.HasSuffix(lower, "?") {
		return ""
	}
	for _, kw := range e.keywords {
		if containsWord(lower, kw) {
			return "keyword:" + kw
		}
	}
	if strings.IndexFunc(sentence, unicode.IsDigit) >= 0 {
		return "number"
	}
	return ""
}

// containsWord matches kw on word boundaries; symbols match anywhere
func containsWord(s, kw string) bool {
	if len(kw) == 1 && !unicode.IsLetter(rune(kw[0])) {
		return strings.Contains(s, kw)
	}
	for start := 0; ; {
		i := strings.Index(s[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(kw)
		before := i == 0 || !isWordByte(s[i-1])
		after := end == len(s) || !isWordByte(s[end])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b == '-' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// splitSentences splits on terminators followed by whitespace and on line breaks,
// keeping sentences whose length is within [minLen, maxLen]
func splitSentences(text string, minLen, maxLen int) []string {
	var sentences []string
	var current strings.Builder

	emit := func() {
		s := strings.Join(strings.Fields(current.String()), " ")
		if len(s) >= minLen && len(s) <= maxLen {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			emit()
			continue
		}
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				emit()
			}
		}
	}
	emit()

	return sentences
}
