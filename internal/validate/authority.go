package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/athena/internal/model"
)

// AuthorityClassifier rates verdict sources by the authority of their host
type AuthorityClassifier struct {
	domainMap    map[string]model.AuthorityTier
	primary      []string
	secondary    []string
	pathPatterns []*compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.AuthorityTier
}

// NewAuthorityClassifier creates a classifier; nil config uses the defaults
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		domainMap: make(map[string]model.AuthorityTier, len(config.DomainMap)),
	}

	for host, tier := range config.DomainMap {
		classifier.domainMap[normalizeHost(host)] = ParseTier(tier)
	}
	for _, domain := range config.PrimaryDomains {
		classifier.primary = append(classifier.primary, normalizeHost(domain))
	}
	for _, domain := range config.SecondaryDomains {
		classifier.secondary = append(classifier.secondary, normalizeHost(domain))
	}

	// Invalid patterns are skipped
	for _, pp := range config.PathPatterns {
		if re, err := regexp.Compile(pp.Pattern); err == nil {
			classifier.pathPatterns = append(classifier.pathPatterns, &compiledPattern{
				pattern: re,
				tier:    ParseTier(pp.Tier),
			})
		}
	}

	return classifier
}

// Classify rates a URL. Bare domains ("nasa.gov") are accepted.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return model.TierUnknown
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return model.TierTertiary
	}
	return a.classifyHost(normalizeHost(parsed.Hostname()), parsed.Path)
}

// ClassifySource rates a source by URL, falling back to its domain
func (a *AuthorityClassifier) ClassifySource(src model.Source) model.AuthorityTier {
	if src.URL != "" {
		return a.Classify(src.URL)
	}
	if src.Domain != "" {
		return a.Classify(src.Domain)
	}
	return model.TierUnknown
}

func (a *AuthorityClassifier) classifyHost(host, path string) model.AuthorityTier {
	if tier, ok := a.domainMap[host]; ok {
		return tier
	}
	if matchesAny(host, a.primary) {
		return model.TierPrimary
	}
	if matchesAny(host, a.secondary) {
		return model.TierSecondary
	}

	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(path) {
			return cp.tier
		}
	}

	// Government, military, intergovernmental and academic hosts
	for _, suffix := range []string{".gov", ".mil", ".int", ".edu", ".ac.uk", ".gov.uk"} {
		if strings.HasSuffix(host, suffix) {
			return model.TierPrimary
		}
	}

	return model.TierTertiary
}

// matchesAny reports whether host equals or is a subdomain of any domain
func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// ParseTier converts a tier name or number to an AuthorityTier
func ParseTier(tier string) model.AuthorityTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}
