package model

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Government, academic, standards bodies, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media, fact-checkers
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites, social media
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// Reliable reports whether sources of this tier count as reliable
func (t AuthorityTier) Reliable() bool {
	return t == TierPrimary || t == TierSecondary
}
