package corpus

import (
	"strings"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// Quality is a source document's trust tier. Order of preference is
// preferred > reference, standard > deprecated, with archive and draft
// as side variants.
type Quality string

const (
	QualityPreferred  Quality = "preferred"
	QualityReference  Quality = "reference"
	QualityStandard   Quality = "standard"
	QualityDeprecated Quality = "deprecated"
	QualityArchive    Quality = "archive"
	QualityDraft      Quality = "draft"
)

// Qualities lists every tier in declaration order.
var Qualities = []Quality{
	QualityPreferred,
	QualityReference,
	QualityStandard,
	QualityDeprecated,
	QualityArchive,
	QualityDraft,
}

// ParseQuality is case-insensitive. Empty input means standard.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return QualityStandard, nil
	}
	q := Quality(s)
	if !q.Valid() {
		return "", cerrors.InvalidArgument("unknown quality tier %q", s)
	}
	return q, nil
}

// Valid reports whether q is a known tier.
func (q Quality) Valid() bool {
	for _, known := range Qualities {
		if q == known {
			return true
		}
	}
	return false
}

func (q Quality) String() string { return string(q) }
