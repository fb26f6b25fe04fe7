package rank

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Aman-CERP/corpusrank/internal/corpus"
	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// RecencyMode selects the decay curve applied to document age.
type RecencyMode string

const (
	// RecencyLinear scores 1 - decay*age, clamped to [0,1].
	RecencyLinear RecencyMode = "linear"
	// RecencyExponential scores exp(-decay*age).
	RecencyExponential RecencyMode = "exponential"
)

const daysPerYear = 365.25

// RecencyConfig controls recency scoring.
type RecencyConfig struct {
	// Decay is the score lost per year of age (linear) or the rate (exponential).
	Decay float64
	Mode  RecencyMode
	// Neutral is the score for documents without a usable date.
	Neutral float64
}

// DefaultRecencyConfig returns linear decay of 0.1 per year with neutral 0.5.
func DefaultRecencyConfig() RecencyConfig {
	return RecencyConfig{
		Decay:   0.1,
		Mode:    RecencyLinear,
		Neutral: 0.5,
	}
}

// Validate checks the decay rate, mode and neutral score.
func (c RecencyConfig) Validate() error {
	if c.Decay < 0 || math.IsNaN(c.Decay) {
		return cerrors.InvalidArgument("recency decay must be >= 0, got %v", c.Decay)
	}
	switch c.Mode {
	case RecencyLinear, RecencyExponential:
	default:
		return cerrors.InvalidArgument("unknown recency mode %q (want linear or exponential)", c.Mode)
	}
	if c.Neutral < 0 || c.Neutral > 1 {
		return cerrors.InvalidArgument("neutral recency must be in [0,1], got %v", c.Neutral)
	}
	return nil
}

// Score returns the recency score of a document dated at date, as seen at now.
// A nil date yields Neutral and a future date counts as age zero.
func (c RecencyConfig) Score(date *time.Time, now time.Time) float64 {
	if date == nil {
		return c.Neutral
	}
	age := now.Sub(*date).Hours() / 24 / daysPerYear
	if age < 0 {
		age = 0
	}

	var s float64
	if c.Mode == RecencyExponential {
		s = math.Exp(-c.Decay * age)
	} else {
		s = 1 - c.Decay*age
	}
	return clamp01(s)
}

// QualityConfig maps quality tiers to ranking multipliers.
type QualityConfig map[corpus.Quality]float64

// DefaultQualityConfig returns the standard multiplier table.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		corpus.QualityPreferred:  1.5,
		corpus.QualityReference:  1.0,
		corpus.QualityStandard:   1.0,
		corpus.QualityDeprecated: 0.3,
		corpus.QualityArchive:    0.5,
		corpus.QualityDraft:      0.7,
	}
}

// ParseQualityConfig builds a table from raw tier names, as read from config.
// Tiers missing from raw keep their default multiplier.
func ParseQualityConfig(raw map[string]float64) (QualityConfig, error) {
	cfg := DefaultQualityConfig()
	for name, m := range raw {
		q, err := corpus.ParseQuality(name)
		if err != nil {
			return nil, err
		}
		cfg[q] = m
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown tiers, negative multipliers and an all-zero table.
func (c QualityConfig) Validate() error {
	if len(c) == 0 {
		return cerrors.InvalidArgument("quality table is empty")
	}
	var maxM float64
	for q, m := range c {
		if !q.Valid() {
			return cerrors.InvalidArgument("unknown quality tier %q", q)
		}
		if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return cerrors.InvalidArgument("quality multiplier for %s must be a finite number >= 0, got %v", q, m)
		}
		maxM = math.Max(maxM, m)
	}
	if maxM == 0 {
		return cerrors.InvalidArgument("quality table needs at least one positive multiplier")
	}
	if _, ok := c[corpus.QualityStandard]; !ok {
		return cerrors.InvalidArgument("quality table must define %s", corpus.QualityStandard)
	}
	return nil
}

// Multiplier returns the raw multiplier of a stored tier name.
// Unknown or missing tiers fall back to standard.
func (c QualityConfig) Multiplier(tier string) float64 {
	q, err := corpus.ParseQuality(tier)
	if err != nil {
		q = corpus.QualityStandard
	}
	if m, ok := c[q]; ok {
		return m
	}
	return c[corpus.QualityStandard]
}

// Score normalizes the tier multiplier into [0,1] by the table's maximum.
func (c QualityConfig) Score(tier string) float64 {
	var maxM float64
	for _, m := range c {
		maxM = math.Max(maxM, m)
	}
	if maxM == 0 {
		return 0
	}
	return clamp01(c.Multiplier(tier) / maxM)
}

// String renders the table in tier order, for logs.
func (c QualityConfig) String() string {
	parts := make([]string, 0, len(c))
	for _, q := range corpus.Qualities {
		if m, ok := c[q]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.2g", q, m))
		}
	}
	return strings.Join(parts, " ")
}

// documentDate is the date recency is measured from: created, else modified.
func documentDate(md map[string]string) *time.Time {
	if d := store.ParseDate(md[store.KeyCreatedDate]); d != nil {
		return d
	}
	return store.ParseDate(md[store.KeyModifiedDate])
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
