// Package playbook grades setups per asset family. A playbook variant is
// data (tunable rule thresholds) plus a pure evaluate function; resolution
// walks a registry of matcher predicates and falls back to a generic
// variant. Variants are additive: a new asset family is a new registry
// entry, never a change to an existing one.
package playbook

import (
	"perception/internal/perception/event"
	"perception/internal/perception/quality"
	"perception/internal/types"
)

// Grades.
const (
	GradeA       = "A"
	GradeB       = "B"
	GradeNoTrade = "NO_TRADE"
)

// Setup types derived from the ring context.
const (
	SetupPullbackContinuation = "pullback_continuation"
	SetupRangeBias            = "range_bias"
	SetupUnknown              = "unknown"
)

// Market regimes for the index family.
const (
	RegimeTrend = "trend"
	RegimeRange = "range"
)

// Decision is the graded verdict for one setup.
type Decision struct {
	Grade         string   `json:"grade"`
	SetupType     string   `json:"setupType"`
	Rationale     []string `json:"rationale"`
	NoTradeReason string   `json:"noTradeReason,omitempty"`
	PlaybookID    string   `json:"playbookId"`
}

// Context carries everything a variant may inspect. Optional inputs are
// pointers; absence is neutral, never an error.
type Context struct {
	TrendScore     int
	BiasScore      int
	OrderflowScore int
	SentimentScore *int

	VolatilityScore *int
	Regime          string

	Event          *event.Context
	Quality        *quality.SignalQuality
	OrderflowFlags []string
}

// Rules are the tunable thresholds of one variant. Zero values mean the
// corresponding gate is disabled.
type Rules struct {
	EventWindowMinutes int `yaml:"eventWindowMinutes"`

	BiasFloor                  int `yaml:"biasFloor"`
	TrendFloor                 int `yaml:"trendFloor"`
	OrderflowNegativeThreshold int `yaml:"orderflowNegativeThreshold"`
	QualityFloor               int `yaml:"qualityFloor"`

	ABiasMin       int `yaml:"aBiasMin"`
	ATrendMin      int `yaml:"aTrendMin"`
	SentimentFloor int `yaml:"sentimentFloor"`

	StrengthBiasMin      int `yaml:"strengthBiasMin"`
	StrengthTrendMin     int `yaml:"strengthTrendMin"`
	StrengthOrderflowMin int `yaml:"strengthOrderflowMin"`
	StrengthQualityMin   int `yaml:"strengthQualityMin"`

	VolatilityCeiling     int  `yaml:"volatilityCeiling"`
	VolatilitySoftCeiling int  `yaml:"volatilitySoftCeiling"`
	RangeRegimeBlocked    bool `yaml:"rangeRegimeBlocked"`
}

// Variant binds an asset matcher to rules and an evaluation function.
type Variant struct {
	ID       string
	Label    string
	Match    func(types.Asset) (bool, string)
	Rules    Rules
	Evaluate func(Rules, Context) Decision
}

// EvaluateSetup applies the variant to a context and stamps the variant id.
func (v Variant) EvaluateSetup(ctx Context) Decision {
	d := v.Evaluate(v.Rules, ctx)
	d.PlaybookID = v.ID
	return d
}

// Registry resolves assets to variants in declaration order.
type Registry struct {
	variants []Variant
	fallback Variant
}

// NewRegistry builds the built-in registry, applying any per-variant rule
// overrides keyed by variant id.
func NewRegistry(overrides map[string]Rules) *Registry {
	variants := []Variant{
		goldSwingVariant(),
		indexSwingVariant(),
		cryptoSwingVariant(),
		fxSwingVariant(),
	}
	for i := range variants {
		if r, ok := overrides[variants[i].ID]; ok {
			variants[i].Rules = r
		}
	}
	fallback := genericVariant()
	if r, ok := overrides[fallback.ID]; ok {
		fallback.Rules = r
	}
	return &Registry{variants: variants, fallback: fallback}
}

// Resolve picks the variant for an asset. Non-swing profiles always land on
// the generic fallback. The second return is the matcher's reason.
func (r *Registry) Resolve(asset types.Asset, profile types.Profile) (Variant, string) {
	if !profile.IsSwing() {
		return r.fallback, "non-swing profile"
	}
	for _, v := range r.variants {
		if ok, reason := v.Match(asset); ok {
			return v, reason
		}
	}
	return r.fallback, "fallback generic"
}

func deriveSetupType(ctx Context) string {
	switch {
	case ctx.TrendScore >= 50 && ctx.BiasScore >= 70:
		return SetupPullbackContinuation
	case ctx.BiasScore >= 70:
		return SetupRangeBias
	default:
		return SetupUnknown
	}
}

// negativeFlags are the orderflow flags that count as an explicit conflict.
var negativeFlags = map[string]bool{
	"orderflow_trend_conflict": true,
	"orderflow_bias_conflict":  true,
	"choppy":                   true,
	"volume_dry":               true,
}

func hasNegativeOrderflowFlags(flags []string) bool {
	for _, f := range flags {
		if negativeFlags[f] {
			return true
		}
	}
	return false
}
