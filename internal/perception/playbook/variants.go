package playbook

import (
	"fmt"

	"perception/internal/perception/event"
	"perception/internal/types"
)

// Variant ids. The version suffix tracks rule revisions, not code.
const (
	GoldSwingID    = "gold-swing-v0.2"
	IndexSwingID   = "index-swing-v0.2"
	CryptoSwingID  = "crypto-swing-v0.1"
	FxSwingID      = "fx-swing-v0.1"
	GenericSwingID = "generic-swing-v0.1"
)

func goldSwingVariant() Variant {
	return Variant{
		ID:    GoldSwingID,
		Label: "Gold Swing",
		Match: matchGold,
		Rules: Rules{
			EventWindowMinutes:         48 * 60,
			BiasFloor:                  70,
			TrendFloor:                 45,
			OrderflowNegativeThreshold: 30,
			QualityFloor:               40,
			ABiasMin:                   80,
			ATrendMin:                  55,
			SentimentFloor:             55,
			StrengthBiasMin:            90,
			StrengthTrendMin:           65,
			StrengthOrderflowMin:       55,
			StrengthQualityMin:         70,
		},
		Evaluate: evaluateGraded,
	}
}

func cryptoSwingVariant() Variant {
	return Variant{
		ID:    CryptoSwingID,
		Label: "Crypto Swing",
		Match: matchCrypto,
		Rules: Rules{
			EventWindowMinutes:         48 * 60,
			BiasFloor:                  65,
			TrendFloor:                 45,
			OrderflowNegativeThreshold: 30,
			QualityFloor:               40,
			ABiasMin:                   78,
			ATrendMin:                  55,
			SentimentFloor:             55,
			StrengthBiasMin:            88,
			StrengthTrendMin:           65,
			StrengthOrderflowMin:       55,
			StrengthQualityMin:         70,
		},
		Evaluate: evaluateGraded,
	}
}

func fxSwingVariant() Variant {
	return Variant{
		ID:    FxSwingID,
		Label: "FX Swing",
		Match: matchFx,
		Rules: Rules{
			EventWindowMinutes:         48 * 60,
			BiasFloor:                  70,
			TrendFloor:                 40,
			OrderflowNegativeThreshold: 30,
			QualityFloor:               40,
			ABiasMin:                   80,
			ATrendMin:                  55,
			SentimentFloor:             55,
			StrengthBiasMin:            90,
			StrengthTrendMin:           65,
			StrengthOrderflowMin:       55,
			StrengthQualityMin:         70,
		},
		Evaluate: evaluateGraded,
	}
}

func indexSwingVariant() Variant {
	return Variant{
		ID:    IndexSwingID,
		Label: "Index Swing",
		Match: matchIndex,
		Rules: Rules{
			EventWindowMinutes:         48 * 60,
			BiasFloor:                  65,
			TrendFloor:                 40,
			OrderflowNegativeThreshold: 30,
			QualityFloor:               40,
			ABiasMin:                   78,
			ATrendMin:                  50,
			SentimentFloor:             50,
			StrengthBiasMin:            88,
			StrengthTrendMin:           62,
			StrengthOrderflowMin:       55,
			StrengthQualityMin:         68,
			VolatilityCeiling:          75,
			VolatilitySoftCeiling:      60,
			RangeRegimeBlocked:         true,
		},
		Evaluate: evaluateIndex,
	}
}

func genericVariant() Variant {
	return Variant{
		ID:    GenericSwingID,
		Label: "Generic Swing",
		Match: func(types.Asset) (bool, string) { return true, "generic" },
		Rules: Rules{
			BiasFloor:  70,
			TrendFloor: 45,
		},
		Evaluate: evaluateGeneric,
	}
}

func noTrade(ctx Context, reason string) Decision {
	return Decision{
		Grade:         GradeNoTrade,
		SetupType:     deriveSetupType(ctx),
		NoTradeReason: reason,
	}
}

func eventGateFires(rules Rules, ctx Context) bool {
	if ctx.Event == nil || ctx.Event.Class != event.ClassExecutionCritical {
		return false
	}
	m := ctx.Event.MinutesToNext
	return m >= 0 && m <= rules.EventWindowMinutes
}

func orderflowNegative(rules Rules, ctx Context) bool {
	return ctx.OrderflowScore < rules.OrderflowNegativeThreshold ||
		hasNegativeOrderflowFlags(ctx.OrderflowFlags)
}

// evaluateGraded is the shared gate ladder for gold, crypto and fx. The
// gate order is fixed: event, score floors, orderflow conflict, quality
// floor, then soft graded scoring.
func evaluateGraded(rules Rules, ctx Context) Decision {
	if eventGateFires(rules, ctx) {
		return noTrade(ctx, fmt.Sprintf("execution-critical event within %dh window", rules.EventWindowMinutes/60))
	}
	if ctx.BiasScore < rules.BiasFloor {
		return noTrade(ctx, fmt.Sprintf("bias %d below floor %d", ctx.BiasScore, rules.BiasFloor))
	}
	if ctx.TrendScore < rules.TrendFloor {
		return noTrade(ctx, fmt.Sprintf("trend %d below floor %d", ctx.TrendScore, rules.TrendFloor))
	}
	if orderflowNegative(rules, ctx) {
		return noTrade(ctx, "orderflow negative or conflicting")
	}
	if ctx.Quality != nil && ctx.Quality.Score < rules.QualityFloor {
		return noTrade(ctx, fmt.Sprintf("signal quality %d below floor %d", ctx.Quality.Score, rules.QualityFloor))
	}
	return gradeSoft(rules, ctx, nil)
}

// evaluateIndex adds the index-family hard gates on top of the shared
// ladder: a volatility ceiling that always blocks, and a range regime
// block. Medium volatility is soft and only annotates the rationale.
func evaluateIndex(rules Rules, ctx Context) Decision {
	if eventGateFires(rules, ctx) {
		return noTrade(ctx, fmt.Sprintf("execution-critical event within %dh window", rules.EventWindowMinutes/60))
	}
	if rules.VolatilityCeiling > 0 && ctx.VolatilityScore != nil && *ctx.VolatilityScore >= rules.VolatilityCeiling {
		return noTrade(ctx, fmt.Sprintf("volatility %d at or above ceiling %d", *ctx.VolatilityScore, rules.VolatilityCeiling))
	}
	if rules.RangeRegimeBlocked && ctx.Regime == RegimeRange {
		return noTrade(ctx, "range regime detected")
	}
	if ctx.BiasScore < rules.BiasFloor {
		return noTrade(ctx, fmt.Sprintf("bias %d below floor %d", ctx.BiasScore, rules.BiasFloor))
	}
	if ctx.TrendScore < rules.TrendFloor {
		return noTrade(ctx, fmt.Sprintf("trend %d below floor %d", ctx.TrendScore, rules.TrendFloor))
	}
	if orderflowNegative(rules, ctx) {
		return noTrade(ctx, "orderflow negative or conflicting")
	}
	if ctx.Quality != nil && ctx.Quality.Score < rules.QualityFloor {
		return noTrade(ctx, fmt.Sprintf("signal quality %d below floor %d", ctx.Quality.Score, rules.QualityFloor))
	}

	var caveats []string
	if rules.VolatilitySoftCeiling > 0 && ctx.VolatilityScore != nil && *ctx.VolatilityScore >= rules.VolatilitySoftCeiling {
		caveats = append(caveats, "volatility elevated, size down")
	}
	return gradeSoft(rules, ctx, caveats)
}

// gradeSoft runs the A / A-with-caveat / B ladder after all hard gates
// passed.
func gradeSoft(rules Rules, ctx Context, caveats []string) Decision {
	sentimentMissing := ctx.SentimentScore == nil
	sentimentOK := sentimentMissing || *ctx.SentimentScore >= rules.SentimentFloor

	var strengthTrigger string
	switch {
	case ctx.BiasScore >= rules.StrengthBiasMin:
		strengthTrigger = fmt.Sprintf("bias >=%d", rules.StrengthBiasMin)
	case ctx.TrendScore >= rules.StrengthTrendMin:
		strengthTrigger = fmt.Sprintf("trend >=%d", rules.StrengthTrendMin)
	case ctx.OrderflowScore >= rules.StrengthOrderflowMin:
		strengthTrigger = fmt.Sprintf("orderflow >=%d", rules.StrengthOrderflowMin)
	case ctx.Quality != nil && ctx.Quality.Score >= rules.StrengthQualityMin:
		strengthTrigger = fmt.Sprintf("signal quality >=%d", rules.StrengthQualityMin)
	}

	awarenessPending := ctx.Event != nil && ctx.Event.Class == event.ClassAwarenessOnly
	trendModerate := ctx.TrendScore >= rules.ATrendMin && ctx.TrendScore <= rules.StrengthTrendMin-1
	orderflowNeutral := ctx.OrderflowScore >= 40 && ctx.OrderflowScore <= rules.StrengthOrderflowMin-1

	qualifiesForA := ctx.BiasScore >= rules.ABiasMin && ctx.TrendScore >= rules.ATrendMin && sentimentOK

	if qualifiesForA && strengthTrigger != "" {
		rationale := append([]string{
			fmt.Sprintf("bias strong (>=%d)", rules.ABiasMin),
			fmt.Sprintf("trend supportive (>=%d)", rules.ATrendMin),
			"strength trigger: " + strengthTrigger,
		}, caveats...)
		if sentimentMissing {
			rationale = append(rationale, "sentiment missing")
		}
		return Decision{Grade: GradeA, SetupType: deriveSetupType(ctx), Rationale: rationale}
	}

	// A with caveat: constructive scores with a softening factor pending.
	if qualifiesForA || (ctx.BiasScore >= rules.ABiasMin && ctx.TrendScore >= rules.ATrendMin &&
		(awarenessPending || trendModerate || orderflowNeutral || sentimentMissing)) {
		rationale := []string{
			fmt.Sprintf("bias strong (>=%d)", rules.ABiasMin),
			fmt.Sprintf("trend supportive (>=%d)", rules.ATrendMin),
		}
		if awarenessPending {
			rationale = append(rationale, "event context: awareness_only")
		}
		if trendModerate {
			rationale = append(rationale, "trend only moderate")
		}
		if orderflowNeutral {
			rationale = append(rationale, "orderflow neutral, watch structure")
		}
		if sentimentMissing {
			rationale = append(rationale, "sentiment missing")
		}
		if strengthTrigger == "" {
			rationale = append(rationale, "strength trigger missing")
		}
		rationale = append(rationale, caveats...)
		return Decision{Grade: GradeA, SetupType: deriveSetupType(ctx), Rationale: rationale}
	}

	if ctx.BiasScore >= rules.BiasFloor && ctx.TrendScore >= rules.TrendFloor {
		rationale := append([]string{
			fmt.Sprintf("bias constructive (>=%d)", rules.BiasFloor),
			fmt.Sprintf("trend adequate (>=%d)", rules.TrendFloor),
			"orderflow not negative",
		}, caveats...)
		return Decision{Grade: GradeB, SetupType: deriveSetupType(ctx), Rationale: rationale}
	}
	return noTrade(ctx, "no qualifying alignment")
}

// evaluateGeneric is the fallback: a single alignment rule producing only
// B or NO_TRADE.
func evaluateGeneric(rules Rules, ctx Context) Decision {
	if ctx.BiasScore >= rules.BiasFloor && ctx.TrendScore >= rules.TrendFloor {
		return Decision{
			Grade:     GradeB,
			SetupType: deriveSetupType(ctx),
			Rationale: []string{"default alignment: bias and trend supportive"},
		}
	}
	return noTrade(ctx, "no default alignment")
}
