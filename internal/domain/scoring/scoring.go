// Package scoring turns a prediction, the revealed actual value, and a
// coin bid into a settled payout. Evaluation is a pure function of its
// inputs: no state, no side effects, no I/O.
package scoring

import "math"

// Accuracy tier boundaries in error percent (inclusive) and their
// payout multipliers, evaluated closest tier first.
const (
	nearExactPercent = 2.0
	closePercent     = 5.0
	nearMissPercent  = 10.0

	nearExactMultiplier = 3.0
	closeMultiplier     = 2.0
	nearMissMultiplier  = 1.5
	baseMultiplier      = 1.0

	// Above this error percent the whole bid is forfeited. The check
	// is strictly greater-than: exactly 25 still pays out.
	totalLossPercent = 25.0

	// Error percent assigned when the actual value is zero and the
	// prediction is not: relative error is undefined, so the miss is
	// treated as a full 100% error.
	zeroActualPercent = 100.0
)

// Result is the settled outcome for a single submission.
type Result struct {
	ErrorPercent float64
	Multiplier   float64
	FinalScore   float64
}

// Evaluate scores a prediction against the revealed value.
//
// The payout is bid * 1/(1+errorPercent) * multiplier, so an exact hit
// pays bid times the top multiplier and accuracy decays the base
// hyperbolically. FinalScore is never negative; it may be below, equal
// to, or above the bid.
func Evaluate(predicted, actual, bid float64) Result {
	errPct := errorPercent(predicted, actual)
	mult := multiplierFor(errPct)

	final := bid * (1 / (1 + errPct)) * mult
	if errPct > totalLossPercent {
		final = 0
	}

	return Result{
		ErrorPercent: errPct,
		Multiplier:   mult,
		FinalScore:   final,
	}
}

// errorPercent is the relative error |p-a|/|a| expressed in percent.
func errorPercent(predicted, actual float64) float64 {
	if actual == 0 {
		if predicted == 0 {
			return 0
		}
		return zeroActualPercent
	}
	return math.Abs(predicted-actual) / math.Abs(actual) * 100
}

// multiplierFor selects the payout multiplier for an error percent.
// Boundaries are inclusive: exactly 2, 5, or 10 lands in the better
// tier.
func multiplierFor(errPct float64) float64 {
	switch {
	case errPct <= nearExactPercent:
		return nearExactMultiplier
	case errPct <= closePercent:
		return closeMultiplier
	case errPct <= nearMissPercent:
		return nearMissMultiplier
	default:
		return baseMultiplier
	}
}
