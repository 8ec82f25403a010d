// Package reconcile compares what should be in the drawer with what was
// counted and classifies the difference.
package reconcile

import "math"

// Class is the variance classification stored on a closed session.
type Class string

const (
	ClassBalanced    Class = "balanced"
	ClassMinor       Class = "minor"
	ClassSignificant Class = "significant"
)

// DefaultMinorThreshold 10 TL, minor birim cinsinden.
const DefaultMinorThreshold int64 = 1000

// Policy holds the tunable classification thresholds. Amounts are minor units.
type Policy struct {
	MinorThreshold int64
}

func DefaultPolicy() Policy {
	return Policy{MinorThreshold: DefaultMinorThreshold}
}

// Result is the immutable outcome of a reconciliation.
type Result struct {
	Expected int64 `json:"expected"`
	Actual   int64 `json:"actual"`
	Variance int64 `json:"variance"` // pozitif = fazla, negatif = eksik
	Class    Class `json:"class"`
}

func (r Result) Surplus() bool  { return r.Variance > 0 }
func (r Result) Shortage() bool { return r.Variance < 0 }

// Reconcile never fails: every (expected, actual) pair has a class.
func (p Policy) Reconcile(expected, actual int64) Result {
	variance := saturatingSub(actual, expected)
	return Result{
		Expected: expected,
		Actual:   actual,
		Variance: variance,
		Class:    p.Classify(variance),
	}
}

// Classify compares against ±threshold rather than taking an absolute value,
// so math.MinInt64 still classifies correctly.
func (p Policy) Classify(variance int64) Class {
	threshold := p.MinorThreshold
	if threshold < 0 {
		threshold = 0
	}
	switch {
	case variance == 0:
		return ClassBalanced
	case variance >= -threshold && variance <= threshold:
		return ClassMinor
	default:
		return ClassSignificant
	}
}

func saturatingSub(a, b int64) int64 {
	d := a - b
	// işaret taşması: a ve b zıt işaretli, sonuç a'nın işaretini kaybetmiş
	if (a >= 0) != (b >= 0) && (d >= 0) != (a >= 0) {
		if a >= 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return d
}
