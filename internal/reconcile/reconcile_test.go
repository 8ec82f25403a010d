package reconcile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Reconcile(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		expected int64
		actual   int64
		variance int64
		class    Class
	}{
		{name: "balanced", expected: 580000, actual: 580000, variance: 0, class: ClassBalanced},
		{name: "shortage at threshold", expected: 580000, actual: 579000, variance: -1000, class: ClassMinor},
		{name: "surplus at threshold", expected: 580000, actual: 581000, variance: 1000, class: ClassMinor},
		{name: "one kurus short", expected: 100, actual: 99, variance: -1, class: ClassMinor},
		{name: "significant shortage", expected: 580000, actual: 578999, variance: -1001, class: ClassSignificant},
		{name: "significant surplus", expected: 0, actual: 50000, variance: 50000, class: ClassSignificant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := p.Reconcile(tt.expected, tt.actual)
			assert.Equal(t, tt.expected, r.Expected)
			assert.Equal(t, tt.actual, r.Actual)
			assert.Equal(t, tt.variance, r.Variance)
			assert.Equal(t, tt.class, r.Class)
		})
	}
}

func TestPolicy_ReconcileIsDeterministic(t *testing.T) {
	p := Policy{MinorThreshold: 500}
	pairs := [][2]int64{{0, 0}, {100, 250}, {-300, 900}, {math.MaxInt64, math.MaxInt64}}

	for _, pair := range pairs {
		assert.Equal(t, p.Reconcile(pair[0], pair[1]), p.Reconcile(pair[0], pair[1]))
		assert.Equal(t, ClassBalanced, p.Reconcile(pair[0], pair[0]).Class)
	}
}

func TestPolicy_ClassifyExtremes(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, ClassSignificant, p.Classify(math.MinInt64))
	assert.Equal(t, ClassSignificant, p.Classify(math.MaxInt64))
}

func TestPolicy_NegativeThresholdClamped(t *testing.T) {
	p := Policy{MinorThreshold: -50}
	assert.Equal(t, ClassBalanced, p.Classify(0))
	assert.Equal(t, ClassSignificant, p.Classify(1))
	assert.Equal(t, ClassSignificant, p.Classify(-1))
}

func TestResult_Direction(t *testing.T) {
	r := DefaultPolicy().Reconcile(580000, 579000)
	assert.True(t, r.Shortage())
	assert.False(t, r.Surplus())
}

// Senaryo: açılış 1000, satış 5000, gider 200, sayım 5790 -> -10, minor.
func TestPolicy_ClosingScenario(t *testing.T) {
	expected := int64(100000 + 500000 - 20000)
	r := DefaultPolicy().Reconcile(expected, 579000)
	assert.Equal(t, int64(580000), r.Expected)
	assert.Equal(t, int64(-1000), r.Variance)
	assert.Equal(t, ClassMinor, r.Class)
}

func TestPolicy_ReconcileSaturates(t *testing.T) {
	r := DefaultPolicy().Reconcile(-math.MaxInt64, math.MaxInt64)
	assert.Equal(t, int64(math.MaxInt64), r.Variance)
	assert.Equal(t, ClassSignificant, r.Class)

	r = DefaultPolicy().Reconcile(math.MaxInt64, -10)
	assert.Equal(t, int64(math.MinInt64), r.Variance)
}
