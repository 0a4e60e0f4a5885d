package clean

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.0, quantile(s, 0))
	assert.Equal(t, 1.75, quantile(s, 0.25))
	assert.Equal(t, 2.5, quantile(s, 0.5))
	assert.Equal(t, 4.0, quantile(s, 1))
	assert.True(t, math.IsNaN(quantile(nil, 0.5)))
}

func TestMedianAndMean(t *testing.T) {
	vals := []float64{4, 1, 2}
	assert.Equal(t, 2.0, median(vals))
	assert.Equal(t, []float64{4, 1, 2}, vals, "median must not reorder its input")
	assert.InDelta(t, 7.0/3, mean(vals), 1e-12)
}

func TestModeTiesPickSmallest(t *testing.T) {
	m, ok := mode([]string{"b", "a", "b", "a", "c"})
	assert.True(t, ok)
	assert.Equal(t, "a", m)

	_, ok = mode(nil)
	assert.False(t, ok)
}
