package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHitThreshold(t *testing.T) {
	assert.Equal(t, 0.0, HitThreshold(nil))
	assert.Equal(t, 0.02, HitThreshold([]float64{0.05, 0, 0.02, 0.01, 0}))
	assert.Equal(t, 0.4, HitThreshold([]float64{0.1, 0.2, 0.3, 0.4}))
}

func TestHitThreshold_DoesNotReorderInput(t *testing.T) {
	rates := []float64{0.3, 0.1, 0.2}
	HitThreshold(rates)
	assert.Equal(t, []float64{0.3, 0.1, 0.2}, rates)
}

func TestDetectHits(t *testing.T) {
	flags := DetectHits([]float64{0, 0, 0.01, 0.02, 0.05})

	assert.Equal(t, []bool{false, false, false, true, true}, flags)
}

func TestDetectHits_AllZero(t *testing.T) {
	flags := DetectHits([]float64{0, 0, 0, 0})

	assert.Equal(t, []bool{false, false, false, false}, flags)
}

func TestDetectHits_MostlyZero(t *testing.T) {
	// p75 is 0 here; only the positive rate may be a hit.
	flags := DetectHits([]float64{0, 0, 0, 0, 0, 0.3})

	assert.Equal(t, []bool{false, false, false, false, false, true}, flags)
}

func TestDetectHits_Empty(t *testing.T) {
	assert.Empty(t, DetectHits(nil))
}
