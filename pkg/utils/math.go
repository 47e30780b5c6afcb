package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= norm
	}
}

// MinMaxScale rescales the values of scores to [0,1] in place.
// When all values are equal the result is all zeros, so a signal with no
// spread contributes nothing to a weighted combination.
func MinMaxScale(scores map[string]float64) {
	if len(scores) == 0 {
		return
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range scores {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		for k := range scores {
			scores[k] = 0
		}
		return
	}
	for k, v := range scores {
		scores[k] = (v - lo) / (hi - lo)
	}
}
