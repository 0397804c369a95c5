package vector

import (
	"math"

	"github.com/hyperjump/kotae/pkg/utils"
)

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Either input may be unnormalized. Mismatched lengths or a zero vector give 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp(utils.Dot(a, b) / (na * nb))
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	return math.Sqrt(utils.Dot(x, x))
}

// clamp trims float rounding that can push a cosine just past ±1.
func clamp(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}
