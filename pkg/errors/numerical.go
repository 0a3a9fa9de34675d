package errors

import (
	"math"
	"strconv"
)

// CheckFinite returns a ValueError naming op when values contain NaN or Inf.
func CheckFinite(op string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewValueError(op, "input contains NaN or Inf at position "+strconv.Itoa(i))
		}
	}
	return nil
}

// SafeDivide returns numerator/denominator, or 0 when the denominator is close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// StabilizeExp computes exp with the argument clipped so the result stays finite.
func StabilizeExp(value float64) float64 {
	const maxExp = 700.0
	if value > maxExp {
		return math.Exp(maxExp)
	}
	if value < -maxExp {
		return 0
	}
	return math.Exp(value)
}
