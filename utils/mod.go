package utils

import "golang.org/x/exp/constraints"

func FindIndex[T comparable](slice []T, item T) int {
	for i, v := range slice {
		if v == item {
			return i
		}
	}
	return -1
}

// MinMax returns the largest and smallest values, in that order. ok is false for an empty slice.
func MinMax[T constraints.Ordered](values []T) (maximum, minimum T, ok bool) {
	if len(values) == 0 {
		return maximum, minimum, false
	}
	maximum, minimum = values[0], values[0]
	for _, v := range values[1:] {
		if v > maximum {
			maximum = v
		}
		if v < minimum {
			minimum = v
		}
	}
	return maximum, minimum, true
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
