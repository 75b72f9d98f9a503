// Package op - used for math operations
package op

// Integer - integer types.
type Integer interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// PosMod - modulus operator that always returns positive number.
func PosMod[T Integer](x, m T) T {
	return (x%m + m) % m
}

// FloorLog10 - base-10 order of magnitude of n, computed without floating point.
// returns 0 for n < 10.
func FloorLog10[T Integer](n T) T {
	var l T
	for n >= 10 {
		n /= 10
		l++
	}
	return l
}
