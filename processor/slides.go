package processor

import "math/rand"

// Limit returns the first n items. Non-positive n returns all of them.
func Limit[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

// Shuffle returns a shuffled copy of items; the input is left untouched.
func Shuffle[T any](items []T, rng *rand.Rand) []T {
	out := make([]T, len(items))
	copy(out, items)
	if rng == nil {
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
