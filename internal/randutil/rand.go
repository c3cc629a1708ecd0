// Package randutil builds reproducible random sources. Live tables shuffle
// with crypto/rand; tests and hand replays need the same deck every time.
package randutil

import rand "math/rand/v2"

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a PCG-backed generator seeded from seed. Its IntN method
// satisfies poker.Source.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(splitmix(u), splitmix(u+goldenRatio64)))
}

// splitmix is the SplitMix64 finaliser, spreading nearby seeds apart.
func splitmix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	return x ^ x>>31
}
