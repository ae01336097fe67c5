package feed

// rng is a xorshift32 generator seeded from a string. A fixed seed string
// yields an identical float sequence on every platform, which is what makes
// session-seeded rankings reproducible.
type rng struct {
	state uint32
}

// fnv1a32 hashes s with 32-bit FNV-1a.
func fnv1a32(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// newRNG seeds a generator from the given string. xorshift32 has a single
// absorbing zero state, so an all-zero hash is bumped.
func newRNG(seed string) *rng {
	s := fnv1a32(seed)
	if s == 0 {
		s = 0x9e3779b9
	}
	return &rng{state: s}
}

func (r *rng) next() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

// Float64 returns the next value in [0, 1).
func (r *rng) Float64() float64 {
	return float64(r.next()) / (1 << 32)
}

// Intn returns a value in [0, n). n must be positive.
func (r *rng) Intn(n int) int {
	return int(r.Float64() * float64(n))
}
