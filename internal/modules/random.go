package modules

import "math/rand"

// randomMod is the "random" module: weight = 1/(U+1) for a uniformly
// distributed non-negative integer U. Determinism and cryptographic
// quality don't matter here — it only needs to break ties fairly among
// equally-scored packets — so stdlib math/rand is used as-is.
type randomMod struct{}

func newRandom() *randomMod {
	return &randomMod{}
}

// Configure implements Module; random takes no parameters.
func (m *randomMod) Configure(p1, p2 string) error { return nil }

// PostConf implements Module.
func (m *randomMod) PostConf() error { return nil }

// Weight implements Module.
func (m *randomMod) Weight(payload []byte, mark uint32) float64 {
	return 1.0 / float64(rand.Intn(1<<31)+1)
}

// Close implements Module.
func (m *randomMod) Close() error { return nil }
