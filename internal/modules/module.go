// Package modules implements the pluggable packet-scoring chain: a
// Module contract (configure/postconf/weight/close) and a Registry
// binding each instance to a stable name, multiplicative coefficient,
// and per-second weight accumulator.
//
// Each module is a capability set rather than a class hierarchy — a
// small interface plus opaque state, the same shape as a table of
// function pointers translated into Go.
package modules

import "fmt"

// Module is the contract every scoring module obeys. Weight must never
// block on I/O and is only ever called from the single ingress path (no
// internal locking is required).
type Module interface {
	// Configure receives one configuration line's trailing two fields
	// ("<module-name> <p1> <p2>" in the config grammar). It is called
	// once per matching config line, in file order.
	Configure(p1, p2 string) error

	// PostConf is called once, after all configuration is read. A
	// non-nil error disables the module for the remainder of the run
	// (Weight is never called again).
	PostConf() error

	// Weight scores one packet. Negative return values mean "drop
	// unconditionally" and short-circuit the rest of the chain.
	Weight(payload []byte, mark uint32) float64

	// Close releases any resources (e.g. debug-dump goroutines, open
	// files) acquired by PostConf.
	Close() error
}

// Entry binds a Module to a stable registry name, its configured
// coefficient, its enabled state, and the per-second weight accumulator
// the ingress scorer maintains under the engine's lock.
type Entry struct {
	Name    string
	K       float64
	Enabled bool
	Mod     Module

	// Stw/Nw: running sum and count of weights observed since the last
	// flush. Mutated only by a caller holding the engine's lock — Entry
	// itself does no locking.
	Stw float64
	Nw  float64
}

// Average returns Stw/Nw, or 0 if no samples were accumulated.
func (e *Entry) Average() float64 {
	if e.Nw == 0 {
		return 0
	}
	return e.Stw / e.Nw
}

// Reset zeroes the accumulator, called by the engine's ticker once it has
// sampled Average for the per-second flush.
func (e *Entry) Reset() {
	e.Stw = 0
	e.Nw = 0
}

// Registry is the static, ordered list of scoring modules, bound at
// startup exactly once.
type Registry struct {
	entries []*Entry
}

// NewRegistry builds the registry with the four modules this repository
// implements: inhibit_big_flows first, then bymark, entropy, and random.
// Every entry starts disabled; PostConf enables those whose PostConf
// succeeds.
func NewRegistry() *Registry {
	return &Registry{
		entries: []*Entry{
			{Name: "inhibit_big_flows", K: 1.0, Mod: newBigFlow()},
			{Name: "bymark", K: 1.0, Mod: newByMark()},
			{Name: "entropy", K: 1.0, Mod: newEntropy()},
			{Name: "random", K: 1.0, Mod: newRandom()},
		},
	}
}

// Entries returns the registry entries in stable (registration) order.
func (r *Registry) Entries() []*Entry {
	return r.entries
}

// Find returns the entry with the given name, or nil.
func (r *Registry) Find(name string) *Entry {
	for _, e := range r.entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Configure routes a config directive "<name> <p1> <p2>" to the named
// module: "k <float>" sets the coefficient; anything else is forwarded
// to the module's Configure.
func (r *Registry) Configure(name, p1, p2 string) error {
	e := r.Find(name)
	if e == nil {
		return fmt.Errorf("modules: unknown module %q", name)
	}
	if p1 == "k" {
		var k float64
		if _, err := fmt.Sscanf(p2, "%g", &k); err != nil {
			return fmt.Errorf("modules: %s: bad coefficient %q: %w", name, p2, err)
		}
		e.K = k
		return nil
	}
	return e.Mod.Configure(p1, p2)
}

// PostConf runs PostConf on every module and disables those that fail.
// It returns the names of modules that failed and were disabled, so the
// caller (cmd/damper) can log them.
func (r *Registry) PostConf() []string {
	var failed []string
	for _, e := range r.entries {
		if err := e.Mod.PostConf(); err != nil {
			e.Enabled = false
			failed = append(failed, e.Name)
		} else {
			e.Enabled = true
		}
	}
	return failed
}

// Close tears down every module.
func (r *Registry) Close() error {
	var firstErr error
	for _, e := range r.entries {
		if err := e.Mod.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
