package modules

import (
	"fmt"
	"strconv"
)

type markWeight struct {
	mark   int
	weight float64
}

// byMark is the "bymark" module: a table of (mark, weight) pairs built
// from repeated config lines, returning the first match or Epsilon if
// none matches.
type byMark struct {
	table []markWeight
}

func newByMark() *byMark {
	return &byMark{}
}

// Configure implements Module. Each call appends one (mark, weight)
// pair; unlike the other modules' "<key> <value>" config lines, bymark's
// directive is "<module-name> <mark> <weight>" — every matching line
// adds another table entry rather than setting a single field.
func (m *byMark) Configure(p1, p2 string) error {
	mark, err := strconv.Atoi(p1)
	if err != nil {
		return fmt.Errorf("bymark: bad mark %q: %w", p1, err)
	}
	weight, err := strconv.ParseFloat(p2, 64)
	if err != nil {
		return fmt.Errorf("bymark: bad weight %q: %w", p2, err)
	}
	m.table = append(m.table, markWeight{mark: mark, weight: weight})
	return nil
}

// PostConf implements Module; bymark has no required parameters.
func (m *byMark) PostConf() error { return nil }

// Weight implements Module.
func (m *byMark) Weight(payload []byte, mark uint32) float64 {
	for _, mw := range m.table {
		if mw.mark == int(mark) {
			return mw.weight
		}
	}
	return Epsilon
}

// Close implements Module.
func (m *byMark) Close() error { return nil }
