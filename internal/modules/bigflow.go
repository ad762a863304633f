package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/vmxdev/damper/internal/ipv4"
)

type flow struct {
	saddr, daddr uint32
	octets       uint64
}

// bigFlow is the "inhibit_big_flows" module: it keeps a fixed-size
// circular buffer of recent (src,dst) flow totals and scores a packet
// inversely to how much of the recent traffic its flow accounts for, so
// that a handful of very large ("whale") flows don't dominate the
// buffer.
type bigFlow struct {
	mu sync.Mutex // guards debug dump only; Weight itself is single-threaded (ingress path)

	nflows   int
	flows    []flow
	currflow int
	total    uint64

	debug       time.Duration
	debugCancel context.CancelFunc
	debugDone   chan struct{}
}

func newBigFlow() *bigFlow {
	return &bigFlow{}
}

// Configure implements Module. Recognized parameters: "nrecent" (circular
// buffer size) and "debug" (seconds between debug dumps, 0 disables).
func (m *bigFlow) Configure(p1, p2 string) error {
	switch p1 {
	case "nrecent":
		n, err := strconv.Atoi(p2)
		if err != nil {
			return fmt.Errorf("inhibit_big_flows: bad nrecent %q: %w", p2, err)
		}
		m.nflows = n
	case "debug":
		secs, err := strconv.Atoi(p2)
		if err != nil || secs <= 0 {
			slog.Warn("inhibit_big_flows: strange debug value, disabling", "value", p2)
			return nil
		}
		m.debug = time.Duration(secs) * time.Second
	default:
		return fmt.Errorf("inhibit_big_flows: unknown config parameter %q", p1)
	}
	return nil
}

// PostConf implements Module.
func (m *bigFlow) PostConf() error {
	if m.nflows < 1 {
		return errors.New("inhibit_big_flows: nrecent must be >= 1")
	}
	m.flows = make([]flow, m.nflows)

	if m.debug > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		m.debugCancel = cancel
		m.debugDone = make(chan struct{})
		go m.runDebug(ctx)
	}

	return nil
}

func (m *bigFlow) runDebug(ctx context.Context) {
	defer close(m.debugDone)

	t := time.NewTicker(m.debug)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.mu.Lock()
			slog.Debug("inhibit_big_flows snapshot", "total_octets", m.total, "nflows", m.nflows)
			m.mu.Unlock()
		}
	}
}

// Weight implements Module.
func (m *bigFlow) Weight(payload []byte, mark uint32) float64 {
	h, ok := ipv4.Parse(payload)
	if !ok {
		return Epsilon
	}

	size := uint64(len(payload))

	idx := -1
	for i := range m.flows {
		if m.flows[i].saddr == h.Src && m.flows[i].daddr == h.Dst {
			idx = i
			break
		}
	}

	m.mu.Lock()
	if idx >= 0 {
		m.flows[idx].octets += size
	} else {
		idx = m.currflow
		m.total -= m.flows[idx].octets
		m.flows[idx] = flow{saddr: h.Src, daddr: h.Dst, octets: size}

		m.currflow++
		if m.currflow >= m.nflows {
			m.currflow = 0
		}
	}
	m.total += size
	flowOctets := m.flows[idx].octets
	m.mu.Unlock()

	if flowOctets == 0 {
		return Epsilon
	}
	return float64(m.total) / float64(flowOctets)
}

// Close implements Module.
func (m *bigFlow) Close() error {
	if m.debugCancel != nil {
		m.debugCancel()
		<-m.debugDone
	}
	return nil
}
