package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/vmxdev/damper/internal/ipv4"
)

type entropyFlow struct {
	saddr, daddr uint32
	proto        uint8
	sport, dport uint16
	streamLen    uint32
	histogram    [256]uint32
}

// entropyMod is the "entropy" module: per 5-tuple flow, it maintains a
// 256-bin byte histogram and scores a packet by the flow's cumulative
// Shannon entropy in bits. Higher entropy (more compressed-looking
// traffic) scores higher, the same intuition internal/ipv4's fixed
// 20-byte TCP payload offset approximation serves: options are rare
// enough on real traffic that ignoring them doesn't meaningfully shift
// the histogram.
type entropyMod struct {
	mu sync.Mutex

	nflows   int
	flows    []entropyFlow
	currflow int

	debug       time.Duration
	debugCancel context.CancelFunc
	debugDone   chan struct{}
}

func newEntropy() *entropyMod {
	return &entropyMod{}
}

// Configure implements Module.
func (m *entropyMod) Configure(p1, p2 string) error {
	switch p1 {
	case "nrecent":
		n, err := strconv.Atoi(p2)
		if err != nil {
			return fmt.Errorf("entropy: bad nrecent %q: %w", p2, err)
		}
		m.nflows = n
	case "debug":
		secs, err := strconv.Atoi(p2)
		if err != nil || secs <= 0 {
			slog.Warn("entropy: strange debug value, disabling", "value", p2)
			return nil
		}
		m.debug = time.Duration(secs) * time.Second
	default:
		return fmt.Errorf("entropy: unknown config parameter %q", p1)
	}
	return nil
}

// PostConf implements Module.
func (m *entropyMod) PostConf() error {
	if m.nflows < 1 {
		return errors.New("entropy: nrecent must be >= 1")
	}
	m.flows = make([]entropyFlow, m.nflows)

	if m.debug > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		m.debugCancel = cancel
		m.debugDone = make(chan struct{})
		go m.runDebug(ctx)
	}

	return nil
}

func (m *entropyMod) runDebug(ctx context.Context) {
	defer close(m.debugDone)

	t := time.NewTicker(m.debug)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.mu.Lock()
			slog.Debug("entropy snapshot", "nflows", m.nflows)
			m.mu.Unlock()
		}
	}
}

// entropyCalc computes Shannon entropy in bits over f's histogram,
// floored by Epsilon so an empty stream never scores as exactly zero.
func entropyCalc(f *entropyFlow) float64 {
	if f.streamLen == 0 {
		return Epsilon
	}

	sum := 0.0
	n := float64(f.streamLen)
	for _, c := range f.histogram {
		if c == 0 {
			continue
		}
		freq := float64(c) / n
		sum += freq * math.Log2(freq)
	}
	return Epsilon - sum
}

// Weight implements Module.
func (m *entropyMod) Weight(packet []byte, mark uint32) float64 {
	h, ok := ipv4.Parse(packet)
	if !ok {
		return Epsilon
	}

	payload := ipv4.Payload(packet, h)

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := range m.flows {
		f := &m.flows[i]
		if f.saddr == h.Src && f.daddr == h.Dst && f.proto == h.Protocol &&
			f.sport == h.SrcPort && f.dport == h.DstPort {
			idx = i
			break
		}
	}

	if idx < 0 {
		idx = m.currflow
		m.flows[idx] = entropyFlow{
			saddr: h.Src, daddr: h.Dst, proto: h.Protocol,
			sport: h.SrcPort, dport: h.DstPort,
		}
		m.currflow++
		if m.currflow >= m.nflows {
			m.currflow = 0
		}
	}

	f := &m.flows[idx]
	f.streamLen += uint32(len(payload))
	for _, b := range payload {
		f.histogram[b]++
	}

	return entropyCalc(f)
}

// Close implements Module.
func (m *entropyMod) Close() error {
	if m.debugCancel != nil {
		m.debugCancel()
		<-m.debugDone
	}
	return nil
}
