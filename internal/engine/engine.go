// Package engine wires the scoring module registry, the shaping buffer,
// the statistics recorder, and a packet source into three long-lived
// workers: an ingress loop, a rate-limited release loop, and a 1Hz
// statistics ticker. It owns the single mutex that protects all state
// shared between them.
//
// Each worker is a goroutine joined by a sync.WaitGroup and cancelled
// via context.Context, shut down cleanly by cmd/damper's
// signal.NotifyContext on SIGINT/SIGTERM.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vmxdev/damper/internal/config"
	"github.com/vmxdev/damper/internal/modules"
	"github.com/vmxdev/damper/internal/shaping"
	"github.com/vmxdev/damper/internal/source"
	"github.com/vmxdev/damper/internal/stats"
)

// epsilon is the small positive constant the combined weight starts
// from, so an empty or all-zero module chain still admits packets
// instead of tying every priority to shaping.EmptyPriority.
const epsilon = modules.Epsilon

// Engine is the shaping daemon's runtime core.
type Engine struct {
	log *slog.Logger

	source   source.Source
	registry *modules.Registry
	buffer   *shaping.Buffer
	recorder *stats.Recorder

	statEnabled bool

	mu            sync.Mutex
	limit         uint64
	wchartEnabled bool
	bucket        stats.Bucket
	currTimestamp time.Time

	wg sync.WaitGroup
}

// New builds an Engine from a parsed Config, a Registry already
// configured and post-configured by the caller, and a packet Source.
func New(log *slog.Logger, cfg *config.Config, registry *modules.Registry, src source.Source) *Engine {
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		log:           log,
		source:        src,
		registry:      registry,
		buffer:        shaping.New(cfg.Packets),
		limit:         cfg.Limit,
		wchartEnabled: cfg.WChart,
		statEnabled:   cfg.Stat,
		currTimestamp: time.Now().UTC(),
	}
	if cfg.Stat {
		e.recorder = stats.NewRecorder(cfg.StatDir, cfg.KeepStat)
	}
	return e
}

// Run starts the ingress, release, and ticker workers and blocks until
// ctx is cancelled, then joins all three.
func (e *Engine) Run(ctx context.Context) error {
	e.wg.Add(3)
	go e.runIngress(ctx)
	go e.runRelease(ctx)
	go e.runTicker(ctx)

	<-ctx.Done()
	e.wg.Wait()

	if e.recorder != nil {
		if err := e.recorder.Close(); err != nil {
			e.log.Warn("closing stats recorder", "error", err)
		}
	}
	return nil
}

func (e *Engine) runIngress(ctx context.Context) {
	defer e.wg.Done()

	for {
		ev, err := e.source.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			e.log.Error("receiving packet", "error", err)
			continue
		}
		e.Ingress(ev)
	}
}

// Ingress scores and admits one arriving packet: score it through the
// module chain, then admit or reject it against the shaping buffer.
func (e *Engine) Ingress(ev source.Event) {
	size := len(ev.Payload)

	e.mu.Lock()
	limit := e.limit
	wchart := e.wchartEnabled
	e.mu.Unlock()

	if limit == 0 {
		e.verdictDrop(ev.ID, size)
		return
	}
	if limit == config.LimitUnlimited {
		e.verdictAccept(ev.ID, size, ev.Payload)
		return
	}

	combined := epsilon
	negative := false

	type contribution struct {
		entry *modules.Entry
		w     float64
	}
	var contributions []contribution

	for _, entry := range e.registry.Entries() {
		if !entry.Enabled {
			continue
		}
		raw := entry.Mod.Weight(ev.Payload, ev.Mark)
		if raw < 0 {
			combined = raw
			negative = true
			break
		}
		w := entry.K * raw
		combined += w
		contributions = append(contributions, contribution{entry, w})
	}

	if wchart {
		e.mu.Lock()
		for _, c := range contributions {
			c.entry.Stw += c.w
			c.entry.Nw++
		}
		e.mu.Unlock()
	}

	if negative {
		e.verdictDrop(ev.ID, size)
		return
	}

	e.mu.Lock()
	res := e.buffer.Admit(ev.ID, ev.Payload, size, combined)
	var dropErr error
	var dropID uint32
	switch {
	case !res.Admitted:
		e.bucket.PacketsDrop++
		e.bucket.OctetsDrop += uint32(size)
		dropID = ev.ID
		dropErr = e.source.Drop(ev.ID)
	case res.Evicted:
		e.bucket.PacketsDrop++
		e.bucket.OctetsDrop += uint32(res.EvictedSize)
		dropID = res.EvictedID
		dropErr = e.source.Drop(res.EvictedID)
	}
	e.mu.Unlock()

	if dropErr != nil {
		e.log.Warn("dropping packet", "id", dropID, "error", dropErr)
	}
}

func (e *Engine) verdictDrop(id uint32, size int) {
	e.mu.Lock()
	e.bucket.PacketsDrop++
	e.bucket.OctetsDrop += uint32(size)
	err := e.source.Drop(id)
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("dropping packet", "id", id, "error", err)
	}
}

func (e *Engine) verdictAccept(id uint32, size int, payload []byte) {
	e.mu.Lock()
	e.bucket.PacketsPass++
	e.bucket.OctetsPass += uint32(size)
	err := e.source.Accept(id, size, payload)
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("accepting packet", "id", id, "error", err)
	}
}

// releaseDefaultSize is the notional byte count used to pace the sleep
// between release attempts when the buffer is empty: the time it would
// take to transmit 100 bytes at the configured limit.
const releaseDefaultSize = 100

func (e *Engine) runRelease(ctx context.Context) {
	defer e.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		e.mu.Lock()
		limit := e.limit
		slot, ok := e.buffer.Release()
		var acceptErr error
		if ok {
			e.bucket.PacketsPass++
			e.bucket.OctetsPass += uint32(slot.Size)
			acceptErr = e.source.Accept(slot.ID, slot.Size, slot.Payload)
		}
		e.mu.Unlock()

		if ok {
			if acceptErr != nil {
				e.log.Warn("accepting packet", "id", slot.ID, "error", acceptErr)
			}
			sleepCtx(ctx, releaseSleep(limit, slot.Size))
			continue
		}

		sleepCtx(ctx, releaseSleep(limit, releaseDefaultSize))
	}
}

// unpacedLimit is substituted for the drop-all and accept-all sentinels
// so the release loop still paces its polling instead of spinning: both
// sentinels bypass the buffer entirely in Ingress, so runRelease sees an
// empty buffer on every pass and would otherwise busy-loop a core on a
// near-zero sleep.
const unpacedLimit = 1000

// releaseSleep computes the post-emission pause: size·1e9/limit
// nanoseconds, the time it would take to drain size bytes at limit
// bytes/sec.
func releaseSleep(limit uint64, size int) time.Duration {
	if limit == 0 || limit == config.LimitUnlimited {
		limit = unpacedLimit
	}
	ns := float64(size) * 1e9 / float64(limit)
	return time.Duration(ns)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (e *Engine) runTicker(ctx context.Context) {
	defer e.wg.Done()

	sleepCtx(ctx, time.Until(time.Now().Add(time.Second).Truncate(time.Second)))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		e.tick()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) tick() {
	e.mu.Lock()
	e.currTimestamp = e.currTimestamp.Add(time.Second)
	now := e.currTimestamp
	bucket := e.bucket
	e.bucket = stats.Bucket{}

	var samples []stats.ModuleSample
	if e.wchartEnabled {
		for _, entry := range e.registry.Entries() {
			if !entry.Enabled {
				continue
			}
			samples = append(samples, stats.ModuleSample{Name: entry.Name, Average: entry.Average()})
			entry.Reset()
		}
	}
	e.mu.Unlock()

	if !e.statEnabled || e.recorder == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.recorder.Flush(now, bucket, samples); err != nil {
		e.log.Error("flushing stats", "error", err)
	}
}
