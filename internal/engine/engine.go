// Package engine sequences one acquisition-through-assembly pipeline per
// tick: sampler, history store and process table feed a single immutable
// Snapshot that the renderer reads.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sysmon/internal/config"
	"sysmon/internal/history"
	"sysmon/internal/model"
	"sysmon/internal/proctable"
	"sysmon/internal/sampler"
)

// History series ids. Per-interface series use IfaceRxID/IfaceTxID and
// per-device disk series DiskReadID/DiskWriteID.
const (
	SeriesCPU = "cpu"
	SeriesMem = "mem"
)

func IfaceRxID(name string) string   { return "net:" + name + ":rx" }
func IfaceTxID(name string) string   { return "net:" + name + ":tx" }
func DiskReadID(name string) string  { return "disk:" + name + ":r" }
func DiskWriteID(name string) string { return "disk:" + name + ":w" }

// Intent is a user request applied atomically at the start of the next
// tick, never mid-tick.
type Intent interface{ isIntent() }

// SortChange selects a process table sort key and direction.
type SortChange struct {
	Key        model.SortKey
	Descending bool
}

// CycleSort advances to the next sort key in display order.
type CycleSort struct{}

// ToggleSortDirection flips the current direction.
type ToggleSortDirection struct{}

// FilterChange replaces the process name filter.
type FilterChange struct {
	Filter string
}

// IntervalChange replaces the refresh interval. Non-positive values are
// rejected when the intent is applied; history is reinitialized at the
// capacity derived from the new interval.
type IntervalChange struct {
	Interval time.Duration
}

func (SortChange) isIntent()          {}
func (CycleSort) isIntent()           {}
func (ToggleSortDirection) isIntent() {}
func (FilterChange) isIntent()        {}
func (IntervalChange) isIntent()      {}

// Engine is the snapshot coordinator.
type Engine struct {
	cfg   config.Config
	smp   *sampler.Sampler
	hist  *history.Store
	procs *proctable.Manager
	log   *slog.Logger

	clock func() time.Time

	mu       sync.Mutex
	pending  []Intent
	interval time.Duration

	seq  atomic.Uint64
	snap atomic.Pointer[model.Snapshot]
	done chan struct{}
}

func New(cfg config.Config, smp *sampler.Sampler, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	interval := cfg.Interval()
	return &Engine{
		cfg:      cfg,
		smp:      smp,
		hist:     history.NewStore(cfg.HistoryCapacity(interval)),
		procs:    proctable.New(cfg.Sort),
		log:      log,
		clock:    time.Now,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// ApplyIntent queues a user intent for the next tick.
func (e *Engine) ApplyIntent(in Intent) {
	e.mu.Lock()
	e.pending = append(e.pending, in)
	e.mu.Unlock()
}

// Latest returns the most recently published snapshot, or nil before the
// first tick. The returned value is immutable.
func (e *Engine) Latest() *model.Snapshot {
	return e.snap.Load()
}

// Done is closed once Run has published its final snapshot and returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Tick runs one full acquisition-aggregation cycle and publishes the
// resulting snapshot. It never returns an error: degraded sub-results are
// carried in the snapshot instead.
func (e *Engine) Tick(ctx context.Context) model.Snapshot {
	e.drainIntents()

	e.mu.Lock()
	interval := e.interval
	e.mu.Unlock()

	now := e.clock()
	smp := e.smp.Sample(ctx, now)

	if smp.CPUOK {
		e.hist.Append(SeriesCPU, smp.CPUTotal)
	}
	if smp.MemOK {
		e.hist.Append(SeriesMem, smp.MemPercent)
	}
	if smp.NetOK {
		for _, ifc := range smp.Ifaces {
			e.hist.Append(IfaceRxID(ifc.Name), ifc.RxPerSec)
			e.hist.Append(IfaceTxID(ifc.Name), ifc.TxPerSec)
		}
	}
	if smp.DiskOK {
		for _, d := range smp.Disks {
			e.hist.Append(DiskReadID(d.Name), d.ReadPerSec)
			e.hist.Append(DiskWriteID(d.Name), d.WritePerSec)
		}
	}
	e.pruneStaleSeries(smp)

	e.procs.Update(smp.Processes)
	view := e.procs.View()

	ids := e.hist.IDs()
	series := make([]model.Series, 0, len(ids))
	for _, id := range ids {
		series = append(series, model.Series{ID: id, Values: e.hist.Series(id)})
	}

	snap := model.Snapshot{
		At:        now,
		Seq:       e.seq.Add(1),
		Sample:    smp,
		History:   series,
		Processes: view,
		Interval:  interval,
		Theme:     e.cfg.Theme,
		Color:     !e.cfg.NoColor,
		TempUnit:  e.cfg.TempUnit,
	}
	e.snap.Store(&snap)
	return snap
}

// pruneStaleSeries drops per-device series whose device no longer appears
// in the tick's sample, so hot-unplugged adapters do not leave dead history
// behind. Skipped while a metric is degraded: its device list is stale then
// and pruning against it would wipe live series.
func (e *Engine) pruneStaleSeries(smp model.Sample) {
	active := make(map[string]bool, 2*(len(smp.Ifaces)+len(smp.Disks)))
	for _, ifc := range smp.Ifaces {
		active[IfaceRxID(ifc.Name)] = true
		active[IfaceTxID(ifc.Name)] = true
	}
	for _, d := range smp.Disks {
		active[DiskReadID(d.Name)] = true
		active[DiskWriteID(d.Name)] = true
	}
	e.hist.Prune(func(id string) bool {
		if strings.HasPrefix(id, "net:") {
			return !smp.NetOK || active[id]
		}
		if strings.HasPrefix(id, "disk:") {
			return !smp.DiskOK || active[id]
		}
		return true
	})
}

// drainIntents applies every queued intent before acquisition starts, so a
// tick never builds its view against a half-applied sort or filter.
func (e *Engine) drainIntents() {
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, in := range pending {
		switch in := in.(type) {
		case SortChange:
			e.procs.SetSort(in.Key, in.Descending)
		case CycleSort:
			e.procs.CycleSort()
		case ToggleSortDirection:
			e.procs.ToggleDirection()
		case FilterChange:
			e.procs.SetFilter(in.Filter)
		case IntervalChange:
			if err := e.setInterval(in.Interval); err != nil {
				e.log.Warn("rejected interval change", "err", err)
			}
		}
	}
}

func (e *Engine) setInterval(interval time.Duration) error {
	ms := int(interval / time.Millisecond)
	if ms < config.MinRefreshMS || ms > config.MaxRefreshMS {
		return fmt.Errorf("interval %v out of range [%dms, %dms]", interval, config.MinRefreshMS, config.MaxRefreshMS)
	}
	e.mu.Lock()
	e.interval = interval
	e.mu.Unlock()
	// Explicit policy: an interval change reinitializes history at the
	// newly derived capacity rather than resizing in place.
	e.hist.Reconfigure(e.cfg.HistoryCapacity(interval))
	e.log.Info("refresh interval changed", "interval", interval)
	return nil
}

// Run ticks until ctx is cancelled. Exactly one tick is in flight at a
// time; when acquisition overruns the interval the next tick starts
// immediately afterwards instead of overlapping. Cancellation is honored
// between ticks only, so an in-flight tick always publishes.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	for {
		start := e.clock()
		e.Tick(ctx)

		e.mu.Lock()
		interval := e.interval
		e.mu.Unlock()

		wait := interval - e.clock().Sub(start)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
