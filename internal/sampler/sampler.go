package sampler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sysmon/internal/model"
	"sysmon/internal/platform"
)

// FailThreshold is how many consecutive transient read failures a metric
// tolerates before it degrades to unavailable. A later successful read
// restores it.
const FailThreshold = 3

// health tracks one metric's consecutive-failure count.
type health struct {
	fails int
}

func (h *health) succeed() { h.fails = 0 }

// fail records a failure and reports whether the metric is now unavailable.
func (h *health) fail() bool {
	if h.fails < FailThreshold {
		h.fails++
	}
	return h.fails >= FailThreshold
}

// Sampler drives the platform source once per tick and derives rates by
// comparing against the previous reading. It starts Cold (no previous
// reading, zero rates) and becomes Primed after the first read; the
// previous reading is owned here and nowhere else.
type Sampler struct {
	src  platform.Source
	log  *slog.Logger
	unit model.TempUnit

	primed bool
	prev   model.RawReading
	last   model.Sample

	cpuHealth  health
	memHealth  health
	netHealth  health
	tempHealth health
	diskHealth health
	procHealth health

	host     model.HostInfo // static identity, read once
	haveHost bool
}

func New(src platform.Source, unit model.TempUnit, log *slog.Logger) *Sampler {
	if log == nil {
		log = slog.Default()
	}
	return &Sampler{src: src, unit: unit, log: log}
}

// Sample performs one acquisition. It always returns a Sample; per-metric
// failures degrade the affected fields and never abort the tick.
func (s *Sampler) Sample(ctx context.Context, now time.Time) model.Sample {
	raw := s.read(ctx, now)

	if !s.primed {
		smp := s.derive(&raw, 0)
		s.prev = raw
		s.primed = true
		s.last = smp
		return smp
	}

	dt := raw.At.Sub(s.prev.At).Seconds()
	if dt <= 0 {
		// Clock anomaly between ticks: repeat the previous sample rather
		// than divide by a non-positive elapsed time.
		s.log.Warn("non-positive tick delta, repeating previous sample", "dt", dt)
		return s.last
	}

	smp := s.derive(&raw, dt)
	s.prev = raw
	s.last = smp
	return smp
}

// read fans the independent platform reads out in parallel and rendezvouses
// before any delta math, so every metric shares one timestamp pairing.
func (s *Sampler) read(ctx context.Context, now time.Time) model.RawReading {
	raw := model.RawReading{At: now}

	var hostInfo model.HostInfo
	var wg sync.WaitGroup
	wg.Add(7)
	go func() {
		defer wg.Done()
		raw.Cores, raw.Errs.CPU = s.src.CPU(ctx)
	}()
	go func() {
		defer wg.Done()
		raw.Memory, raw.Errs.Memory = s.src.Memory(ctx)
	}()
	go func() {
		defer wg.Done()
		raw.Ifaces, raw.Errs.Net = s.src.Net(ctx)
	}()
	go func() {
		defer wg.Done()
		raw.Sensors, raw.Errs.Sensors = s.src.Sensors(ctx)
	}()
	go func() {
		defer wg.Done()
		raw.Disks, raw.Errs.Disk = s.src.Disks(ctx)
	}()
	go func() {
		defer wg.Done()
		raw.Processes, raw.Errs.Procs = s.src.Processes(ctx)
	}()
	go func() {
		defer wg.Done()
		hostInfo, raw.Errs.Host = s.src.Host(ctx)
	}()
	wg.Wait()

	if raw.Errs.Host == nil {
		raw.Load1, raw.Load5, raw.Load15 = hostInfo.Load1, hostInfo.Load5, hostInfo.Load15
		raw.Uptime = hostInfo.Uptime
		if !s.haveHost {
			s.host = hostInfo
			s.haveHost = true
		}
	}
	return raw
}

// derive turns a raw reading into a Sample. dt == 0 means Cold: every
// rate-based field reports zero for this tick only. Failed reads fall back
// to the last-known value, then to unavailable after FailThreshold
// consecutive failures; the raw reading is patched with the previous
// counters so the next delta stays consistent.
func (s *Sampler) derive(raw *model.RawReading, dt float64) model.Sample {
	smp := model.Sample{At: raw.At}

	s.deriveCPU(raw, &smp)
	s.deriveMemory(raw, &smp)
	s.deriveNet(raw, &smp, dt)
	s.deriveDisks(raw, &smp, dt)
	s.deriveTemps(raw, &smp)
	s.deriveProcs(raw, &smp, dt)
	s.deriveHost(raw, &smp)

	return smp
}

func (s *Sampler) deriveCPU(raw *model.RawReading, smp *model.Sample) {
	if raw.Errs.CPU != nil {
		if s.cpuHealth.fail() {
			s.log.Warn("cpu metrics unavailable", "err", raw.Errs.CPU)
			smp.CPUOK = false
		} else {
			s.log.Warn("cpu read failed, keeping last value", "err", raw.Errs.CPU)
			smp.CPUTotal = s.last.CPUTotal
			smp.CPUPerCore = s.last.CPUPerCore
			smp.CPUOK = s.last.CPUOK
		}
		raw.Cores = s.prev.Cores
		return
	}
	s.cpuHealth.succeed()
	smp.CPUOK = true
	smp.CPUPerCore = make([]float64, len(raw.Cores))

	var busySum, totalSum float64
	for i, cur := range raw.Cores {
		if i >= len(s.prev.Cores) {
			continue // new core, no baseline yet
		}
		db := cur.Busy - s.prev.Cores[i].Busy
		dtot := cur.Total - s.prev.Cores[i].Total
		// A negative delta means the counter reset; report 0 for this
		// tick instead of propagating a poisoned value.
		if db < 0 || dtot <= 0 {
			continue
		}
		smp.CPUPerCore[i] = clampPct(100 * db / dtot)
		busySum += db
		totalSum += dtot
	}
	if totalSum > 0 {
		smp.CPUTotal = clampPct(100 * busySum / totalSum)
	}
}

func (s *Sampler) deriveMemory(raw *model.RawReading, smp *model.Sample) {
	if raw.Errs.Memory != nil {
		if s.memHealth.fail() {
			s.log.Warn("memory metrics unavailable", "err", raw.Errs.Memory)
			smp.MemOK = false
		} else {
			smp.MemPercent = s.last.MemPercent
			smp.Memory = s.last.Memory
			smp.MemOK = s.last.MemOK
		}
		raw.Memory = s.prev.Memory
		return
	}
	s.memHealth.succeed()
	smp.MemOK = true
	smp.Memory = raw.Memory
	if raw.Memory.Total > 0 {
		smp.MemPercent = clampPct(100 * float64(raw.Memory.Used) / float64(raw.Memory.Total))
	}
}

func (s *Sampler) deriveNet(raw *model.RawReading, smp *model.Sample, dt float64) {
	if raw.Errs.Net != nil {
		if s.netHealth.fail() {
			s.log.Warn("network metrics unavailable", "err", raw.Errs.Net)
			smp.NetOK = false
		} else {
			smp.Ifaces = s.last.Ifaces
			smp.NetOK = s.last.NetOK
		}
		raw.Ifaces = s.prev.Ifaces
		return
	}
	s.netHealth.succeed()
	smp.NetOK = true

	prev := make(map[string]model.IfaceCounters, len(s.prev.Ifaces))
	for _, p := range s.prev.Ifaces {
		prev[p.Name] = p
	}
	smp.Ifaces = make([]model.IfaceRate, 0, len(raw.Ifaces))
	for _, cur := range raw.Ifaces {
		rate := model.IfaceRate{Name: cur.Name, RxTotal: cur.RxBytes, TxTotal: cur.TxBytes}
		if p, ok := prev[cur.Name]; ok && dt > 0 {
			// bytes_now < bytes_prev on a live interface means the 64-bit
			// counter wrapped or reset; that direction clamps to 0.
			if cur.RxBytes >= p.RxBytes {
				rate.RxPerSec = float64(cur.RxBytes-p.RxBytes) / dt
			}
			if cur.TxBytes >= p.TxBytes {
				rate.TxPerSec = float64(cur.TxBytes-p.TxBytes) / dt
			}
		}
		smp.Ifaces = append(smp.Ifaces, rate)
	}
}

func (s *Sampler) deriveDisks(raw *model.RawReading, smp *model.Sample, dt float64) {
	if raw.Errs.Disk != nil {
		if s.diskHealth.fail() {
			s.log.Warn("disk metrics unavailable", "err", raw.Errs.Disk)
			smp.DiskOK = false
		} else {
			smp.Disks = s.last.Disks
			smp.DiskOK = s.last.DiskOK
		}
		raw.Disks = s.prev.Disks
		return
	}
	s.diskHealth.succeed()
	smp.DiskOK = true

	prev := make(map[string]model.DiskCounters, len(s.prev.Disks))
	for _, p := range s.prev.Disks {
		prev[p.Name] = p
	}
	smp.Disks = make([]model.DiskStat, 0, len(raw.Disks))
	for _, cur := range raw.Disks {
		st := model.DiskStat{
			Name:   cur.Name,
			Mount:  cur.Mount,
			Fstype: cur.Fstype,
			Total:  cur.Total,
			Used:   cur.Used,
			Free:   cur.Free,
		}
		if cur.Total > 0 {
			st.UsedPercent = clampPct(100 * float64(cur.Used) / float64(cur.Total))
		}
		if p, ok := prev[cur.Name]; ok && dt > 0 {
			// Counter-reset guard matches the network path: a decrease
			// clamps that direction to 0 for this tick.
			if cur.ReadBytes >= p.ReadBytes {
				st.ReadPerSec = float64(cur.ReadBytes-p.ReadBytes) / dt
			}
			if cur.WriteBytes >= p.WriteBytes {
				st.WritePerSec = float64(cur.WriteBytes-p.WriteBytes) / dt
			}
		}
		smp.Disks = append(smp.Disks, st)
	}
}

func (s *Sampler) deriveTemps(raw *model.RawReading, smp *model.Sample) {
	if raw.Errs.Sensors != nil {
		if errors.Is(raw.Errs.Sensors, platform.ErrUnavailable) {
			// Not transient: the platform exposes no sensors at all.
			smp.TempsOK = false
			return
		}
		if s.tempHealth.fail() {
			s.log.Warn("temperature metrics unavailable", "err", raw.Errs.Sensors)
			smp.TempsOK = false
		} else {
			smp.Temps = s.last.Temps
			smp.TempsOK = s.last.TempsOK
		}
		return
	}
	s.tempHealth.succeed()
	smp.TempsOK = true
	smp.Temps = make([]model.Temperature, len(raw.Sensors))
	for i, sr := range raw.Sensors {
		smp.Temps[i] = model.Temperature{
			Label:     sr.Label,
			Value:     convertTemp(sr.Celsius, s.unit),
			Unit:      s.unit,
			Available: true,
		}
	}
}

func (s *Sampler) deriveProcs(raw *model.RawReading, smp *model.Sample, dt float64) {
	if raw.Errs.Procs != nil {
		if s.procHealth.fail() {
			s.log.Warn("process metrics unavailable", "err", raw.Errs.Procs)
			smp.ProcsOK = false
		} else {
			smp.Processes = s.last.Processes
			smp.ProcsOK = s.last.ProcsOK
		}
		raw.Processes = s.prev.Processes
		return
	}
	s.procHealth.succeed()
	smp.ProcsOK = true

	prev := make(map[int32]float64, len(s.prev.Processes))
	for _, p := range s.prev.Processes {
		prev[p.PID] = p.CPUTime
	}
	smp.Processes = make([]model.ProcessRow, len(raw.Processes))
	for i, p := range raw.Processes {
		// Instantaneous CPU% over the inter-tick window. A process seen
		// for the first time (or a reused pid whose counter went
		// backwards) has no usable baseline and reports 0 this tick.
		var cpuPct float64
		if prevTime, ok := prev[p.PID]; ok && dt > 0 && p.CPUTime >= prevTime {
			cpuPct = 100 * (p.CPUTime - prevTime) / dt
		}
		smp.Processes[i] = model.ProcessRow{
			PID:        p.PID,
			ParentPID:  p.ParentPID,
			Name:       p.Name,
			Cmdline:    p.Cmdline,
			User:       p.User,
			State:      p.State,
			CPUPercent: cpuPct,
			MemPercent: clampPct(p.MemPercent),
			MemRSS:     p.MemRSS,
		}
	}
}

func (s *Sampler) deriveHost(raw *model.RawReading, smp *model.Sample) {
	smp.Host = s.host
	if raw.Errs.Host != nil {
		smp.Host.Uptime = s.last.Host.Uptime
		smp.Host.Load1 = s.last.Host.Load1
		smp.Host.Load5 = s.last.Host.Load5
		smp.Host.Load15 = s.last.Host.Load15
		return
	}
	smp.Host.Uptime = raw.Uptime
	smp.Host.Load1 = raw.Load1
	smp.Host.Load5 = raw.Load5
	smp.Host.Load15 = raw.Load15
}

func convertTemp(celsius float64, unit model.TempUnit) float64 {
	if unit == model.Fahrenheit {
		return celsius*9/5 + 32
	}
	return celsius
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
