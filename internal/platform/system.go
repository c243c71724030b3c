package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"sysmon/internal/model"
)

// systemSource reads counters through gopsutil, which carries the per-OS
// implementations selected at compile time.
type systemSource struct{}

func newSystemSource() *systemSource { return &systemSource{} }

func (s *systemSource) CPU(ctx context.Context) ([]model.CPUTicks, error) {
	times, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("cpu times: %w", err)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("cpu times: no cores reported")
	}
	cores := make([]model.CPUTicks, len(times))
	for i, t := range times {
		total := t.Total()
		// Iowait counts as idle, matching what top reports.
		cores[i] = model.CPUTicks{
			Busy:  total - t.Idle - t.Iowait,
			Total: total,
		}
	}
	return cores, nil
}

func (s *systemSource) Memory(ctx context.Context) (model.MemCounters, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.MemCounters{}, fmt.Errorf("virtual memory: %w", err)
	}
	out := model.MemCounters{
		Total:     vm.Total,
		Used:      vm.Used,
		Available: vm.Available,
	}
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		out.SwapTotal = swap.Total
		out.SwapUsed = swap.Used
	}
	return out, nil
}

func (s *systemSource) Net(ctx context.Context) ([]model.IfaceCounters, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("net counters: %w", err)
	}
	out := make([]model.IfaceCounters, 0, len(counters))
	for _, c := range counters {
		if isLoopback(c.Name) {
			continue
		}
		out = append(out, model.IfaceCounters{
			Name:    c.Name,
			RxBytes: c.BytesRecv,
			TxBytes: c.BytesSent,
		})
	}
	return out, nil
}

func (s *systemSource) Sensors(ctx context.Context) ([]model.SensorReading, error) {
	if !sensorsSupported {
		return nil, ErrUnavailable
	}
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return nil, fmt.Errorf("sensors: %w", err)
	}
	out := make([]model.SensorReading, 0, len(temps))
	for _, t := range temps {
		// Sensors that exist but report nothing show up as zero keys or
		// absurd values; keep anything with a label and a sane reading.
		if t.SensorKey == "" || t.Temperature <= 0 || t.Temperature > 200 {
			continue
		}
		out = append(out, model.SensorReading{
			Label:   t.SensorKey,
			Celsius: t.Temperature,
		})
	}
	if len(out) == 0 {
		return nil, ErrUnavailable
	}
	return out, nil
}

func (s *systemSource) Disks(ctx context.Context) ([]model.DiskCounters, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("disk partitions: %w", err)
	}
	// I/O counters are keyed by bare device name, partitions by /dev path.
	counters, _ := disk.IOCountersWithContext(ctx)

	seen := make(map[string]bool, len(parts))
	out := make([]model.DiskCounters, 0, len(parts))
	for _, part := range parts {
		dev := filepath.Base(part.Device)
		if seen[dev] || strings.HasPrefix(dev, "loop") || strings.HasPrefix(dev, "ram") {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			continue // mount vanished or inaccessible, skip it
		}
		seen[dev] = true
		dc := model.DiskCounters{
			Name:   dev,
			Mount:  part.Mountpoint,
			Fstype: part.Fstype,
			Total:  usage.Total,
			Used:   usage.Used,
			Free:   usage.Free,
		}
		if io, ok := counters[dev]; ok {
			dc.ReadBytes = io.ReadBytes
			dc.WriteBytes = io.WriteBytes
		}
		out = append(out, dc)
	}
	return out, nil
}

func (s *systemSource) Processes(ctx context.Context) ([]model.RawProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process list: %w", err)
	}
	out := make([]model.RawProcess, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			// Exited between enumeration and lookup, or a kernel thread.
			continue
		}
		cmdline, _ := p.CmdlineWithContext(ctx)
		if cmdline == "" {
			cmdline = name
		}
		user, _ := p.UsernameWithContext(ctx)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		ppid, _ := p.PpidWithContext(ctx)

		// Cumulative CPU seconds; the sampler deltas these against the
		// previous tick so the percentage covers the inter-tick window
		// rather than the process lifetime.
		var cpuTime float64
		if times, err := p.TimesWithContext(ctx); err == nil && times != nil {
			cpuTime = times.User + times.System
		}

		var rss uint64
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			rss = mi.RSS
		}
		state := ""
		if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 {
			state = st[0]
		}

		out = append(out, model.RawProcess{
			PID:        p.Pid,
			ParentPID:  ppid,
			Name:       name,
			Cmdline:    cmdline,
			User:       user,
			State:      state,
			CPUTime:    cpuTime,
			MemPercent: float64(memPct),
			MemRSS:     rss,
		})
	}
	return out, nil
}

func (s *systemSource) Host(ctx context.Context) (model.HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return model.HostInfo{}, fmt.Errorf("host info: %w", err)
	}
	out := model.HostInfo{
		Hostname:  info.Hostname,
		OS:        info.Platform,
		OSVersion: info.PlatformVersion,
		Uptime:    time.Duration(info.Uptime) * time.Second,
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		out.Load1 = avg.Load1
		out.Load5 = avg.Load5
		out.Load15 = avg.Load15
	}
	return out, nil
}

func isLoopback(name string) bool {
	return strings.HasPrefix(name, "lo")
}
