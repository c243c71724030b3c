package sampler

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"sysmon/internal/model"
	"sysmon/internal/platform"
)

// fakeSource returns canned readings so delta math can be driven exactly.
type fakeSource struct {
	cores   []model.CPUTicks
	cpuErr  error
	mem     model.MemCounters
	memErr  error
	ifaces  []model.IfaceCounters
	netErr  error
	sensors []model.SensorReading
	sensErr error
	disks   []model.DiskCounters
	diskErr error
	procs   []model.RawProcess
	procErr error
	host    model.HostInfo
	hostErr error
}

func (f *fakeSource) CPU(context.Context) ([]model.CPUTicks, error) { return f.cores, f.cpuErr }
func (f *fakeSource) Memory(context.Context) (model.MemCounters, error) {
	return f.mem, f.memErr
}
func (f *fakeSource) Net(context.Context) ([]model.IfaceCounters, error) { return f.ifaces, f.netErr }
func (f *fakeSource) Sensors(context.Context) ([]model.SensorReading, error) {
	return f.sensors, f.sensErr
}
func (f *fakeSource) Disks(context.Context) ([]model.DiskCounters, error) {
	return f.disks, f.diskErr
}
func (f *fakeSource) Processes(context.Context) ([]model.RawProcess, error) {
	return f.procs, f.procErr
}
func (f *fakeSource) Host(context.Context) (model.HostInfo, error) { return f.host, f.hostErr }

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestColdTickZeroRates(t *testing.T) {
	src := &fakeSource{
		cores: []model.CPUTicks{{Busy: 100, Total: 1000}},
		mem:   model.MemCounters{Total: 1000, Used: 250},
		ifaces: []model.IfaceCounters{
			{Name: "eth0", RxBytes: 5000, TxBytes: 2000},
		},
	}
	s := New(src, model.Fahrenheit, quiet())
	smp := s.Sample(context.Background(), t0)

	if smp.CPUTotal != 0 {
		t.Errorf("cold CPU: got %v, want 0", smp.CPUTotal)
	}
	if smp.Ifaces[0].RxPerSec != 0 || smp.Ifaces[0].TxPerSec != 0 {
		t.Errorf("cold net rates: got %v/%v, want 0/0", smp.Ifaces[0].RxPerSec, smp.Ifaces[0].TxPerSec)
	}
	// Point-in-time values are valid even on the cold tick.
	if smp.MemPercent != 25 {
		t.Errorf("cold mem: got %v, want 25", smp.MemPercent)
	}
}

func TestAggregateCPUFiftyPercent(t *testing.T) {
	src := &fakeSource{
		cores: []model.CPUTicks{{Busy: 100, Total: 1000}, {Busy: 100, Total: 1000}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	src.cores = []model.CPUTicks{{Busy: 150, Total: 1100}, {Busy: 150, Total: 1100}}
	smp := s.Sample(context.Background(), t0.Add(time.Second))

	if smp.CPUTotal != 50 {
		t.Errorf("aggregate CPU: got %v, want 50", smp.CPUTotal)
	}
	for i, core := range smp.CPUPerCore {
		if core != 50 {
			t.Errorf("core %d: got %v, want 50", i, core)
		}
	}
}

func TestCPUCounterReset(t *testing.T) {
	src := &fakeSource{
		cores: []model.CPUTicks{{Busy: 500, Total: 1000}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	// Counter went backwards: treat as reset, report 0, stay in range.
	src.cores = []model.CPUTicks{{Busy: 10, Total: 20}}
	smp := s.Sample(context.Background(), t0.Add(time.Second))
	if smp.CPUTotal != 0 {
		t.Errorf("after reset: got %v, want 0", smp.CPUTotal)
	}

	// Next normal tick derives from the post-reset baseline.
	src.cores = []model.CPUTicks{{Busy: 35, Total: 120}}
	smp = s.Sample(context.Background(), t0.Add(2*time.Second))
	if smp.CPUTotal != 25 {
		t.Errorf("post-reset tick: got %v, want 25", smp.CPUTotal)
	}
}

func TestCPUAlwaysInRange(t *testing.T) {
	src := &fakeSource{cores: []model.CPUTicks{{Busy: 0, Total: 0}}}
	s := New(src, model.Fahrenheit, quiet())
	readings := []model.CPUTicks{
		{Busy: 100, Total: 100},
		{Busy: 5, Total: 10},
		{Busy: 1e12, Total: 1e12},
		{Busy: 0, Total: 1},
	}
	now := t0
	for _, r := range readings {
		src.cores = []model.CPUTicks{r}
		now = now.Add(time.Second)
		smp := s.Sample(context.Background(), now)
		if smp.CPUTotal < 0 || smp.CPUTotal > 100 {
			t.Errorf("CPU out of range: %v for reading %+v", smp.CPUTotal, r)
		}
	}
}

func TestNetWraparound(t *testing.T) {
	src := &fakeSource{
		ifaces: []model.IfaceCounters{{Name: "eth0", RxBytes: 18446744073709551000, TxBytes: 100}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	// Counter wrapped near the 64-bit maximum: rate must be 0, not huge.
	src.ifaces = []model.IfaceCounters{{Name: "eth0", RxBytes: 500, TxBytes: 1100}}
	smp := s.Sample(context.Background(), t0.Add(time.Second))
	if smp.Ifaces[0].RxPerSec != 0 {
		t.Errorf("wrapped rx rate: got %v, want 0", smp.Ifaces[0].RxPerSec)
	}
	if smp.Ifaces[0].TxPerSec != 1000 {
		t.Errorf("tx rate: got %v, want 1000", smp.Ifaces[0].TxPerSec)
	}

	// Subsequent normal tick reports a correct positive rate again.
	src.ifaces = []model.IfaceCounters{{Name: "eth0", RxBytes: 2500, TxBytes: 1100}}
	smp = s.Sample(context.Background(), t0.Add(2*time.Second))
	if smp.Ifaces[0].RxPerSec != 2000 {
		t.Errorf("post-wrap rx rate: got %v, want 2000", smp.Ifaces[0].RxPerSec)
	}
}

func TestNetRateScalesWithElapsed(t *testing.T) {
	src := &fakeSource{
		ifaces: []model.IfaceCounters{{Name: "eth0", RxBytes: 0, TxBytes: 0}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	src.ifaces = []model.IfaceCounters{{Name: "eth0", RxBytes: 4000, TxBytes: 0}}
	smp := s.Sample(context.Background(), t0.Add(2*time.Second))
	if smp.Ifaces[0].RxPerSec != 2000 {
		t.Errorf("rate over 2s: got %v, want 2000", smp.Ifaces[0].RxPerSec)
	}
}

func TestHotPluggedInterface(t *testing.T) {
	src := &fakeSource{
		ifaces: []model.IfaceCounters{{Name: "eth0", RxBytes: 100, TxBytes: 100}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	src.ifaces = []model.IfaceCounters{
		{Name: "eth0", RxBytes: 200, TxBytes: 100},
		{Name: "wlan0", RxBytes: 9999, TxBytes: 9999},
	}
	smp := s.Sample(context.Background(), t0.Add(time.Second))
	if len(smp.Ifaces) != 2 {
		t.Fatalf("ifaces: got %d, want 2", len(smp.Ifaces))
	}
	// New interface has no baseline; its first rate is 0.
	if smp.Ifaces[1].RxPerSec != 0 {
		t.Errorf("new iface rate: got %v, want 0", smp.Ifaces[1].RxPerSec)
	}
}

func TestClockAnomalyRepeatsPreviousSample(t *testing.T) {
	src := &fakeSource{
		cores: []model.CPUTicks{{Busy: 100, Total: 1000}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	src.cores = []model.CPUTicks{{Busy: 150, Total: 1100}}
	second := s.Sample(context.Background(), t0.Add(time.Second))

	// Clock went backwards; the tick repeats the previous sample.
	src.cores = []model.CPUTicks{{Busy: 900, Total: 1200}}
	third := s.Sample(context.Background(), t0.Add(500*time.Millisecond))
	if third.CPUTotal != second.CPUTotal {
		t.Errorf("anomaly tick: got %v, want repeat of %v", third.CPUTotal, second.CPUTotal)
	}
	if !third.At.Equal(second.At) {
		t.Errorf("anomaly tick timestamp: got %v, want %v", third.At, second.At)
	}
}

func TestNoSensorsIsUnavailableNeverZero(t *testing.T) {
	src := &fakeSource{sensErr: platform.ErrUnavailable}
	s := New(src, model.Fahrenheit, quiet())
	now := t0
	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		smp := s.Sample(context.Background(), now)
		if smp.TempsOK {
			t.Fatalf("tick %d: temps marked available on sensorless platform", i)
		}
		if len(smp.Temps) != 0 {
			t.Fatalf("tick %d: got %d readings, want none", i, len(smp.Temps))
		}
	}
}

func TestTemperatureConversion(t *testing.T) {
	src := &fakeSource{
		sensors: []model.SensorReading{{Label: "coretemp", Celsius: 50}},
	}
	s := New(src, model.Fahrenheit, quiet())
	smp := s.Sample(context.Background(), t0)
	if !smp.TempsOK || len(smp.Temps) != 1 {
		t.Fatalf("temps: ok=%v n=%d", smp.TempsOK, len(smp.Temps))
	}
	got := smp.Temps[0]
	if math.Abs(got.Value-122) > 1e-9 {
		t.Errorf("50C in Fahrenheit: got %v, want 122", got.Value)
	}
	if got.Unit != model.Fahrenheit {
		t.Errorf("unit tag: got %q, want F", got.Unit)
	}
	if !got.Available {
		t.Error("reading should be marked available")
	}
}

func TestZeroDegreesIsAvailable(t *testing.T) {
	src := &fakeSource{
		sensors: []model.SensorReading{{Label: "outside", Celsius: 0}},
	}
	s := New(src, model.Celsius, quiet())
	smp := s.Sample(context.Background(), t0)
	if !smp.TempsOK || !smp.Temps[0].Available {
		t.Error("a real 0° reading must not be confused with absence")
	}
	if smp.Temps[0].Value != 0 {
		t.Errorf("got %v, want 0", smp.Temps[0].Value)
	}
}

func TestTransientFailureKeepsLastValue(t *testing.T) {
	src := &fakeSource{
		cores: []model.CPUTicks{{Busy: 100, Total: 1000}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)
	src.cores = []model.CPUTicks{{Busy: 150, Total: 1100}}
	good := s.Sample(context.Background(), t0.Add(time.Second))
	if good.CPUTotal != 50 {
		t.Fatalf("setup: got %v, want 50", good.CPUTotal)
	}

	src.cpuErr = context.DeadlineExceeded
	smp := s.Sample(context.Background(), t0.Add(2*time.Second))
	if !smp.CPUOK {
		t.Error("single failure should not mark CPU unavailable")
	}
	if smp.CPUTotal != 50 {
		t.Errorf("fallback: got %v, want last-known 50", smp.CPUTotal)
	}
}

func TestConsecutiveFailuresDegradeToUnavailable(t *testing.T) {
	src := &fakeSource{
		cores: []model.CPUTicks{{Busy: 100, Total: 1000}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	src.cpuErr = context.DeadlineExceeded
	now := t0
	for i := 1; i < FailThreshold; i++ {
		now = now.Add(time.Second)
		smp := s.Sample(context.Background(), now)
		if !smp.CPUOK {
			t.Fatalf("failure %d: degraded before threshold", i)
		}
	}
	now = now.Add(time.Second)
	smp := s.Sample(context.Background(), now)
	if smp.CPUOK {
		t.Errorf("failure %d: still available past threshold", FailThreshold)
	}

	// A successful read restores the metric.
	src.cpuErr = nil
	src.cores = []model.CPUTicks{{Busy: 200, Total: 2000}}
	now = now.Add(time.Second)
	smp = s.Sample(context.Background(), now)
	if !smp.CPUOK {
		t.Error("successful read should restore availability")
	}
}

func TestFailuresIsolatedPerMetric(t *testing.T) {
	src := &fakeSource{
		cores:  []model.CPUTicks{{Busy: 100, Total: 1000}},
		mem:    model.MemCounters{Total: 1000, Used: 500},
		netErr: context.DeadlineExceeded,
	}
	s := New(src, model.Fahrenheit, quiet())
	smp := s.Sample(context.Background(), t0)
	if !smp.CPUOK || !smp.MemOK {
		t.Error("a failing network read must not degrade CPU or memory")
	}
	if smp.MemPercent != 50 {
		t.Errorf("mem: got %v, want 50", smp.MemPercent)
	}
}

func TestProcessesCopiedIntoSample(t *testing.T) {
	src := &fakeSource{
		procs: []model.RawProcess{
			{PID: 1, Name: "init", CPUTime: 12.5, MemPercent: 1.5, MemRSS: 4096},
		},
	}
	s := New(src, model.Fahrenheit, quiet())
	smp := s.Sample(context.Background(), t0)
	if !smp.ProcsOK || len(smp.Processes) != 1 {
		t.Fatalf("procs: ok=%v n=%d", smp.ProcsOK, len(smp.Processes))
	}
	p := smp.Processes[0]
	if p.PID != 1 || p.Name != "init" || p.MemRSS != 4096 {
		t.Errorf("row mismatch: %+v", p)
	}
	// Cold tick: no baseline to delta against.
	if p.CPUPercent != 0 {
		t.Errorf("cold process CPU: got %v, want 0", p.CPUPercent)
	}
}

func TestProcessCPUIsTickScoped(t *testing.T) {
	src := &fakeSource{
		procs: []model.RawProcess{{PID: 1, Name: "worker", CPUTime: 10.0}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	// 0.5s of CPU consumed over a 1s window: 50%, regardless of how busy
	// the process was earlier in its lifetime.
	src.procs = []model.RawProcess{{PID: 1, Name: "worker", CPUTime: 10.5}}
	smp := s.Sample(context.Background(), t0.Add(time.Second))
	if got := smp.Processes[0].CPUPercent; math.Abs(got-50) > 1e-9 {
		t.Errorf("process CPU over 1s: got %v, want 50", got)
	}

	// An idle window reports 0 even though the lifetime total is large.
	src.procs = []model.RawProcess{{PID: 1, Name: "worker", CPUTime: 10.5}}
	smp = s.Sample(context.Background(), t0.Add(2*time.Second))
	if got := smp.Processes[0].CPUPercent; got != 0 {
		t.Errorf("idle window: got %v, want 0", got)
	}
}

func TestProcessCPUScalesWithElapsed(t *testing.T) {
	src := &fakeSource{
		procs: []model.RawProcess{{PID: 7, Name: "batch", CPUTime: 100}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	src.procs = []model.RawProcess{{PID: 7, Name: "batch", CPUTime: 100.5}}
	smp := s.Sample(context.Background(), t0.Add(2*time.Second))
	if got := smp.Processes[0].CPUPercent; math.Abs(got-25) > 1e-9 {
		t.Errorf("0.5s CPU over 2s: got %v, want 25", got)
	}
}

func TestNewProcessReportsZeroCPU(t *testing.T) {
	src := &fakeSource{
		procs: []model.RawProcess{{PID: 1, Name: "init", CPUTime: 5}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	src.procs = []model.RawProcess{
		{PID: 1, Name: "init", CPUTime: 5.1},
		{PID: 99, Name: "spawned", CPUTime: 3},
	}
	smp := s.Sample(context.Background(), t0.Add(time.Second))
	if got := smp.Processes[1].CPUPercent; got != 0 {
		t.Errorf("first sighting: got %v, want 0", got)
	}
}

func TestReusedPIDReportsZeroCPU(t *testing.T) {
	src := &fakeSource{
		procs: []model.RawProcess{{PID: 42, Name: "oldproc", CPUTime: 500}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	// Same pid, smaller cumulative time: the pid was recycled by a new
	// process. No valid delta exists for this tick.
	src.procs = []model.RawProcess{{PID: 42, Name: "newproc", CPUTime: 2}}
	smp := s.Sample(context.Background(), t0.Add(time.Second))
	if got := smp.Processes[0].CPUPercent; got != 0 {
		t.Errorf("recycled pid: got %v, want 0", got)
	}
}

func TestDiskRatesAndUsage(t *testing.T) {
	src := &fakeSource{
		disks: []model.DiskCounters{
			{Name: "sda1", Mount: "/", Fstype: "ext4", Total: 1000, Used: 250, Free: 750, ReadBytes: 1 << 20, WriteBytes: 2 << 20},
		},
	}
	s := New(src, model.Fahrenheit, quiet())
	cold := s.Sample(context.Background(), t0)
	if !cold.DiskOK || len(cold.Disks) != 1 {
		t.Fatalf("disks: ok=%v n=%d", cold.DiskOK, len(cold.Disks))
	}
	// Usage is point-in-time and valid on the cold tick; rates are not.
	if cold.Disks[0].UsedPercent != 25 {
		t.Errorf("cold usage: got %v, want 25", cold.Disks[0].UsedPercent)
	}
	if cold.Disks[0].ReadPerSec != 0 || cold.Disks[0].WritePerSec != 0 {
		t.Errorf("cold disk rates: got %v/%v, want 0/0", cold.Disks[0].ReadPerSec, cold.Disks[0].WritePerSec)
	}

	src.disks = []model.DiskCounters{
		{Name: "sda1", Mount: "/", Fstype: "ext4", Total: 1000, Used: 250, Free: 750, ReadBytes: 1<<20 + 4096, WriteBytes: 2<<20 + 8192},
	}
	smp := s.Sample(context.Background(), t0.Add(2*time.Second))
	if got := smp.Disks[0].ReadPerSec; got != 2048 {
		t.Errorf("read rate over 2s: got %v, want 2048", got)
	}
	if got := smp.Disks[0].WritePerSec; got != 4096 {
		t.Errorf("write rate over 2s: got %v, want 4096", got)
	}
}

func TestDiskCounterReset(t *testing.T) {
	src := &fakeSource{
		disks: []model.DiskCounters{{Name: "sda1", Total: 100, Used: 50, ReadBytes: 9000, WriteBytes: 9000}},
	}
	s := New(src, model.Fahrenheit, quiet())
	s.Sample(context.Background(), t0)

	// Write counter went backwards: that direction clamps to 0 while the
	// read side still derives normally.
	src.disks = []model.DiskCounters{{Name: "sda1", Total: 100, Used: 50, ReadBytes: 10000, WriteBytes: 100}}
	smp := s.Sample(context.Background(), t0.Add(time.Second))
	if got := smp.Disks[0].ReadPerSec; got != 1000 {
		t.Errorf("read rate: got %v, want 1000", got)
	}
	if got := smp.Disks[0].WritePerSec; got != 0 {
		t.Errorf("reset write rate: got %v, want 0", got)
	}
}

func TestDiskFailureDegradesIndependently(t *testing.T) {
	src := &fakeSource{
		mem:     model.MemCounters{Total: 1000, Used: 500},
		diskErr: context.DeadlineExceeded,
	}
	s := New(src, model.Fahrenheit, quiet())
	now := t0
	for i := 0; i < FailThreshold; i++ {
		now = now.Add(time.Second)
		smp := s.Sample(context.Background(), now)
		if !smp.MemOK {
			t.Fatalf("tick %d: disk failure degraded memory", i)
		}
	}
	smp := s.Sample(context.Background(), now.Add(time.Second))
	if smp.DiskOK {
		t.Error("disks still available past failure threshold")
	}
}
