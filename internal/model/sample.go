package model

import "time"

// TempUnit tags every temperature value so the renderer never guesses.
type TempUnit string

const (
	Celsius    TempUnit = "C"
	Fahrenheit TempUnit = "F"
)

// Theme selects the renderer palette. The core threads it through unchanged.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// SortKey identifies the process table column being sorted.
type SortKey string

const (
	SortCPU    SortKey = "cpu"
	SortMemory SortKey = "mem"
	SortPID    SortKey = "pid"
	SortName   SortKey = "name"
)

// Next cycles through the sort keys in display order.
func (k SortKey) Next() SortKey {
	switch k {
	case SortCPU:
		return SortMemory
	case SortMemory:
		return SortPID
	case SortPID:
		return SortName
	default:
		return SortCPU
	}
}

// DefaultDescending reports whether a key sorts high-to-low by default.
func (k SortKey) DefaultDescending() bool {
	return k == SortCPU || k == SortMemory
}

// CPUTicks is one core's cumulative busy/total tick counts.
type CPUTicks struct {
	Busy  float64
	Total float64
}

// MemCounters holds RAM and swap totals in bytes.
type MemCounters struct {
	Total     uint64
	Used      uint64
	Available uint64
	SwapTotal uint64
	SwapUsed  uint64
}

// IfaceCounters is one interface's cumulative byte counters.
type IfaceCounters struct {
	Name    string
	RxBytes uint64
	TxBytes uint64
}

// SensorReading is one temperature sensor in the platform's native unit (Celsius).
type SensorReading struct {
	Label   string
	Celsius float64
}

// DiskCounters is one device's usage totals and cumulative I/O byte counters.
type DiskCounters struct {
	Name       string // device, e.g. sda1
	Mount      string
	Fstype     string
	Total      uint64
	Used       uint64
	Free       uint64
	ReadBytes  uint64
	WriteBytes uint64
}

// RawProcess is a platform-native process record before derivation.
// CPUTime is cumulative CPU seconds; the sampler deltas it against the
// previous tick to derive an instantaneous percentage.
type RawProcess struct {
	PID        int32
	ParentPID  int32
	Name       string
	Cmdline    string
	User       string
	State      string
	CPUTime    float64
	MemPercent float64
	MemRSS     uint64
}

// RawReading bundles every platform counter read at one instant. It is
// consumed by the sampler and discarded; only the sampler ever holds one.
type RawReading struct {
	At        time.Time
	Cores     []CPUTicks
	Memory    MemCounters
	Ifaces    []IfaceCounters
	Sensors   []SensorReading
	Disks     []DiskCounters
	Processes []RawProcess
	Load1     float64
	Load5     float64
	Load15    float64
	Uptime    time.Duration

	Errs ReadErrors
}

// ReadErrors records which metric reads failed this tick. A nil entry means
// the read succeeded.
type ReadErrors struct {
	CPU     error
	Memory  error
	Net     error
	Sensors error
	Disk    error
	Procs   error
	Host    error
}

// Temperature is a display-unit sensor value. Available distinguishes a real
// zero-degree reading from a missing sensor.
type Temperature struct {
	Label     string
	Value     float64
	Unit      TempUnit
	Available bool
}

// IfaceRate is one interface's instantaneous throughput.
type IfaceRate struct {
	Name     string
	RxPerSec float64
	TxPerSec float64
	RxTotal  uint64
	TxTotal  uint64
}

// DiskStat is one device's usage plus instantaneous read/write throughput.
type DiskStat struct {
	Name        string
	Mount       string
	Fstype      string
	Total       uint64
	Used        uint64
	Free        uint64
	UsedPercent float64
	ReadPerSec  float64
	WritePerSec float64
}

// ProcessRow is one derived process entry in a tick's Sample.
type ProcessRow struct {
	PID        int32
	ParentPID  int32
	Name       string
	Cmdline    string
	User       string
	State      string
	CPUPercent float64
	MemPercent float64
	MemRSS     uint64
}

// HostInfo carries the mostly-static host identity block.
type HostInfo struct {
	Hostname  string
	OS        string
	OSVersion string
	Uptime    time.Duration
	Load1     float64
	Load5     float64
	Load15    float64
}

// Sample holds one tick's derived values. Immutable once the sampler hands
// it to the coordinator.
type Sample struct {
	At         time.Time
	CPUTotal   float64
	CPUPerCore []float64
	CPUOK      bool
	MemPercent float64
	Memory     MemCounters
	MemOK      bool
	Ifaces     []IfaceRate
	NetOK      bool
	Disks      []DiskStat
	DiskOK     bool
	Temps      []Temperature
	TempsOK    bool
	Processes  []ProcessRow
	ProcsOK    bool
	Host       HostInfo
}

// ProcessView is the sorted, filtered projection of a tick's process list.
// Rebuilt wholesale each tick, never mutated in place.
type ProcessView struct {
	Rows       []ProcessRow
	Key        SortKey
	Descending bool
	Filter     string
	Total      int // size before filtering
}

// Series is a read-only copy of one metric's history, oldest first.
type Series struct {
	ID     string
	Values []float64
}

// Snapshot is the immutable per-tick aggregate crossing the core/renderer
// boundary: derived sample, history, and process view, stamped with the
// tick's acquisition time.
type Snapshot struct {
	At        time.Time
	Seq       uint64
	Sample    Sample
	History   []Series
	Processes ProcessView
	Interval  time.Duration
	Theme     Theme
	Color     bool
	TempUnit  TempUnit
}
