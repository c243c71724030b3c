package platform

import (
	"context"
	"errors"

	"sysmon/internal/model"
)

// ErrUnavailable marks a capability the platform does not expose at all, as
// opposed to a read that merely failed this once.
var ErrUnavailable = errors.New("capability unavailable")

// Source is the platform metric source. Each metric is independently
// queryable and independently fallible: a platform with no temperature
// sensors fails Sensors alone without affecting the other reads.
type Source interface {
	// CPU returns cumulative busy/total tick counts per core.
	CPU(ctx context.Context) ([]model.CPUTicks, error)
	// Memory returns RAM and swap totals in bytes.
	Memory(ctx context.Context) (model.MemCounters, error)
	// Net enumerates interfaces fresh on every call so hot-plugged
	// adapters appear without a restart. Loopback is excluded.
	Net(ctx context.Context) ([]model.IfaceCounters, error)
	// Sensors returns temperature readings in Celsius, or ErrUnavailable
	// when the platform exposes none.
	Sensors(ctx context.Context) ([]model.SensorReading, error)
	// Disks returns per-device usage totals and cumulative I/O counters
	// for mounted physical filesystems.
	Disks(ctx context.Context) ([]model.DiskCounters, error)
	// Processes returns the raw process table. Processes that exit between
	// enumeration and detail lookup are silently dropped.
	Processes(ctx context.Context) ([]model.RawProcess, error)
	// Host returns hostname, OS identity, uptime and load averages.
	Host(ctx context.Context) (model.HostInfo, error)
}

// New returns the metric source for the running platform.
func New() Source {
	return newSystemSource()
}
