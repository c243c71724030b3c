// Package proctable holds the latest process list and projects it through
// the active sort key and filter. The projection is rebuilt in full every
// tick; process churn makes incremental diffing unsafe.
package proctable

import (
	"sort"
	"strings"
	"sync"

	"sysmon/internal/model"
)

// Manager owns the working process set and the view parameters.
type Manager struct {
	mu         sync.Mutex
	procs      []model.ProcessRow
	key        model.SortKey
	descending bool
	filter     string
}

func New(key model.SortKey) *Manager {
	return &Manager{key: key, descending: key.DefaultDescending()}
}

// Update replaces the working set with a fresh tick's process list.
func (m *Manager) Update(procs []model.ProcessRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs = procs
}

// SetSort sets the active sort key and direction.
func (m *Manager) SetSort(key model.SortKey, descending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	m.descending = descending
}

// CycleSort advances to the next sort key with that key's default direction.
func (m *Manager) CycleSort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = m.key.Next()
	m.descending = m.key.DefaultDescending()
}

// ToggleDirection flips the current sort direction.
func (m *Manager) ToggleDirection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.descending = !m.descending
}

// SetFilter sets the case-insensitive substring filter on process names.
// Empty matches everything.
func (m *Manager) SetFilter(filter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
}

// View builds the current ordered, filtered projection. Filtering happens
// before sorting; ties always break by ascending pid so identical input
// yields identical order across ticks.
func (m *Manager) View() model.ProcessView {
	m.mu.Lock()
	procs, key, desc, filter := m.procs, m.key, m.descending, m.filter
	m.mu.Unlock()

	rows := make([]model.ProcessRow, 0, len(procs))
	needle := strings.ToLower(filter)
	for _, p := range procs {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		rows = append(rows, p)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		var less, eq bool
		switch key {
		case model.SortName:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			less, eq = an < bn, an == bn
		case model.SortMemory:
			less, eq = a.MemPercent < b.MemPercent, a.MemPercent == b.MemPercent
		case model.SortPID:
			less, eq = a.PID < b.PID, a.PID == b.PID
		default: // cpu
			less, eq = a.CPUPercent < b.CPUPercent, a.CPUPercent == b.CPUPercent
		}
		if eq {
			return a.PID < b.PID
		}
		if desc {
			return !less
		}
		return less
	})

	return model.ProcessView{
		Rows:       rows,
		Key:        key,
		Descending: desc,
		Filter:     filter,
		Total:      len(procs),
	}
}
