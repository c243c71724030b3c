package proctable

import (
	"reflect"
	"testing"

	"sysmon/internal/model"
)

func rows() []model.ProcessRow {
	return []model.ProcessRow{
		{PID: 40, Name: "nginx", CPUPercent: 5.0, MemPercent: 2.0},
		{PID: 10, Name: "systemd", CPUPercent: 0.1, MemPercent: 0.5},
		{PID: 30, Name: "postgres", CPUPercent: 5.0, MemPercent: 8.0},
		{PID: 20, Name: "Nginx-worker", CPUPercent: 1.0, MemPercent: 2.0},
	}
}

func pids(v model.ProcessView) []int32 {
	out := make([]int32, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.PID
	}
	return out
}

func TestSortKeys(t *testing.T) {
	tests := []struct {
		name       string
		key        model.SortKey
		descending bool
		want       []int32
	}{
		{"cpu descending", model.SortCPU, true, []int32{30, 40, 20, 10}},
		{"cpu ascending", model.SortCPU, false, []int32{10, 20, 30, 40}},
		{"mem descending", model.SortMemory, true, []int32{30, 20, 40, 10}},
		{"pid ascending", model.SortPID, false, []int32{10, 20, 30, 40}},
		{"pid descending", model.SortPID, true, []int32{40, 30, 20, 10}},
		// Case-insensitive: nginx and Nginx-worker group together.
		{"name ascending", model.SortName, false, []int32{40, 20, 30, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.key)
			m.SetSort(tt.key, tt.descending)
			m.Update(rows())
			if got := pids(m.View()); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTieBreakByPID(t *testing.T) {
	// PIDs 30 and 40 share CPUPercent 5.0; the tie must break by pid
	// ascending in both directions so output never jitters across ticks.
	m := New(model.SortCPU)
	m.Update(rows())
	first := pids(m.View())
	second := pids(m.View())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("sorting identical input twice diverged: %v vs %v", first, second)
	}
	if first[0] != 30 || first[1] != 40 {
		t.Errorf("tie-break: got %v, want pid 30 before 40", first)
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   []int32
	}{
		{"empty matches everything", "", []int32{30, 40, 20, 10}},
		{"case-insensitive substring", "NGINX", []int32{40, 20}},
		{"no match is empty, not an error", "zzz", []int32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(model.SortCPU)
			m.Update(rows())
			m.SetFilter(tt.filter)
			view := m.View()
			if got := pids(view); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if view.Total != 4 {
				t.Errorf("Total: got %d, want 4 (pre-filter size)", view.Total)
			}
		})
	}
}

func TestCycleSort(t *testing.T) {
	m := New(model.SortCPU)
	m.CycleSort()
	view := m.View()
	if view.Key != model.SortMemory {
		t.Errorf("after one cycle: got %q, want mem", view.Key)
	}
	if !view.Descending {
		t.Error("mem should default to descending")
	}
	m.CycleSort() // pid
	m.CycleSort() // name
	view = m.View()
	if view.Key != model.SortName {
		t.Errorf("got %q, want name", view.Key)
	}
	if view.Descending {
		t.Error("name should default to ascending")
	}
}

func TestToggleDirection(t *testing.T) {
	m := New(model.SortCPU)
	m.Update(rows())
	if !m.View().Descending {
		t.Fatal("cpu should default to descending")
	}
	m.ToggleDirection()
	if m.View().Descending {
		t.Error("direction should flip")
	}
}

func TestViewDoesNotMutateWorkingSet(t *testing.T) {
	m := New(model.SortPID)
	in := rows()
	m.Update(in)
	_ = m.View()
	if in[0].PID != 40 {
		t.Error("View must project, not reorder the caller's slice")
	}
}
