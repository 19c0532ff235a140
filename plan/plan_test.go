package plan

import "testing"

func TestMergeFreshDay(t *testing.T) {
	selected := make([]PlanEntry, 7)
	for i := range selected {
		selected[i] = PlanEntry{Speed: "High", FlowLPS: 10, Hours: 1}
	}
	regime, err := Merge(1, nil, selected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, e := range regime {
		want := periodName(i + 1)
		if e.Name != want {
			t.Errorf("entry %d: Name = %s, want %s", i, e.Name, want)
		}
	}
}

func TestMergeMidDay(t *testing.T) {
	completed := []PlanEntry{{Speed: "A", Hours: 8}, {Speed: "B", Hours: 6}}
	selected := []PlanEntry{
		{Speed: "C", Hours: 2}, {Speed: "D", Hours: 3}, {Speed: "E", Hours: 1.5},
		{Speed: "F", Hours: 1.5}, {Speed: "G", Hours: 2},
	}
	regime, err := Merge(3, completed, selected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regime[0].Name != "T1" || regime[1].Name != "T2" || regime[2].Name != "T3" {
		t.Fatalf("unexpected naming: %v %v %v", regime[0].Name, regime[1].Name, regime[2].Name)
	}
	if regime[2].Speed != "C" {
		t.Errorf("period 3 should be the first selected entry, got %s", regime[2].Speed)
	}
}

func TestMergeRejectsWrongCounts(t *testing.T) {
	if _, err := Merge(3, nil, nil); err == nil {
		t.Fatal("expected error for mismatched completed count")
	}
	completed := []PlanEntry{{}, {}}
	if _, err := Merge(3, completed, nil); err == nil {
		t.Fatal("expected error for mismatched selected count")
	}
}

func TestExpandToHalfHours(t *testing.T) {
	entries := []PlanEntry{
		{FlowLPS: 1, Hours: 1},
		{FlowLPS: 2, Hours: 0.5},
	}
	out := ExpandToHalfHours(entries)
	if out[0] != 1 || out[1] != 1 {
		t.Fatalf("expected first hour at flow 1, got %v %v", out[0], out[1])
	}
	if out[2] != 2 {
		t.Fatalf("expected half-hour at flow 2, got %v", out[2])
	}
	if out[3] != 0 {
		t.Fatalf("expected remaining buckets to default to zero, got %v", out[3])
	}
}

func TestRegimeTotals(t *testing.T) {
	var r Regime
	for i := range r {
		r[i] = PlanEntry{Hours: 24.0 / 7, VolumeL: 100}
	}
	if got := r.TotalVolume(); got != 700 {
		t.Errorf("TotalVolume = %v, want 700", got)
	}
	if got := r.VolumeThrough(3); got != 300 {
		t.Errorf("VolumeThrough(3) = %v, want 300", got)
	}
	if len(r.Slice()) != 7 {
		t.Errorf("Slice length = %d, want 7", len(r.Slice()))
	}
}
