package estimator

import "testing"

func TestDeltaLevelSign(t *testing.T) {
	if d := DeltaLevel(10, 100); d <= 0 {
		t.Fatalf("positive net flow should raise level, got %v", d)
	}
	if d := DeltaLevel(-10, 100); d >= 0 {
		t.Fatalf("negative net flow should lower level, got %v", d)
	}
	if d := DeltaLevel(0, 100); d != 0 {
		t.Fatalf("zero net flow should not change level, got %v", d)
	}
}

func TestDeltaLevelMagnitude(t *testing.T) {
	got := DeltaLevel(10, 20) // 10 L/s over 1800s -> 1.8 m^3 over 20 m^2
	want := 10 * 1.8 / 20.0
	if got != want {
		t.Fatalf("DeltaLevel = %v, want %v", got, want)
	}
}

func TestReplayConstantFlowNoOutflow(t *testing.T) {
	var pumped [SlotsPerDay]float64
	for i := range pumped {
		pumped[i] = 5
	}
	levels := Replay(Input{
		StartLevel:    2.0,
		PumpedLPS:     pumped,
		SurfaceAreaM2: 100,
		ResetIndex:    -1,
	})
	if levels[0] != 2.0 {
		t.Fatalf("levels[0] = %v, want start level 2.0", levels[0])
	}
	for i := 1; i < SlotsPerDay; i++ {
		if levels[i] <= levels[i-1] {
			t.Fatalf("level should strictly increase with net positive flow at bucket %d: %v -> %v", i, levels[i-1], levels[i])
		}
	}
}

func TestReplayResetPinsLevel(t *testing.T) {
	var pumped, outflow [SlotsPerDay]float64
	levels := Replay(Input{
		StartLevel:    1.0,
		PumpedLPS:     pumped,
		OutflowLPS:    outflow,
		SurfaceAreaM2: 100,
		ResetIndex:    10,
		ResetLevel:    9.5,
	})
	if levels[10] != 9.5 {
		t.Fatalf("levels[10] = %v, want reset level 9.5", levels[10])
	}
}

func TestReplayResetAtZero(t *testing.T) {
	var pumped, outflow [SlotsPerDay]float64
	levels := Replay(Input{
		StartLevel:    1.0,
		PumpedLPS:     pumped,
		OutflowLPS:    outflow,
		SurfaceAreaM2: 100,
		ResetIndex:    0,
		ResetLevel:    3.3,
	})
	if levels[0] != 3.3 {
		t.Fatalf("levels[0] = %v, want reset level 3.3 even when StartLevel differs", levels[0])
	}
}

func TestWithinBounds(t *testing.T) {
	var levels [SlotsPerDay]float64
	for i := range levels {
		levels[i] = 5.0
	}
	if !WithinBounds(levels, 0, 1, 10) {
		t.Fatal("expected all levels within [1, 10]")
	}
	levels[30] = 0.5
	if WithinBounds(levels, 0, 1, 10) {
		t.Fatal("expected out-of-bounds detection at bucket 30")
	}
	if !WithinBounds(levels, 31, 1, 10) {
		t.Fatal("expected bounds check to ignore buckets before fromIndex")
	}
}
