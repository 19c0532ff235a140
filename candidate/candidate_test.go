package candidate

import (
	"testing"

	"github.com/devskill-org/reservoir-regime-planner/calendar"
)

func TestPriceFor(t *testing.T) {
	cs := CostSchedule{Day: 0.10, Peak: 0.30, Evening: 0.20, Night: 0.05}
	cases := map[calendar.TariffClass]float64{
		calendar.Day:     0.10,
		calendar.Peak:    0.30,
		calendar.Evening: 0.20,
		calendar.Night:   0.05,
	}
	for class, want := range cases {
		if got := cs.PriceFor(class); got != want {
			t.Errorf("PriceFor(%v) = %v, want %v", class, got, want)
		}
	}
}

func TestAdjustForSuctionScalesFlow(t *testing.T) {
	pumps := []Pump{{Speed: "High", FlowLPS: 20, RatedSuctionBar: 2.0}}
	adjusted := AdjustForSuction(pumps, 1.0)
	want := 20 * (1.0 / 2.0)
	if adjusted[0].FlowLPS != want {
		t.Fatalf("FlowLPS = %v, want %v", adjusted[0].FlowLPS, want)
	}
	if pumps[0].FlowLPS != 20 {
		t.Fatalf("AdjustForSuction must not mutate its input, got %v", pumps[0].FlowLPS)
	}
}

func TestVolumeAndCost(t *testing.T) {
	if got := Volume(10, 2); got != 72000 {
		t.Errorf("Volume(10, 2) = %v, want 72000", got)
	}
	if got := Cost(5, 0.20, 3); got != 3.0 {
		t.Errorf("Cost(5, 0.20, 3) = %v, want 3.0", got)
	}
}

func TestForPeriod(t *testing.T) {
	pumps := []Pump{
		{Speed: "Low", FlowLPS: 5, EnergyKW: 2},
		{Speed: "High", FlowLPS: 10, EnergyKW: 4},
	}
	opts := ForPeriod(pumps, 2, 0.10)
	if len(opts) != 2 {
		t.Fatalf("expected 2 options, got %d", len(opts))
	}
	if opts[1].VolumeL != Volume(10, 2) {
		t.Errorf("VolumeL = %v, want %v", opts[1].VolumeL, Volume(10, 2))
	}
	if opts[1].CostGBP != Cost(4, 0.10, 2) {
		t.Errorf("CostGBP = %v, want %v", opts[1].CostGBP, Cost(4, 0.10, 2))
	}
}
