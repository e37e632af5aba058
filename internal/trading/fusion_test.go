package trading

import (
	"math"
	"testing"
)

func TestBuyTrigger(t *testing.T) {
	for _, tc := range []struct {
		z, forecast float64
		want        bool
	}{
		{-2.5, 0.2, true},
		{-2.01, 0.11, true},
		{-2.0, 0.2, false},  // boundary is exclusive
		{-1.5, 0.5, false},  // anomaly too weak
		{-3.0, 0.10, false}, // forecast at the floor
		{-3.0, 0.05, false},
		{0, 0.5, false},
	} {
		if got := BuyTrigger(tc.z, tc.forecast); got != tc.want {
			t.Fatalf("BuyTrigger(%v, %v) = %v, want %v", tc.z, tc.forecast, got, tc.want)
		}
	}
}

func TestExitTrigger(t *testing.T) {
	for _, tc := range []struct {
		profit, z float64
		want      bool
	}{
		{0.31, -1.0, true}, // profit target
		{0.3, -1.0, false}, // boundary is exclusive
		{0.1, 0.01, true},  // law restored
		{0.1, 0.0, false},
		{-0.5, -2.0, false},
		{-0.5, 1.5, true}, // restored law exits even at a loss
	} {
		if got := ExitTrigger(tc.profit, tc.z); got != tc.want {
			t.Fatalf("ExitTrigger(%v, %v) = %v, want %v", tc.profit, tc.z, got, tc.want)
		}
	}
}

func TestProfitPct(t *testing.T) {
	if got := ProfitPct(100, 102); math.Abs(got-2) > 1e-9 {
		t.Fatalf("ProfitPct(100, 102) = %v, want 2", got)
	}
	if got := ProfitPct(200, 199); math.Abs(got+0.5) > 1e-9 {
		t.Fatalf("ProfitPct(200, 199) = %v, want -0.5", got)
	}
	if got := ProfitPct(100, 100); got != 0 {
		t.Fatalf("ProfitPct(100, 100) = %v, want 0", got)
	}
}
