package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/mesh-architect/model"
)

func TestGreatCircleOneDegreeOfLongitudeAtEquator(t *testing.T) {
	got := GreatCircleMeters(0, 0, 0, 1)
	if got != 111195 {
		t.Fatalf("GreatCircleMeters = %v, want 111195", got)
	}
}

func TestGreatCircleIsRoundedAndZeroForSamePoint(t *testing.T) {
	if got := GreatCircleMeters(39.8283, -98.5795, 39.8283, -98.5795); got != 0 {
		t.Fatalf("same point distance = %v, want 0", got)
	}
	got := GreatCircleMeters(39.8283, -98.5795, 39.8295, -98.5795)
	if got != math.Round(got) {
		t.Fatalf("distance %v is not whole metres", got)
	}
	if got < 130 || got > 137 {
		t.Fatalf("0.0012 deg of latitude = %v m, want ~133", got)
	}
}

func TestRadioHorizon(t *testing.T) {
	if got := RadioHorizonKm(100, 0); math.Abs(got-35.7) > 1e-9 {
		t.Fatalf("RadioHorizonKm(100,0) = %v, want 35.7", got)
	}
	if got := RadioHorizonKm(-5, -5); got != 0 {
		t.Fatalf("negative heights should clamp to 0, got %v", got)
	}
}

func TestHorizonHint(t *testing.T) {
	a := &model.Node{ID: "a"}
	b := &model.Node{ID: "b"}
	if horizonHint(1000, a, b) != nil {
		t.Fatalf("expected nil hint without height data")
	}

	a.HeightAboveGroundMeters = model.Float(100)
	if got := horizonHint(30000, a, b); got == nil || !*got {
		t.Fatalf("30 km should be within a 35.7 km horizon, got %v", got)
	}
	if got := horizonHint(40000, a, b); got == nil || *got {
		t.Fatalf("40 km should be beyond a 35.7 km horizon, got %v", got)
	}

	// Height on the other side only still yields a hint; a counts as ground level.
	a.HeightAboveGroundMeters = nil
	b.ElevationMeters = model.Float(4)
	if got := horizonHint(5000, a, b); got == nil || !*got {
		t.Fatalf("5 km should be within a 7.14 km horizon, got %v", got)
	}
	if got := horizonHint(10000, a, b); got == nil || *got {
		t.Fatalf("10 km should be beyond a 7.14 km horizon, got %v", got)
	}
}
