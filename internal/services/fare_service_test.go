package services

import (
	"testing"

	"chalo/internal/config"
	"chalo/internal/models"
)

func testFareConfig() *config.FareConfig {
	return &config.FareConfig{
		Rates: map[string]config.FareRate{
			"bike": {BaseFare: 30, PerKM: 15, PerMinute: 1.0, MinimumFare: 40, AvgSpeedKMH: 25},
			"cng":  {BaseFare: 40, PerKM: 18, PerMinute: 1.5, MinimumFare: 60, AvgSpeedKMH: 20},
			"car":  {BaseFare: 60, PerKM: 25, PerMinute: 2.0, MinimumFare: 100, AvgSpeedKMH: 25},
		},
	}
}

func TestEstimateBreakdown(t *testing.T) {
	t.Parallel()
	svc := NewFareService(testFareConfig())

	fare, err := svc.Estimate(5, 12, models.VehicleTypeBike, 1.0)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if fare.BaseFare != 30 {
		t.Errorf("BaseFare: got %v, want 30", fare.BaseFare)
	}
	if fare.DistanceFare != 75 {
		t.Errorf("DistanceFare: got %v, want 75", fare.DistanceFare)
	}
	if fare.TimeFare != 12 {
		t.Errorf("TimeFare: got %v, want 12", fare.TimeFare)
	}
	// ceil((30 + 75 + 12) * 1.0) = 117
	if fare.TotalFare != 117 {
		t.Errorf("TotalFare: got %v, want 117", fare.TotalFare)
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	t.Parallel()
	svc := NewFareService(testFareConfig())

	first, err := svc.Estimate(3.7, 9.2, models.VehicleTypeCNG, 1.3)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	for i := 0; i < 10; i++ {
		again, err := svc.Estimate(3.7, 9.2, models.VehicleTypeCNG, 1.3)
		if err != nil {
			t.Fatalf("Estimate: %v", err)
		}
		if *again != *first {
			t.Fatalf("Estimate not deterministic: got %+v, want %+v", again, first)
		}
	}
}

func TestEstimateAppliesSurge(t *testing.T) {
	t.Parallel()
	svc := NewFareService(testFareConfig())

	base, err := svc.Estimate(10, 20, models.VehicleTypeCar, 1.0)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	surged, err := svc.Estimate(10, 20, models.VehicleTypeCar, 2.0)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if surged.TotalFare != base.TotalFare*2 {
		t.Errorf("surged total: got %v, want %v", surged.TotalFare, base.TotalFare*2)
	}
	if surged.SurgeMultiplier != 2.0 {
		t.Errorf("SurgeMultiplier: got %v, want 2.0", surged.SurgeMultiplier)
	}
}

func TestEstimateClampsSurgeBelowOne(t *testing.T) {
	t.Parallel()
	svc := NewFareService(testFareConfig())

	fare, err := svc.Estimate(10, 20, models.VehicleTypeCar, 0.5)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if fare.SurgeMultiplier != 1.0 {
		t.Errorf("SurgeMultiplier: got %v, want 1.0", fare.SurgeMultiplier)
	}
}

func TestEstimateFloorsAtMinimumFare(t *testing.T) {
	t.Parallel()
	svc := NewFareService(testFareConfig())

	// A 100m hop: ceil(30 + 1.5 + 1) = 33, below the bike minimum of 40.
	fare, err := svc.Estimate(0.1, 1, models.VehicleTypeBike, 1.0)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if fare.TotalFare != 40 {
		t.Errorf("TotalFare: got %v, want minimum 40", fare.TotalFare)
	}
}

func TestEstimateRejectsUnknownVehicleType(t *testing.T) {
	t.Parallel()
	svc := NewFareService(testFareConfig())

	_, err := svc.Estimate(5, 10, models.VehicleType("rickshaw"), 1.0)
	if err == nil {
		t.Fatal("expected error for unknown vehicle type")
	}
	if KindOf(err) != KindValidation {
		t.Errorf("error kind: got %v, want %v", KindOf(err), KindValidation)
	}
}

func TestEstimateAllCoversEveryVehicleType(t *testing.T) {
	t.Parallel()
	svc := NewFareService(testFareConfig())

	fares, err := svc.EstimateAll(5, 10, 1.0)
	if err != nil {
		t.Fatalf("EstimateAll: %v", err)
	}
	if len(fares) != 3 {
		t.Fatalf("EstimateAll: got %d fares, want 3", len(fares))
	}
	for _, vt := range models.VehicleTypes {
		if fares[vt] == nil {
			t.Errorf("EstimateAll missing %s", vt)
		}
	}
}
