package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chalo/internal/models"
	"chalo/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func createRide(t *testing.T, repo interfaces.RideRepository) *models.Ride {
	t.Helper()
	ride := &models.Ride{
		CustomerID:  primitive.NewObjectID(),
		Pickup:      models.NewLocation(23.7925, 90.4078, "Gulshan 1"),
		Destination: models.NewLocation(23.7461, 90.3742, "Dhanmondi 27"),
		VehicleType: models.VehicleTypeBike,
		Status:      models.RideStatusRequested,
		OTP:         "1234",
	}
	if err := repo.Create(context.Background(), ride); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return ride
}

func TestClaimExactlyOnce(t *testing.T) {
	t.Parallel()
	repo := NewRideRepository()
	ride := createRide(t, repo)

	const attempts = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Claim(context.Background(), ride.ID, primitive.NewObjectID())
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
				return
			}
			if !errors.Is(err, interfaces.ErrClaimLost) {
				t.Errorf("loser error: got %v, want ErrClaimLost", err)
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("winners: got %d, want exactly 1", won)
	}
}

func TestClaimRejectsBusyDriver(t *testing.T) {
	t.Parallel()
	repo := NewRideRepository()
	driverID := primitive.NewObjectID()

	first := createRide(t, repo)
	second := createRide(t, repo)

	if _, err := repo.Claim(context.Background(), first.ID, driverID); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	_, err := repo.Claim(context.Background(), second.ID, driverID)
	if !errors.Is(err, interfaces.ErrDriverBusy) {
		t.Fatalf("second claim: got %v, want ErrDriverBusy", err)
	}
}

func TestClaimMissingRide(t *testing.T) {
	t.Parallel()
	repo := NewRideRepository()

	_, err := repo.Claim(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	if !errors.Is(err, interfaces.ErrRideNotFound) {
		t.Fatalf("got %v, want ErrRideNotFound", err)
	}
}

func TestUpdateWithStatusStalePrecondition(t *testing.T) {
	t.Parallel()
	repo := NewRideRepository()
	ctx := context.Background()
	ride := createRide(t, repo)

	updates := map[string]interface{}{
		"status":              models.RideStatusCancelled,
		"active":              false,
		"cancelled_at":        time.Now(),
		"cancellation_reason": "test",
		"cancelled_by":        "customer",
		"driver_location":     nil,
	}

	if _, err := repo.UpdateWithStatus(ctx, ride.ID, models.RideStatusRequested, updates); err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, err := repo.UpdateWithStatus(ctx, ride.ID, models.RideStatusRequested, updates)
	if !errors.Is(err, interfaces.ErrStalePrecondition) {
		t.Fatalf("second update: got %v, want ErrStalePrecondition", err)
	}
}

func TestUpdateDriverLocationApplyIfNewer(t *testing.T) {
	t.Parallel()
	repo := NewRideRepository()
	ctx := context.Background()
	ride := createRide(t, repo)

	if _, err := repo.Claim(ctx, ride.ID, primitive.NewObjectID()); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	now := time.Now()
	fresh := &models.DriverTelemetry{Latitude: 23.80, Longitude: 90.41, Timestamp: now}
	stale := &models.DriverTelemetry{Latitude: 23.10, Longitude: 90.10, Timestamp: now.Add(-time.Minute)}

	if err := repo.UpdateDriverLocation(ctx, ride.ID, fresh); err != nil {
		t.Fatalf("fresh: %v", err)
	}
	if err := repo.UpdateDriverLocation(ctx, ride.ID, stale); err != nil {
		t.Fatalf("stale: %v", err)
	}

	got, err := repo.GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DriverLocation == nil || got.DriverLocation.Latitude != 23.80 {
		t.Error("stale telemetry overwrote fresher position")
	}
}

func TestGetByIDReturnsCopies(t *testing.T) {
	t.Parallel()
	repo := NewRideRepository()
	ctx := context.Background()
	ride := createRide(t, repo)

	first, err := repo.GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	first.Status = models.RideStatusCompleted

	second, err := repo.GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if second.Status != models.RideStatusRequested {
		t.Error("mutating a returned ride leaked into the repository")
	}
}

func TestCreateRejectsSecondActiveRideForCustomer(t *testing.T) {
	t.Parallel()
	repo := NewRideRepository()
	ctx := context.Background()

	first := createRide(t, repo)

	second := &models.Ride{
		CustomerID:  first.CustomerID,
		Pickup:      models.NewLocation(23.7330, 90.4172, "Motijheel"),
		Destination: models.NewLocation(23.8759, 90.3795, "Uttara Sector 7"),
		VehicleType: models.VehicleTypeCar,
		Status:      models.RideStatusRequested,
		OTP:         "5678",
	}
	if err := repo.Create(ctx, second); !errors.Is(err, interfaces.ErrCustomerBusy) {
		t.Fatalf("second create: got %v, want ErrCustomerBusy", err)
	}

	updates := map[string]interface{}{
		"status":              models.RideStatusCancelled,
		"active":              false,
		"cancelled_at":        time.Now(),
		"cancellation_reason": "changed plans",
		"cancelled_by":        "customer",
		"driver_location":     nil,
	}
	if _, err := repo.UpdateWithStatus(ctx, first.ID, models.RideStatusRequested, updates); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Terminal rides do not block a new request.
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
}

func TestGetNearbyRequestedFiltersAndSorts(t *testing.T) {
	t.Parallel()
	repo := NewRideRepository()
	ctx := context.Background()

	near := createRide(t, repo)
	accepted := createRide(t, repo)
	if _, err := repo.Claim(ctx, accepted.ID, primitive.NewObjectID()); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	rides, err := repo.GetNearbyRequested(ctx, 23.7925, 90.4078, 10)
	if err != nil {
		t.Fatalf("GetNearbyRequested: %v", err)
	}
	if len(rides) != 1 {
		t.Fatalf("rides: got %d, want 1 (accepted rides excluded)", len(rides))
	}
	if rides[0].ID != near.ID {
		t.Error("wrong ride returned")
	}
}
