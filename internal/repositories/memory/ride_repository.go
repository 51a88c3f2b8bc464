package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chalo/internal/models"
	"chalo/internal/repositories/interfaces"
	"chalo/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// rideRepository is a mutex-guarded in-memory implementation used by the
// test suite and local development. It mirrors the conditional-write
// semantics of the MongoDB implementation: Claim and UpdateWithStatus
// check their preconditions and mutate under one lock, so the engine's
// exclusivity guarantees hold under real goroutine concurrency.
type rideRepository struct {
	mu    sync.Mutex
	rides map[primitive.ObjectID]*models.Ride
}

func NewRideRepository() interfaces.RideRepository {
	return &rideRepository{
		rides: make(map[primitive.ObjectID]*models.Ride),
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !ride.Status.IsTerminal() {
		for _, other := range r.rides {
			if other.Active && other.CustomerID == ride.CustomerID {
				return interfaces.ErrCustomerBusy
			}
		}
	}

	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.RequestedAt = now
	ride.CreatedAt = now
	ride.UpdatedAt = now
	ride.Active = !ride.Status.IsTerminal()

	r.rides[ride.ID] = cloneRide(ride)

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok {
		return nil, interfaces.ErrRideNotFound
	}

	return cloneRide(ride), nil
}

func (r *rideRepository) Claim(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[rideID]
	if !ok {
		return nil, interfaces.ErrRideNotFound
	}

	if ride.Status != models.RideStatusRequested || ride.DriverID != nil {
		return nil, interfaces.ErrClaimLost
	}

	for _, other := range r.rides {
		if other.Active && other.DriverID != nil && *other.DriverID == driverID {
			return nil, interfaces.ErrDriverBusy
		}
	}

	now := time.Now()
	id := driverID
	ride.DriverID = &id
	ride.Status = models.RideStatusAccepted
	ride.AcceptedAt = &now
	ride.UpdatedAt = now

	return cloneRide(ride), nil
}

func (r *rideRepository) UpdateWithStatus(ctx context.Context, id primitive.ObjectID, expected models.RideStatus, updates map[string]interface{}) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok {
		return nil, interfaces.ErrRideNotFound
	}

	if ride.Status != expected {
		return nil, interfaces.ErrStalePrecondition
	}

	if err := applyUpdates(ride, updates); err != nil {
		return nil, err
	}
	ride.UpdatedAt = time.Now()

	return cloneRide(ride), nil
}

func (r *rideRepository) UpdateDriverLocation(ctx context.Context, id primitive.ObjectID, loc *models.DriverTelemetry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok {
		return interfaces.ErrRideNotFound
	}

	if !ride.Status.HasDriverEnRoute() {
		return nil
	}

	// Apply-if-newer: a delayed retry never overwrites fresher telemetry.
	if ride.DriverLocation != nil && loc.Timestamp.Before(ride.DriverLocation.Timestamp) {
		return nil
	}

	copied := *loc
	ride.DriverLocation = &copied
	ride.UpdatedAt = time.Now()

	return nil
}

func (r *rideRepository) GetNearbyRequested(ctx context.Context, lat, lng, radiusKM float64) ([]*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type candidate struct {
		ride     *models.Ride
		distance float64
	}

	var candidates []candidate
	for _, ride := range r.rides {
		if ride.Status != models.RideStatusRequested {
			continue
		}
		distance := utils.CalculateDistance(lat, lng, ride.Pickup.Latitude(), ride.Pickup.Longitude())
		if distance > radiusKM {
			continue
		}
		candidates = append(candidates, candidate{ride: cloneRide(ride), distance: distance})
	}

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].distance != candidates[b].distance {
			return candidates[a].distance < candidates[b].distance
		}
		return candidates[a].ride.ID.Hex() < candidates[b].ride.ID.Hex()
	})

	rides := make([]*models.Ride, 0, len(candidates))
	for _, c := range candidates {
		rides = append(rides, c.ride)
	}

	return rides, nil
}

func (r *rideRepository) GetActiveByCustomer(ctx context.Context, customerID primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ride := range r.rides {
		if ride.Active && ride.CustomerID == customerID {
			return cloneRide(ride), nil
		}
	}

	return nil, interfaces.ErrRideNotFound
}

func (r *rideRepository) GetActiveByDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ride := range r.rides {
		if ride.Active && ride.DriverID != nil && *ride.DriverID == driverID {
			return cloneRide(ride), nil
		}
	}

	return nil, interfaces.ErrRideNotFound
}

func (r *rideRepository) GetByCustomer(ctx context.Context, customerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.list(func(ride *models.Ride) bool {
		return ride.CustomerID == customerID
	}, params)
}

func (r *rideRepository) GetByDriver(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.list(func(ride *models.Ride) bool {
		return ride.DriverID != nil && *ride.DriverID == driverID
	}, params)
}

func (r *rideRepository) list(match func(*models.Ride) bool, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*models.Ride
	for _, ride := range r.rides {
		if match(ride) {
			all = append(all, cloneRide(ride))
		}
	}

	sort.Slice(all, func(a, b int) bool {
		if params != nil && params.Order == "asc" {
			return all[a].CreatedAt.Before(all[b].CreatedAt)
		}
		return all[a].CreatedAt.After(all[b].CreatedAt)
	})

	total := int64(len(all))
	if params == nil {
		return all, total, nil
	}

	start := params.GetSkip()
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + params.GetLimit()
	if end > len(all) {
		end = len(all)
	}

	return all[start:end], total, nil
}

// applyUpdates interprets the same field-keyed update documents the
// MongoDB implementation passes to $set.
func applyUpdates(ride *models.Ride, updates map[string]interface{}) error {
	for field, value := range updates {
		switch field {
		case "status":
			ride.Status = value.(models.RideStatus)
		case "active":
			ride.Active = value.(bool)
		case "otp_verified":
			ride.OTPVerified = value.(bool)
		case "fare.total_fare":
			ride.Fare.TotalFare = value.(float64)
		case "payment_status":
			ride.PaymentStatus = value.(string)
		case "cancellation_reason":
			ride.CancellationReason = value.(string)
		case "cancelled_by":
			ride.CancelledBy = value.(string)
		case "driver_location":
			if value == nil {
				ride.DriverLocation = nil
			} else {
				loc := value.(*models.DriverTelemetry)
				copied := *loc
				ride.DriverLocation = &copied
			}
		case "picked_up_at":
			t := value.(time.Time)
			ride.PickedUpAt = &t
		case "started_at":
			t := value.(time.Time)
			ride.StartedAt = &t
		case "completed_at":
			t := value.(time.Time)
			ride.CompletedAt = &t
		case "cancelled_at":
			t := value.(time.Time)
			ride.CancelledAt = &t
		case "updated_at":
			ride.UpdatedAt = value.(time.Time)
		default:
			return fmt.Errorf("unsupported update field %q", field)
		}
	}

	return nil
}

func cloneRide(ride *models.Ride) *models.Ride {
	copied := *ride
	if ride.DriverID != nil {
		id := *ride.DriverID
		copied.DriverID = &id
	}
	if ride.DriverLocation != nil {
		loc := *ride.DriverLocation
		copied.DriverLocation = &loc
	}
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	copied.AcceptedAt = copyTime(ride.AcceptedAt)
	copied.PickedUpAt = copyTime(ride.PickedUpAt)
	copied.StartedAt = copyTime(ride.StartedAt)
	copied.CompletedAt = copyTime(ride.CompletedAt)
	copied.CancelledAt = copyTime(ride.CancelledAt)
	copied.Pickup.Coordinates = append([]float64(nil), ride.Pickup.Coordinates...)
	copied.Destination.Coordinates = append([]float64(nil), ride.Destination.Coordinates...)

	return &copied
}
