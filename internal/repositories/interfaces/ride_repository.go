package interfaces

import (
	"context"
	"errors"

	"chalo/internal/models"
	"chalo/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sentinel errors shared by all RideRepository implementations. The
// service layer maps them onto its own error taxonomy.
var (
	// ErrRideNotFound is returned when no ride matches the given id or query.
	ErrRideNotFound = errors.New("ride not found")

	// ErrClaimLost is returned when a conditional claim found the ride no
	// longer in requested state with an unset driver. The caller lost the
	// race; someone else got the ride.
	ErrClaimLost = errors.New("ride already claimed")

	// ErrDriverBusy is returned when a claim would give a driver a second
	// active ride.
	ErrDriverBusy = errors.New("driver already has an active ride")

	// ErrCustomerBusy is returned by Create when the customer already has
	// an active ride.
	ErrCustomerBusy = errors.New("customer already has an active ride")

	// ErrStalePrecondition is returned by guarded updates when the ride's
	// persisted status no longer matches the expected one.
	ErrStalePrecondition = errors.New("ride status precondition failed")
)

// RideRepository is the persistence boundary of the dispatch engine.
//
// Claim is the single operation that requires mutual exclusion: it must
// be a single atomic conditional write (status == requested AND
// driver_id unset), never a read-modify-write. UpdateWithStatus guards
// every other mutation against the expected current status, so a racing
// cancellation that commits first makes later transitions fail with
// ErrStalePrecondition instead of resurrecting a terminal ride.
//
// Create enforces at most one active ride per customer at the write
// itself (ErrCustomerBusy), so two concurrent requests from the same
// customer cannot both land between a check and an insert.
type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	Claim(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error)
	UpdateWithStatus(ctx context.Context, id primitive.ObjectID, expected models.RideStatus, updates map[string]interface{}) (*models.Ride, error)
	UpdateDriverLocation(ctx context.Context, id primitive.ObjectID, loc *models.DriverTelemetry) error

	GetNearbyRequested(ctx context.Context, lat, lng, radiusKM float64) ([]*models.Ride, error)
	GetActiveByCustomer(ctx context.Context, customerID primitive.ObjectID) (*models.Ride, error)
	GetActiveByDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error)

	GetByCustomer(ctx context.Context, customerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	GetByDriver(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
}
