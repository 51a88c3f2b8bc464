package services

import (
	"context"
	"errors"
	"time"

	"chalo/internal/config"
	"chalo/internal/geo"
	"chalo/internal/metrics"
	"chalo/internal/models"
	"chalo/internal/repositories/interfaces"
	"chalo/internal/utils"
	"chalo/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideService orchestrates the request → match → accept flow and drives
// rides through their lifecycle. Acceptance exclusivity lives in the
// repository's Claim; everything here re-checks preconditions against
// the latest persisted state before mutating.
type RideService interface {
	EstimateFare(ctx context.Context, pickup, destination models.Location, vehicleType models.VehicleType) (map[models.VehicleType]*models.Fare, error)
	RequestRide(ctx context.Context, customerID primitive.ObjectID, pickup, destination models.Location, vehicleType models.VehicleType, paymentMethod string) (*models.Ride, error)
	AcceptRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error)
	UpdateRideStatus(ctx context.Context, driverID, rideID primitive.ObjectID, status models.RideStatus, otp string, finalFare float64) (*models.Ride, error)
	CancelRide(ctx context.Context, callerID, rideID primitive.ObjectID, reason string) (*models.Ride, error)
	UpdateDriverLocation(ctx context.Context, driverID primitive.ObjectID, vehicleType models.VehicleType, loc *models.DriverTelemetry, excludeConn string) error
	ListNearbyRides(ctx context.Context, lat, lng, radiusKM float64) ([]*models.NearbyRide, error)
	GetRide(ctx context.Context, callerID, rideID primitive.ObjectID) (*models.Ride, error)
	GetRideHistory(ctx context.Context, userID primitive.ObjectID, role string, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	AuthorizeParticipant(ctx context.Context, userID, rideID primitive.ObjectID) error
}

type rideService struct {
	rides  interfaces.RideRepository
	fares  FareService
	geo    *geo.Index
	events EventPublisher
	cfg    *config.DispatchConfig
	logger *logger.Logger
}

func NewRideService(rides interfaces.RideRepository, fares FareService, geoIndex *geo.Index, events EventPublisher, cfg *config.DispatchConfig, log *logger.Logger) RideService {
	if events == nil {
		events = NopPublisher{}
	}

	return &rideService{
		rides:  rides,
		fares:  fares,
		geo:    geoIndex,
		events: events,
		cfg:    cfg,
		logger: log,
	}
}

func (s *rideService) EstimateFare(ctx context.Context, pickup, destination models.Location, vehicleType models.VehicleType) (map[models.VehicleType]*models.Fare, error) {
	distanceKM, err := s.validateRoute(pickup, destination)
	if err != nil {
		return nil, err
	}

	if vehicleType != "" {
		durationMin := float64(utils.EstimateETAMinutes(distanceKM, s.fares.AvgSpeedKMH(vehicleType)))
		fare, err := s.fares.Estimate(distanceKM, durationMin, vehicleType, s.cfg.SurgeMultiplier)
		if err != nil {
			return nil, err
		}
		return map[models.VehicleType]*models.Fare{vehicleType: fare}, nil
	}

	fares := make(map[models.VehicleType]*models.Fare, len(models.VehicleTypes))
	for _, vt := range models.VehicleTypes {
		durationMin := float64(utils.EstimateETAMinutes(distanceKM, s.fares.AvgSpeedKMH(vt)))
		fare, err := s.fares.Estimate(distanceKM, durationMin, vt, s.cfg.SurgeMultiplier)
		if err != nil {
			return nil, err
		}
		fares[vt] = fare
	}

	return fares, nil
}

func (s *rideService) RequestRide(ctx context.Context, customerID primitive.ObjectID, pickup, destination models.Location, vehicleType models.VehicleType, paymentMethod string) (*models.Ride, error) {
	if !models.IsValidVehicleType(vehicleType) {
		return nil, newDomainError(KindValidation, "invalid vehicle type: "+string(vehicleType))
	}
	if !utils.IsValidPaymentMethod(paymentMethod) {
		return nil, newDomainError(KindValidation, "invalid payment method: "+paymentMethod)
	}

	distanceKM, err := s.validateRoute(pickup, destination)
	if err != nil {
		return nil, err
	}

	if existing, err := s.rides.GetActiveByCustomer(ctx, customerID); err == nil {
		return nil, newDomainError(KindConflict, "customer already has an active ride").withRide(existing)
	} else if !errors.Is(err, interfaces.ErrRideNotFound) {
		return nil, err
	}

	durationMin := utils.EstimateETAMinutes(distanceKM, s.fares.AvgSpeedKMH(vehicleType))
	fare, err := s.fares.Estimate(distanceKM, float64(durationMin), vehicleType, s.cfg.SurgeMultiplier)
	if err != nil {
		return nil, err
	}

	ride := &models.Ride{
		CustomerID:        customerID,
		Pickup:            pickup,
		Destination:       destination,
		VehicleType:       vehicleType,
		Status:            models.RideStatusRequested,
		Fare:              *fare,
		OTP:               utils.GenerateOTP(),
		PaymentMethod:     paymentMethod,
		PaymentStatus:     "pending",
		EstimatedDistance: distanceKM,
		EstimatedDuration: durationMin,
	}

	// The pre-check above is a fast path; the store enforces the rule at
	// the insert itself, so a concurrent double-submit loses here.
	if err := s.rides.Create(ctx, ride); err != nil {
		if errors.Is(err, interfaces.ErrCustomerBusy) {
			existing, getErr := s.rides.GetActiveByCustomer(ctx, customerID)
			if getErr != nil {
				existing = nil
			}
			return nil, newDomainError(KindConflict, "customer already has an active ride").withRide(existing)
		}
		return nil, err
	}

	metrics.RidesRequested.Inc()
	s.logger.WithRideID(ride.ID).WithUserID(customerID).
		WithField("vehicle_type", string(vehicleType)).
		Info("Ride requested")

	s.notifyNearbyDrivers(ride)

	return ride, nil
}

// AcceptRide claims a ride for a driver. Exclusivity comes from a single
// conditional write in the store; of N concurrent attempts exactly one
// succeeds and the rest surface a conflict the caller treats as
// "someone else got it".
func (s *rideService) AcceptRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error) {
	if active, err := s.rides.GetActiveByDriver(ctx, driverID); err == nil {
		return nil, newDomainError(KindConflict, "driver already has an active ride").withRide(active)
	} else if !errors.Is(err, interfaces.ErrRideNotFound) {
		return nil, err
	}

	ride, err := s.rides.Claim(ctx, rideID, driverID)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrRideNotFound):
			return nil, newDomainError(KindNotFound, "ride not found")
		case errors.Is(err, interfaces.ErrClaimLost):
			metrics.AcceptConflicts.Inc()
			current, getErr := s.rides.GetByID(ctx, rideID)
			if getErr != nil {
				current = nil
			}
			return nil, newDomainError(KindConflict, "ride already accepted by another driver").withRide(current)
		case errors.Is(err, interfaces.ErrDriverBusy):
			metrics.AcceptConflicts.Inc()
			return nil, newDomainError(KindConflict, "driver already has an active ride")
		default:
			return nil, err
		}
	}

	s.geo.MarkUnavailable(driverID)
	metrics.RidesAccepted.Inc()
	s.logger.WithRideID(ride.ID).WithDriverID(driverID).Info("Ride accepted")

	s.events.BroadcastRideStatus(ride.ID, ride.Status, "driver accepted the ride")

	return ride, nil
}

func (s *rideService) UpdateRideStatus(ctx context.Context, driverID, rideID primitive.ObjectID, status models.RideStatus, otp string, finalFare float64) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrRideNotFound) {
			return nil, newDomainError(KindNotFound, "ride not found")
		}
		return nil, err
	}

	if ride.DriverID == nil || *ride.DriverID != driverID {
		return ride, newDomainError(KindAuthorization, "caller is not the assigned driver").withRide(ride)
	}

	updates, err := transitionUpdates(ride, TransitionInput{
		To:        status,
		OTP:       otp,
		FinalFare: finalFare,
	})
	if err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) {
			return ride, domainErr.withRide(ride)
		}
		return ride, err
	}

	updated, err := s.rides.UpdateWithStatus(ctx, rideID, ride.Status, updates)
	if err != nil {
		return s.mapGuardedUpdateError(ctx, rideID, err)
	}

	if status == models.RideStatusCompleted {
		s.geo.MarkAvailable(driverID)
		metrics.RidesCompleted.Inc()
	}

	s.logger.LogRideEvent(rideID, string(status), map[string]interface{}{
		"driver_id": driverID.Hex(),
	})

	s.events.BroadcastRideStatus(updated.ID, updated.Status, statusMessage(updated.Status))

	return updated, nil
}

func (s *rideService) CancelRide(ctx context.Context, callerID, rideID primitive.ObjectID, reason string) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrRideNotFound) {
			return nil, newDomainError(KindNotFound, "ride not found")
		}
		return nil, err
	}

	cancelledBy := ""
	switch {
	case ride.CustomerID == callerID:
		cancelledBy = "customer"
	case ride.DriverID != nil && *ride.DriverID == callerID:
		cancelledBy = "driver"
	default:
		return ride, newDomainError(KindAuthorization, "caller is not a participant of this ride").withRide(ride)
	}

	updates, err := transitionUpdates(ride, TransitionInput{
		To:          models.RideStatusCancelled,
		Reason:      reason,
		CancelledBy: cancelledBy,
	})
	if err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) {
			return ride, domainErr.withRide(ride)
		}
		return ride, err
	}

	updated, err := s.rides.UpdateWithStatus(ctx, rideID, ride.Status, updates)
	if err != nil {
		return s.mapGuardedUpdateError(ctx, rideID, err)
	}

	if updated.DriverID != nil {
		s.geo.MarkAvailable(*updated.DriverID)
	}

	metrics.RidesCancelled.Inc()
	s.logger.LogRideEvent(rideID, "cancelled", map[string]interface{}{
		"cancelled_by": cancelledBy,
		"reason":       reason,
	})

	s.events.BroadcastRideStatus(updated.ID, updated.Status, "ride cancelled: "+reason)

	return updated, nil
}

func (s *rideService) UpdateDriverLocation(ctx context.Context, driverID primitive.ObjectID, vehicleType models.VehicleType, loc *models.DriverTelemetry, excludeConn string) error {
	if !utils.IsValidCoordinates(loc.Latitude, loc.Longitude) {
		return newDomainError(KindValidation, "invalid coordinates")
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now()
	}

	// Out-of-order retries are dropped here; only the freshest position
	// survives per driver.
	applied := s.geo.Upsert(driverID, loc.Latitude, loc.Longitude, vehicleType, loc.Timestamp)
	if !applied {
		return nil
	}

	ride, err := s.rides.GetActiveByDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, interfaces.ErrRideNotFound) {
			return nil
		}
		return err
	}

	// The upsert above may have just created the entry as available (first
	// ping after a restart, or a driver who accepted before ever pinging);
	// the active ride is the source of truth.
	s.geo.MarkUnavailable(driverID)

	if !ride.Status.HasDriverEnRoute() {
		return nil
	}

	if err := s.rides.UpdateDriverLocation(ctx, ride.ID, loc); err != nil {
		return err
	}

	s.events.BroadcastDriverLocation(ride.ID, driverID, loc, excludeConn)

	return nil
}

func (s *rideService) ListNearbyRides(ctx context.Context, lat, lng, radiusKM float64) ([]*models.NearbyRide, error) {
	if !utils.IsValidCoordinates(lat, lng) {
		return nil, newDomainError(KindValidation, "invalid coordinates")
	}
	if radiusKM <= 0 {
		radiusKM = s.cfg.SearchRadiusKM
	}
	if radiusKM > s.cfg.MaxSearchRadiusKM {
		radiusKM = s.cfg.MaxSearchRadiusKM
	}

	rides, err := s.rides.GetNearbyRequested(ctx, lat, lng, radiusKM)
	if err != nil {
		return nil, err
	}

	nearby := make([]*models.NearbyRide, 0, len(rides))
	for _, ride := range rides {
		// Listings go to drivers who have not claimed the ride; the
		// pickup code stays with the customer.
		nearby = append(nearby, &models.NearbyRide{
			Ride:       ride.SanitizeFor(primitive.NilObjectID),
			DistanceKM: utils.CalculateDistance(lat, lng, ride.Pickup.Latitude(), ride.Pickup.Longitude()),
		})
	}

	return nearby, nil
}

func (s *rideService) GetRide(ctx context.Context, callerID, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrRideNotFound) {
			return nil, newDomainError(KindNotFound, "ride not found")
		}
		return nil, err
	}

	if err := s.authorizeParticipant(ride, callerID); err != nil {
		return nil, err
	}

	return ride, nil
}

func (s *rideService) GetRideHistory(ctx context.Context, userID primitive.ObjectID, role string, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	if role == "driver" {
		return s.rides.GetByDriver(ctx, userID, params)
	}
	return s.rides.GetByCustomer(ctx, userID, params)
}

// AuthorizeParticipant reports whether the user is the customer or the
// assigned driver on the ride. The realtime gateway uses it to gate
// room joins.
func (s *rideService) AuthorizeParticipant(ctx context.Context, userID, rideID primitive.ObjectID) error {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrRideNotFound) {
			return newDomainError(KindNotFound, "ride not found")
		}
		return err
	}

	return s.authorizeParticipant(ride, userID)
}

func (s *rideService) authorizeParticipant(ride *models.Ride, userID primitive.ObjectID) error {
	if ride.CustomerID == userID {
		return nil
	}
	if ride.DriverID != nil && *ride.DriverID == userID {
		return nil
	}
	return newDomainError(KindAuthorization, "caller is not a participant of this ride")
}

func (s *rideService) validateRoute(pickup, destination models.Location) (float64, error) {
	if !utils.IsValidCoordinates(pickup.Latitude(), pickup.Longitude()) {
		return 0, newDomainError(KindValidation, "invalid pickup coordinates")
	}
	if !utils.IsValidCoordinates(destination.Latitude(), destination.Longitude()) {
		return 0, newDomainError(KindValidation, "invalid destination coordinates")
	}

	distanceKM := utils.CalculateDistance(
		pickup.Latitude(), pickup.Longitude(),
		destination.Latitude(), destination.Longitude(),
	)
	if distanceKM <= 0 {
		return 0, newDomainError(KindValidation, "pickup and destination must differ")
	}
	if distanceKM > utils.MaxRideDistanceKM {
		return 0, newDomainError(KindValidation, "ride distance exceeds the service area")
	}

	return distanceKM, nil
}

// mapGuardedUpdateError refetches the ride so the caller sees the state
// that beat them, then classifies the failure.
func (s *rideService) mapGuardedUpdateError(ctx context.Context, rideID primitive.ObjectID, err error) (*models.Ride, error) {
	if errors.Is(err, interfaces.ErrStalePrecondition) {
		current, getErr := s.rides.GetByID(ctx, rideID)
		if getErr != nil {
			current = nil
		}
		return current, newDomainError(KindInvalidTransition, "ride state changed, refetch and retry").withRide(current)
	}
	if errors.Is(err, interfaces.ErrRideNotFound) {
		return nil, newDomainError(KindNotFound, "ride not found")
	}
	return nil, err
}

// notifyNearbyDrivers pushes the new request to available drivers of the
// matching vehicle type around the pickup point. Drivers still discover
// rides by polling; this push is an optimization, not a delivery
// guarantee.
func (s *rideService) notifyNearbyDrivers(ride *models.Ride) {
	candidates := s.geo.QueryNearby(
		ride.Pickup.Latitude(), ride.Pickup.Longitude(),
		s.cfg.SearchRadiusKM,
		geo.Filter{VehicleType: ride.VehicleType, AvailableOnly: true},
	)
	if len(candidates) == 0 {
		return
	}

	driverIDs := make([]primitive.ObjectID, 0, len(candidates))
	for _, candidate := range candidates {
		driverIDs = append(driverIDs, candidate.DriverID)
	}

	s.events.NotifyNewRide(driverIDs, ride)
}

func statusMessage(status models.RideStatus) string {
	switch status {
	case models.RideStatusAccepted:
		return "driver accepted the ride"
	case models.RideStatusPickedUp:
		return "driver picked up the customer"
	case models.RideStatusInProgress:
		return "ride is in progress"
	case models.RideStatusCompleted:
		return "ride completed"
	case models.RideStatusCancelled:
		return "ride cancelled"
	default:
		return "ride " + string(status)
	}
}
