package services

import (
	"chalo/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventPublisher is the engine's view of the real-time fan-out channel.
// Publishing is best effort: a failed or dropped delivery never fails
// the ride mutation that produced it, the store stays the source of
// truth.
type EventPublisher interface {
	// BroadcastRideStatus fans a status transition out to the ride's
	// room, in the order transitions were committed.
	BroadcastRideStatus(rideID primitive.ObjectID, status models.RideStatus, message string)

	// BroadcastDriverLocation fans live telemetry out to the ride's
	// room. excludeConn suppresses the echo back to the sending
	// connection; pass "" when the update did not arrive over a socket.
	BroadcastDriverLocation(rideID, driverID primitive.ObjectID, loc *models.DriverTelemetry, excludeConn string)

	// NotifyNewRide pushes a fresh ride request to nearby eligible
	// drivers' personal channels.
	NotifyNewRide(driverIDs []primitive.ObjectID, ride *models.Ride)
}

// NopPublisher discards all events. Used when no gateway is attached.
type NopPublisher struct{}

func (NopPublisher) BroadcastRideStatus(primitive.ObjectID, models.RideStatus, string) {}
func (NopPublisher) BroadcastDriverLocation(primitive.ObjectID, primitive.ObjectID, *models.DriverTelemetry, string) {
}
func (NopPublisher) NotifyNewRide([]primitive.ObjectID, *models.Ride) {}
