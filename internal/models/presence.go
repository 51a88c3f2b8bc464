package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DriverPresence is the ephemeral per-driver record behind proximity
// queries. It lives only in memory and is rebuilt from the next location
// ping after a restart.
type DriverPresence struct {
	DriverID    primitive.ObjectID `json:"driver_id"`
	Latitude    float64            `json:"latitude"`
	Longitude   float64            `json:"longitude"`
	VehicleType VehicleType        `json:"vehicle_type"`
	Available   bool               `json:"available"`
	LastSeen    time.Time          `json:"last_seen"`

	// DistanceKM is populated on query results only.
	DistanceKM float64 `json:"distance_km,omitempty"`
}
