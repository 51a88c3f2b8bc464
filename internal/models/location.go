package models

import (
	"time"
)

// Location is stored as a GeoJSON point so MongoDB 2dsphere indexes can
// query it directly. Coordinates are [longitude, latitude].
type Location struct {
	Type        string    `json:"type" bson:"type" default:"Point"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"required,len=2"`
	Address     string    `json:"address" bson:"address"`
}

func NewLocation(lat, lng float64, address string) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{lng, lat},
		Address:     address,
	}
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) >= 2 {
		return l.Coordinates[1]
	}
	return 0
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) >= 1 {
		return l.Coordinates[0]
	}
	return 0
}

// DriverTelemetry is the latest known position of the assigned driver,
// present on a ride only while it is in an active status.
type DriverTelemetry struct {
	Latitude  float64   `json:"latitude" bson:"latitude"`
	Longitude float64   `json:"longitude" bson:"longitude"`
	Heading   float64   `json:"heading" bson:"heading"`
	Speed     float64   `json:"speed" bson:"speed"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
