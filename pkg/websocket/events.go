package websocket

import (
	"encoding/json"
	"errors"
	"time"
)

// Inbound message types.
const (
	TypeJoinRide         = "join_ride"
	TypeLeaveRide        = "leave_ride"
	TypeLocationUpdate   = "location_update"
	TypeRideStatusUpdate = "ride_status_update"
)

// Outbound event types.
const (
	EventWelcome           = "welcome"
	EventJoinedRide        = "joined_ride"
	EventLeftRide          = "left_ride"
	EventDriverLocation    = "driver_location"
	EventRideStatusChanged = "ride_status_changed"
	EventNewRideRequest    = "new_ride_request"
	EventError             = "error"
)

// Envelope is the wire frame for inbound messages. Data is decoded per
// Type; unknown types are answered with an error event rather than
// dropped silently.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event is the wire frame for outbound messages.
type Event struct {
	Type      string      `json:"type"`
	RideID    string      `json:"ride_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func newEvent(eventType, rideID string, data interface{}) Event {
	return Event{
		Type:      eventType,
		RideID:    rideID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

type JoinRidePayload struct {
	RideID string `json:"ride_id"`
}

func (p *JoinRidePayload) Validate() error {
	if p.RideID == "" {
		return errors.New("ride_id is required")
	}
	return nil
}

type LeaveRidePayload struct {
	RideID string `json:"ride_id"`
}

func (p *LeaveRidePayload) Validate() error {
	if p.RideID == "" {
		return errors.New("ride_id is required")
	}
	return nil
}

// LocationUpdatePayload carries driver telemetry. Timestamp is unix
// seconds from the sender's clock so delayed retries can be ordered.
type LocationUpdatePayload struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Heading     float64 `json:"heading,omitempty"`
	Speed       float64 `json:"speed,omitempty"`
	VehicleType string  `json:"vehicle_type,omitempty"`
	Timestamp   int64   `json:"timestamp,omitempty"`
}

func (p *LocationUpdatePayload) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return errors.New("invalid coordinates")
	}
	return nil
}

type RideStatusUpdatePayload struct {
	RideID    string  `json:"ride_id"`
	Status    string  `json:"status"`
	OTP       string  `json:"otp,omitempty"`
	FinalFare float64 `json:"final_fare,omitempty"`
}

func (p *RideStatusUpdatePayload) Validate() error {
	if p.RideID == "" {
		return errors.New("ride_id is required")
	}
	if p.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
