package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type VehicleType string

const (
	RideStatusRequested  RideStatus = "requested"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusPickedUp   RideStatus = "picked_up"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"

	VehicleTypeBike VehicleType = "bike"
	VehicleTypeCNG  VehicleType = "cng"
	VehicleTypeCar  VehicleType = "car"
)

var VehicleTypes = []VehicleType{VehicleTypeBike, VehicleTypeCNG, VehicleTypeCar}

func IsValidVehicleType(v VehicleType) bool {
	for _, t := range VehicleTypes {
		if t == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is final; terminal rides accept no
// further transitions.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// HasDriverEnRoute reports whether driver telemetry should be tracked on
// the ride record.
func (s RideStatus) HasDriverEnRoute() bool {
	return s == RideStatusAccepted || s == RideStatusPickedUp || s == RideStatusInProgress
}

// Fare is the breakdown computed at request time. TotalFare may be
// overwritten once at completion when a positive final fare is supplied.
type Fare struct {
	BaseFare        float64 `json:"base_fare" bson:"base_fare"`
	DistanceFare    float64 `json:"distance_fare" bson:"distance_fare"`
	TimeFare        float64 `json:"time_fare" bson:"time_fare"`
	SurgeMultiplier float64 `json:"surge_multiplier" bson:"surge_multiplier" default:"1.0"`
	TotalFare       float64 `json:"total_fare" bson:"total_fare"`
}

type Ride struct {
	ID                 primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	CustomerID         primitive.ObjectID  `json:"customer_id" bson:"customer_id" validate:"required"`
	DriverID           *primitive.ObjectID `json:"driver_id" bson:"driver_id"`
	Pickup             Location            `json:"pickup" bson:"pickup" validate:"required"`
	Destination        Location            `json:"destination" bson:"destination" validate:"required"`
	VehicleType        VehicleType         `json:"vehicle_type" bson:"vehicle_type" validate:"required"`
	Status             RideStatus          `json:"status" bson:"status" default:"requested"`
	Fare               Fare                `json:"fare" bson:"fare"`
	OTP                string              `json:"otp,omitempty" bson:"otp"`
	OTPVerified        bool                `json:"otp_verified" bson:"otp_verified"`
	PaymentMethod      string              `json:"payment_method" bson:"payment_method"`
	PaymentStatus      string              `json:"payment_status" bson:"payment_status" default:"pending"`
	DriverLocation     *DriverTelemetry    `json:"driver_location,omitempty" bson:"driver_location"`
	EstimatedDistance  float64             `json:"estimated_distance" bson:"estimated_distance"` // kilometers
	EstimatedDuration  int                 `json:"estimated_duration" bson:"estimated_duration"` // minutes
	CancellationReason string              `json:"cancellation_reason,omitempty" bson:"cancellation_reason"`
	CancelledBy        string              `json:"cancelled_by,omitempty" bson:"cancelled_by"`

	// Active mirrors !Status.IsTerminal() so the store can answer "does X
	// have a non-terminal ride?" through an index instead of a scan, and
	// enforce one active ride per driver with a partial unique index.
	Active bool `json:"-" bson:"active"`

	RequestedAt time.Time  `json:"requested_at" bson:"requested_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" bson:"accepted_at"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty" bson:"picked_up_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// SanitizeFor strips fields the viewer must not see. The pickup code is
// only shown to the customer, who presents it to the driver in person.
func (r *Ride) SanitizeFor(viewerID primitive.ObjectID) *Ride {
	if r == nil || r.CustomerID == viewerID {
		return r
	}
	copied := *r
	copied.OTP = ""
	return &copied
}

// NearbyRide is a requested ride paired with its pickup distance from the
// querying driver's position.
type NearbyRide struct {
	Ride       *Ride   `json:"ride"`
	DistanceKM float64 `json:"distance_km"`
}
