package validators

import (
	"github.com/go-playground/validator/v10"

	"chalo/internal/models"
	"chalo/internal/utils"
)

type LocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Address   string  `json:"address" validate:"omitempty,max=255"`
}

type FareEstimateRequest struct {
	Pickup      LocationRequest `json:"pickup" validate:"required"`
	Destination LocationRequest `json:"destination" validate:"required"`
	VehicleType string          `json:"vehicle_type" validate:"omitempty,vehicle_type"`
}

type RideRequestRequest struct {
	Pickup        LocationRequest `json:"pickup" validate:"required"`
	Destination   LocationRequest `json:"destination" validate:"required"`
	VehicleType   string          `json:"vehicle_type" validate:"required,vehicle_type"`
	PaymentMethod string          `json:"payment_method" validate:"required,payment_method"`
}

type RideStatusRequest struct {
	Status    string  `json:"status" validate:"required,oneof=picked_up in_progress completed"`
	OTP       string  `json:"otp" validate:"omitempty,len=4,numeric"`
	FinalFare float64 `json:"final_fare" validate:"omitempty,min=0"`
}

type RideCancelRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

type DriverLocationRequest struct {
	Latitude    float64 `json:"latitude" validate:"latitude"`
	Longitude   float64 `json:"longitude" validate:"longitude"`
	Heading     float64 `json:"heading" validate:"omitempty,min=0,max=360"`
	Speed       float64 `json:"speed" validate:"omitempty,min=0"`
	VehicleType string  `json:"vehicle_type" validate:"omitempty,vehicle_type"`
	Timestamp   int64   `json:"timestamp" validate:"omitempty,min=0"`
}

func ValidateFareEstimateRequest(req *FareEstimateRequest) ValidationErrors {
	errors := ValidateStruct(req)
	return appendRouteErrors(errors, req.Pickup, req.Destination)
}

func ValidateRideRequest(req *RideRequestRequest) ValidationErrors {
	errors := ValidateStruct(req)
	return appendRouteErrors(errors, req.Pickup, req.Destination)
}

func ValidateRideStatusRequest(req *RideStatusRequest) ValidationErrors {
	errors := ValidateStruct(req)

	if req.Status == string(models.RideStatusPickedUp) && req.OTP == "" {
		errors = append(errors, ValidationError{
			Field:   "otp",
			Tag:     "required",
			Message: "OTP is required to confirm pickup",
		})
	}

	return errors
}

func ValidateRideCancelRequest(req *RideCancelRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateDriverLocationRequest(req *DriverLocationRequest) ValidationErrors {
	return ValidateStruct(req)
}

func appendRouteErrors(errors ValidationErrors, pickup, destination LocationRequest) ValidationErrors {
	if pickup.Latitude == destination.Latitude && pickup.Longitude == destination.Longitude {
		errors = append(errors, ValidationError{
			Field:   "destination",
			Tag:     "distinct",
			Message: "Pickup and destination must be different",
		})
	}

	distance := utils.CalculateDistance(pickup.Latitude, pickup.Longitude, destination.Latitude, destination.Longitude)
	if distance > utils.MaxRideDistanceKM {
		errors = append(errors, ValidationError{
			Field:   "destination",
			Tag:     "max",
			Message: "Ride distance exceeds the service area",
		})
	}

	return errors
}

func validateVehicleTypeTag(fl validator.FieldLevel) bool {
	return models.IsValidVehicleType(models.VehicleType(fl.Field().String()))
}

func validatePaymentMethodTag(fl validator.FieldLevel) bool {
	return utils.IsValidPaymentMethod(fl.Field().String())
}
