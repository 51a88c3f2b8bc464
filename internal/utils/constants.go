package utils

import "time"

// Application Constants
const (
	AppName    = "Chalo"
	AppVersion = "1.0.0"

	// Default values
	DefaultCurrency = "BDT"
	DefaultTimeZone = "Asia/Dhaka"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Geo
	EarthRadiusKM = 6371.0

	// Ride Constants
	DefaultSearchRadiusKM = 10.0
	MaxSearchRadiusKM     = 50.0
	MaxRideDistanceKM     = 500.0
	OTPLength             = 4

	// Driver Constants
	PresenceStaleAfter           = 60 * time.Second
	DriverLocationUpdateInterval = 10 * time.Second

	// Surge Pricing
	MinSurgeMultiplier = 1.0
	MaxSurgeMultiplier = 5.0
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidInput       = "invalid input"
	ErrInternalServer     = "internal server error"
	ErrUnauthorized       = "unauthorized"
	ErrForbidden          = "forbidden"
	ErrNotFound           = "not found"
	ErrConflict           = "conflict"
	ErrValidationFailed   = "validation failed"
	ErrRideNotFound       = "ride not found"
	ErrNoDriversAvailable = "no drivers available"
)

// Payment methods accepted at ride request time. Settlement itself is
// handled outside the dispatch engine.
var PaymentMethods = []string{"cash", "card", "wallet"}

func IsValidPaymentMethod(method string) bool {
	for _, m := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}
