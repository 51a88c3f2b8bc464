package services

import (
	"crypto/subtle"
	"time"

	"chalo/internal/models"
)

// transitions lists, for each status, the statuses a ride may legally
// advance to. Cancellation is terminal and is not reachable once the
// trip is underway.
var transitions = map[models.RideStatus][]models.RideStatus{
	models.RideStatusRequested:  {models.RideStatusAccepted, models.RideStatusCancelled},
	models.RideStatusAccepted:   {models.RideStatusPickedUp, models.RideStatusCancelled},
	models.RideStatusPickedUp:   {models.RideStatusInProgress, models.RideStatusCancelled},
	models.RideStatusInProgress: {models.RideStatusCompleted},
	models.RideStatusCompleted:  {},
	models.RideStatusCancelled:  {},
}

func CanTransition(from, to models.RideStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionInput carries everything a driver-side status update may
// supply.
type TransitionInput struct {
	To          models.RideStatus
	OTP         string
	FinalFare   float64
	Reason      string
	CancelledBy string
	Now         time.Time
}

// transitionUpdates validates a transition against the ride's current
// state and returns the field updates to persist. It never mutates the
// ride; a failed precondition returns a typed error and nothing else.
func transitionUpdates(ride *models.Ride, in TransitionInput) (map[string]interface{}, error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	if !CanTransition(ride.Status, in.To) {
		return nil, newDomainError(KindInvalidTransition,
			"cannot transition ride from "+string(ride.Status)+" to "+string(in.To))
	}

	updates := map[string]interface{}{
		"status": in.To,
	}

	switch in.To {
	case models.RideStatusPickedUp:
		// The OTP proves the customer is physically present at pickup.
		// It is verified exactly once and never regenerated.
		if ride.OTPVerified {
			return nil, newDomainError(KindInvalidTransition, "pickup code already used")
		}
		if subtle.ConstantTimeCompare([]byte(in.OTP), []byte(ride.OTP)) != 1 {
			return nil, newDomainError(KindOtpMismatch, "pickup verification code does not match")
		}
		updates["otp_verified"] = true
		updates["picked_up_at"] = in.Now

	case models.RideStatusInProgress:
		updates["started_at"] = in.Now

	case models.RideStatusCompleted:
		if in.FinalFare > 0 {
			updates["fare.total_fare"] = in.FinalFare
		}
		updates["active"] = false
		updates["completed_at"] = in.Now
		updates["driver_location"] = nil

	case models.RideStatusCancelled:
		updates["active"] = false
		updates["cancelled_at"] = in.Now
		updates["cancellation_reason"] = in.Reason
		updates["cancelled_by"] = in.CancelledBy
		updates["driver_location"] = nil
	}

	return updates, nil
}
