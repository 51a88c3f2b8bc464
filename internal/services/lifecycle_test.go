package services

import (
	"testing"
	"time"

	"chalo/internal/models"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to models.RideStatus
		want     bool
	}{
		{models.RideStatusRequested, models.RideStatusAccepted, true},
		{models.RideStatusRequested, models.RideStatusCancelled, true},
		{models.RideStatusRequested, models.RideStatusPickedUp, false},
		{models.RideStatusAccepted, models.RideStatusPickedUp, true},
		{models.RideStatusAccepted, models.RideStatusCancelled, true},
		{models.RideStatusAccepted, models.RideStatusCompleted, false},
		{models.RideStatusPickedUp, models.RideStatusInProgress, true},
		{models.RideStatusPickedUp, models.RideStatusCancelled, true},
		{models.RideStatusInProgress, models.RideStatusCompleted, true},
		{models.RideStatusInProgress, models.RideStatusCancelled, false},
		{models.RideStatusCompleted, models.RideStatusCancelled, false},
		{models.RideStatusCancelled, models.RideStatusRequested, false},
		{models.RideStatusCompleted, models.RideStatusCompleted, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s): got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTransitionToPickedUpRequiresMatchingOTP(t *testing.T) {
	t.Parallel()

	ride := &models.Ride{Status: models.RideStatusAccepted, OTP: "1234"}

	_, err := transitionUpdates(ride, TransitionInput{To: models.RideStatusPickedUp, OTP: "9999"})
	if KindOf(err) != KindOtpMismatch {
		t.Fatalf("wrong OTP: got kind %v, want %v", KindOf(err), KindOtpMismatch)
	}

	updates, err := transitionUpdates(ride, TransitionInput{To: models.RideStatusPickedUp, OTP: "1234"})
	if err != nil {
		t.Fatalf("matching OTP: %v", err)
	}
	if updates["otp_verified"] != true {
		t.Error("expected otp_verified to be set")
	}
	if _, ok := updates["picked_up_at"]; !ok {
		t.Error("expected picked_up_at to be set")
	}
}

func TestTransitionOTPVerifiedExactlyOnce(t *testing.T) {
	t.Parallel()

	ride := &models.Ride{Status: models.RideStatusAccepted, OTP: "1234", OTPVerified: true}

	_, err := transitionUpdates(ride, TransitionInput{To: models.RideStatusPickedUp, OTP: "1234"})
	if KindOf(err) != KindInvalidTransition {
		t.Fatalf("reused OTP: got kind %v, want %v", KindOf(err), KindInvalidTransition)
	}
}

func TestTransitionToCompletedClearsActiveAndLocation(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ride := &models.Ride{Status: models.RideStatusInProgress}

	updates, err := transitionUpdates(ride, TransitionInput{
		To:        models.RideStatusCompleted,
		FinalFare: 250,
		Now:       now,
	})
	if err != nil {
		t.Fatalf("transitionUpdates: %v", err)
	}

	if updates["active"] != false {
		t.Error("expected active=false")
	}
	if updates["fare.total_fare"] != 250.0 {
		t.Errorf("fare.total_fare: got %v, want 250", updates["fare.total_fare"])
	}
	if updates["completed_at"] != now {
		t.Errorf("completed_at: got %v, want %v", updates["completed_at"], now)
	}
	if loc, ok := updates["driver_location"]; !ok || loc != nil {
		t.Error("expected driver_location to be cleared")
	}
}

func TestTransitionToCompletedWithoutFinalFareKeepsEstimate(t *testing.T) {
	t.Parallel()

	ride := &models.Ride{Status: models.RideStatusInProgress, Fare: models.Fare{TotalFare: 120}}

	updates, err := transitionUpdates(ride, TransitionInput{To: models.RideStatusCompleted})
	if err != nil {
		t.Fatalf("transitionUpdates: %v", err)
	}
	if _, ok := updates["fare.total_fare"]; ok {
		t.Error("expected estimated fare to be kept when no final fare is given")
	}
}

func TestTransitionToCancelledRecordsWhoAndWhy(t *testing.T) {
	t.Parallel()

	ride := &models.Ride{Status: models.RideStatusAccepted}

	updates, err := transitionUpdates(ride, TransitionInput{
		To:          models.RideStatusCancelled,
		Reason:      "waited too long",
		CancelledBy: "customer",
	})
	if err != nil {
		t.Fatalf("transitionUpdates: %v", err)
	}

	if updates["cancellation_reason"] != "waited too long" {
		t.Errorf("cancellation_reason: got %v", updates["cancellation_reason"])
	}
	if updates["cancelled_by"] != "customer" {
		t.Errorf("cancelled_by: got %v", updates["cancelled_by"])
	}
	if updates["active"] != false {
		t.Error("expected active=false")
	}
}

func TestTransitionFromTerminalStatesRejected(t *testing.T) {
	t.Parallel()

	for _, status := range []models.RideStatus{models.RideStatusCompleted, models.RideStatusCancelled} {
		ride := &models.Ride{Status: status}
		_, err := transitionUpdates(ride, TransitionInput{To: models.RideStatusCancelled})
		if KindOf(err) != KindInvalidTransition {
			t.Errorf("from %s: got kind %v, want %v", status, KindOf(err), KindInvalidTransition)
		}
	}
}
