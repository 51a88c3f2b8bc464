package validators

import "testing"

func validRideRequest() RideRequestRequest {
	return RideRequestRequest{
		Pickup:        LocationRequest{Latitude: 23.7925, Longitude: 90.4078, Address: "Gulshan 1"},
		Destination:   LocationRequest{Latitude: 23.7461, Longitude: 90.3742, Address: "Dhanmondi 27"},
		VehicleType:   "bike",
		PaymentMethod: "cash",
	}
}

func TestValidateRideRequestAccepts(t *testing.T) {
	t.Parallel()
	req := validRideRequest()
	if errs := ValidateRideRequest(&req); len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestValidateRideRequestRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*RideRequestRequest)
	}{
		{"bad vehicle type", func(r *RideRequestRequest) { r.VehicleType = "rocket" }},
		{"bad payment method", func(r *RideRequestRequest) { r.PaymentMethod = "cheque" }},
		{"bad latitude", func(r *RideRequestRequest) { r.Pickup.Latitude = 123 }},
		{"bad longitude", func(r *RideRequestRequest) { r.Destination.Longitude = -999 }},
		{"same point", func(r *RideRequestRequest) { r.Destination = r.Pickup }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := validRideRequest()
			tc.mutate(&req)
			if errs := ValidateRideRequest(&req); len(errs) == 0 {
				t.Error("expected validation errors")
			}
		})
	}
}

func TestValidateRideStatusRequestRequiresOTPForPickup(t *testing.T) {
	t.Parallel()

	req := RideStatusRequest{Status: "picked_up"}
	if errs := ValidateRideStatusRequest(&req); len(errs) == 0 {
		t.Error("expected OTP requirement for pickup")
	}

	req.OTP = "1234"
	if errs := ValidateRideStatusRequest(&req); len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestValidateRideStatusRequestRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	req := RideStatusRequest{Status: "levitating"}
	if errs := ValidateRideStatusRequest(&req); len(errs) == 0 {
		t.Error("expected errors for unknown status")
	}
}

func TestValidateRideCancelRequestRequiresReason(t *testing.T) {
	t.Parallel()

	req := RideCancelRequest{}
	if errs := ValidateRideCancelRequest(&req); len(errs) == 0 {
		t.Error("expected reason requirement")
	}
}

func TestValidateDriverLocationRequest(t *testing.T) {
	t.Parallel()

	ok := DriverLocationRequest{Latitude: 23.79, Longitude: 90.40, Heading: 180, Speed: 22}
	if errs := ValidateDriverLocationRequest(&ok); len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	bad := DriverLocationRequest{Latitude: 91, Longitude: 90.40}
	if errs := ValidateDriverLocationRequest(&bad); len(errs) == 0 {
		t.Error("expected errors for out-of-range latitude")
	}
}
