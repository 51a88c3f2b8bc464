package handlers

import (
	"net/http"
	"strconv"
	"time"

	"chalo/internal/models"
	"chalo/internal/services"
	"chalo/internal/utils"
	"chalo/internal/validators"
	"chalo/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService services.RideService
	logger      *logger.Logger
}

func NewRideHandler(rideService services.RideService, log *logger.Logger) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		logger:      log,
	}
}

// EstimateFare returns fare breakdowns for a route, either for one
// vehicle type or all of them.
func (h *RideHandler) EstimateFare(c *gin.Context) {
	var request validators.FareEstimateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if errs := validators.ValidateFareEstimateRequest(&request); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	pickup := models.NewLocation(request.Pickup.Latitude, request.Pickup.Longitude, request.Pickup.Address)
	destination := models.NewLocation(request.Destination.Latitude, request.Destination.Longitude, request.Destination.Address)

	fares, err := h.rideService.EstimateFare(c.Request.Context(), pickup, destination, models.VehicleType(request.VehicleType))
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Fare estimated successfully", gin.H{"fares": fares})
}

// RequestRide creates a ride request and notifies nearby drivers.
func (h *RideHandler) RequestRide(c *gin.Context) {
	customerID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	var request validators.RideRequestRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if errs := validators.ValidateRideRequest(&request); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	pickup := models.NewLocation(request.Pickup.Latitude, request.Pickup.Longitude, request.Pickup.Address)
	destination := models.NewLocation(request.Destination.Latitude, request.Destination.Longitude, request.Destination.Address)

	ride, err := h.rideService.RequestRide(
		c.Request.Context(),
		customerID,
		pickup,
		destination,
		models.VehicleType(request.VehicleType),
		request.PaymentMethod,
	)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride requested successfully", ride)
}

// GetNearbyRides lists open requests around the driver's position.
func (h *RideHandler) GetNearbyRides(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid latitude")
		return
	}

	lng, err := strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid longitude")
		return
	}

	radiusKM := 0.0
	if raw := c.Query("radius_km"); raw != "" {
		radiusKM, err = strconv.ParseFloat(raw, 64)
		if err != nil || radiusKM < 0 {
			utils.BadRequestResponse(c, "Invalid radius_km")
			return
		}
	}

	rides, err := h.rideService.ListNearbyRides(c.Request.Context(), lat, lng, radiusKM)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Nearby rides retrieved successfully", gin.H{
		"rides": rides,
		"count": len(rides),
	})
}

// AcceptRide claims a ride for the calling driver. At most one of any
// number of concurrent accepts succeeds; the rest get a conflict with
// the ride's current state attached.
func (h *RideHandler) AcceptRide(c *gin.Context) {
	driverID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	ride, err := h.rideService.AcceptRide(c.Request.Context(), driverID, rideID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride accepted successfully", ride.SanitizeFor(driverID))
}

// UpdateRideStatus advances a ride along its lifecycle. Pickup requires
// the customer's OTP; completion may carry the final fare.
func (h *RideHandler) UpdateRideStatus(c *gin.Context) {
	driverID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	var request validators.RideStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if errs := validators.ValidateRideStatusRequest(&request); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	ride, err := h.rideService.UpdateRideStatus(
		c.Request.Context(),
		driverID,
		rideID,
		models.RideStatus(request.Status),
		request.OTP,
		request.FinalFare,
	)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride status updated successfully", ride.SanitizeFor(driverID))
}

// CancelRide cancels a ride on behalf of either participant.
func (h *RideHandler) CancelRide(c *gin.Context) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	var request validators.RideCancelRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if errs := validators.ValidateRideCancelRequest(&request); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), callerID, rideID, request.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride cancelled successfully", ride.SanitizeFor(callerID))
}

// UpdateDriverLocation ingests a driver position ping over HTTP. The
// same path exists over the realtime gateway; both feed the proximity
// index and, mid-ride, the ride room.
func (h *RideHandler) UpdateDriverLocation(c *gin.Context) {
	driverID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	var request validators.DriverLocationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if errs := validators.ValidateDriverLocationRequest(&request); len(errs) > 0 {
		respondValidationErrors(c, errs)
		return
	}

	ts := time.Now()
	if request.Timestamp > 0 {
		ts = time.Unix(request.Timestamp, 0)
	}

	loc := &models.DriverTelemetry{
		Latitude:  request.Latitude,
		Longitude: request.Longitude,
		Heading:   request.Heading,
		Speed:     request.Speed,
		Timestamp: ts,
	}

	err := h.rideService.UpdateDriverLocation(c.Request.Context(), driverID, models.VehicleType(request.VehicleType), loc, "")
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", nil)
}

// GetRide returns a single ride to one of its participants.
func (h *RideHandler) GetRide(c *gin.Context) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), callerID, rideID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride.SanitizeFor(callerID))
}

// GetRideHistory lists the caller's past rides, newest first.
func (h *RideHandler) GetRideHistory(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	userType, _ := c.Get("user_type")
	role, _ := userType.(string)

	params := utils.GetPaginationParams(c)

	rides, total, err := h.rideService.GetRideHistory(c.Request.Context(), userID, role, params)
	if err != nil {
		h.respondError(c, err)
		return
	}

	for i, ride := range rides {
		rides[i] = ride.SanitizeFor(userID)
	}

	utils.SuccessResponseWithMeta(c, "Ride history retrieved successfully", gin.H{"rides": rides}, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Count:      len(rides),
	})
}

// respondError maps engine errors to HTTP. Rejected mutations carry the
// ride's current state in the response body when it is known.
func (h *RideHandler) respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	ride := services.RideFromError(err)

	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	switch kind {
	case services.KindValidation:
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case services.KindConflict:
		status, code = http.StatusConflict, "CONFLICT"
	case services.KindInvalidTransition:
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case services.KindOtpMismatch:
		status, code = http.StatusBadRequest, "OTP_MISMATCH"
	case services.KindNotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case services.KindAuthorization:
		status, code = http.StatusForbidden, "FORBIDDEN"
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("Ride operation failed")
		utils.InternalServerErrorResponse(c)
		return
	}

	if ride != nil {
		viewerID := primitive.NilObjectID
		if v, exists := c.Get("user_id"); exists {
			if id, ok := v.(primitive.ObjectID); ok {
				viewerID = id
			}
		}
		utils.ErrorResponseWithData(c, status, code, err.Error(), gin.H{"ride": ride.SanitizeFor(viewerID)})
		return
	}

	utils.ErrorResponse(c, status, code, err.Error())
}

func respondValidationErrors(c *gin.Context, errs validators.ValidationErrors) {
	details := make(map[string]string, len(errs))
	for _, e := range errs {
		details[e.Field] = e.Message
	}
	utils.ValidationErrorResponse(c, details)
}

func userIDFromContext(c *gin.Context) (primitive.ObjectID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, false
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		utils.BadRequestResponse(c, "Invalid user ID")
		return primitive.NilObjectID, false
	}

	return userObjectID, true
}
