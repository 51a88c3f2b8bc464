package routes

import (
	"chalo/internal/handlers"
	"chalo/internal/middleware"
	"chalo/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up routes for ride dispatch functionality
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, jwtSecret string) {
	rides := r.Group("/rides")
	rides.Use(middleware.AuthRequired(jwtSecret))
	{
		// Estimation is open to any authenticated user
		rides.POST("/estimate", rideHandler.EstimateFare)

		// Customer operations
		rides.POST("", middleware.CustomerRequired(), rideHandler.RequestRide)

		// Driver operations
		rides.GET("/nearby", middleware.DriverRequired(), rideHandler.GetNearbyRides)
		rides.POST("/:id/accept", middleware.DriverRequired(), rideHandler.AcceptRide)
		rides.PUT("/:id/status", middleware.DriverRequired(), rideHandler.UpdateRideStatus)

		// Either participant
		rides.PUT("/:id/cancel", rideHandler.CancelRide)
		rides.GET("/history", rideHandler.GetRideHistory)
		rides.GET("/:id", rideHandler.GetRide)
	}

	drivers := r.Group("/drivers")
	drivers.Use(middleware.AuthRequired(jwtSecret), middleware.DriverRequired())
	{
		drivers.POST("/location", rideHandler.UpdateDriverLocation)
	}
}

// SetupWebSocketRoutes mounts the realtime gateway. The auth middleware
// also reads the token from the query string, which is how browser
// clients authenticate the handshake.
func SetupWebSocketRoutes(r *gin.Engine, wsHandler *websocket.Handler, path, jwtSecret string) {
	r.GET(path, middleware.AuthRequired(jwtSecret), wsHandler.HandleWebSocket)
}
