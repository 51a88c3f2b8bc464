package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"chalo/internal/metrics"
	"chalo/internal/models"
	"chalo/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Dispatcher is the hub's view of the ride engine. Inbound socket
// messages that mutate state are delegated here; the hub itself only
// moves bytes between rooms.
type Dispatcher interface {
	AuthorizeParticipant(ctx context.Context, userID, rideID primitive.ObjectID) error
	UpdateDriverLocation(ctx context.Context, driverID primitive.ObjectID, vehicleType models.VehicleType, loc *models.DriverTelemetry, excludeConn string) error
	UpdateRideStatus(ctx context.Context, driverID, rideID primitive.ObjectID, status models.RideStatus, otp string, finalFare float64) (*models.Ride, error)
}

// Hub tracks connections and room membership. Ride rooms are named
// "ride_<hex>" and joining one requires being a participant of that
// ride; each user also sits in a personal "user_<hex>" room that new
// ride requests are pushed to.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	dispatcher Dispatcher
	logger     *logger.Logger
}

func NewHub(dispatcher Dispatcher, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		dispatcher: dispatcher,
		logger:     log,
	}
}

// SetDispatcher wires the ride engine in after construction, breaking
// the hub<->service construction cycle at startup.
func (h *Hub) SetDispatcher(dispatcher Dispatcher) {
	h.dispatcher = dispatcher
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	metrics.WebsocketConnections.Inc()
	h.logger.WithUserID(client.UserID).WithField("conn_id", client.ConnID).Debug("Client registered")

	h.joinRoom(client, "user_"+client.UserID.Hex())

	h.sendToClient(client, newEvent(EventWelcome, "", map[string]interface{}{
		"message": "connected",
		"conn_id": client.ConnID,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)
	metrics.WebsocketConnections.Dec()

	for roomID, room := range h.rooms {
		if _, exists := room[client]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	h.logger.WithUserID(client.UserID).WithField("conn_id", client.ConnID).Debug("Client unregistered")
}

// BroadcastRideStatus fans a committed status transition out to the
// ride's room.
func (h *Hub) BroadcastRideStatus(rideID primitive.ObjectID, status models.RideStatus, message string) {
	h.sendToRoom("ride_"+rideID.Hex(), newEvent(EventRideStatusChanged, rideID.Hex(), map[string]interface{}{
		"status":  string(status),
		"message": message,
	}), "")
}

// BroadcastDriverLocation fans driver telemetry out to the ride's room,
// skipping the connection it arrived on.
func (h *Hub) BroadcastDriverLocation(rideID, driverID primitive.ObjectID, loc *models.DriverTelemetry, excludeConn string) {
	h.sendToRoom("ride_"+rideID.Hex(), newEvent(EventDriverLocation, rideID.Hex(), map[string]interface{}{
		"driver_id": driverID.Hex(),
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,
		"heading":   loc.Heading,
		"speed":     loc.Speed,
		"timestamp": loc.Timestamp.Unix(),
	}), excludeConn)
}

// NotifyNewRide pushes a fresh request to each driver's personal room.
func (h *Hub) NotifyNewRide(driverIDs []primitive.ObjectID, ride *models.Ride) {
	event := newEvent(EventNewRideRequest, ride.ID.Hex(), map[string]interface{}{
		"pickup":             ride.Pickup,
		"destination":        ride.Destination,
		"vehicle_type":       string(ride.VehicleType),
		"estimated_distance": ride.EstimatedDistance,
		"estimated_fare":     ride.Fare.TotalFare,
	})

	for _, driverID := range driverIDs {
		h.sendToRoom("user_"+driverID.Hex(), event, "")
	}
}

func (h *Hub) sendToRoom(roomID string, event Event, excludeConn string) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal event")
		return
	}

	for client := range room {
		if excludeConn != "" && client.ConnID == excludeConn {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop the connection rather than block the
			// broadcast path.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) sendToClient(client *Client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal event")
		return
	}

	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

// JoinRide subscribes a client to a ride's room. Authorization happens
// in the client's message handler before this is called.
func (h *Hub) JoinRide(client *Client, rideID primitive.ObjectID) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.joinRoom(client, "ride_"+rideID.Hex())
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		delete(client.rooms, roomID)

		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// RoomSize reports how many clients sit in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomID])
}
