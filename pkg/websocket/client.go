package websocket

import (
	"context"
	"encoding/json"
	"time"

	"chalo/internal/models"
	"chalo/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	dispatchTimeout = 5 * time.Second
)

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	ConnID   string
	UserID   primitive.ObjectID
	UserType string
	rooms    map[string]bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID primitive.ObjectID, userType string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		ConnID:   uuid.NewString(),
		UserID:   userID,
		UserType: userType,
		rooms:    make(map[string]bool),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).WithUserID(c.UserID).Debug("WebSocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.sendError("", "bad_message", "message is not valid JSON")
		return
	}

	switch env.Type {
	case TypeJoinRide:
		c.handleJoinRide(env.Data)
	case TypeLeaveRide:
		c.handleLeaveRide(env.Data)
	case TypeLocationUpdate:
		c.handleLocationUpdate(env.Data)
	case TypeRideStatusUpdate:
		c.handleRideStatusUpdate(env.Data)
	default:
		c.sendError("", "unknown_type", "unknown message type: "+env.Type)
	}
}

// handleJoinRide subscribes the connection to a ride room, but only
// after the engine confirms the user is the ride's customer or assigned
// driver. Outsiders get an error event, never a silent join.
func (c *Client) handleJoinRide(data json.RawMessage) {
	var payload JoinRidePayload
	if err := c.decode(data, &payload, payload.Validate); err != nil {
		return
	}

	rideID, err := primitive.ObjectIDFromHex(payload.RideID)
	if err != nil {
		c.sendError(payload.RideID, "bad_ride_id", "invalid ride id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := c.hub.dispatcher.AuthorizeParticipant(ctx, c.UserID, rideID); err != nil {
		c.sendError(payload.RideID, string(services.KindOf(err)), err.Error())
		return
	}

	c.hub.JoinRide(c, rideID)
	c.sendEvent(newEvent(EventJoinedRide, rideID.Hex(), nil))
}

func (c *Client) handleLeaveRide(data json.RawMessage) {
	var payload LeaveRidePayload
	if err := c.decode(data, &payload, payload.Validate); err != nil {
		return
	}

	rideID, err := primitive.ObjectIDFromHex(payload.RideID)
	if err != nil {
		c.sendError(payload.RideID, "bad_ride_id", "invalid ride id")
		return
	}

	c.hub.LeaveRoom(c, "ride_"+rideID.Hex())
	c.sendEvent(newEvent(EventLeftRide, rideID.Hex(), nil))
}

func (c *Client) handleLocationUpdate(data json.RawMessage) {
	if c.UserType != "driver" {
		c.sendError("", "authorization_error", "only drivers publish locations")
		return
	}

	var payload LocationUpdatePayload
	if err := c.decode(data, &payload, payload.Validate); err != nil {
		return
	}

	ts := time.Now()
	if payload.Timestamp > 0 {
		ts = time.Unix(payload.Timestamp, 0)
	}

	loc := &models.DriverTelemetry{
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		Heading:   payload.Heading,
		Speed:     payload.Speed,
		Timestamp: ts,
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := c.hub.dispatcher.UpdateDriverLocation(ctx, c.UserID, models.VehicleType(payload.VehicleType), loc, c.ConnID); err != nil {
		c.sendError("", string(services.KindOf(err)), err.Error())
	}
}

func (c *Client) handleRideStatusUpdate(data json.RawMessage) {
	if c.UserType != "driver" {
		c.sendError("", "authorization_error", "only drivers update ride status")
		return
	}

	var payload RideStatusUpdatePayload
	if err := c.decode(data, &payload, payload.Validate); err != nil {
		return
	}

	rideID, err := primitive.ObjectIDFromHex(payload.RideID)
	if err != nil {
		c.sendError(payload.RideID, "bad_ride_id", "invalid ride id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	_, err = c.hub.dispatcher.UpdateRideStatus(ctx, c.UserID, rideID, models.RideStatus(payload.Status), payload.OTP, payload.FinalFare)
	if err != nil {
		c.sendError(payload.RideID, string(services.KindOf(err)), err.Error())
	}
	// Success is observed through the ride room broadcast.
}

func (c *Client) decode(data json.RawMessage, payload interface{}, validate func() error) error {
	if err := json.Unmarshal(data, payload); err != nil {
		c.sendError("", "bad_payload", "payload does not match message type")
		return err
	}
	if err := validate(); err != nil {
		c.sendError("", "validation_error", err.Error())
		return err
	}
	return nil
}

func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(rideID, code, message string) {
	c.sendEvent(newEvent(EventError, rideID, errorPayload{Code: code, Message: message}))
}
