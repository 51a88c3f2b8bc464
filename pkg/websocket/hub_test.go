package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"chalo/internal/models"
	"chalo/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// allowAllDispatcher authorizes everyone and records nothing.
type allowAllDispatcher struct{}

func (allowAllDispatcher) AuthorizeParticipant(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return nil
}

func (allowAllDispatcher) UpdateDriverLocation(context.Context, primitive.ObjectID, models.VehicleType, *models.DriverTelemetry, string) error {
	return nil
}

func (allowAllDispatcher) UpdateRideStatus(context.Context, primitive.ObjectID, primitive.ObjectID, models.RideStatus, string, float64) (*models.Ride, error) {
	return nil, nil
}

func newTestHub() *Hub {
	return NewHub(allowAllDispatcher{}, logger.NewNopLogger())
}

func newTestClient(hub *Hub, userType string) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan []byte, 16),
		ConnID:   primitive.NewObjectID().Hex(),
		UserID:   primitive.NewObjectID(),
		UserType: userType,
		rooms:    make(map[string]bool),
	}
}

func receiveEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.send:
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func drainWelcome(t *testing.T, c *Client) {
	t.Helper()
	event := receiveEvent(t, c)
	if event.Type != EventWelcome {
		t.Fatalf("first event: got %s, want %s", event.Type, EventWelcome)
	}
}

func TestRegisterJoinsPersonalRoom(t *testing.T) {
	t.Parallel()
	hub := newTestHub()
	client := newTestClient(hub, "customer")

	hub.registerClient(client)
	drainWelcome(t, client)

	if hub.RoomSize("user_"+client.UserID.Hex()) != 1 {
		t.Error("client not in personal room")
	}
}

func TestBroadcastRideStatusReachesRoomMembers(t *testing.T) {
	t.Parallel()
	hub := newTestHub()
	rideID := primitive.NewObjectID()

	customer := newTestClient(hub, "customer")
	driver := newTestClient(hub, "driver")
	outsider := newTestClient(hub, "customer")

	for _, c := range []*Client{customer, driver, outsider} {
		hub.registerClient(c)
		drainWelcome(t, c)
	}

	hub.JoinRide(customer, rideID)
	hub.JoinRide(driver, rideID)

	hub.BroadcastRideStatus(rideID, models.RideStatusAccepted, "driver accepted the ride")

	for _, c := range []*Client{customer, driver} {
		event := receiveEvent(t, c)
		if event.Type != EventRideStatusChanged {
			t.Errorf("event type: got %s, want %s", event.Type, EventRideStatusChanged)
		}
		if event.RideID != rideID.Hex() {
			t.Errorf("ride id: got %s, want %s", event.RideID, rideID.Hex())
		}
	}

	select {
	case data := <-outsider.send:
		t.Errorf("outsider received %s", data)
	default:
	}
}

func TestBroadcastDriverLocationExcludesSender(t *testing.T) {
	t.Parallel()
	hub := newTestHub()
	rideID := primitive.NewObjectID()

	customer := newTestClient(hub, "customer")
	driver := newTestClient(hub, "driver")

	for _, c := range []*Client{customer, driver} {
		hub.registerClient(c)
		drainWelcome(t, c)
	}
	hub.JoinRide(customer, rideID)
	hub.JoinRide(driver, rideID)

	loc := &models.DriverTelemetry{Latitude: 23.79, Longitude: 90.40, Timestamp: time.Now()}
	hub.BroadcastDriverLocation(rideID, driver.UserID, loc, driver.ConnID)

	event := receiveEvent(t, customer)
	if event.Type != EventDriverLocation {
		t.Errorf("event type: got %s, want %s", event.Type, EventDriverLocation)
	}

	select {
	case data := <-driver.send:
		t.Errorf("sender received its own location echo: %s", data)
	default:
	}
}

func TestNotifyNewRideTargetsPersonalRooms(t *testing.T) {
	t.Parallel()
	hub := newTestHub()

	notified := newTestClient(hub, "driver")
	other := newTestClient(hub, "driver")

	for _, c := range []*Client{notified, other} {
		hub.registerClient(c)
		drainWelcome(t, c)
	}

	ride := &models.Ride{
		ID:          primitive.NewObjectID(),
		Pickup:      models.NewLocation(23.7925, 90.4078, "Gulshan 1"),
		Destination: models.NewLocation(23.7461, 90.3742, "Dhanmondi 27"),
		VehicleType: models.VehicleTypeBike,
	}
	hub.NotifyNewRide([]primitive.ObjectID{notified.UserID}, ride)

	event := receiveEvent(t, notified)
	if event.Type != EventNewRideRequest {
		t.Errorf("event type: got %s, want %s", event.Type, EventNewRideRequest)
	}
	if event.RideID != ride.ID.Hex() {
		t.Errorf("ride id: got %s, want %s", event.RideID, ride.ID.Hex())
	}

	select {
	case data := <-other.send:
		t.Errorf("untargeted driver received %s", data)
	default:
	}
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	t.Parallel()
	hub := newTestHub()
	rideID := primitive.NewObjectID()

	client := newTestClient(hub, "customer")
	hub.registerClient(client)
	drainWelcome(t, client)
	hub.JoinRide(client, rideID)

	hub.unregisterClient(client)

	if hub.RoomSize("ride_"+rideID.Hex()) != 0 {
		t.Error("client still in ride room")
	}
	if hub.RoomSize("user_"+client.UserID.Hex()) != 0 {
		t.Error("client still in personal room")
	}

	if _, ok := <-client.send; ok {
		t.Error("send channel not closed")
	}
}

func TestLeaveRoom(t *testing.T) {
	t.Parallel()
	hub := newTestHub()
	rideID := primitive.NewObjectID()

	client := newTestClient(hub, "customer")
	hub.registerClient(client)
	drainWelcome(t, client)
	hub.JoinRide(client, rideID)

	hub.LeaveRoom(client, "ride_"+rideID.Hex())

	if hub.RoomSize("ride_"+rideID.Hex()) != 0 {
		t.Error("client still in ride room after leave")
	}

	hub.BroadcastRideStatus(rideID, models.RideStatusCancelled, "ride cancelled")
	select {
	case data := <-client.send:
		t.Errorf("left client received %s", data)
	default:
	}
}

func TestClientHandleJoinRideAuthorized(t *testing.T) {
	t.Parallel()
	hub := newTestHub()
	rideID := primitive.NewObjectID()

	client := newTestClient(hub, "customer")
	hub.registerClient(client)
	drainWelcome(t, client)

	payload, _ := json.Marshal(JoinRidePayload{RideID: rideID.Hex()})
	client.handleMessage(mustMarshalEnvelope(t, TypeJoinRide, payload))

	event := receiveEvent(t, client)
	if event.Type != EventJoinedRide {
		t.Fatalf("event type: got %s, want %s", event.Type, EventJoinedRide)
	}
	if hub.RoomSize("ride_"+rideID.Hex()) != 1 {
		t.Error("client not joined to ride room")
	}
}

// denyAllDispatcher rejects every participation check.
type denyAllDispatcher struct {
	allowAllDispatcher
}

func (denyAllDispatcher) AuthorizeParticipant(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return errForbidden{}
}

type errForbidden struct{}

func (errForbidden) Error() string { return "caller is not a participant of this ride" }

func TestClientHandleJoinRideDenied(t *testing.T) {
	t.Parallel()
	hub := NewHub(denyAllDispatcher{}, logger.NewNopLogger())
	rideID := primitive.NewObjectID()

	client := newTestClient(hub, "customer")
	hub.registerClient(client)
	drainWelcome(t, client)

	payload, _ := json.Marshal(JoinRidePayload{RideID: rideID.Hex()})
	client.handleMessage(mustMarshalEnvelope(t, TypeJoinRide, payload))

	event := receiveEvent(t, client)
	if event.Type != EventError {
		t.Fatalf("event type: got %s, want %s", event.Type, EventError)
	}
	if hub.RoomSize("ride_"+rideID.Hex()) != 0 {
		t.Error("denied client ended up in the ride room")
	}
}

func TestClientRejectsLocationFromNonDriver(t *testing.T) {
	t.Parallel()
	hub := newTestHub()

	client := newTestClient(hub, "customer")
	hub.registerClient(client)
	drainWelcome(t, client)

	payload, _ := json.Marshal(LocationUpdatePayload{Latitude: 23.79, Longitude: 90.40})
	client.handleMessage(mustMarshalEnvelope(t, TypeLocationUpdate, payload))

	event := receiveEvent(t, client)
	if event.Type != EventError {
		t.Fatalf("event type: got %s, want %s", event.Type, EventError)
	}
}

func TestClientRejectsUnknownMessageType(t *testing.T) {
	t.Parallel()
	hub := newTestHub()

	client := newTestClient(hub, "customer")
	hub.registerClient(client)
	drainWelcome(t, client)

	client.handleMessage(mustMarshalEnvelope(t, "teleport", json.RawMessage(`{}`)))

	event := receiveEvent(t, client)
	if event.Type != EventError {
		t.Fatalf("event type: got %s, want %s", event.Type, EventError)
	}
}

func mustMarshalEnvelope(t *testing.T, msgType string, data json.RawMessage) []byte {
	t.Helper()
	raw, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}
