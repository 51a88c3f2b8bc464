package geo

import (
	"testing"
	"time"

	"chalo/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUpsertAppliesOnlyNewerUpdates(t *testing.T) {
	t.Parallel()
	idx := NewIndex(time.Minute)
	driverID := primitive.NewObjectID()
	now := time.Now()

	if !idx.Upsert(driverID, 23.80, 90.40, models.VehicleTypeBike, now) {
		t.Fatal("first upsert should apply")
	}
	if idx.Upsert(driverID, 23.00, 90.00, models.VehicleTypeBike, now.Add(-time.Second)) {
		t.Error("older update should be dropped")
	}
	if !idx.Upsert(driverID, 23.81, 90.41, models.VehicleTypeBike, now.Add(time.Second)) {
		t.Error("newer update should apply")
	}

	presence, ok := idx.Get(driverID)
	if !ok {
		t.Fatal("driver missing")
	}
	if presence.Latitude != 23.81 || presence.Longitude != 90.41 {
		t.Errorf("position: got (%v, %v), want (23.81, 90.41)", presence.Latitude, presence.Longitude)
	}
}

func TestQueryNearbyOrdersClosestFirst(t *testing.T) {
	t.Parallel()
	idx := NewIndex(time.Minute)
	now := time.Now()

	near := primitive.NewObjectID()
	mid := primitive.NewObjectID()
	far := primitive.NewObjectID()

	idx.Upsert(far, 23.8500, 90.4000, models.VehicleTypeBike, now)
	idx.Upsert(near, 23.7930, 90.4080, models.VehicleTypeBike, now)
	idx.Upsert(mid, 23.8100, 90.4000, models.VehicleTypeBike, now)

	results := idx.QueryNearby(23.7925, 90.4078, 10, Filter{})
	if len(results) != 3 {
		t.Fatalf("results: got %d, want 3", len(results))
	}

	order := []primitive.ObjectID{results[0].DriverID, results[1].DriverID, results[2].DriverID}
	want := []primitive.ObjectID{near, mid, far}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, order[i].Hex(), want[i].Hex())
		}
	}

	for i := 1; i < len(results); i++ {
		if results[i-1].DistanceKM > results[i].DistanceKM {
			t.Error("distances not ascending")
		}
	}
}

func TestQueryNearbyTieBreaksByDriverID(t *testing.T) {
	t.Parallel()
	idx := NewIndex(time.Minute)
	now := time.Now()

	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	// Identical positions, so ordering falls back to the id.
	idx.Upsert(a, 23.80, 90.40, models.VehicleTypeBike, now)
	idx.Upsert(b, 23.80, 90.40, models.VehicleTypeBike, now)

	first := idx.QueryNearby(23.79, 90.40, 10, Filter{})
	second := idx.QueryNearby(23.79, 90.40, 10, Filter{})

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("results: got %d and %d, want 2 each", len(first), len(second))
	}
	if first[0].DriverID != second[0].DriverID || first[1].DriverID != second[1].DriverID {
		t.Error("ordering not deterministic across queries")
	}
	if first[0].DriverID.Hex() > first[1].DriverID.Hex() {
		t.Error("tie not broken by ascending driver id")
	}
}

func TestQueryNearbyExcludesStaleEntries(t *testing.T) {
	t.Parallel()
	idx := NewIndex(time.Minute)

	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	idx.now = func() time.Time { return base }

	fresh := primitive.NewObjectID()
	stale := primitive.NewObjectID()

	idx.Upsert(fresh, 23.80, 90.40, models.VehicleTypeBike, base.Add(-30*time.Second))
	idx.Upsert(stale, 23.80, 90.40, models.VehicleTypeBike, base.Add(-2*time.Minute))

	results := idx.QueryNearby(23.80, 90.40, 10, Filter{})
	if len(results) != 1 {
		t.Fatalf("results: got %d, want 1", len(results))
	}
	if results[0].DriverID != fresh {
		t.Errorf("got %s, want the fresh driver", results[0].DriverID.Hex())
	}

	// A new ping revives the stale driver.
	idx.Upsert(stale, 23.80, 90.40, models.VehicleTypeBike, base)
	if got := len(idx.QueryNearby(23.80, 90.40, 10, Filter{})); got != 2 {
		t.Errorf("after revival: got %d, want 2", got)
	}
}

func TestQueryNearbyFilters(t *testing.T) {
	t.Parallel()
	idx := NewIndex(time.Minute)
	now := time.Now()

	bike := primitive.NewObjectID()
	car := primitive.NewObjectID()
	busy := primitive.NewObjectID()

	idx.Upsert(bike, 23.80, 90.40, models.VehicleTypeBike, now)
	idx.Upsert(car, 23.80, 90.40, models.VehicleTypeCar, now)
	idx.Upsert(busy, 23.80, 90.40, models.VehicleTypeBike, now)
	idx.MarkUnavailable(busy)

	results := idx.QueryNearby(23.80, 90.40, 10, Filter{VehicleType: models.VehicleTypeBike, AvailableOnly: true})
	if len(results) != 1 {
		t.Fatalf("results: got %d, want 1", len(results))
	}
	if results[0].DriverID != bike {
		t.Errorf("got %s, want the available bike driver", results[0].DriverID.Hex())
	}
}

func TestQueryNearbyRespectsRadius(t *testing.T) {
	t.Parallel()
	idx := NewIndex(time.Minute)
	now := time.Now()

	inside := primitive.NewObjectID()
	outside := primitive.NewObjectID()

	idx.Upsert(inside, 23.7930, 90.4080, models.VehicleTypeBike, now)
	idx.Upsert(outside, 23.9900, 90.3800, models.VehicleTypeBike, now)

	results := idx.QueryNearby(23.7925, 90.4078, 10, Filter{})
	if len(results) != 1 {
		t.Fatalf("results: got %d, want 1", len(results))
	}
	if results[0].DriverID != inside {
		t.Error("driver outside the radius returned")
	}
}

func TestMarkAvailableRoundTrip(t *testing.T) {
	t.Parallel()
	idx := NewIndex(time.Minute)
	driverID := primitive.NewObjectID()

	idx.Upsert(driverID, 23.80, 90.40, models.VehicleTypeBike, time.Now())

	idx.MarkUnavailable(driverID)
	if presence, _ := idx.Get(driverID); presence.Available {
		t.Error("expected unavailable")
	}

	idx.MarkAvailable(driverID)
	if presence, _ := idx.Get(driverID); !presence.Available {
		t.Error("expected available")
	}
}

func TestRemoveAndLen(t *testing.T) {
	t.Parallel()
	idx := NewIndex(time.Minute)
	driverID := primitive.NewObjectID()

	idx.Upsert(driverID, 23.80, 90.40, models.VehicleTypeBike, time.Now())
	if idx.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", idx.Len())
	}

	idx.Remove(driverID)
	if idx.Len() != 0 {
		t.Errorf("Len after remove: got %d, want 0", idx.Len())
	}
	if _, ok := idx.Get(driverID); ok {
		t.Error("removed driver still present")
	}
}
