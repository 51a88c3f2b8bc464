package geo

import (
	"sort"
	"sync"
	"time"

	"chalo/internal/models"
	"chalo/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filter narrows a proximity query.
type Filter struct {
	VehicleType   models.VehicleType
	AvailableOnly bool
}

// Index is the in-memory proximity index over driver presence. It is
// rebuilt from location pings after a restart; the store is never
// consulted. Entries are partitioned by driver, so a single lock
// suffices.
type Index struct {
	mu         sync.RWMutex
	entries    map[primitive.ObjectID]*models.DriverPresence
	staleAfter time.Duration
	now        func() time.Time
}

func NewIndex(staleAfter time.Duration) *Index {
	if staleAfter <= 0 {
		staleAfter = utils.PresenceStaleAfter
	}
	return &Index{
		entries:    make(map[primitive.ObjectID]*models.DriverPresence),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Upsert records or refreshes a driver's position. Positions carry the
// sender's timestamp; an update older than the stored one is dropped so a
// delayed network retry cannot clobber a newer position. Returns whether
// the update was applied.
func (i *Index) Upsert(driverID primitive.ObjectID, lat, lng float64, vehicleType models.VehicleType, ts time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	entry, ok := i.entries[driverID]
	if ok && ts.Before(entry.LastSeen) {
		return false
	}

	if !ok {
		entry = &models.DriverPresence{
			DriverID:  driverID,
			Available: true,
		}
		i.entries[driverID] = entry
	}

	entry.Latitude = lat
	entry.Longitude = lng
	entry.LastSeen = ts
	if vehicleType != "" {
		entry.VehicleType = vehicleType
	}

	return true
}

// QueryNearby returns drivers within radiusKM of the point, closest
// first. Entries not seen within the staleness threshold are excluded;
// equal distances are ordered by driver id so results are deterministic.
func (i *Index) QueryNearby(lat, lng, radiusKM float64, filter Filter) []*models.DriverPresence {
	i.mu.RLock()
	defer i.mu.RUnlock()

	cutoff := i.now().Add(-i.staleAfter)

	var results []*models.DriverPresence
	for _, entry := range i.entries {
		if entry.LastSeen.Before(cutoff) {
			continue
		}
		if filter.AvailableOnly && !entry.Available {
			continue
		}
		if filter.VehicleType != "" && entry.VehicleType != filter.VehicleType {
			continue
		}

		distance := utils.CalculateDistance(lat, lng, entry.Latitude, entry.Longitude)
		if distance > radiusKM {
			continue
		}

		copied := *entry
		copied.DistanceKM = distance
		results = append(results, &copied)
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].DistanceKM != results[b].DistanceKM {
			return results[a].DistanceKM < results[b].DistanceKM
		}
		return results[a].DriverID.Hex() < results[b].DriverID.Hex()
	})

	return results
}

// MarkUnavailable hides a driver from matching while they are on a ride.
func (i *Index) MarkUnavailable(driverID primitive.ObjectID) {
	i.setAvailable(driverID, false)
}

// MarkAvailable restores a driver to matching after a ride ends.
func (i *Index) MarkAvailable(driverID primitive.ObjectID) {
	i.setAvailable(driverID, true)
}

func (i *Index) setAvailable(driverID primitive.ObjectID, available bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if entry, ok := i.entries[driverID]; ok {
		entry.Available = available
	}
}

// Get returns a copy of a driver's presence, if known.
func (i *Index) Get(driverID primitive.ObjectID) (*models.DriverPresence, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entry, ok := i.entries[driverID]
	if !ok {
		return nil, false
	}
	copied := *entry
	return &copied, true
}

// Remove drops a driver from the index entirely.
func (i *Index) Remove(driverID primitive.ObjectID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.entries, driverID)
}

// Len reports the number of tracked drivers, stale ones included.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}
