package mongodb

import (
	"context"
	"fmt"
	"time"

	"chalo/internal/models"
	"chalo/internal/repositories/interfaces"
	"chalo/internal/services"
	"chalo/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type rideRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewRideRepository(db *mongo.Database, cache services.CacheService) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection("rides"),
		cache:      cache,
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.RequestedAt = now
	ride.CreatedAt = now
	ride.UpdatedAt = now
	ride.Active = !ride.Status.IsTerminal()

	_, err := r.collection.InsertOne(ctx, ride)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Partial unique index on {customer_id, active: true} fired:
			// this customer already holds an active ride.
			return interfaces.ErrCustomerBusy
		}
		return fmt.Errorf("failed to create ride: %w", err)
	}

	r.cacheRide(ctx, ride)

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	// Try cache first for active rides
	if ride := r.getRideFromCache(ctx, id.Hex()); ride != nil {
		return ride, nil
	}

	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrRideNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	r.cacheRide(ctx, &ride)

	return &ride, nil
}

// Claim is the exclusivity point of the whole engine: a single
// conditional write that only matches a ride still in requested state
// with no driver. Of N concurrent claims exactly one matches; the rest
// observe ErrClaimLost.
func (r *rideRepository) Claim(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error) {
	now := time.Now()
	filter := bson.M{
		"_id":       rideID,
		"status":    models.RideStatusRequested,
		"driver_id": nil,
	}
	update := bson.M{"$set": bson.M{
		"driver_id":   driverID,
		"status":      models.RideStatusAccepted,
		"accepted_at": now,
		"updated_at":  now,
	}}

	var ride models.Ride
	err := r.collection.FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ride)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Partial unique index on {driver_id, active: true} fired:
			// this driver already holds an active ride.
			return nil, interfaces.ErrDriverBusy
		}
		if err == mongo.ErrNoDocuments {
			exists, checkErr := r.exists(ctx, rideID)
			if checkErr != nil {
				return nil, checkErr
			}
			if !exists {
				return nil, interfaces.ErrRideNotFound
			}
			return nil, interfaces.ErrClaimLost
		}
		return nil, fmt.Errorf("failed to claim ride: %w", err)
	}

	r.invalidateRideCache(ctx, rideID.Hex())

	return &ride, nil
}

// UpdateWithStatus applies updates only while the persisted status still
// equals expected, so a transition racing a cancellation loses cleanly.
func (r *rideRepository) UpdateWithStatus(ctx context.Context, id primitive.ObjectID, expected models.RideStatus, updates map[string]interface{}) (*models.Ride, error) {
	updates["updated_at"] = time.Now()

	filter := bson.M{"_id": id, "status": expected}

	var ride models.Ride
	err := r.collection.FindOneAndUpdate(
		ctx,
		filter,
		bson.M{"$set": updates},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			exists, checkErr := r.exists(ctx, id)
			if checkErr != nil {
				return nil, checkErr
			}
			if !exists {
				return nil, interfaces.ErrRideNotFound
			}
			return nil, interfaces.ErrStalePrecondition
		}
		return nil, fmt.Errorf("failed to update ride: %w", err)
	}

	r.invalidateRideCache(ctx, id.Hex())

	return &ride, nil
}

func (r *rideRepository) UpdateDriverLocation(ctx context.Context, id primitive.ObjectID, loc *models.DriverTelemetry) error {
	// Guarded against out-of-order retries: only newer telemetry lands.
	filter := bson.M{
		"_id": id,
		"status": bson.M{"$in": []models.RideStatus{
			models.RideStatusAccepted,
			models.RideStatusPickedUp,
			models.RideStatusInProgress,
		}},
		"$or": []bson.M{
			{"driver_location": nil},
			{"driver_location.timestamp": bson.M{"$lte": loc.Timestamp}},
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"driver_location": loc,
		"updated_at":      time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("failed to update driver location: %w", err)
	}

	r.invalidateRideCache(ctx, id.Hex())

	return nil
}

func (r *rideRepository) GetNearbyRequested(ctx context.Context, lat, lng, radiusKM float64) ([]*models.Ride, error) {
	radiusMeters := radiusKM * 1000

	filter := bson.M{
		"pickup": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": radiusMeters,
			},
		},
		"status": models.RideStatusRequested,
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby rides: %w", err)
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	for cursor.Next(ctx) {
		var ride models.Ride
		if err := cursor.Decode(&ride); err != nil {
			return nil, fmt.Errorf("failed to decode ride: %w", err)
		}
		rides = append(rides, &ride)
	}

	return rides, nil
}

func (r *rideRepository) GetActiveByCustomer(ctx context.Context, customerID primitive.ObjectID) (*models.Ride, error) {
	return r.findActive(ctx, bson.M{"customer_id": customerID, "active": true})
}

func (r *rideRepository) GetActiveByDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error) {
	return r.findActive(ctx, bson.M{"driver_id": driverID, "active": true})
}

func (r *rideRepository) findActive(ctx context.Context, filter bson.M) (*models.Ride, error) {
	var ride models.Ride
	err := r.collection.FindOne(ctx, filter).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrRideNotFound
		}
		return nil, fmt.Errorf("failed to get active ride: %w", err)
	}

	return &ride, nil
}

func (r *rideRepository) GetByCustomer(ctx context.Context, customerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.findRidesWithFilter(ctx, bson.M{"customer_id": customerID}, params)
}

func (r *rideRepository) GetByDriver(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.findRidesWithFilter(ctx, bson.M{"driver_id": driverID}, params)
}

func (r *rideRepository) findRidesWithFilter(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	opts := params.GetSortOptions()
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find rides: %w", err)
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	for cursor.Next(ctx) {
		var ride models.Ride
		if err := cursor.Decode(&ride); err != nil {
			return nil, 0, fmt.Errorf("failed to decode ride: %w", err)
		}
		rides = append(rides, &ride)
	}

	return rides, total, nil
}

func (r *rideRepository) exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check ride existence: %w", err)
	}
	return count > 0, nil
}

// Cache operations
func (r *rideRepository) cacheRide(ctx context.Context, ride *models.Ride) {
	if r.cache != nil && ride.Active {
		cacheKey := fmt.Sprintf("ride:%s", ride.ID.Hex())
		r.cache.Set(ctx, cacheKey, ride, 15*time.Minute)
	}
}

func (r *rideRepository) getRideFromCache(ctx context.Context, rideID string) *models.Ride {
	if r.cache == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("ride:%s", rideID)
	var ride models.Ride
	err := r.cache.Get(ctx, cacheKey, &ride)
	if err != nil {
		return nil
	}

	return &ride
}

func (r *rideRepository) invalidateRideCache(ctx context.Context, rideID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("ride:%s", rideID)
		r.cache.Delete(ctx, cacheKey)
	}
}
