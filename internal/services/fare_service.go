package services

import (
	"math"

	"chalo/internal/config"
	"chalo/internal/models"
)

// FareService computes fare breakdowns. It is pure: same inputs, same
// breakdown, no side effects.
type FareService interface {
	Estimate(distanceKM, durationMin float64, vehicleType models.VehicleType, surge float64) (*models.Fare, error)
	EstimateAll(distanceKM, durationMin, surge float64) (map[models.VehicleType]*models.Fare, error)
	AvgSpeedKMH(vehicleType models.VehicleType) float64
}

type fareService struct {
	rates map[models.VehicleType]config.FareRate
}

func NewFareService(cfg *config.FareConfig) FareService {
	rates := make(map[models.VehicleType]config.FareRate, len(cfg.Rates))
	for vehicleType, rate := range cfg.Rates {
		rates[models.VehicleType(vehicleType)] = rate
	}

	return &fareService{rates: rates}
}

func (s *fareService) Estimate(distanceKM, durationMin float64, vehicleType models.VehicleType, surge float64) (*models.Fare, error) {
	rate, ok := s.rates[vehicleType]
	if !ok {
		return nil, newDomainError(KindValidation, "invalid vehicle type: "+string(vehicleType))
	}

	if surge < 1.0 {
		surge = 1.0
	}

	fare := &models.Fare{
		BaseFare:        rate.BaseFare,
		DistanceFare:    distanceKM * rate.PerKM,
		TimeFare:        durationMin * rate.PerMinute,
		SurgeMultiplier: surge,
	}

	total := math.Ceil((fare.BaseFare + fare.DistanceFare + fare.TimeFare) * surge)
	if total < rate.MinimumFare {
		total = rate.MinimumFare
	}
	fare.TotalFare = total

	return fare, nil
}

// EstimateAll returns the breakdown for every configured vehicle type in
// one call, for comparison views.
func (s *fareService) EstimateAll(distanceKM, durationMin, surge float64) (map[models.VehicleType]*models.Fare, error) {
	fares := make(map[models.VehicleType]*models.Fare, len(s.rates))
	for vehicleType := range s.rates {
		fare, err := s.Estimate(distanceKM, durationMin, vehicleType, surge)
		if err != nil {
			return nil, err
		}
		fares[vehicleType] = fare
	}

	return fares, nil
}

func (s *fareService) AvgSpeedKMH(vehicleType models.VehicleType) float64 {
	if rate, ok := s.rates[vehicleType]; ok && rate.AvgSpeedKMH > 0 {
		return rate.AvgSpeedKMH
	}
	return 25
}
