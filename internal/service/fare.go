package service

import (
	"math"

	"dispatch/internal/domain"
)

// minFareRatio is the lowest fraction of the estimated fare a rider may
// propose.
const minFareRatio = 0.75

// FareEstimator converts a distance and vehicle class into a fare amount.
// Pure and injected so pricing can be replaced without touching the engine.
type FareEstimator interface {
	Estimate(distanceKm float64, class domain.VehicleClass) float64
}

// fareRate is a base charge plus a per-kilometer rate.
type fareRate struct {
	Base  float64
	PerKm float64
}

// defaultRates by vehicle class.
var defaultRates = map[domain.VehicleClass]fareRate{
	domain.VehicleClassAuto:        {Base: 20, PerKm: 15},
	domain.VehicleClassCompact:     {Base: 30, PerKm: 18},
	domain.VehicleClassPremium:     {Base: 50, PerKm: 25},
	domain.VehicleClassPremiumPlus: {Base: 80, PerKm: 32},
}

// StandardFareEstimator prices rides from a fixed rate table.
type StandardFareEstimator struct {
	rates map[domain.VehicleClass]fareRate
}

// NewStandardFareEstimator creates an estimator with the default rate table.
func NewStandardFareEstimator() *StandardFareEstimator {
	return &StandardFareEstimator{rates: defaultRates}
}

// Estimate returns the fare for a ride of the given distance and class,
// rounded up to the next whole unit.
func (e *StandardFareEstimator) Estimate(distanceKm float64, class domain.VehicleClass) float64 {
	rate, ok := e.rates[class]
	if !ok {
		rate = e.rates[domain.VehicleClassCompact]
	}
	return math.Ceil(rate.Base + distanceKm*rate.PerKm)
}

// MinAllowedFare is the floor for a rider-proposed fare. A proposal equal to
// exactly 75% of the estimate is accepted.
func MinAllowedFare(estimate float64) float64 {
	return estimate * minFareRatio
}

var _ FareEstimator = (*StandardFareEstimator)(nil)
