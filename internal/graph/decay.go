package graph

import (
	"math"
	"time"
)

// MinRecencyMultiplier is the floor of RecencyMultiplier. Old evidence
// counts less but never reaches zero.
const MinRecencyMultiplier = 1e-6

// DefaultHalfLife is the age at which an interaction counts half.
const DefaultHalfLife = 180 * 24 * time.Hour

// RecencyMultiplier returns the weight of an interaction at ts as seen from
// now: 2^(-age/halfLife), clamped to [MinRecencyMultiplier, 1].
// Interactions at or after now count fully, and a non-positive half-life
// disables decay.
func RecencyMultiplier(ts, now time.Time, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	age := now.Sub(ts)
	if age <= 0 {
		return 1
	}
	m := math.Pow(2, -float64(age)/float64(halfLife))
	return math.Max(m, MinRecencyMultiplier)
}
