package mathutil

import "math"

// AmplitudeDB converts a linear amplitude ratio to dB, flooring at MinMagnitude.
func AmplitudeDB(x float64) float64 {
	return dbAmplitudeFactor * math.Log10(math.Max(x, MinMagnitude))
}

// PowerDB converts a linear power ratio to dB, flooring at MinMagnitude.
func PowerDB(x float64) float64 {
	return dbPowerFactor * math.Log10(math.Max(x, MinMagnitude))
}

// FromAmplitudeDB converts dB back to a linear amplitude ratio.
func FromAmplitudeDB(db float64) float64 {
	return math.Pow(10, db/dbAmplitudeFactor)
}
