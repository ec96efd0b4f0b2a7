package ledger

import "math"

// Fixed-point codecs matching the contract encoding: temperatures are stored
// as degrees C x10, coordinates as degrees x1e6. Encoding floors toward
// negative infinity the way the original front end did, so a decode recovers
// the source value within one encoding unit.

const coordScale = 1_000_000

func EncodeTemperature(celsius float64) int64 {
	return int64(math.Floor(celsius * 10))
}

func DecodeTemperature(v int64) float64 {
	return float64(v) / 10
}

func EncodeCoordinate(degrees float64) int64 {
	return int64(math.Floor(degrees * coordScale))
}

func DecodeCoordinate(v int64) float64 {
	return float64(v) / coordScale
}
