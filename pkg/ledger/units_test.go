package ledger

import (
	"math"
	"testing"
)

func TestTemperatureRoundTrip(t *testing.T) {
	for _, c := range []float64{-18.5, 0, 2.1, 36.6, 100} {
		enc := EncodeTemperature(c)
		back := DecodeTemperature(enc)
		if math.Abs(back-c) >= 0.1 {
			t.Fatalf("temperature %v round-tripped to %v via %d", c, back, enc)
		}
	}
}

func TestCoordinateRoundTrip(t *testing.T) {
	for _, d := range []float64{-73.985428, 0, 40.748817, 179.999999} {
		enc := EncodeCoordinate(d)
		back := DecodeCoordinate(enc)
		if math.Abs(back-d) >= 0.000001 {
			t.Fatalf("coordinate %v round-tripped to %v via %d", d, back, enc)
		}
	}
}

func TestEncodeFloors(t *testing.T) {
	if got := EncodeTemperature(-0.19); got != -2 {
		t.Fatalf("EncodeTemperature(-0.19) = %d, want -2", got)
	}
	if got := EncodeCoordinate(-0.0000019); got != -2 {
		t.Fatalf("EncodeCoordinate(-0.0000019) = %d, want -2", got)
	}
}
