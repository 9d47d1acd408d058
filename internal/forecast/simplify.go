package forecast

import (
	"context"
	"math"
)

// Simplify returns the coordinate with the fewest decimal places that still
// resolves to the same forecast grid cell as the original, trying 0, 1, then
// 2 decimal places. The fetch result type only needs to be comparable; the
// caller decides what "same forecast" means by what it returns.
//
// Simplify never errors: if the original coordinate cannot be resolved, or no
// rounded coordinate is equivalent, it returns the input unchanged. The
// simplified coordinate is for URL shortening and must never change the
// forecast a subscriber sees.
func Simplify[G comparable](
	ctx context.Context,
	lat, lon float64,
	fetch func(ctx context.Context, lat, lon float64) (G, error),
) Coordinate {
	original := Coordinate{Latitude: lat, Longitude: lon}

	want, err := fetch(ctx, lat, lon)
	if err != nil {
		return original
	}

	for decimals := 0; decimals <= 2; decimals++ {
		candidate := Coordinate{
			Latitude:  roundTo(lat, decimals),
			Longitude: roundTo(lon, decimals),
		}
		if candidate == original {
			return original
		}
		got, err := fetch(ctx, candidate.Latitude, candidate.Longitude)
		if err != nil {
			continue
		}
		if got == want {
			return candidate
		}
	}
	return original
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
