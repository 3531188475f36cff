package templates

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// GenerateChannelLocations lays channels out on a column grid: numColumns
// columns spaced pitchUM apart, contacts within a column spaced pitchUM
// apart vertically. Channels are assigned column-major, matching typical
// probe contact ordering.
func GenerateChannelLocations(numChannels, numColumns int, pitchUM float64) ([][]float64, error) {
	if numChannels <= 0 {
		return nil, fmt.Errorf("num channels must be positive, got %d", numChannels)
	}
	if numColumns <= 0 {
		return nil, fmt.Errorf("num columns must be positive, got %d", numColumns)
	}
	if numChannels%numColumns != 0 {
		return nil, fmt.Errorf("num channels %d not divisible by %d columns", numChannels, numColumns)
	}
	perColumn := numChannels / numColumns
	locations := make([][]float64, 0, numChannels)
	for col := 0; col < numColumns; col++ {
		for row := 0; row < perColumn; row++ {
			locations = append(locations, []float64{float64(col) * pitchUM, float64(row) * pitchUM})
		}
	}
	return locations, nil
}

// UnitLocationParams bounds the rejection sampling of unit positions.
type UnitLocationParams struct {
	MarginUM          float64 // expansion of the channel bounding box, default 20
	MinimumDistanceUM float64 // minimum pairwise unit separation, default 20
	MaxAttempts       int     // total draw budget before failing, default 5000
}

const (
	defaultMarginUM        = 20.0
	defaultMinimumDistance = 20.0
	defaultMaxAttempts     = 5000
)

// GenerateUnitLocations draws one position per unit inside the channel
// bounding box expanded by the margin, rejection-sampling until all pairs
// are at least the minimum distance apart. Sampling is seeded and the draw
// budget is bounded; exhausting it is a hard failure, degenerate positions
// are never returned.
func GenerateUnitLocations(numUnits int, channelLocations [][]float64, p UnitLocationParams, seed uint64) ([][]float64, error) {
	if numUnits <= 0 {
		return nil, fmt.Errorf("num units must be positive, got %d", numUnits)
	}
	dim, err := checkCoordinates(channelLocations)
	if err != nil {
		return nil, err
	}
	if p.MarginUM == 0 {
		p.MarginUM = defaultMarginUM
	}
	if p.MinimumDistanceUM == 0 {
		p.MinimumDistanceUM = defaultMinimumDistance
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = defaultMaxAttempts
	}

	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for d := 0; d < dim; d++ {
		lower[d] = math.Inf(1)
		upper[d] = math.Inf(-1)
		for _, loc := range channelLocations {
			lower[d] = math.Min(lower[d], loc[d])
			upper[d] = math.Max(upper[d], loc[d])
		}
		lower[d] -= p.MarginUM
		upper[d] += p.MarginUM
	}

	src := rand.NewPCG(mixGeo(seed, 0x75bcd15), mixGeo(seed, uint64(numUnits)))
	uniforms := make([]distuv.Uniform, dim)
	for d := range uniforms {
		uniforms[d] = distuv.Uniform{Min: lower[d], Max: upper[d], Src: src}
	}

	locations := make([][]float64, 0, numUnits)
	attempts := 0
	for len(locations) < numUnits {
		if attempts >= p.MaxAttempts {
			return nil, fmt.Errorf(
				"could not place %d units at least %gum apart within margin %gum after %d attempts",
				numUnits, p.MinimumDistanceUM, p.MarginUM, attempts)
		}
		attempts++
		candidate := make([]float64, dim)
		for d := range candidate {
			candidate[d] = uniforms[d].Rand()
		}
		ok := true
		for _, placed := range locations {
			if euclidean(candidate, placed) < p.MinimumDistanceUM {
				ok = false
				break
			}
		}
		if ok {
			locations = append(locations, candidate)
		}
	}
	return locations, nil
}

// checkCoordinates validates a coordinate list and returns its shared
// dimensionality.
func checkCoordinates(locations [][]float64) (int, error) {
	if len(locations) == 0 {
		return 0, fmt.Errorf("empty coordinate list")
	}
	dim := len(locations[0])
	if dim == 0 {
		return 0, fmt.Errorf("zero-dimensional coordinates")
	}
	for i, loc := range locations {
		if len(loc) != dim {
			return 0, fmt.Errorf("coordinate %d has dimensionality %d, want %d", i, len(loc), dim)
		}
	}
	return dim, nil
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for d := range a {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// mixGeo derives a PCG state word from a seed and a salt, splitmix64 style.
func mixGeo(seed, salt uint64) uint64 {
	x := seed ^ salt*0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
