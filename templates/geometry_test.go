package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateChannelLocations(t *testing.T) {
	t.Parallel()

	locs, err := GenerateChannelLocations(8, 2, 20)
	require.NoError(t, err)
	require.Len(t, locs, 8)
	assert.Equal(t, []float64{0, 0}, locs[0])
	assert.Equal(t, []float64{0, 60}, locs[3])
	assert.Equal(t, []float64{20, 0}, locs[4])
	assert.Equal(t, []float64{20, 60}, locs[7])

	_, err = GenerateChannelLocations(7, 2, 20)
	assert.Error(t, err, "channel count not divisible by columns")
	_, err = GenerateChannelLocations(0, 1, 20)
	assert.Error(t, err)
	_, err = GenerateChannelLocations(8, 0, 20)
	assert.Error(t, err)
}

func TestGenerateUnitLocations(t *testing.T) {
	t.Parallel()

	channels, err := GenerateChannelLocations(16, 2, 20)
	require.NoError(t, err)

	units, err := GenerateUnitLocations(10, channels, UnitLocationParams{}, 42)
	require.NoError(t, err)
	require.Len(t, units, 10)

	// All positions inside the margin-expanded bounding box.
	for i, u := range units {
		require.Len(t, u, 2)
		assert.GreaterOrEqual(t, u[0], -20.0, "unit %d x", i)
		assert.LessOrEqual(t, u[0], 40.0, "unit %d x", i)
		assert.GreaterOrEqual(t, u[1], -20.0, "unit %d y", i)
		assert.LessOrEqual(t, u[1], 160.0, "unit %d y", i)
	}

	// Pairwise separation honors the default minimum distance.
	for i := range units {
		for j := i + 1; j < len(units); j++ {
			assert.GreaterOrEqual(t, euclidean(units[i], units[j]), 20.0,
				"units %d and %d too close", i, j)
		}
	}
}

func TestGenerateUnitLocations_Deterministic(t *testing.T) {
	t.Parallel()

	channels, err := GenerateChannelLocations(4, 1, 20)
	require.NoError(t, err)

	a, err := GenerateUnitLocations(5, channels, UnitLocationParams{}, 7)
	require.NoError(t, err)
	b, err := GenerateUnitLocations(5, channels, UnitLocationParams{}, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := GenerateUnitLocations(5, channels, UnitLocationParams{}, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different seeds should place units differently")
}

// Exhausting the draw budget must fail loudly rather than return fewer or
// overlapping units.
func TestGenerateUnitLocations_BudgetExhausted(t *testing.T) {
	t.Parallel()

	channels, err := GenerateChannelLocations(4, 1, 20)
	require.NoError(t, err)

	_, err = GenerateUnitLocations(50, channels, UnitLocationParams{
		MinimumDistanceUM: 500, // impossible inside the expanded box
		MaxAttempts:       100,
	}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not place")
}

func TestCheckCoordinates(t *testing.T) {
	t.Parallel()

	dim, err := checkCoordinates([][]float64{{0, 0, 0}, {1, 1, 1}})
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	_, err = checkCoordinates(nil)
	assert.Error(t, err)
	_, err = checkCoordinates([][]float64{{0, 0}, {1}})
	assert.Error(t, err)
}
