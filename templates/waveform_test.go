package templates

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSingleFakeWaveform(t *testing.T) {
	t.Parallel()

	p := DefaultWaveformParams()
	wf, err := GenerateSingleFakeWaveform(30000, 1.0, 3.0, p)
	require.NoError(t, err)
	require.Len(t, wf, 120) // 30 before + 90 after

	// Trough sits exactly at nbefore and is normalized to -alpha.
	nbefore := 30
	assert.InDelta(t, -p.Alpha, wf[nbefore], 1e-9)
	for i, v := range wf {
		assert.GreaterOrEqual(t, v, -p.Alpha-1e-9, "sample %d below trough", i)
	}

	// The rebound is positive and much smaller than the trough.
	var peak float64
	for _, v := range wf[nbefore:] {
		peak = math.Max(peak, v)
	}
	assert.Greater(t, peak, 0.0)
	assert.Less(t, peak, p.Alpha*p.PositiveAmplitude*1.5)

	// Edges have decayed to near silence.
	assert.Less(t, math.Abs(wf[0]), p.Alpha*0.01)
	assert.Less(t, math.Abs(wf[len(wf)-1]), p.Alpha*0.05)
}

func TestGenerateSingleFakeWaveform_Validation(t *testing.T) {
	t.Parallel()

	p := DefaultWaveformParams()
	_, err := GenerateSingleFakeWaveform(0, 1, 3, p)
	assert.Error(t, err)
	_, err = GenerateSingleFakeWaveform(30000, -1, 3, p)
	assert.Error(t, err)
	_, err = GenerateSingleFakeWaveform(30000, 1, 0, p)
	assert.Error(t, err)
}

func TestDrawUnitParams(t *testing.T) {
	t.Parallel()

	t.Run("sampled within ranges", func(t *testing.T) {
		t.Parallel()
		params, err := drawUnitParams(20, 5, UnitParams{}, UnitParamRanges{})
		require.NoError(t, err)
		require.Len(t, params, 20)
		for i, p := range params {
			assert.GreaterOrEqual(t, p.Alpha, 6000.0, "unit %d alpha", i)
			assert.LessOrEqual(t, p.Alpha, 9000.0, "unit %d alpha", i)
			assert.GreaterOrEqual(t, p.SpatialDecayUM, 20.0, "unit %d decay", i)
			assert.LessOrEqual(t, p.SpatialDecayUM, 40.0, "unit %d decay", i)
		}
	})

	t.Run("deterministic in seed", func(t *testing.T) {
		t.Parallel()
		a, err := drawUnitParams(5, 11, UnitParams{}, UnitParamRanges{})
		require.NoError(t, err)
		b, err := drawUnitParams(5, 11, UnitParams{}, UnitParamRanges{})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("single value broadcasts", func(t *testing.T) {
		t.Parallel()
		params, err := drawUnitParams(3, 1, UnitParams{Alpha: []float64{7000}}, UnitParamRanges{})
		require.NoError(t, err)
		for _, p := range params {
			assert.Equal(t, 7000.0, p.Alpha)
		}
	})

	t.Run("per-unit values kept", func(t *testing.T) {
		t.Parallel()
		params, err := drawUnitParams(2, 1, UnitParams{Alpha: []float64{6500, 8500}}, UnitParamRanges{})
		require.NoError(t, err)
		assert.Equal(t, 6500.0, params[0].Alpha)
		assert.Equal(t, 8500.0, params[1].Alpha)
	})

	t.Run("length mismatch rejected", func(t *testing.T) {
		t.Parallel()
		_, err := drawUnitParams(3, 1, UnitParams{Alpha: []float64{1, 2}}, UnitParamRanges{})
		assert.Error(t, err)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		t.Parallel()
		bad := ParamRange{9000, 6000}
		_, err := drawUnitParams(2, 1, UnitParams{}, UnitParamRanges{Alpha: &bad})
		assert.Error(t, err)
	})

	t.Run("range override honored", func(t *testing.T) {
		t.Parallel()
		narrow := ParamRange{100, 101}
		params, err := drawUnitParams(10, 3, UnitParams{}, UnitParamRanges{Alpha: &narrow})
		require.NoError(t, err)
		for _, p := range params {
			assert.GreaterOrEqual(t, p.Alpha, 100.0)
			assert.LessOrEqual(t, p.Alpha, 101.0)
		}
	})
}
