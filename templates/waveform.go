package templates

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// WaveformParams are the shape parameters of one unit's canonical waveform.
// All widths are milliseconds; Alpha is the trough amplitude.
type WaveformParams struct {
	Alpha             float64 // peak (trough) amplitude scale
	DepolarizationMS  float64 // width of the negative trough
	RepolarizationMS  float64 // width of the positive rebound
	PositiveAmplitude float64 // rebound amplitude relative to the trough
	SmoothMS          float64 // temporal smoothing width, larger = broader waveform
	SpatialDecayUM    float64 // exponential length scale of channel attenuation
}

// ParamRange is an inclusive [min, max] sampling range.
type ParamRange [2]float64

// UnitParamRanges overrides the default sampling ranges of waveform
// parameters. A nil field keeps the default range.
type UnitParamRanges struct {
	Alpha             *ParamRange
	DepolarizationMS  *ParamRange
	RepolarizationMS  *ParamRange
	PositiveAmplitude *ParamRange
	SmoothMS          *ParamRange
	SpatialDecayUM    *ParamRange
}

// UnitParams pins shape parameters to exact per-unit values instead of
// sampling them. A nil slice leaves the parameter sampled from its range; a
// single-element slice applies to every unit; otherwise the length must
// equal the number of units.
type UnitParams struct {
	Alpha             []float64
	DepolarizationMS  []float64
	RepolarizationMS  []float64
	PositiveAmplitude []float64
	SmoothMS          []float64
	SpatialDecayUM    []float64
}

var defaultRanges = map[string]ParamRange{
	"alpha":              {6000, 9000},
	"depolarization_ms":  {0.09, 0.14},
	"repolarization_ms":  {0.5, 0.8},
	"positive_amplitude": {0.1, 0.25},
	"smooth_ms":          {0.03, 0.12},
	"spatial_decay_um":   {20, 40},
}

// drawUnitParams produces one WaveformParams per unit: pinned values where
// supplied, otherwise seeded uniform draws from the configured range. Draws
// are consumed in a fixed parameter order so results only depend on the
// seed and the unit count.
func drawUnitParams(numUnits int, seed uint64, pinned UnitParams, ranges UnitParamRanges) ([]WaveformParams, error) {
	src := rand.NewPCG(mixGeo(seed, 0x57a7e), mixGeo(seed, uint64(numUnits)+1))

	draw := func(name string, override *ParamRange) ([]float64, error) {
		r := defaultRanges[name]
		if override != nil {
			r = *override
		}
		if r[1] < r[0] {
			return nil, fmt.Errorf("parameter %s: range max %g below min %g", name, r[1], r[0])
		}
		u := distuv.Uniform{Min: r[0], Max: r[1], Src: src}
		out := make([]float64, numUnits)
		for i := range out {
			out[i] = u.Rand()
		}
		return out, nil
	}
	pin := func(name string, values []float64, sampled []float64) ([]float64, error) {
		switch len(values) {
		case 0:
			return sampled, nil
		case 1:
			out := make([]float64, numUnits)
			for i := range out {
				out[i] = values[0]
			}
			return out, nil
		case numUnits:
			return values, nil
		default:
			return nil, fmt.Errorf("parameter %s: %d values for %d units", name, len(values), numUnits)
		}
	}

	names := []string{"alpha", "depolarization_ms", "repolarization_ms", "positive_amplitude", "smooth_ms", "spatial_decay_um"}
	overrides := []*ParamRange{ranges.Alpha, ranges.DepolarizationMS, ranges.RepolarizationMS, ranges.PositiveAmplitude, ranges.SmoothMS, ranges.SpatialDecayUM}
	pins := [][]float64{pinned.Alpha, pinned.DepolarizationMS, pinned.RepolarizationMS, pinned.PositiveAmplitude, pinned.SmoothMS, pinned.SpatialDecayUM}

	columns := make([][]float64, len(names))
	for i, name := range names {
		sampled, err := draw(name, overrides[i])
		if err != nil {
			return nil, err
		}
		col, err := pin(name, pins[i], sampled)
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}

	params := make([]WaveformParams, numUnits)
	for u := 0; u < numUnits; u++ {
		params[u] = WaveformParams{
			Alpha:             columns[0][u],
			DepolarizationMS:  columns[1][u],
			RepolarizationMS:  columns[2][u],
			PositiveAmplitude: columns[3][u],
			SmoothMS:          columns[4][u],
			SpatialDecayUM:    columns[5][u],
		}
	}
	return params, nil
}

// DefaultWaveformParams returns the midpoint of every sampling range, a
// reasonable single-waveform shape when no per-unit draw is wanted.
func DefaultWaveformParams() WaveformParams {
	mid := func(name string) float64 {
		r := defaultRanges[name]
		return (r[0] + r[1]) / 2
	}
	return WaveformParams{
		Alpha:             mid("alpha"),
		DepolarizationMS:  mid("depolarization_ms"),
		RepolarizationMS:  mid("repolarization_ms"),
		PositiveAmplitude: mid("positive_amplitude"),
		SmoothMS:          mid("smooth_ms"),
		SpatialDecayUM:    mid("spatial_decay_um"),
	}
}

// waveformValue evaluates the continuous waveform at time tMS (milliseconds
// relative to the trough). The shape is a smoothed biphasic pulse: a
// Gaussian depolarization trough at t=0 followed by a broader positive
// repolarization bump. SmoothMS widens both components in quadrature, which
// is equivalent to convolving the pulse with a Gaussian smoothing kernel.
// Being a closed-form function of continuous time, the same waveform can be
// evaluated at fractional-sample offsets for phase upsampling.
func waveformValue(p WaveformParams, tMS float64) float64 {
	sigmaDep := math.Hypot(p.DepolarizationMS, p.SmoothMS)
	sigmaRep := math.Hypot(p.RepolarizationMS, p.SmoothMS)
	// Rebound peak sits past the trough by two trough widths plus one
	// rebound width, keeping the pulse biphasic rather than overlapping.
	tRep := 2*sigmaDep + sigmaRep

	v := -gauss(tMS, 0, sigmaDep) + p.PositiveAmplitude*gauss(tMS, tRep, sigmaRep)
	// Normalize so the trough value is exactly -Alpha.
	v0 := -1 + p.PositiveAmplitude*gauss(0, tRep, sigmaRep)
	return p.Alpha * v / -v0
}

func gauss(t, mu, sigma float64) float64 {
	d := (t - mu) / sigma
	return math.Exp(-0.5 * d * d)
}

// GenerateSingleFakeWaveform samples the canonical single-channel waveform
// over nbefore+nafter samples, with the trough at sample nbefore.
func GenerateSingleFakeWaveform(samplingFrequency, msBefore, msAfter float64, p WaveformParams) ([]float64, error) {
	if samplingFrequency <= 0 {
		return nil, fmt.Errorf("sampling frequency must be positive, got %g", samplingFrequency)
	}
	if msBefore <= 0 || msAfter <= 0 {
		return nil, fmt.Errorf("waveform extent must be positive, got %g/%g ms", msBefore, msAfter)
	}
	nbefore := int(msBefore * samplingFrequency / 1000)
	nafter := int(msAfter * samplingFrequency / 1000)
	wf := make([]float64, nbefore+nafter)
	for i := range wf {
		tMS := float64(i-nbefore) / samplingFrequency * 1000
		wf[i] = waveformValue(p, tMS)
	}
	return wf, nil
}
