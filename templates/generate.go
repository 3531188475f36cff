package templates

import (
	"fmt"
	"math"

	"github.com/rory-bedford/spikeinterface/extractor"
)

// distanceFloorUM clamps unit-to-channel distances before attenuation so a
// unit sitting exactly on a contact cannot degenerate the gain model.
const distanceFloorUM = 1.0

// GenerateOpts tunes template synthesis beyond the required geometry.
type GenerateOpts struct {
	// UpsampleFactor U >= 2 adds a phase axis of U fractional-sample
	// resamples of each waveform; 0 or 1 produces a plain 3-D tensor.
	UpsampleFactor int
	// UnitParams pins shape parameters per unit; unset parameters are
	// drawn from their ranges.
	UnitParams UnitParams
	// UnitParamRanges overrides the default sampling ranges.
	UnitParamRanges UnitParamRanges
}

// GenerateTemplates synthesizes the dense waveform tensor for the given
// probe and unit geometry: one canonical waveform per unit, broadcast across
// channels with strictly decaying exponential spatial attenuation. With an
// upsample factor U, each phase p is the same continuous waveform evaluated
// at a p/U sub-sample offset; phase 0 equals the plain result.
func GenerateTemplates(
	channelLocations, unitLocations [][]float64,
	samplingFrequency, msBefore, msAfter float64,
	seed uint64,
	dtype extractor.DType,
	opts GenerateOpts,
) (*Tensor, error) {
	chanDim, err := checkCoordinates(channelLocations)
	if err != nil {
		return nil, fmt.Errorf("channel locations: %w", err)
	}
	unitDim, err := checkCoordinates(unitLocations)
	if err != nil {
		return nil, fmt.Errorf("unit locations: %w", err)
	}
	if chanDim != unitDim {
		return nil, fmt.Errorf("coordinate dimensionality mismatch: channels %d-D, units %d-D", chanDim, unitDim)
	}
	if samplingFrequency <= 0 {
		return nil, fmt.Errorf("sampling frequency must be positive, got %g", samplingFrequency)
	}
	if msBefore <= 0 || msAfter <= 0 {
		return nil, fmt.Errorf("waveform extent must be positive, got %g/%g ms", msBefore, msAfter)
	}
	if opts.UpsampleFactor < 0 {
		return nil, fmt.Errorf("upsample factor must be non-negative, got %d", opts.UpsampleFactor)
	}
	dtype, err = extractor.ParseDType(string(dtype))
	if err != nil {
		return nil, err
	}

	numUnits := len(unitLocations)
	numChannels := len(channelLocations)
	nbefore := int(msBefore * samplingFrequency / 1000)
	nafter := int(msAfter * samplingFrequency / 1000)
	numSamples := nbefore + nafter

	params, err := drawUnitParams(numUnits, seed, opts.UnitParams, opts.UnitParamRanges)
	if err != nil {
		return nil, err
	}

	upsample := opts.UpsampleFactor
	var t *Tensor
	if upsample >= 2 {
		t = NewUpsampledTensor(dtype, numUnits, numSamples, numChannels, upsample)
	} else {
		upsample = 0
		t = NewTensor(dtype, numUnits, numSamples, numChannels)
	}

	phases := upsample
	if phases == 0 {
		phases = 1
	}
	for u := 0; u < numUnits; u++ {
		p := params[u]
		for c := 0; c < numChannels; c++ {
			dist := math.Max(euclidean(unitLocations[u], channelLocations[c]), distanceFloorUM)
			gain := math.Exp(-dist / p.SpatialDecayUM)
			for s := 0; s < numSamples; s++ {
				for ph := 0; ph < phases; ph++ {
					tMS := (float64(s-nbefore) - float64(ph)/float64(phases)) / samplingFrequency * 1000
					t.SetPhase(u, s, c, ph, gain*waveformValue(p, tMS))
				}
			}
		}
	}
	return t, nil
}
