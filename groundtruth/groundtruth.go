// Package groundtruth wires the generators together: background noise
// recordings with probe geometry, spike trains, waveform tensors and the
// injected recording that combines them. It is the entry point downstream
// benchmark code uses to obtain a recording with known ground truth.
package groundtruth

import (
	"fmt"

	"github.com/rory-bedford/spikeinterface/extractor"
	"github.com/rory-bedford/spikeinterface/inject"
	"github.com/rory-bedford/spikeinterface/noise"
	"github.com/rory-bedford/spikeinterface/sortgen"
	"github.com/rory-bedford/spikeinterface/templates"
)

// RecordingOpts configures a plain noise recording with generated probe
// geometry. Zero values take the documented defaults.
type RecordingOpts struct {
	NumChannels       int            // default 2
	SamplingFrequency float64        // default 30000
	Durations         []float64      // default [5.0, 2.5]
	Seed              *uint64        // nil draws a fresh seed
	Strategy          noise.Strategy // default tile_pregenerated
	NoiseLevel        *float64       // nil = 1.0, 0 = silent
	NumColumns        int            // probe columns, default 1
	PitchUM           float64        // contact pitch, default 20
}

func (o *RecordingOpts) applyDefaults() {
	if o.NumChannels == 0 {
		o.NumChannels = 2
	}
	if o.SamplingFrequency == 0 {
		o.SamplingFrequency = 30000
	}
	if len(o.Durations) == 0 {
		o.Durations = []float64{5.0, 2.5}
	}
	if o.NumColumns == 0 {
		o.NumColumns = 1
	}
	if o.PitchUM == 0 {
		o.PitchUM = 20
	}
}

// GenerateRecording builds a lazy noise recording with a generated column
// probe layout.
func GenerateRecording(opts RecordingOpts) (*noise.Recording, error) {
	opts.applyDefaults()
	locations, err := templates.GenerateChannelLocations(opts.NumChannels, opts.NumColumns, opts.PitchUM)
	if err != nil {
		return nil, err
	}
	return noise.NewRecording(noise.Params{
		NumChannels:       opts.NumChannels,
		SamplingFrequency: opts.SamplingFrequency,
		Durations:         opts.Durations,
		Seed:              opts.Seed,
		Strategy:          opts.Strategy,
		NoiseLevel:        opts.NoiseLevel,
		ChannelLocations:  locations,
	})
}

// GenerateRecordingBySize builds a single-segment 384-channel float32 noise
// recording whose full traces would occupy the requested number of GiB.
// Only the generation parameters are held in memory.
func GenerateRecordingBySize(targetGiB float64, seed *uint64) (*noise.Recording, error) {
	if targetGiB <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %g GiB", targetGiB)
	}
	const (
		numChannels = 384
		fs          = 30000.0
	)
	itemSize := extractor.Float32.ItemSize()
	totalBytes := targetGiB * float64(int64(1)<<30)
	duration := totalBytes / (float64(itemSize) * numChannels * fs)
	return GenerateRecording(RecordingOpts{
		NumChannels:       numChannels,
		SamplingFrequency: fs,
		Durations:         []float64{duration},
		Seed:              seed,
		NumColumns:        4,
	})
}

// GroundTruthOpts configures a full synthetic dataset. Zero values take the
// documented defaults.
type GroundTruthOpts struct {
	NumChannels       int       // default 4
	NumUnits          int       // default 10
	SamplingFrequency float64   // default 30000
	Durations         []float64 // default [10.0]
	MsBefore          float64   // default 1.0
	MsAfter           float64   // default 3.0
	UpsampleFactor    int       // 0 = no phase axis
	NoiseLevel        *float64  // nil = 1.0, 0 = silent
	Strategy          noise.Strategy
	FiringRates       []float64
	Seed              *uint64

	UnitLocationParams templates.UnitLocationParams
	UnitParams         templates.UnitParams
	UnitParamRanges    templates.UnitParamRanges
}

// GroundTruth bundles an injected recording with the inputs that produced
// it, so callers can score a sorter against the known answer.
type GroundTruth struct {
	Recording        *inject.Recording
	Sorting          *sortgen.Sorting
	Templates        *templates.Tensor
	ChannelLocations [][]float64
	UnitLocations    [][]float64
}

// GenerateGroundTruthRecording creates probe geometry, a spike train, a
// waveform tensor and a noise background, and composes them into a
// recording with known ground truth. Every stage derives its own sub-seed
// from the master seed, so the whole dataset reproduces from one value.
func GenerateGroundTruthRecording(opts GroundTruthOpts) (*GroundTruth, error) {
	if opts.NumChannels == 0 {
		opts.NumChannels = 4
	}
	if opts.NumUnits == 0 {
		opts.NumUnits = 10
	}
	if opts.SamplingFrequency == 0 {
		opts.SamplingFrequency = 30000
	}
	if len(opts.Durations) == 0 {
		opts.Durations = []float64{10.0}
	}
	if opts.MsBefore == 0 {
		opts.MsBefore = 1.0
	}
	if opts.MsAfter == 0 {
		opts.MsAfter = 3.0
	}
	if opts.UpsampleFactor == 1 {
		opts.UpsampleFactor = 0
	}

	seed := extractor.ResolveSeed(opts.Seed)
	geometrySeed := deriveSeed(seed, 1)
	sortingSeed := deriveSeed(seed, 2)
	templatesSeed := deriveSeed(seed, 3)
	noiseSeed := deriveSeed(seed, 4)
	phaseSeed := deriveSeed(seed, 5)

	channelLocations, err := templates.GenerateChannelLocations(opts.NumChannels, 1, 20)
	if err != nil {
		return nil, fmt.Errorf("channel locations: %w", err)
	}
	unitLocations, err := templates.GenerateUnitLocations(opts.NumUnits, channelLocations, opts.UnitLocationParams, geometrySeed)
	if err != nil {
		return nil, fmt.Errorf("unit locations: %w", err)
	}

	sorting, err := sortgen.GenerateSorting(sortgen.Params{
		NumUnits:          opts.NumUnits,
		Durations:         opts.Durations,
		SamplingFrequency: opts.SamplingFrequency,
		FiringRates:       opts.FiringRates,
		Seed:              &sortingSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("sorting: %w", err)
	}

	tensor, err := templates.GenerateTemplates(
		channelLocations, unitLocations,
		opts.SamplingFrequency, opts.MsBefore, opts.MsAfter,
		templatesSeed, extractor.Float32,
		templates.GenerateOpts{
			UpsampleFactor:  opts.UpsampleFactor,
			UnitParams:      opts.UnitParams,
			UnitParamRanges: opts.UnitParamRanges,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	background, err := noise.NewRecording(noise.Params{
		NumChannels:       opts.NumChannels,
		SamplingFrequency: opts.SamplingFrequency,
		Durations:         opts.Durations,
		Seed:              &noiseSeed,
		Strategy:          opts.Strategy,
		NoiseLevel:        opts.NoiseLevel,
		ChannelLocations:  channelLocations,
	})
	if err != nil {
		return nil, fmt.Errorf("background noise: %w", err)
	}

	nbefore := int(opts.MsBefore * opts.SamplingFrequency / 1000)
	recording, err := inject.NewRecording(inject.Params{
		Sorting:         sorting,
		Templates:       tensor,
		Nbefore:         nbefore,
		ParentRecording: background,
		UpsampleSeed:    &phaseSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("inject: %w", err)
	}

	return &GroundTruth{
		Recording:        recording,
		Sorting:          sorting,
		Templates:        tensor,
		ChannelLocations: channelLocations,
		UnitLocations:    unitLocations,
	}, nil
}

// deriveSeed mixes a stage index into the master seed, splitmix64 style.
func deriveSeed(seed, stage uint64) uint64 {
	x := seed + stage*0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
