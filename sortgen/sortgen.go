// Package sortgen generates deterministic synthetic spike trains. Every
// (segment, unit) stream is driven by its own seeded sub-generator, so the
// produced spike vector is a pure function of the parameters and honours
// the global ordering invariant: sorted by segment, then by sample index
// within each segment.
package sortgen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rory-bedford/spikeinterface/extractor"
)

const (
	sortingKind            = "generated_sorting"
	defaultFiringRateHz    = 3.0
	defaultRefractoryMS    = 4.0
	defaultSpikesPerBorder = 3
	defaultBorderSize      = 20
)

// Params configures spike-train generation. Zero values take the documented
// defaults.
type Params struct {
	NumUnits           int
	Durations          []float64 // seconds per segment
	SamplingFrequency  float64
	FiringRates        []float64 // Hz; nil = default for all, one value = all units, else per-unit
	RefractoryPeriodMS *float64  // nil = 4.0, 0 = no refractory gap
	Seed               *uint64   // nil draws a fresh seed, fixed at construction

	// Border spikes guarantee coverage of segment edges for window-
	// clipping tests: at least NumSpikesPerBorder extra spikes are placed
	// within BorderSizeSamples of each segment start and end.
	AddSpikesOnBorders bool
	NumSpikesPerBorder int   // default 3
	BorderSizeSamples  int64 // default 20
}

// Sorting is an immutable generated spike container.
type Sorting struct {
	numUnits           int
	durations          []float64
	samplingFrequency  float64
	firingRates        []float64
	refractoryPeriodMS float64
	seed               uint64
	addSpikesOnBorders bool
	numSpikesPerBorder int
	borderSizeSamples  int64

	spikes [][]extractor.Spike // per segment, sorted by sample index
}

// GenerateSorting builds a spike train from the parameters. The result is
// reproducible: rebuilding from the same parameters (or from ToDict) yields
// an identical spike vector.
func GenerateSorting(p Params) (*Sorting, error) {
	if p.NumUnits <= 0 {
		return nil, fmt.Errorf("num units must be positive, got %d", p.NumUnits)
	}
	if len(p.Durations) == 0 {
		return nil, fmt.Errorf("at least one segment duration required")
	}
	if p.SamplingFrequency <= 0 {
		return nil, fmt.Errorf("sampling frequency must be positive, got %g", p.SamplingFrequency)
	}
	rates, err := resolveRates(p.FiringRates, p.NumUnits)
	if err != nil {
		return nil, err
	}
	refractory := float64(defaultRefractoryMS)
	if p.RefractoryPeriodMS != nil {
		refractory = *p.RefractoryPeriodMS
	}
	if refractory < 0 {
		return nil, fmt.Errorf("refractory period must be non-negative, got %g ms", refractory)
	}
	perBorder := p.NumSpikesPerBorder
	if perBorder == 0 {
		perBorder = defaultSpikesPerBorder
	}
	borderSize := p.BorderSizeSamples
	if borderSize == 0 {
		borderSize = defaultBorderSize
	}

	s := &Sorting{
		numUnits:           p.NumUnits,
		durations:          append([]float64(nil), p.Durations...),
		samplingFrequency:  p.SamplingFrequency,
		firingRates:        rates,
		refractoryPeriodMS: refractory,
		seed:               extractor.ResolveSeed(p.Seed),
		addSpikesOnBorders: p.AddSpikesOnBorders,
		numSpikesPerBorder: perBorder,
		borderSizeSamples:  borderSize,
	}

	s.spikes = make([][]extractor.Spike, len(s.durations))
	for seg, duration := range s.durations {
		if duration <= 0 {
			return nil, fmt.Errorf("segment %d duration must be positive, got %g", seg, duration)
		}
		numSamples := int64(math.Round(duration * s.samplingFrequency))
		var segSpikes []extractor.Spike
		for unit := 0; unit < s.numUnits; unit++ {
			segSpikes = append(segSpikes, s.unitSpikes(seg, unit, numSamples)...)
		}
		if s.addSpikesOnBorders {
			segSpikes = append(segSpikes, s.borderSpikes(seg, numSamples)...)
		}
		sortSpikes(segSpikes)
		s.spikes[seg] = segSpikes
	}
	return s, nil
}

func resolveRates(rates []float64, numUnits int) ([]float64, error) {
	switch len(rates) {
	case 0:
		rates = []float64{defaultFiringRateHz}
		fallthrough
	case 1:
		out := make([]float64, numUnits)
		for i := range out {
			out[i] = rates[0]
		}
		rates = out
	case numUnits:
		rates = append([]float64(nil), rates...)
	default:
		return nil, fmt.Errorf("%d firing rates for %d units", len(rates), numUnits)
	}
	for i, r := range rates {
		if r <= 0 {
			return nil, fmt.Errorf("firing rate for unit %d must be positive, got %g Hz", i, r)
		}
	}
	return rates, nil
}

// unitSpikes draws one unit's spike times in a segment: a renewal process
// with exponential inter-spike intervals at the unit's rate plus an
// absolute refractory period. The stream is keyed on (seed, segment, unit).
func (s *Sorting) unitSpikes(segment, unit int, numSamples int64) []extractor.Spike {
	src := rand.NewPCG(mix(s.seed, uint64(segment)+0xa511e9b3), mix(s.seed, uint64(unit)+1))
	exp := distuv.Exponential{Rate: s.firingRates[unit], Src: src}
	refractorySec := s.refractoryPeriodMS / 1000

	var out []extractor.Spike
	t := exp.Rand()
	for {
		sample := int64(math.Round(t * s.samplingFrequency))
		if sample >= numSamples {
			return out
		}
		out = append(out, extractor.Spike{SegmentIndex: segment, SampleIndex: sample, UnitIndex: unit})
		t += refractorySec + exp.Rand()
	}
}

// borderSpikes places extra spikes inside both border regions of a segment,
// random units, keyed on (seed, segment) separately from the unit streams.
func (s *Sorting) borderSpikes(segment int, numSamples int64) []extractor.Spike {
	src := rand.NewPCG(mix(s.seed, uint64(segment)+0xb0d3e5), mix(s.seed, 0xb0d3e5))
	r := rand.New(src)

	border := s.borderSizeSamples
	if border > numSamples {
		border = numSamples
	}
	out := make([]extractor.Spike, 0, 2*s.numSpikesPerBorder)
	for i := 0; i < s.numSpikesPerBorder; i++ {
		out = append(out, extractor.Spike{
			SegmentIndex: segment,
			SampleIndex:  r.Int64N(border),
			UnitIndex:    r.IntN(s.numUnits),
		})
		out = append(out, extractor.Spike{
			SegmentIndex: segment,
			SampleIndex:  numSamples - 1 - r.Int64N(border),
			UnitIndex:    r.IntN(s.numUnits),
		})
	}
	return out
}

func sortSpikes(spikes []extractor.Spike) {
	slices.SortFunc(spikes, func(a, b extractor.Spike) int {
		if a.SampleIndex != b.SampleIndex {
			if a.SampleIndex < b.SampleIndex {
				return -1
			}
			return 1
		}
		return a.UnitIndex - b.UnitIndex
	})
}

// mix derives a PCG state word from the seed and a salt, splitmix64 style.
func mix(seed, salt uint64) uint64 {
	x := seed ^ salt*0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func (s *Sorting) NumUnits() int { return s.numUnits }

func (s *Sorting) NumSegments() int { return len(s.durations) }

func (s *Sorting) SamplingFrequency() float64 { return s.samplingFrequency }

// Seed returns the effective seed fixed at construction.
func (s *Sorting) Seed() uint64 { return s.seed }

// SpikeVector returns all spikes concatenated, sorted by segment then by
// sample index. The returned slice is a fresh copy.
func (s *Sorting) SpikeVector() []extractor.Spike {
	var total int
	for _, seg := range s.spikes {
		total += len(seg)
	}
	out := make([]extractor.Spike, 0, total)
	for _, seg := range s.spikes {
		out = append(out, seg...)
	}
	return out
}

// SpikeVectorBySegment returns per-segment spike slices, each sorted by
// sample index. The outer and inner slices are fresh copies.
func (s *Sorting) SpikeVectorBySegment() [][]extractor.Spike {
	out := make([][]extractor.Spike, len(s.spikes))
	for i, seg := range s.spikes {
		out[i] = append([]extractor.Spike(nil), seg...)
	}
	return out
}

// ToDict returns the generation parameters; the spike data itself is never
// serialized, it regenerates from the persisted seed.
func (s *Sorting) ToDict() (map[string]any, error) {
	return map[string]any{
		"kind":                  sortingKind,
		"num_units":             s.numUnits,
		"durations":             append([]float64(nil), s.durations...),
		"sampling_frequency":    s.samplingFrequency,
		"firing_rates":          append([]float64(nil), s.firingRates...),
		"refractory_period_ms":  s.refractoryPeriodMS,
		"seed":                  extractor.FormatUint64(s.seed),
		"add_spikes_on_borders": s.addSpikesOnBorders,
		"num_spikes_per_border": s.numSpikesPerBorder,
		"border_size_samples":   s.borderSizeSamples,
	}, nil
}

func decodeSorting(d map[string]any) (extractor.Sorting, error) {
	numUnits, err := extractor.DictInt(d, "num_units")
	if err != nil {
		return nil, err
	}
	durations, err := extractor.DictFloatSlice(d, "durations")
	if err != nil {
		return nil, err
	}
	fs, err := extractor.DictFloat(d, "sampling_frequency")
	if err != nil {
		return nil, err
	}
	rates, err := extractor.DictFloatSlice(d, "firing_rates")
	if err != nil {
		return nil, err
	}
	refractory, err := extractor.DictFloat(d, "refractory_period_ms")
	if err != nil {
		return nil, err
	}
	seed, err := extractor.DictUint64(d, "seed")
	if err != nil {
		return nil, err
	}
	borders, ok := d["add_spikes_on_borders"].(bool)
	if !ok {
		return nil, fmt.Errorf("field %q: want bool", "add_spikes_on_borders")
	}
	perBorder, err := extractor.DictInt(d, "num_spikes_per_border")
	if err != nil {
		return nil, err
	}
	borderSize, err := extractor.DictInt(d, "border_size_samples")
	if err != nil {
		return nil, err
	}
	return GenerateSorting(Params{
		NumUnits:           numUnits,
		Durations:          durations,
		SamplingFrequency:  fs,
		FiringRates:        rates,
		RefractoryPeriodMS: &refractory,
		Seed:               &seed,
		AddSpikesOnBorders: borders,
		NumSpikesPerBorder: perBorder,
		BorderSizeSamples:  int64(borderSize),
	})
}

func init() {
	extractor.RegisterSortingDecoder(sortingKind, decodeSorting)
}
