package noise

import (
	"fmt"
	"math"

	"github.com/rory-bedford/spikeinterface/extractor"
)

// Strategy selects the memory/compute trade-off used to serve trace windows.
type Strategy string

const (
	// TilePregenerated keeps a small fixed pool of noise blocks resident
	// (one block by default) and serves block i from the pool through an
	// index-derived reversible scramble, so the pool period is not visible
	// as exact repetition.
	TilePregenerated Strategy = "tile_pregenerated"
	// OnTheFly holds no sample state at rest and recomputes every covering
	// block on each request.
	OnTheFly Strategy = "on_the_fly"
)

const (
	recordingKind         = "noise_generator_recording"
	defaultNoiseBlockSize = 30000
	defaultNoiseLevel     = 1.0
)

// Params configures a noise recording. Zero values take the documented
// defaults.
type Params struct {
	NumChannels       int
	SamplingFrequency float64
	Durations         []float64       // seconds per segment
	DType             extractor.DType // default float32
	Seed              *uint64         // nil draws a fresh seed, fixed at construction
	Strategy          Strategy        // default tile_pregenerated
	NoiseBlockSize    int             // default 30000 samples
	NoiseLevel        *float64        // Gaussian standard deviation; nil = 1.0, 0 = silent
	ChannelLocations  [][]float64     // optional geometry
}

// Recording lazily serves Gaussian noise over one or more segments. All
// state is fixed at construction; Traces is a pure function of the request.
type Recording struct {
	numChannels       int
	samplingFrequency float64
	durations         []float64
	numFrames         []int64
	dtype             extractor.DType
	seed              uint64
	strategy          Strategy
	noiseBlockSize    int
	noiseLevel        float64
	channelLocations  [][]float64

	// tile pool, written once at construction for TilePregenerated, read
	// only afterwards. nil for OnTheFly.
	tiles []*extractor.Matrix
}

// NewRecording validates params and builds a noise recording. For
// TilePregenerated the block pool is computed here; OnTheFly allocates
// nothing beyond the parameters.
func NewRecording(p Params) (*Recording, error) {
	if p.NumChannels <= 0 {
		return nil, fmt.Errorf("num channels must be positive, got %d", p.NumChannels)
	}
	if p.SamplingFrequency <= 0 {
		return nil, fmt.Errorf("sampling frequency must be positive, got %g", p.SamplingFrequency)
	}
	if len(p.Durations) == 0 {
		return nil, fmt.Errorf("at least one segment duration required")
	}
	dtype, err := extractor.ParseDType(string(p.DType))
	if err != nil {
		return nil, err
	}
	strategy := p.Strategy
	if strategy == "" {
		strategy = TilePregenerated
	}
	if strategy != TilePregenerated && strategy != OnTheFly {
		return nil, fmt.Errorf("unknown noise strategy %q", strategy)
	}
	blockSize := p.NoiseBlockSize
	if blockSize == 0 {
		blockSize = defaultNoiseBlockSize
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("noise block size must be positive, got %d", blockSize)
	}
	level := float64(defaultNoiseLevel)
	if p.NoiseLevel != nil {
		level = *p.NoiseLevel
	}
	if level < 0 {
		return nil, fmt.Errorf("noise level must be non-negative, got %g", level)
	}
	if p.ChannelLocations != nil && len(p.ChannelLocations) != p.NumChannels {
		return nil, fmt.Errorf("channel locations count %d does not match %d channels",
			len(p.ChannelLocations), p.NumChannels)
	}

	r := &Recording{
		numChannels:       p.NumChannels,
		samplingFrequency: p.SamplingFrequency,
		durations:         append([]float64(nil), p.Durations...),
		dtype:             dtype,
		seed:              extractor.ResolveSeed(p.Seed),
		strategy:          strategy,
		noiseBlockSize:    blockSize,
		noiseLevel:        level,
		channelLocations:  p.ChannelLocations,
	}
	r.numFrames = make([]int64, len(p.Durations))
	for i, d := range p.Durations {
		if d <= 0 {
			return nil, fmt.Errorf("segment %d duration must be positive, got %g", i, d)
		}
		r.numFrames[i] = int64(math.Round(d * p.SamplingFrequency))
	}

	if strategy == TilePregenerated {
		r.tiles = make([]*extractor.Matrix, tilePoolSize)
		for k := range r.tiles {
			r.tiles[k] = generateBlock(r.seed, 0, uint64(k), blockSize, p.NumChannels, level, dtype)
		}
	}
	return r, nil
}

// tilePoolSize is the number of pregenerated blocks kept resident by the
// TilePregenerated strategy. The resting footprint of the strategy is bounded
// by tilePoolSize blocks regardless of recording duration.
const tilePoolSize = 1

func (r *Recording) NumSegments() int { return len(r.durations) }

func (r *Recording) NumChannels() int { return r.numChannels }

func (r *Recording) SamplingFrequency() float64 { return r.samplingFrequency }

func (r *Recording) DType() extractor.DType { return r.dtype }

func (r *Recording) ChannelLocations() [][]float64 { return r.channelLocations }

// Seed returns the effective seed fixed at construction.
func (r *Recording) Seed() uint64 { return r.seed }

// Strategy returns the configured generation strategy.
func (r *Recording) Strategy() Strategy { return r.strategy }

// NumFrames returns the frame count of a segment.
func (r *Recording) NumFrames(segment int) (int64, error) {
	if segment < 0 || segment >= len(r.numFrames) {
		return 0, fmt.Errorf("segment %d out of range (%d segments)", segment, len(r.numFrames))
	}
	return r.numFrames[segment], nil
}

// TraceSizeBytes returns the byte size the full traces would occupy if
// materialized. Nothing of that size is ever allocated.
func (r *Recording) TraceSizeBytes() int64 {
	var total int64
	for _, n := range r.numFrames {
		total += n * int64(r.numChannels) * int64(r.dtype.ItemSize())
	}
	return total
}

// Traces returns the [start, end) noise window of a segment. The result is
// a pure function of the request: any superset query cropped to the same
// range yields identical samples.
func (r *Recording) Traces(segment int, start, end int64) (*extractor.Matrix, error) {
	numFrames, err := r.NumFrames(segment)
	if err != nil {
		return nil, err
	}
	start, end, err = extractor.ResolveFrameRange(start, end, numFrames)
	if err != nil {
		return nil, err
	}
	out := extractor.NewMatrix(r.dtype, int(end-start), r.numChannels)
	if end == start {
		return out, nil
	}

	bs := int64(r.noiseBlockSize)
	firstBlock := start / bs
	lastBlock := (end - 1) / bs
	row := 0
	for b := firstBlock; b <= lastBlock; b++ {
		lo := int64(0)
		hi := bs
		if b == firstBlock {
			lo = start - b*bs
		}
		if b == lastBlock {
			hi = end - b*bs
		}
		n := int(hi - lo)
		if r.strategy == OnTheFly {
			blk := generateBlock(r.seed, segment, uint64(b), r.noiseBlockSize, r.numChannels, r.noiseLevel, r.dtype)
			if err := out.CopyRowsFrom(row, blk, int(lo), n); err != nil {
				return nil, err
			}
		} else {
			r.copyScrambledTile(out, row, segment, b, int(lo), n)
		}
		row += n
	}
	return out, nil
}

// copyScrambledTile serves rows [lo, lo+n) of virtual block b from the
// pregenerated pool through a deterministic reversible scramble. Each pool
// cycle rotates the tile by one extra row and hashes a time-reversal /
// sign-flip pair on top, so no two virtual blocks within a rotation period
// of the pool (noiseBlockSize cycles) are ever served identically and the
// pool period never shows up as exact repetition.
func (r *Recording) copyScrambledTile(out *extractor.Matrix, dstRow, segment int, block int64, lo, n int) {
	tile := r.tiles[uint64(block)%uint64(len(r.tiles))]
	cycle := uint64(block) / uint64(len(r.tiles))
	h := mix64(cycle ^ mix64(uint64(segment)))
	reversed := h&1 != 0
	negated := h&2 != 0
	rot := int(cycle % uint64(r.noiseBlockSize))
	for i := 0; i < n; i++ {
		srcRow := (lo + i + rot) % r.noiseBlockSize
		if reversed {
			srcRow = r.noiseBlockSize - 1 - srcRow
		}
		for c := 0; c < r.numChannels; c++ {
			v := tile.At(srcRow, c)
			if negated {
				v = -v
			}
			out.Set(dstRow+i, c, v)
		}
	}
}

// ToDict returns the construction parameters. Sample data is never
// serialized; a recording rebuilt from this dict regenerates identical
// traces.
func (r *Recording) ToDict() (map[string]any, error) {
	var locations any
	if r.channelLocations != nil {
		locations = r.channelLocations
	}
	return map[string]any{
		"kind":               recordingKind,
		"num_channels":       r.numChannels,
		"sampling_frequency": r.samplingFrequency,
		"durations":          append([]float64(nil), r.durations...),
		"dtype":              string(r.dtype),
		"seed":               extractor.FormatUint64(r.seed),
		"strategy":           string(r.strategy),
		"noise_block_size":   r.noiseBlockSize,
		"noise_level":        r.noiseLevel,
		"channel_locations":  locations,
	}, nil
}

func decodeRecording(d map[string]any) (extractor.Recording, error) {
	numChannels, err := extractor.DictInt(d, "num_channels")
	if err != nil {
		return nil, err
	}
	fs, err := extractor.DictFloat(d, "sampling_frequency")
	if err != nil {
		return nil, err
	}
	durations, err := extractor.DictFloatSlice(d, "durations")
	if err != nil {
		return nil, err
	}
	dtype, err := extractor.DictString(d, "dtype")
	if err != nil {
		return nil, err
	}
	seed, err := extractor.DictUint64(d, "seed")
	if err != nil {
		return nil, err
	}
	strategy, err := extractor.DictString(d, "strategy")
	if err != nil {
		return nil, err
	}
	blockSize, err := extractor.DictInt(d, "noise_block_size")
	if err != nil {
		return nil, err
	}
	level, err := extractor.DictFloat(d, "noise_level")
	if err != nil {
		return nil, err
	}
	locations, err := extractor.DictOptionalCoords(d, "channel_locations")
	if err != nil {
		return nil, err
	}
	return NewRecording(Params{
		NumChannels:       numChannels,
		SamplingFrequency: fs,
		Durations:         durations,
		DType:             extractor.DType(dtype),
		Seed:              &seed,
		Strategy:          Strategy(strategy),
		NoiseBlockSize:    blockSize,
		NoiseLevel:        &level,
		ChannelLocations:  locations,
	})
}

func init() {
	extractor.RegisterRecordingDecoder(recordingKind, decodeRecording)
}
