// Package inject composes a spike train, a waveform tensor and an optional
// background recording into a random-access recording whose traces equal the
// background plus every template window intersecting the request. The
// compositor holds read-only references to its immutable inputs and owns no
// buffer beyond the window currently being served, so every read is a pure
// function of the requested range.
package inject

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/rory-bedford/spikeinterface/extractor"
	"github.com/rory-bedford/spikeinterface/templates"
)

const recordingKind = "inject_templates_recording"

// Params configures the compositor. Exactly one of ParentRecording and
// NumSamples must be set: the parent supplies both the background signal and
// the segment lengths, NumSamples declares silent segments of those lengths.
type Params struct {
	Sorting   extractor.Sorting
	Templates *templates.Tensor
	// Nbefore is the number of waveform samples preceding the trough; a
	// spike at sample s occupies [s-Nbefore, s-Nbefore+numSamples).
	Nbefore int

	ParentRecording extractor.Recording
	NumSamples      []int64

	// UpsampleVector selects the waveform phase per spike, aligned with
	// the concatenated spike vector. Required to be nil for 3-D tensors.
	// For 4-D tensors a nil vector is drawn once at construction from
	// UpsampleSeed and fixed thereafter.
	UpsampleVector []int
	UpsampleSeed   *uint64

	// AmplitudeFactor scales each spike's waveform, aligned with the
	// concatenated spike vector; nil means unit amplitude throughout.
	AmplitudeFactor []float64

	// SparsityMask restricts each unit's waveform columns to its active
	// channels; nil means the tensor is dense over all channels.
	SparsityMask [][]bool
}

// Recording is the injected recording. All fields are fixed at
// construction; Traces never mutates shared state.
type Recording struct {
	sorting     extractor.Sorting
	tensor      *templates.Tensor
	nbefore     int
	parent      extractor.Recording
	numFrames   []int64
	numChannels int
	dtype       extractor.DType
	fs          float64

	spikes       [][]extractor.Spike // per segment, sorted by sample
	phases       [][]int             // per segment, aligned with spikes; nil without phase axis
	amplitudes   [][]float64         // per segment, aligned with spikes; nil means 1.0
	unitChannels [][]int             // active probe channels per unit

	upsampleSeed     uint64
	upsampleSupplied bool
	sparsityMask     [][]bool
}

// NewRecording validates the inputs and builds the compositor.
func NewRecording(p Params) (*Recording, error) {
	if p.Sorting == nil {
		return nil, fmt.Errorf("sorting required")
	}
	if p.Templates == nil {
		return nil, fmt.Errorf("templates tensor required")
	}
	if p.Nbefore < 0 || p.Nbefore > p.Templates.NumSamples() {
		return nil, fmt.Errorf("nbefore %d outside [0, %d]", p.Nbefore, p.Templates.NumSamples())
	}
	if p.Sorting.NumUnits() > p.Templates.NumUnits() {
		return nil, fmt.Errorf("sorting has %d units but tensor carries %d", p.Sorting.NumUnits(), p.Templates.NumUnits())
	}

	r := &Recording{
		sorting:      p.Sorting,
		tensor:       p.Templates,
		nbefore:      p.Nbefore,
		parent:       p.ParentRecording,
		fs:           p.Sorting.SamplingFrequency(),
		sparsityMask: p.SparsityMask,
	}

	if err := r.resolveChannels(); err != nil {
		return nil, err
	}
	if err := r.resolveSegments(p.NumSamples); err != nil {
		return nil, err
	}

	r.spikes = p.Sorting.SpikeVectorBySegment()
	if p.Sorting.NumSegments() != len(r.numFrames) {
		return nil, fmt.Errorf("sorting has %d segments, recording has %d", p.Sorting.NumSegments(), len(r.numFrames))
	}
	for seg, spikes := range r.spikes {
		for i, sp := range spikes {
			if i > 0 && spikes[i-1].SampleIndex > sp.SampleIndex {
				return nil, fmt.Errorf("segment %d spike vector not sorted at index %d", seg, i)
			}
		}
	}

	if err := r.resolvePhases(p.UpsampleVector, p.UpsampleSeed); err != nil {
		return nil, err
	}
	if err := r.resolveAmplitudes(p.AmplitudeFactor); err != nil {
		return nil, err
	}
	return r, nil
}

// resolveChannels fixes the probe channel count and the per-unit active
// channel columns, honouring the sparsity mask when present.
func (r *Recording) resolveChannels() error {
	tensor := r.tensor
	if r.sparsityMask == nil {
		r.numChannels = tensor.NumChannels()
		r.unitChannels = make([][]int, tensor.NumUnits())
		all := make([]int, tensor.NumChannels())
		for c := range all {
			all[c] = c
		}
		for u := range r.unitChannels {
			r.unitChannels[u] = all
		}
		return nil
	}
	if len(r.sparsityMask) != tensor.NumUnits() {
		return fmt.Errorf("sparsity mask has %d units, tensor has %d", len(r.sparsityMask), tensor.NumUnits())
	}
	r.numChannels = len(r.sparsityMask[0])
	r.unitChannels = make([][]int, tensor.NumUnits())
	for u, row := range r.sparsityMask {
		if len(row) != r.numChannels {
			return fmt.Errorf("sparsity mask row %d has %d channels, want %d", u, len(row), r.numChannels)
		}
		for c, on := range row {
			if on {
				r.unitChannels[u] = append(r.unitChannels[u], c)
			}
		}
		if len(r.unitChannels[u]) > tensor.NumChannels() {
			return fmt.Errorf("unit %d has %d active channels but the tensor carries %d", u, len(r.unitChannels[u]), tensor.NumChannels())
		}
	}
	return nil
}

// resolveSegments fixes segment lengths and dtype from the parent recording
// or the explicit sample counts.
func (r *Recording) resolveSegments(numSamples []int64) error {
	if r.parent != nil {
		if numSamples != nil {
			return fmt.Errorf("parent recording and explicit sample counts are mutually exclusive")
		}
		if r.parent.NumChannels() != r.numChannels {
			return fmt.Errorf("parent has %d channels, templates cover %d", r.parent.NumChannels(), r.numChannels)
		}
		r.numFrames = make([]int64, r.parent.NumSegments())
		for seg := range r.numFrames {
			n, err := r.parent.NumFrames(seg)
			if err != nil {
				return err
			}
			r.numFrames[seg] = n
		}
		r.dtype = r.parent.DType()
		return nil
	}
	if len(numSamples) == 0 {
		return fmt.Errorf("either a parent recording or explicit segment sample counts required")
	}
	for seg, n := range numSamples {
		if n <= 0 {
			return fmt.Errorf("segment %d sample count must be positive, got %d", seg, n)
		}
	}
	r.numFrames = append([]int64(nil), numSamples...)
	r.dtype = r.tensor.DType()
	return nil
}

// resolvePhases fixes the per-spike upsample phase. The phase of every
// spike is decided here, at construction, and never redrawn per query.
func (r *Recording) resolvePhases(vector []int, seed *uint64) error {
	numPhases := r.tensor.NumPhases()
	if numPhases == 0 {
		if vector != nil {
			return fmt.Errorf("upsample vector supplied but the tensor has no phase axis")
		}
		return nil
	}
	total := 0
	for _, spikes := range r.spikes {
		total += len(spikes)
	}
	if vector != nil {
		if len(vector) != total {
			return fmt.Errorf("upsample vector has %d entries for %d spikes", len(vector), total)
		}
		for i, p := range vector {
			if p < 0 || p >= numPhases {
				return fmt.Errorf("upsample vector entry %d is %d, want [0, %d)", i, p, numPhases)
			}
		}
		r.upsampleSupplied = true
	} else {
		r.upsampleSeed = extractor.ResolveSeed(seed)
		rng := rand.New(rand.NewPCG(r.upsampleSeed, 0x9e3779b97f4a7c15))
		drawn := make([]int, total)
		for i := range drawn {
			drawn[i] = rng.IntN(numPhases)
		}
		vector = drawn
	}
	r.phases = splitBySegment(vector, r.spikes)
	return nil
}

func (r *Recording) resolveAmplitudes(factors []float64) error {
	if factors == nil {
		return nil
	}
	total := 0
	for _, spikes := range r.spikes {
		total += len(spikes)
	}
	if len(factors) != total {
		return fmt.Errorf("amplitude factor has %d entries for %d spikes", len(factors), total)
	}
	r.amplitudes = splitBySegment(factors, r.spikes)
	return nil
}

// splitBySegment slices a concatenated per-spike vector into per-segment
// views aligned with the spike slices.
func splitBySegment[T any](vector []T, spikes [][]extractor.Spike) [][]T {
	out := make([][]T, len(spikes))
	offset := 0
	for seg, segSpikes := range spikes {
		out[seg] = vector[offset : offset+len(segSpikes)]
		offset += len(segSpikes)
	}
	return out
}

func (r *Recording) NumSegments() int { return len(r.numFrames) }

func (r *Recording) NumChannels() int { return r.numChannels }

func (r *Recording) SamplingFrequency() float64 { return r.fs }

func (r *Recording) DType() extractor.DType { return r.dtype }

func (r *Recording) ChannelLocations() [][]float64 {
	if r.parent != nil {
		return r.parent.ChannelLocations()
	}
	return nil
}

// NumFrames returns the frame count of a segment.
func (r *Recording) NumFrames(segment int) (int64, error) {
	if segment < 0 || segment >= len(r.numFrames) {
		return 0, fmt.Errorf("segment %d out of range (%d segments)", segment, len(r.numFrames))
	}
	return r.numFrames[segment], nil
}

// Traces returns the [start, end) window: the background (or zeros) plus
// every spike waveform window intersecting the range, clipped to the
// overlap and accumulated additively. Spikes whose windows extend past the
// segment bounds contribute only their in-bounds portion.
func (r *Recording) Traces(segment int, start, end int64) (*extractor.Matrix, error) {
	numFrames, err := r.NumFrames(segment)
	if err != nil {
		return nil, err
	}
	start, end, err = extractor.ResolveFrameRange(start, end, numFrames)
	if err != nil {
		return nil, err
	}

	var out *extractor.Matrix
	if r.parent != nil {
		out, err = r.parent.Traces(segment, start, end)
		if err != nil {
			return nil, fmt.Errorf("parent traces: %w", err)
		}
	} else {
		out = extractor.NewMatrix(r.dtype, int(end-start), r.numChannels)
	}

	numSamples := int64(r.tensor.NumSamples())
	nbefore := int64(r.nbefore)
	spikes := r.spikes[segment]

	// The spike vector is sorted by sample index, so the overlapping
	// window [start, end) maps to one contiguous run of spikes found by
	// binary search rather than a scan of the whole train.
	lo := sort.Search(len(spikes), func(i int) bool {
		return spikes[i].SampleIndex-nbefore+numSamples > start
	})
	for i := lo; i < len(spikes); i++ {
		sp := spikes[i]
		wStart := sp.SampleIndex - nbefore
		if wStart >= end {
			break
		}
		phase := 0
		if r.phases != nil {
			phase = r.phases[segment][i]
		}
		amp := 1.0
		if r.amplitudes != nil {
			amp = r.amplitudes[segment][i]
		}
		from := max(wStart, start)
		to := min(wStart+numSamples, end)
		for frame := from; frame < to; frame++ {
			wfIdx := int(frame - wStart)
			row := int(frame - start)
			for col, ch := range r.unitChannels[sp.UnitIndex] {
				out.Add(row, ch, amp*r.tensor.AtPhase(sp.UnitIndex, wfIdx, col, phase))
			}
		}
	}
	return out, nil
}

// ToDict returns the construction inputs: the sorting and parent parameter
// dicts, the waveform tensor, and the per-spike selections (or the seed
// they were drawn from). No trace data is serialized.
func (r *Recording) ToDict() (map[string]any, error) {
	sortingDict, err := r.sorting.ToDict()
	if err != nil {
		return nil, err
	}
	d := map[string]any{
		"kind":            recordingKind,
		"sorting":         sortingDict,
		"templates_array": r.tensor.ToNested(),
		"dtype":           string(r.tensor.DType()),
		"nbefore":         r.nbefore,
	}
	if r.parent != nil {
		parentDict, err := r.parent.ToDict()
		if err != nil {
			return nil, err
		}
		d["parent_recording"] = parentDict
	} else {
		d["num_samples"] = append([]int64(nil), r.numFrames...)
	}
	if r.tensor.NumPhases() > 0 {
		if r.upsampleSupplied {
			d["upsample_vector"] = concatSegments(r.phases)
		} else {
			d["upsample_seed"] = extractor.FormatUint64(r.upsampleSeed)
		}
	}
	if r.amplitudes != nil {
		d["amplitude_factor"] = concatSegments(r.amplitudes)
	}
	if r.sparsityMask != nil {
		d["sparsity_mask"] = r.sparsityMask
	}
	return d, nil
}

func concatSegments[T any](segments [][]T) []T {
	var out []T
	for _, seg := range segments {
		out = append(out, seg...)
	}
	return out
}
