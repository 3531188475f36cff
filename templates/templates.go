package templates

import (
	"encoding/json"
	"fmt"

	"github.com/rory-bedford/spikeinterface/extractor"
)

// Templates is the immutable interchange container for a set of unit
// waveforms, dense or sparse. Sparse containers carry waveform data only on
// each unit's active channels (the leading columns of the tensor's channel
// axis), with the boolean mask mapping them back to probe channels.
type Templates struct {
	TemplatesArray    *Tensor
	SamplingFrequency float64
	Nbefore           int

	// SparsityMask is units-by-channels; nil means dense.
	SparsityMask [][]bool
	ChannelIDs   []int
	UnitIDs      []int

	numChannels int
}

// TemplatesOpts carries the optional fields of NewTemplates.
type TemplatesOpts struct {
	SparsityMask [][]bool
	ChannelIDs   []int // default: increasing integers
	UnitIDs      []int // default: increasing integers
	// SkipSparsityCheck disables the construction-time verification that a
	// sparse array is actually zero outside its mask.
	SkipSparsityCheck bool
}

// NewTemplates validates shapes and, for sparse containers, verifies that
// the supplied waveform data is consistent with the mask. Inconsistent
// sparsity is a construction error: proceeding would silently corrupt
// downstream density assumptions.
func NewTemplates(array *Tensor, samplingFrequency float64, nbefore int, opts TemplatesOpts) (*Templates, error) {
	if array == nil {
		return nil, fmt.Errorf("templates array required")
	}
	if samplingFrequency <= 0 {
		return nil, fmt.Errorf("sampling frequency must be positive, got %g", samplingFrequency)
	}
	if nbefore < 0 || nbefore > array.NumSamples() {
		return nil, fmt.Errorf("nbefore %d outside [0, %d]", nbefore, array.NumSamples())
	}

	t := &Templates{
		TemplatesArray:    array,
		SamplingFrequency: samplingFrequency,
		Nbefore:           nbefore,
		SparsityMask:      opts.SparsityMask,
		ChannelIDs:        opts.ChannelIDs,
		UnitIDs:           opts.UnitIDs,
	}
	if opts.SparsityMask == nil {
		t.numChannels = array.NumChannels()
	} else {
		if len(opts.SparsityMask) != array.NumUnits() {
			return nil, fmt.Errorf("sparsity mask has %d units, array has %d", len(opts.SparsityMask), array.NumUnits())
		}
		t.numChannels = len(opts.SparsityMask[0])
		for u, row := range opts.SparsityMask {
			if len(row) != t.numChannels {
				return nil, fmt.Errorf("sparsity mask row %d has %d channels, want %d", u, len(row), t.numChannels)
			}
		}
	}
	if t.ChannelIDs == nil {
		t.ChannelIDs = iota2(t.numChannels)
	} else if len(t.ChannelIDs) != t.numChannels {
		return nil, fmt.Errorf("channel ids count %d does not match %d channels", len(t.ChannelIDs), t.numChannels)
	}
	if t.UnitIDs == nil {
		t.UnitIDs = iota2(array.NumUnits())
	} else if len(t.UnitIDs) != array.NumUnits() {
		return nil, fmt.Errorf("unit ids count %d does not match %d units", len(t.UnitIDs), array.NumUnits())
	}

	if t.SparsityMask != nil && !opts.SkipSparsityCheck {
		if err := t.checkSparseConsistency(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func iota2(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (t *Templates) NumUnits() int { return t.TemplatesArray.NumUnits() }

func (t *Templates) NumSamples() int { return t.TemplatesArray.NumSamples() }

// NumChannels is the probe channel count: the mask width for sparse
// containers, the array channel axis otherwise.
func (t *Templates) NumChannels() int { return t.numChannels }

func (t *Templates) Nafter() int { return t.NumSamples() - t.Nbefore }

func (t *Templates) MsBefore() float64 { return float64(t.Nbefore) / t.SamplingFrequency * 1000 }

func (t *Templates) MsAfter() float64 { return float64(t.Nafter()) / t.SamplingFrequency * 1000 }

// AreTemplatesSparse reports whether the container carries a sparsity mask.
func (t *Templates) AreTemplatesSparse() bool { return t.SparsityMask != nil }

// ActiveChannels returns the probe channel indices active for a unit, in
// increasing order. For dense containers that is every channel.
func (t *Templates) ActiveChannels(unit int) []int {
	if t.SparsityMask == nil {
		return iota2(t.numChannels)
	}
	var active []int
	for c, on := range t.SparsityMask[unit] {
		if on {
			active = append(active, c)
		}
	}
	return active
}

// checkSparseConsistency verifies that the waveform columns past each
// unit's active-channel count hold only zeros.
func (t *Templates) checkSparseConsistency() error {
	arr := t.TemplatesArray
	phases := arr.NumPhases()
	if phases == 0 {
		phases = 1
	}
	for u := 0; u < arr.NumUnits(); u++ {
		active := len(t.ActiveChannels(u))
		if active > arr.NumChannels() {
			return fmt.Errorf("unit %d has %d active channels but the array carries only %d", u, active, arr.NumChannels())
		}
		for c := active; c < arr.NumChannels(); c++ {
			for s := 0; s < arr.NumSamples(); s++ {
				for p := 0; p < phases; p++ {
					if arr.AtPhase(u, s, c, p) != 0 {
						return fmt.Errorf("sparsity mask passed but unit %d has non-zero data outside its mask (column %d)", u, c)
					}
				}
			}
		}
	}
	return nil
}

// DenseTemplates returns the dense (units, samples, probe channels[, phases])
// tensor, scattering sparse waveform columns back onto their probe channels.
// Dense containers return their array unchanged.
func (t *Templates) DenseTemplates() *Tensor {
	if t.SparsityMask == nil {
		return t.TemplatesArray
	}
	arr := t.TemplatesArray
	phases := arr.NumPhases()
	var dense *Tensor
	if phases > 0 {
		dense = NewUpsampledTensor(arr.DType(), arr.NumUnits(), arr.NumSamples(), t.numChannels, phases)
	} else {
		dense = NewTensor(arr.DType(), arr.NumUnits(), arr.NumSamples(), t.numChannels)
	}
	loopPhases := phases
	if loopPhases == 0 {
		loopPhases = 1
	}
	for u := 0; u < arr.NumUnits(); u++ {
		for i, ch := range t.ActiveChannels(u) {
			for s := 0; s < arr.NumSamples(); s++ {
				for p := 0; p < loopPhases; p++ {
					dense.SetPhase(u, s, ch, p, arr.AtPhase(u, s, i, p))
				}
			}
		}
	}
	return dense
}

// SparsifyMask recomputes the boolean activity pattern of a dense tensor:
// a channel is active for a unit when any of its samples is non-zero.
func SparsifyMask(dense *Tensor) [][]bool {
	phases := dense.NumPhases()
	if phases == 0 {
		phases = 1
	}
	mask := make([][]bool, dense.NumUnits())
	for u := range mask {
		mask[u] = make([]bool, dense.NumChannels())
		for c := range mask[u] {
			for s := 0; s < dense.NumSamples() && !mask[u][c]; s++ {
				for p := 0; p < phases; p++ {
					if dense.AtPhase(u, s, c, p) != 0 {
						mask[u][c] = true
						break
					}
				}
			}
		}
	}
	return mask
}

// Equal compares containers structurally: array contents by value, masks
// and id vectors element-wise.
func (t *Templates) Equal(other *Templates) bool {
	if other == nil ||
		t.SamplingFrequency != other.SamplingFrequency ||
		t.Nbefore != other.Nbefore ||
		!t.TemplatesArray.Equal(other.TemplatesArray) {
		return false
	}
	if (t.SparsityMask == nil) != (other.SparsityMask == nil) {
		return false
	}
	if t.SparsityMask != nil {
		if len(t.SparsityMask) != len(other.SparsityMask) {
			return false
		}
		for u := range t.SparsityMask {
			if len(t.SparsityMask[u]) != len(other.SparsityMask[u]) {
				return false
			}
			for c := range t.SparsityMask[u] {
				if t.SparsityMask[u][c] != other.SparsityMask[u][c] {
					return false
				}
			}
		}
	}
	return intSliceEqual(t.ChannelIDs, other.ChannelIDs) && intSliceEqual(t.UnitIDs, other.UnitIDs)
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ToDict renders the container as a plain dict with the interchange fields
// templates_array, sparsity_mask, channel_ids, unit_ids, sampling_frequency
// and nbefore.
func (t *Templates) ToDict() map[string]any {
	var mask any
	if t.SparsityMask != nil {
		rows := make([]any, len(t.SparsityMask))
		for u, row := range t.SparsityMask {
			cols := make([]any, len(row))
			for c, on := range row {
				cols[c] = on
			}
			rows[u] = cols
		}
		mask = rows
	}
	return map[string]any{
		"templates_array":    t.TemplatesArray.ToNested(),
		"dtype":              string(t.TemplatesArray.DType()),
		"sparsity_mask":      mask,
		"channel_ids":        t.ChannelIDs,
		"unit_ids":           t.UnitIDs,
		"sampling_frequency": t.SamplingFrequency,
		"nbefore":            t.Nbefore,
	}
}

// FromDict rebuilds a container from a ToDict dict, directly or after a
// JSON round trip.
func FromDict(d map[string]any) (*Templates, error) {
	dtypeName, err := extractor.DictString(d, "dtype")
	if err != nil {
		return nil, err
	}
	dtype, err := extractor.ParseDType(dtypeName)
	if err != nil {
		return nil, err
	}
	arrayValue, ok := d["templates_array"]
	if !ok {
		return nil, fmt.Errorf("missing field %q", "templates_array")
	}
	array, err := TensorFromNested(arrayValue, dtype)
	if err != nil {
		return nil, err
	}
	fs, err := extractor.DictFloat(d, "sampling_frequency")
	if err != nil {
		return nil, err
	}
	nbefore, err := extractor.DictInt(d, "nbefore")
	if err != nil {
		return nil, err
	}
	channelIDs, err := extractor.DictOptionalIntSlice(d, "channel_ids")
	if err != nil {
		return nil, err
	}
	unitIDs, err := extractor.DictOptionalIntSlice(d, "unit_ids")
	if err != nil {
		return nil, err
	}
	mask, err := extractor.DictOptionalBoolMatrix(d, "sparsity_mask")
	if err != nil {
		return nil, err
	}
	return NewTemplates(array, fs, nbefore, TemplatesOpts{
		SparsityMask: mask,
		ChannelIDs:   channelIDs,
		UnitIDs:      unitIDs,
	})
}

// ToJSON encodes the container. Numeric arrays survive the text encoding
// exactly: float32 samples widen to float64 losslessly and Go prints the
// shortest decimal that round-trips.
func (t *Templates) ToJSON() ([]byte, error) {
	return json.Marshal(t.ToDict())
}

// FromJSON decodes a container produced by ToJSON.
func FromJSON(data []byte) (*Templates, error) {
	var d map[string]any
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode templates json: %w", err)
	}
	return FromDict(d)
}
