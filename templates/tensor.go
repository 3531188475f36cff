// Package templates synthesizes biophysically-plausible multi-channel spike
// waveforms. It provides probe/unit geometry generators, a parametric
// single-waveform shape model, dense template synthesis with optional
// sub-sample phase upsampling, and the Templates value container used to
// interchange templates with downstream tooling.
package templates

import (
	"fmt"

	"github.com/rory-bedford/spikeinterface/extractor"
)

// Tensor is a dense waveform tensor of shape (units, samples, channels) or,
// when a phase axis is present, (units, samples, channels, phases). Storage
// is flat row-major in the declared dtype; accessors work in float64.
type Tensor struct {
	dtype       extractor.DType
	numUnits    int
	numSamples  int
	numChannels int
	numPhases   int // 0 when the tensor has no phase axis

	f32 []float32
	f64 []float64
}

// NewTensor allocates a zeroed 3-D tensor.
func NewTensor(dtype extractor.DType, units, samples, channels int) *Tensor {
	return newTensor(dtype, units, samples, channels, 0)
}

// NewUpsampledTensor allocates a zeroed 4-D tensor with a phase axis.
func NewUpsampledTensor(dtype extractor.DType, units, samples, channels, phases int) *Tensor {
	return newTensor(dtype, units, samples, channels, phases)
}

func newTensor(dtype extractor.DType, units, samples, channels, phases int) *Tensor {
	t := &Tensor{
		dtype:       dtype,
		numUnits:    units,
		numSamples:  samples,
		numChannels: channels,
		numPhases:   phases,
	}
	n := units * samples * channels
	if phases > 0 {
		n *= phases
	}
	if dtype == extractor.Float64 {
		t.f64 = make([]float64, n)
	} else {
		t.f32 = make([]float32, n)
	}
	return t
}

func (t *Tensor) DType() extractor.DType { return t.dtype }

func (t *Tensor) NumUnits() int { return t.numUnits }

func (t *Tensor) NumSamples() int { return t.numSamples }

func (t *Tensor) NumChannels() int { return t.numChannels }

// NumPhases returns the size of the phase axis, 0 when absent.
func (t *Tensor) NumPhases() int { return t.numPhases }

// NDim returns 3 for plain tensors and 4 when a phase axis is present.
func (t *Tensor) NDim() int {
	if t.numPhases > 0 {
		return 4
	}
	return 3
}

func (t *Tensor) index(u, s, c, p int) int {
	i := (u*t.numSamples+s)*t.numChannels + c
	if t.numPhases > 0 {
		i = i*t.numPhases + p
	}
	return i
}

// At returns the sample at (unit, sample, channel); for 4-D tensors this is
// phase 0.
func (t *Tensor) At(u, s, c int) float64 {
	return t.AtPhase(u, s, c, 0)
}

// AtPhase returns the sample at (unit, sample, channel, phase).
func (t *Tensor) AtPhase(u, s, c, p int) float64 {
	if t.dtype == extractor.Float64 {
		return t.f64[t.index(u, s, c, p)]
	}
	return float64(t.f32[t.index(u, s, c, p)])
}

// SetPhase stores a sample at (unit, sample, channel, phase), truncating to
// the backing precision.
func (t *Tensor) SetPhase(u, s, c, p int, v float64) {
	if t.dtype == extractor.Float64 {
		t.f64[t.index(u, s, c, p)] = v
	} else {
		t.f32[t.index(u, s, c, p)] = float32(v)
	}
}

// Set stores a sample at (unit, sample, channel); for 4-D tensors this is
// phase 0.
func (t *Tensor) Set(u, s, c int, v float64) {
	t.SetPhase(u, s, c, 0, v)
}

// Equal reports whether two tensors have identical shape, dtype and
// bit-identical contents.
func (t *Tensor) Equal(other *Tensor) bool {
	if other == nil ||
		t.dtype != other.dtype ||
		t.numUnits != other.numUnits ||
		t.numSamples != other.numSamples ||
		t.numChannels != other.numChannels ||
		t.numPhases != other.numPhases {
		return false
	}
	if t.dtype == extractor.Float64 {
		for i := range t.f64 {
			if t.f64[i] != other.f64[i] {
				return false
			}
		}
		return true
	}
	for i := range t.f32 {
		if t.f32[i] != other.f32[i] {
			return false
		}
	}
	return true
}

// ToNested renders the tensor as nested []any slices suitable for JSON
// encoding. float32 values widen to float64 exactly, so the textual form
// preserves samples bit-for-bit.
func (t *Tensor) ToNested() []any {
	units := make([]any, t.numUnits)
	for u := 0; u < t.numUnits; u++ {
		samples := make([]any, t.numSamples)
		for s := 0; s < t.numSamples; s++ {
			channels := make([]any, t.numChannels)
			for c := 0; c < t.numChannels; c++ {
				if t.numPhases > 0 {
					phases := make([]any, t.numPhases)
					for p := 0; p < t.numPhases; p++ {
						phases[p] = t.AtPhase(u, s, c, p)
					}
					channels[c] = phases
				} else {
					channels[c] = t.At(u, s, c)
				}
			}
			samples[s] = channels
		}
		units[u] = samples
	}
	return units
}

// TensorFromNested rebuilds a tensor from nested slices produced by ToNested
// (directly or through a JSON round trip).
func TensorFromNested(v any, dtype extractor.DType) (*Tensor, error) {
	units, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("templates array: want nested list, got %T", v)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("templates array: empty unit axis")
	}
	samples, ok := units[0].([]any)
	if !ok || len(samples) == 0 {
		return nil, fmt.Errorf("templates array: malformed sample axis")
	}
	channels, ok := samples[0].([]any)
	if !ok || len(channels) == 0 {
		return nil, fmt.Errorf("templates array: malformed channel axis")
	}
	numPhases := 0
	if phases, ok := channels[0].([]any); ok {
		numPhases = len(phases)
	}

	t := newTensor(dtype, len(units), len(samples), len(channels), numPhases)
	for u := range units {
		sl, ok := units[u].([]any)
		if !ok || len(sl) != t.numSamples {
			return nil, fmt.Errorf("templates array: ragged sample axis at unit %d", u)
		}
		for s := range sl {
			cl, ok := sl[s].([]any)
			if !ok || len(cl) != t.numChannels {
				return nil, fmt.Errorf("templates array: ragged channel axis at unit %d sample %d", u, s)
			}
			for c := range cl {
				if numPhases > 0 {
					pl, ok := cl[c].([]any)
					if !ok || len(pl) != numPhases {
						return nil, fmt.Errorf("templates array: ragged phase axis at unit %d sample %d channel %d", u, s, c)
					}
					for p := range pl {
						f, ok := pl[p].(float64)
						if !ok {
							return nil, fmt.Errorf("templates array: non-numeric sample at unit %d", u)
						}
						t.SetPhase(u, s, c, p, f)
					}
				} else {
					f, ok := cl[c].(float64)
					if !ok {
						return nil, fmt.Errorf("templates array: non-numeric sample at unit %d", u)
					}
					t.Set(u, s, c, f)
				}
			}
		}
	}
	return t, nil
}
