package inject

import (
	"fmt"

	"github.com/rory-bedford/spikeinterface/extractor"
	"github.com/rory-bedford/spikeinterface/templates"
)

func decodeRecording(d map[string]any) (extractor.Recording, error) {
	sortingValue, ok := d["sorting"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %q: want dict", "sorting")
	}
	sorting, err := extractor.SortingFromDict(sortingValue)
	if err != nil {
		return nil, fmt.Errorf("decode sorting: %w", err)
	}

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
	tensor, err := templates.TensorFromNested(arrayValue, dtype)
	if err != nil {
		return nil, err
	}

	nbefore, err := extractor.DictInt(d, "nbefore")
	if err != nil {
		return nil, err
	}

	p := Params{
		Sorting:   sorting,
		Templates: tensor,
		Nbefore:   nbefore,
	}

	if parentValue, ok := d["parent_recording"].(map[string]any); ok {
		parent, err := extractor.RecordingFromDict(parentValue)
		if err != nil {
			return nil, fmt.Errorf("decode parent recording: %w", err)
		}
		p.ParentRecording = parent
	} else {
		counts, err := extractor.DictFloatSlice(d, "num_samples")
		if err != nil {
			return nil, err
		}
		p.NumSamples = make([]int64, len(counts))
		for i, c := range counts {
			p.NumSamples[i] = int64(c)
		}
	}

	if _, ok := d["upsample_vector"]; ok {
		p.UpsampleVector, err = extractor.DictOptionalIntSlice(d, "upsample_vector")
		if err != nil {
			return nil, err
		}
	} else if _, ok := d["upsample_seed"]; ok {
		seed, err := extractor.DictUint64(d, "upsample_seed")
		if err != nil {
			return nil, err
		}
		p.UpsampleSeed = &seed
	}

	p.AmplitudeFactor, err = extractor.DictOptionalFloatSlice(d, "amplitude_factor")
	if err != nil {
		return nil, err
	}
	p.SparsityMask, err = extractor.DictOptionalBoolMatrix(d, "sparsity_mask")
	if err != nil {
		return nil, err
	}
	return NewRecording(p)
}

func init() {
	extractor.RegisterRecordingDecoder(recordingKind, decodeRecording)
}
