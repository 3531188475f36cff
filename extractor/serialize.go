package extractor

import (
	"fmt"
	"strconv"
	"sync"
)

// Recordings and sortings serialize to plain dicts carrying a "kind" tag and
// construction parameters only, never bulk sample data. Generator packages
// register their decoders at init time; RecordingFromDict and
// SortingFromDict dispatch on the tag. Dicts survive a trip through
// encoding/json, so decoders must accept the JSON-decoded value shapes
// (float64 numbers, []any slices, seeds as decimal strings).

// RecordingDecoder rebuilds a Recording from its parameter dict.
type RecordingDecoder func(map[string]any) (Recording, error)

// SortingDecoder rebuilds a Sorting from its parameter dict.
type SortingDecoder func(map[string]any) (Sorting, error)

var (
	registryMu     sync.RWMutex
	recordingKinds = map[string]RecordingDecoder{}
	sortingKinds   = map[string]SortingDecoder{}
)

// RegisterRecordingDecoder registers the decoder for a recording kind.
// Registering the same kind twice panics: it is a wiring bug.
func RegisterRecordingDecoder(kind string, dec RecordingDecoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := recordingKinds[kind]; ok {
		panic("extractor: duplicate recording kind " + kind)
	}
	recordingKinds[kind] = dec
}

// RegisterSortingDecoder registers the decoder for a sorting kind.
func RegisterSortingDecoder(kind string, dec SortingDecoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := sortingKinds[kind]; ok {
		panic("extractor: duplicate sorting kind " + kind)
	}
	sortingKinds[kind] = dec
}

// RecordingFromDict rebuilds a recording from a parameter dict produced by
// Recording.ToDict.
func RecordingFromDict(d map[string]any) (Recording, error) {
	kind, err := DictString(d, "kind")
	if err != nil {
		return nil, err
	}
	registryMu.RLock()
	dec, ok := recordingKinds[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown recording kind %q", kind)
	}
	return dec(d)
}

// SortingFromDict rebuilds a sorting from a parameter dict produced by
// Sorting.ToDict.
func SortingFromDict(d map[string]any) (Sorting, error) {
	kind, err := DictString(d, "kind")
	if err != nil {
		return nil, err
	}
	registryMu.RLock()
	dec, ok := sortingKinds[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown sorting kind %q", kind)
	}
	return dec(d)
}

//
// Dict value helpers. Values may be native Go types (straight from ToDict)
// or the shapes encoding/json produces when a dict has been round-tripped.
//

// DictString extracts a required string field.
func DictString(d map[string]any, key string) (string, error) {
	v, ok := d[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: want string, got %T", key, v)
	}
	return s, nil
}

// DictFloat extracts a required numeric field.
func DictFloat(d map[string]any, key string) (float64, error) {
	v, ok := d[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("field %q: want number, got %T", key, v)
	}
	return f, nil
}

// DictInt extracts a required integer field.
func DictInt(d map[string]any, key string) (int, error) {
	f, err := DictFloat(d, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// DictUint64 extracts a seed field. Seeds are stored as decimal strings so
// that values above 2^53 survive JSON round trips exactly; bare numbers are
// accepted for hand-written dicts.
func DictUint64(d map[string]any, key string) (uint64, error) {
	v, ok := d[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	switch vv := v.(type) {
	case string:
		u, err := strconv.ParseUint(vv, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", key, err)
		}
		return u, nil
	case uint64:
		return vv, nil
	default:
		if f, ok := toFloat(v); ok {
			return uint64(f), nil
		}
		return 0, fmt.Errorf("field %q: want seed string or number, got %T", key, v)
	}
}

// FormatUint64 renders a seed for storage in a parameter dict.
func FormatUint64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// DictFloatSlice extracts a required []float64 field.
func DictFloatSlice(d map[string]any, key string) ([]float64, error) {
	v, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	return toFloatSlice(v, key)
}

// DictOptionalFloatSlice extracts a []float64 field, returning nil when the
// field is absent or null.
func DictOptionalFloatSlice(d map[string]any, key string) ([]float64, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	return toFloatSlice(v, key)
}

// DictOptionalIntSlice extracts an []int field, returning nil when the field
// is absent or null.
func DictOptionalIntSlice(d map[string]any, key string) ([]int, error) {
	fs, err := DictOptionalFloatSlice(d, key)
	if err != nil || fs == nil {
		return nil, err
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = int(f)
	}
	return out, nil
}

// DictOptionalCoords extracts a [][]float64 coordinate list, returning nil
// when the field is absent or null.
func DictOptionalCoords(d map[string]any, key string) ([][]float64, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch vv := v.(type) {
	case [][]float64:
		return vv, nil
	case []any:
		out := make([][]float64, len(vv))
		for i, row := range vv {
			fs, err := toFloatSlice(row, key)
			if err != nil {
				return nil, err
			}
			out[i] = fs
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: want coordinate list, got %T", key, v)
	}
}

// DictOptionalBoolMatrix extracts a [][]bool field, returning nil when the
// field is absent or null.
func DictOptionalBoolMatrix(d map[string]any, key string) ([][]bool, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch rows := v.(type) {
	case [][]bool:
		return rows, nil
	case []any:
		out := make([][]bool, len(rows))
		for i, row := range rows {
			cols, ok := row.([]any)
			if !ok {
				return nil, fmt.Errorf("field %q row %d: want bool list, got %T", key, i, row)
			}
			out[i] = make([]bool, len(cols))
			for j, e := range cols {
				b, ok := e.(bool)
				if !ok {
					return nil, fmt.Errorf("field %q[%d][%d]: want bool, got %T", key, i, j, e)
				}
				out[i][j] = b
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: want bool matrix, got %T", key, v)
	}
}

func toFloat(v any) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int64:
		return float64(vv), true
	default:
		return 0, false
	}
}

func toFloatSlice(v any, key string) ([]float64, error) {
	switch vv := v.(type) {
	case []float64:
		out := make([]float64, len(vv))
		copy(out, vv)
		return out, nil
	case []int:
		out := make([]float64, len(vv))
		for i, e := range vv {
			out[i] = float64(e)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(vv))
		for i, e := range vv {
			out[i] = float64(e)
		}
		return out, nil
	case []any:
		out := make([]float64, len(vv))
		for i, e := range vv {
			f, ok := toFloat(e)
			if !ok {
				return nil, fmt.Errorf("field %q[%d]: want number, got %T", key, i, e)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: want number list, got %T", key, v)
	}
}
