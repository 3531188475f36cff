// Package extractor defines the collaborator-facing contracts of the
// synthetic-recording engine: random-access trace containers (Recording),
// spike containers (Sorting), the sample matrix type shared by every
// generator, and a params-only serialization registry.
//
// Everything behind these interfaces is a pure function of its explicit
// inputs plus immutable construction-time state, so instances are safe for
// concurrent use without locks and results never depend on call order.
package extractor

import "fmt"

// FullExtent, passed as a start or end frame, selects the full extent of the
// segment in that direction.
const FullExtent int64 = -1

// Spike is a single firing event. Sample indices are segment-local; global
// time is never implied across segments.
type Spike struct {
	SegmentIndex int   // which segment the spike belongs to
	SampleIndex  int64 // sample index within the segment
	UnitIndex    int   // index of the firing unit
}

// Recording is a random-access multi-segment trace container.
//
// Traces must be a pure function of (segment, start, end): the window
// returned for [start, end) is identical to any superset query cropped to
// [start, end), across calls and across process restarts when the instance
// is rebuilt from its ToDict parameters.
type Recording interface {
	NumSegments() int
	NumFrames(segment int) (int64, error)
	NumChannels() int
	SamplingFrequency() float64
	// ChannelLocations returns one coordinate per channel, or nil when the
	// recording carries no geometry.
	ChannelLocations() [][]float64
	DType() DType
	// Traces returns the [start, end) window of the segment. FullExtent is
	// accepted for either bound.
	Traces(segment int, start, end int64) (*Matrix, error)
	// ToDict returns the construction parameters of the recording, never
	// bulk sample data. The dict must round-trip through RecordingFromDict.
	ToDict() (map[string]any, error)
}

// Sorting is a read-only spike container.
type Sorting interface {
	NumUnits() int
	NumSegments() int
	SamplingFrequency() float64
	// SpikeVector returns all spikes concatenated, sorted first by segment
	// then by sample index within each segment.
	SpikeVector() []Spike
	// SpikeVectorBySegment returns per-segment spike slices, each sorted by
	// sample index.
	SpikeVectorBySegment() [][]Spike
	// ToDict returns construction parameters only, round-trippable through
	// SortingFromDict.
	ToDict() (map[string]any, error)
}

// ResolveFrameRange validates a [start, end) request against a segment
// length, substituting FullExtent bounds.
func ResolveFrameRange(start, end, numFrames int64) (int64, int64, error) {
	if start == FullExtent {
		start = 0
	}
	if end == FullExtent {
		end = numFrames
	}
	if start < 0 || end < start || end > numFrames {
		return 0, 0, &FrameRangeError{Start: start, End: end, NumFrames: numFrames}
	}
	return start, end, nil
}

// FrameRangeError reports a trace request outside the segment bounds.
type FrameRangeError struct {
	Start, End, NumFrames int64
}

func (e *FrameRangeError) Error() string {
	return fmt.Sprintf("frame range [%d, %d) outside segment of %d frames", e.Start, e.End, e.NumFrames)
}
