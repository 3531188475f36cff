package datasetdb

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rory-bedford/spikeinterface/extractor"
	"github.com/rory-bedford/spikeinterface/noise"
	"github.com/rory-bedford/spikeinterface/sortgen"
)

func seedPtr(v uint64) *uint64 { return &v }

func openTestDB(t *testing.T) *DatasetDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "datasets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoadRecording(t *testing.T) {
	db := openTestDB(t)

	rec, err := noise.NewRecording(noise.Params{
		NumChannels:       4,
		SamplingFrequency: 30000,
		Durations:         []float64{0.5},
		Seed:              seedPtr(11),
		ChannelLocations:  [][]float64{{0, 0}, {0, 20}, {0, 40}, {0, 60}},
	})
	require.NoError(t, err)

	id, err := db.SaveRecording("session-a", rec)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	back, err := db.LoadRecording(id)
	require.NoError(t, err)
	assert.Equal(t, rec.NumChannels(), back.NumChannels())
	assert.Equal(t, rec.SamplingFrequency(), back.SamplingFrequency())
	assert.Equal(t, rec.ChannelLocations(), back.ChannelLocations())

	// The store holds parameters only; regenerated traces must still be
	// bit-identical.
	want, err := rec.Traces(0, extractor.FullExtent, extractor.FullExtent)
	require.NoError(t, err)
	got, err := back.Traces(0, extractor.FullExtent, extractor.FullExtent)
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "reloaded recording produced different traces")
}

func TestSaveLoadSorting(t *testing.T) {
	db := openTestDB(t)

	sorting, err := sortgen.GenerateSorting(sortgen.Params{
		NumUnits:          3,
		Durations:         []float64{1.0},
		SamplingFrequency: 30000,
		Seed:              seedPtr(13),
	})
	require.NoError(t, err)

	id, err := db.SaveSorting("spikes-a", sorting)
	require.NoError(t, err)

	back, err := db.LoadSorting(id)
	require.NoError(t, err)
	assert.Equal(t, 3, back.NumUnits())
	if diff := cmp.Diff(sorting.SpikeVector(), back.SpikeVector()); diff != "" {
		t.Errorf("reloaded sorting differs (-want +got):\n%s", diff)
	}
}

func TestLoadMissingAndKindMismatch(t *testing.T) {
	db := openTestDB(t)

	_, err := db.LoadRecording("no-such-id")
	assert.Error(t, err)

	sorting, err := sortgen.GenerateSorting(sortgen.Params{
		NumUnits:          2,
		Durations:         []float64{0.5},
		SamplingFrequency: 30000,
		Seed:              seedPtr(17),
	})
	require.NoError(t, err)
	id, err := db.SaveSorting("spikes-b", sorting)
	require.NoError(t, err)

	// A sorting id is not a recording id.
	_, err = db.LoadRecording(id)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	db := openTestDB(t)

	entries, err := db.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	rec, err := noise.NewRecording(noise.Params{
		NumChannels:       2,
		SamplingFrequency: 30000,
		Durations:         []float64{0.1},
		Seed:              seedPtr(19),
	})
	require.NoError(t, err)
	recID, err := db.SaveRecording("session-b", rec)
	require.NoError(t, err)

	sorting, err := sortgen.GenerateSorting(sortgen.Params{
		NumUnits:          2,
		Durations:         []float64{0.1},
		SamplingFrequency: 30000,
		Seed:              seedPtr(23),
	})
	require.NoError(t, err)
	sortID, err := db.SaveSorting("spikes-c", sorting)
	require.NoError(t, err)

	entries, err = db.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	ids := []string{entries[0].ID, entries[1].ID}
	assert.Contains(t, ids, recID)
	assert.Contains(t, ids, sortID)
	for _, e := range entries {
		assert.NotZero(t, e.CreatedUnixN)
		assert.NotEmpty(t, e.Name)
	}
}
