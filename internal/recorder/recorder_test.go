package recorder

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenehook/internal/core/events/bus"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()

	var out []Record
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestOpenRejectsEmptyDir(t *testing.T) {
	_, err := Open("", "x")
	assert.ErrorIs(t, err, ErrEmptyDir)
}

func TestRecordsBusEvents(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir, "")
	require.NoError(t, err)
	fixed := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	b := bus.New()
	_, err = b.Subscribe(bus.AllEvents, r.Handler())
	require.NoError(t, err)
	require.NoError(t, b.Publish(bus.NewEvent(bus.SceneReady, "engine", fixed, bus.SceneReadyData{Identity: 42})))
	require.NoError(t, b.Publish(bus.NewEvent(bus.CoinCollected, "engine", fixed, bus.CoinCollectedData{ID: 3, Collected: 1})))
	require.NoError(t, r.Close())

	path := filepath.Join(dir, "events-2025-03-01-12.jsonl.zst")
	assert.Equal(t, path, r.Path())
	recs := readRecords(t, path)
	require.Len(t, recs, 2)
	assert.Equal(t, bus.SceneReady, recs[0].Type)
	assert.Equal(t, bus.CoinCollected, recs[1].Type)
	assert.Equal(t, "engine", recs[1].Source)
	data, ok := recs[1].Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, data["id"])
	assert.EqualValues(t, 2, r.Written())
}

func TestRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir, "ev")
	require.NoError(t, err)
	at := time.Date(2025, 3, 1, 12, 59, 0, 0, time.UTC)
	r.now = func() time.Time { return at }
	require.NoError(t, r.Write(Record{Type: "a"}))
	at = at.Add(2 * time.Minute)
	require.NoError(t, r.Write(Record{Type: "b"}))
	require.NoError(t, r.Close())

	assert.Len(t, readRecords(t, filepath.Join(dir, "ev-2025-03-01-12.jsonl.zst")), 1)
	assert.Len(t, readRecords(t, filepath.Join(dir, "ev-2025-03-01-13.jsonl.zst")), 1)
}

func TestWriteAfterClose(t *testing.T) {
	r, err := Open(t.TempDir(), "ev")
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Write(Record{Type: "a"}), ErrClosed)
}
