package entry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(t *testing.T, w *WAL, from, to uint64) {
	t.Helper()
	for seq := from; seq <= to; seq++ {
		require.NoError(t, w.Append(NewRecord(RecordDeposit, seq, []byte{byte(seq)})))
	}
}

func replayAll(t *testing.T, dir string) []*Record {
	t.Helper()
	var out []*Record
	_, err := Replay(dir, func(r *Record) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestAppendReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordPlaceLimit, 1, []byte("a"))))
	require.NoError(t, w.Append(NewRecord(RecordCancel, 2, nil)))
	require.Error(t, w.Append(NewRecord(RecordCancel, 2, nil)))
	require.NoError(t, w.Close())

	recs := replayAll(t, dir)
	require.Len(t, recs, 2)
	assert.Equal(t, RecordPlaceLimit, recs[0].Type)
	assert.Equal(t, []byte("a"), recs[0].Data)
	assert.Equal(t, uint64(2), recs[1].Seq)
	assert.Empty(t, recs[1].Data)
}

func TestReopenAppendsToNewestSegment(t *testing.T) {
	dir := t.TempDir()
	// Each record is 26 bytes, so every other append rotates.
	w, err := Open(Config{Dir: dir, SegmentSize: 40})
	require.NoError(t, err)
	appendN(t, w, 1, 5)
	require.NoError(t, w.Close())

	files, err := segments(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)

	w, err = Open(Config{Dir: dir, SegmentSize: 40})
	require.NoError(t, err)
	w.Resume(5)
	require.Error(t, w.Append(NewRecord(RecordDeposit, 5, nil)))
	appendN(t, w, 6, 6)
	require.NoError(t, w.Close())

	recs := replayAll(t, dir)
	require.Len(t, recs, 6)
	for i, r := range recs {
		assert.Equal(t, uint64(i+1), r.Seq)
	}
}

func TestTruncateBeforeKeepsCurrentSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 40})
	require.NoError(t, err)
	appendN(t, w, 1, 5)

	removed, err := w.TruncateBefore(3)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = w.TruncateBefore(100)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	appendN(t, w, 6, 6)
	require.NoError(t, w.Close())

	recs := replayAll(t, dir)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(5), recs[0].Seq)
	assert.Equal(t, uint64(6), recs[1].Seq)
}

func TestReplayToleratesTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	recs := replayAll(t, dir)
	require.Len(t, recs, 2)
}

func TestOpenCutsTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	w, err = Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	w.Resume(2)
	appendN(t, w, 3, 4)
	require.NoError(t, w.Close())

	recs := replayAll(t, dir)
	require.Len(t, recs, 4)
	assert.Equal(t, uint64(4), recs[3].Seq)
}

func TestReplayRejectsDamageBeforeTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 40})
	require.NoError(t, err)
	appendN(t, w, 1, 4)
	require.NoError(t, w.Close())

	b, err := os.ReadFile(segmentPath(dir, 0))
	require.NoError(t, err)
	b[headerSize] ^= 0xff
	require.NoError(t, os.WriteFile(segmentPath(dir, 0), b, 0o644))

	_, err = Replay(dir, func(*Record) error { return nil })
	require.Error(t, err)
}

func TestSegmentIndex(t *testing.T) {
	idx, err := segmentIndex(filepath.Join("x", "segment-000042.wal"))
	require.NoError(t, err)
	assert.Equal(t, 42, idx)
	_, err = segmentIndex("segment-abc.wal")
	require.Error(t, err)
}
