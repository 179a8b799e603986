// Package entry is the command log. Every state-changing command is framed
// and appended here before it executes, so replaying the log in sequence
// order against empty state rebuilds the engine.
package entry

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"econia/infra/memory"
)

const headerSize = 1 + 8 + 8 + 4

var framePool = memory.NewBufferPool(256)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// Sync fsyncs every append.
	Sync bool
}

type WAL struct {
	mtx        sync.Mutex
	dir        string
	segSize    int64
	segDur     time.Duration
	fsync      bool
	current    *segment
	segIndex   int
	lastRotate time.Time
	lastSeq    uint64
}

// Open opens the log in cfg.Dir, appending to the newest segment.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	files, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(files) > 0 {
		if index, err = segmentIndex(files[len(files)-1]); err != nil {
			return nil, err
		}
	}

	if _, err := repairTail(segmentPath(cfg.Dir, index)); err != nil {
		return nil, err
	}
	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		fsync:      cfg.Sync,
		current:    seg,
		segIndex:   index,
		lastRotate: time.Now(),
	}, nil
}

// Dir returns the directory holding the segments.
func (w *WAL) Dir() string { return w.dir }

// Append frames r and writes it to the current segment. Sequence numbers
// must increase.
func (w *WAL) Append(r *Record) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if r.Seq <= w.lastSeq {
		return fmt.Errorf("append seq %d after %d", r.Seq, w.lastSeq)
	}

	payloadLen := uint32(len(r.Data))

	// Frame:
	// [type:1][seq:8][time:8][len:4][payload][crc:4]
	frame := framePool.Get()
	defer framePool.Put(frame)
	n := headerSize + int(payloadLen) + 4
	if cap(*frame) < n {
		*frame = make([]byte, 0, n)
	}
	buf := (*frame)[:n]
	*frame = buf

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:n-4])
	binary.BigEndian.PutUint32(buf[n-4:], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}
	if w.fsync {
		if err := w.current.sync(); err != nil {
			return err
		}
	}
	w.lastSeq = r.Seq

	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) shouldRotate() bool {
	if w.segSize > 0 && w.current.offset >= w.segSize {
		return true
	}
	return w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// Resume tells the log the highest sequence already on disk, so appends
// after a replay are checked against it.
func (w *WAL) Resume(seq uint64) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if seq > w.lastSeq {
		w.lastSeq = seq
	}
}

// TruncateBefore removes closed segments whose records all have a sequence
// at or below seq. The segment being written is never removed.
func (w *WAL) TruncateBefore(seq uint64) (int, error) {
	w.mtx.Lock()
	current := w.current.path
	w.mtx.Unlock()

	files, err := segments(w.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range files {
		if path == current {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			return removed, err
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// Close syncs and closes the current segment.
func (w *WAL) Close() error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if err := w.current.sync(); err != nil {
		return err
	}
	return w.current.close()
}
