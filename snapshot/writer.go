package snapshot

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/creachadair/atomicfile"
)

const fileName = "snapshot.bin"

// Path returns the snapshot file inside dir.
func Path(dir string) string {
	return filepath.Join(dir, fileName)
}

type Writer struct {
	Dir string
}

// Write replaces the snapshot in w.Dir with s. The old file stays in place
// until the new one is complete.
func (w *Writer) Write(s *Snapshot) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode snapshot %d: %w", s.Seq, err)
	}
	path := Path(w.Dir)
	if _, err := atomicfile.WriteAll(path, &buf, 0o644); err != nil {
		return fmt.Errorf("write snapshot %d: %w", s.Seq, err)
	}
	// Log segments are dropped once this returns, so the file must be on
	// disk first.
	return syncPath(path, w.Dir)
}

func syncPath(paths ...string) error {
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		err = f.Sync()
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
