package snapshot

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Load decodes the snapshot at path. A missing file is reported with an
// error matching os.ErrNotExist; callers treat that as "start empty".
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &s, nil
}
