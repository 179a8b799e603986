package entry

import (
	"encoding/binary"
	"io"
	"os"
)

// maxSeqInSegment scans a WAL segment and returns the maximum sequence ID found.
// It is used ONLY for snapshot-based truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var maxSeq uint64
	header := make([]byte, headerSize)

	for {
		// Header: [type:1][seq:8][time:8][len:4]
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return maxSeq, nil
			}
			return maxSeq, err
		}

		seq := binary.BigEndian.Uint64(header[1:9])
		if seq > maxSeq {
			maxSeq = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])

		// Skip payload + CRC
		if _, err := f.Seek(int64(payloadLen)+4, io.SeekCurrent); err != nil {
			return maxSeq, err
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// repairTail cuts a segment back to the end of its last intact record, so
// appends after a crash never land behind a torn write.
func repairTail(path string) (cut bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return false, err
	}

	cr := &countingReader{r: f}
	var valid int64
	for {
		if _, err := readRecord(cr); err != nil {
			break
		}
		valid = cr.n
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	if valid == st.Size() {
		return false, nil
	}
	return true, os.Truncate(path, valid)
}
