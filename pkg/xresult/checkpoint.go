package xresult

import (
	"encoding/gob"
	"os"
)

// Checkpoint holds enough state to resume a batch run across a restart:
// every file's result so far, and how many of the total the run has
// gotten through. Adapted from the teacher's pkg/result/checkpoint.go.
type Checkpoint struct {
	Results        []BatchResult
	CompletedFiles int
	TotalFiles     int
}

func init() {
	gob.Register(BatchResult{})
}

// SaveCheckpoint writes ckpt to path.
func SaveCheckpoint(path string, ckpt *Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(ckpt)
}

// LoadCheckpoint reads a Checkpoint previously written by SaveCheckpoint.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ckpt Checkpoint
	if err := gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, err
	}
	return &ckpt, nil
}

// AlreadyDone reports whether traceFile's result is already recorded in
// ckpt, so a resumed batch run can skip it.
func (c *Checkpoint) AlreadyDone(traceFile string) bool {
	for _, r := range c.Results {
		if r.TraceFile == traceFile {
			return true
		}
	}
	return false
}
