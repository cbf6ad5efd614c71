// Package xresult collects and persists the outcome of analyzing each
// trace file in a batch run. Adapted from the teacher's
// pkg/result/table.go (Rule/Table, sync.Mutex, sorted-copy-on-read) and
// pkg/result/checkpoint.go (gob Checkpoint), repurposed from "candidate
// optimization rules found" to "trace files analyzed".
package xresult

import (
	"sort"
	"sync"
)

// BatchResult is the outcome of running the full pipeline (parse,
// parameter build, slice, symbolic execution) over one trace file.
type BatchResult struct {
	TraceFile        string
	InstructionCount int
	SliceLength      int
	Err              string // empty on success
}

// Table is a mutex-guarded collection of BatchResults, safe to append
// to concurrently from a worker pool.
type Table struct {
	mu      sync.Mutex
	results []BatchResult
}

func NewTable() *Table { return &Table{} }

func (t *Table) Add(r BatchResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, r)
}

// Results returns a sorted copy (by TraceFile, ascending) so batch
// output is deterministic regardless of completion order.
func (t *Table) Results() []BatchResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]BatchResult, len(t.results))
	copy(out, t.results)
	sort.Slice(out, func(i, j int) bool { return out[i].TraceFile < out[j].TraceFile })
	return out
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.results)
}
