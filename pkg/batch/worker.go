// Package batch runs the full analysis pipeline over many trace files
// concurrently. Each worker owns one independent engine.State end to
// end — no engine state is ever shared across goroutines, preserving
// spec.md §5's single-engine-single-thread contract while still
// parallelizing across trace files. Adapted from the teacher's
// pkg/search/worker.go (WorkerPool / channel-fed tasks / sync.WaitGroup).
package batch

import (
	"fmt"
	"os"
	"sync"

	"github.com/vmhunt/symx/pkg/engine"
	"github.com/vmhunt/symx/pkg/parambuild"
	"github.com/vmhunt/symx/pkg/parser"
	"github.com/vmhunt/symx/pkg/slicer"
	"github.com/vmhunt/symx/pkg/xresult"
)

// Run processes every file in traceFiles across workers goroutines,
// skipping any file already recorded in resumeFrom (nil means start
// fresh), and returns the combined result table.
func Run(traceFiles []string, workers int, resumeFrom *xresult.Checkpoint) (*xresult.Table, error) {
	if workers < 1 {
		workers = 1
	}
	table := xresult.NewTable()
	if resumeFrom != nil {
		for _, r := range resumeFrom.Results {
			table.Add(r)
		}
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				table.Add(processFile(file))
			}
		}()
	}

	for _, f := range traceFiles {
		if resumeFrom != nil && resumeFrom.AlreadyDone(f) {
			continue
		}
		jobs <- f
	}
	close(jobs)
	wg.Wait()
	return table, nil
}

// processFile runs parse -> parameter build -> slice -> symbolic
// execution over a single trace file, in isolation from every other
// worker's state.
func processFile(path string) xresult.BatchResult {
	f, err := os.Open(path)
	if err != nil {
		return xresult.BatchResult{TraceFile: path, Err: err.Error()}
	}
	defer f.Close()

	instrs, err := parser.ParseTrace(f)
	if err != nil {
		return xresult.BatchResult{TraceFile: path, Err: fmt.Sprintf("parse: %v", err)}
	}
	for _, in := range instrs {
		if err := parambuild.Build(in); err != nil {
			return xresult.BatchResult{TraceFile: path, Err: fmt.Sprintf("parameter build: %v", err)}
		}
	}

	sliced := slicer.Slice(instrs)

	s := engine.NewState()
	for _, in := range instrs {
		if err := s.Exec(in); err != nil {
			return xresult.BatchResult{TraceFile: path, InstructionCount: len(instrs), Err: fmt.Sprintf("exec: %v", err)}
		}
	}

	return xresult.BatchResult{
		TraceFile:        path,
		InstructionCount: len(instrs),
		SliceLength:      len(sliced),
	}
}
