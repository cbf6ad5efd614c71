package xresult

import "testing"

func TestResultsSortedByTraceFile(t *testing.T) {
	tbl := NewTable()
	tbl.Add(BatchResult{TraceFile: "z.trace"})
	tbl.Add(BatchResult{TraceFile: "a.trace"})
	tbl.Add(BatchResult{TraceFile: "m.trace"})

	got := tbl.Results()
	if len(got) != 3 {
		t.Fatalf("len(Results()) = %d, want 3", len(got))
	}
	if got[0].TraceFile != "a.trace" || got[1].TraceFile != "m.trace" || got[2].TraceFile != "z.trace" {
		t.Errorf("Results() = %v, want sorted by TraceFile", got)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	ckpt := &Checkpoint{
		Results:        []BatchResult{{TraceFile: "a.trace", InstructionCount: 12}},
		CompletedFiles: 1,
		TotalFiles:     3,
	}
	path := t.TempDir() + "/ckpt.gob"
	if err := SaveCheckpoint(path, ckpt); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	loaded, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if loaded.CompletedFiles != 1 || loaded.TotalFiles != 3 || len(loaded.Results) != 1 {
		t.Errorf("LoadCheckpoint = %+v, want match of saved state", loaded)
	}
	if !loaded.AlreadyDone("a.trace") {
		t.Error("AlreadyDone(a.trace) = false, want true")
	}
	if loaded.AlreadyDone("b.trace") {
		t.Error("AlreadyDone(b.trace) = true, want false")
	}
}
