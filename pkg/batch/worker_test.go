package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTrace(t *testing.T, dir, name string) string {
	t.Helper()
	ctx := make([]string, 18)
	for i := 0; i < 16; i++ {
		ctx[i] = "0x0"
	}
	ctx[16], ctx[17] = "-", "-"
	line := "0x1000;mov rax, rbx;" + strings.Join(ctx, ",") + "\n"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRunProcessesAllFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeTrace(t, dir, "a.trace"),
		writeTrace(t, dir, "b.trace"),
		writeTrace(t, dir, "c.trace"),
	}
	table, err := Run(files, 2, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := table.Results()
	if len(results) != 3 {
		t.Fatalf("len(Results()) = %d, want 3", len(results))
	}
	for _, r := range results {
		if r.Err != "" {
			t.Errorf("file %s: unexpected error %q", r.TraceFile, r.Err)
		}
		if r.InstructionCount != 1 {
			t.Errorf("file %s: InstructionCount = %d, want 1", r.TraceFile, r.InstructionCount)
		}
	}
}

func TestRunReportsUnreadableFile(t *testing.T) {
	table, err := Run([]string{"/nonexistent/path.trace"}, 1, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := table.Results()
	if len(results) != 1 || results[0].Err == "" {
		t.Errorf("Results() = %v, want one result with a non-empty error", results)
	}
}
