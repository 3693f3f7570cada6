package web

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBoardModel_TrimsNulAndFallsBack(t *testing.T) {
	tmp := t.TempDir()
	model := filepath.Join(tmp, "model")
	if err := os.WriteFile(model, []byte("Raspberry Pi 5 Model B Rev 1.0\x00"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	prev := boardModelPaths
	boardModelPaths = []string{filepath.Join(tmp, "missing"), model}
	t.Cleanup(func() { boardModelPaths = prev })

	if got := boardModel(); got != "Raspberry Pi 5 Model B Rev 1.0" {
		t.Fatalf("model=%q", got)
	}

	boardModelPaths = []string{filepath.Join(tmp, "missing")}
	if got := boardModel(); got != "" {
		t.Fatalf("model=%q want empty", got)
	}
}
