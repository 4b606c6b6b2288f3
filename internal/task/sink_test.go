package task

import (
	"sync"
	"testing"

	"github.com/clipforge/engine/internal/types"
)

func TestGuardMonotoneProgress(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	g := NewGuard(rec)

	g.Progress(0.2, "")
	g.Progress(0.1, "") // regression is pinned to the high-water mark
	g.Progress(0.5, "")

	want := []float64{0.2, 0.2, 0.5}
	if len(rec.fractions) != len(want) {
		t.Fatalf("fractions = %v", rec.fractions)
	}
	for i, f := range rec.fractions {
		if f != want[i] {
			t.Fatalf("fraction[%d] = %v, want %v", i, f, want[i])
		}
	}
}

func TestGuardSingleCompletion(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	g := NewGuard(rec)

	g.Completed(types.Completion{Success: true})
	g.Completed(types.Completion{Success: false})
	g.Progress(0.9, "late")

	if len(rec.completed) != 1 || !rec.completed[0].Success {
		t.Fatalf("completed = %+v", rec.completed)
	}
	if len(rec.fractions) != 0 {
		t.Fatalf("progress after completion: %v", rec.fractions)
	}
	if !g.Done() {
		t.Fatal("Done() = false after completion")
	}
}

func TestGuardConcurrentCompletionDeliversOnce(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	g := NewGuard(rec)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Completed(types.Completion{Success: true})
		}()
	}
	wg.Wait()

	if len(rec.completed) != 1 {
		t.Fatalf("completions = %d, want 1", len(rec.completed))
	}
}
