package script

import (
	"os"
	"strings"
	"testing"

	"github.com/clipforge/engine/internal/workspace"
)

func TestEmitWritesDriver(t *testing.T) {
	t.Parallel()

	ws := workspace.New(t.TempDir(), "beats")
	em := NewEmitter(ws)

	path, err := em.Emit(DetectBeats, "task-1")
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read emitted driver: %v", err)
	}
	body := string(b)
	if !strings.Contains(body, "BEATS:") {
		t.Fatal("driver missing BEATS output")
	}
	if !strings.Contains(body, "sys.argv[2]") {
		t.Fatal("driver should take threshold from argv")
	}
}

func TestEmitUniquePerTask(t *testing.T) {
	t.Parallel()

	ws := workspace.New(t.TempDir(), "beats")
	em := NewEmitter(ws)

	a, err := em.Emit(SplitAtBeats, "task-a")
	if err != nil {
		t.Fatalf("emit a: %v", err)
	}
	b, err := em.Emit(SplitAtBeats, "task-b")
	if err != nil {
		t.Fatalf("emit b: %v", err)
	}
	if a == b {
		t.Fatalf("tasks share a script file: %s", a)
	}
}

func TestEmitUnknownTemplate(t *testing.T) {
	t.Parallel()

	em := NewEmitter(workspace.New(t.TempDir(), "beats"))
	if _, err := em.Emit(ID("no-such"), "t"); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestAllTemplatesSpeakProtocol(t *testing.T) {
	t.Parallel()

	terminal := map[ID]string{
		DetectBeats:           "BEATS:",
		DetectTempo:           "TEMPO:",
		SplitAtBeats:          "OUTPUT:",
		RemoveImageBackground: "SUCCESS",
		RemoveVideoBackground: "SUCCESS",
		ChromaKey:             "SUCCESS",
		SmartReframe:          "SUCCESS",
	}
	for id, marker := range terminal {
		body := templates[id]
		if body == "" {
			t.Fatalf("missing template %s", id)
		}
		if !strings.Contains(body, marker) {
			t.Fatalf("template %s does not emit %q", id, marker)
		}
		if strings.Contains(body, "input(") {
			t.Fatalf("template %s reads interactive input", id)
		}
	}
}
