package beats

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipforge/engine/internal/proc"
	"github.com/clipforge/engine/internal/script"
	"github.com/clipforge/engine/internal/task"
	"github.com/clipforge/engine/internal/types"
	"github.com/clipforge/engine/internal/workspace"
)

type recorder struct {
	mu        sync.Mutex
	fractions []float64
	completed []types.Completion
}

func (r *recorder) Progress(f float64, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fractions = append(r.fractions, f)
}

func (r *recorder) Completed(c types.Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, c)
}

func (r *recorder) lastCompletion(t *testing.T) types.Completion {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.completed) != 1 {
		t.Fatalf("completions = %d, want 1", len(r.completed))
	}
	return r.completed[0]
}

// stubProgram writes an executable shell script standing in for the python
// interpreter or the aubio CLI.
func stubProgram(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type fakeProber struct {
	dur time.Duration
	err error
}

func (p fakeProber) ProbeDuration(context.Context, string) (time.Duration, error) {
	return p.dur, p.err
}

func newDetector(t *testing.T, cfg Config, prober fakeProber) *Detector {
	t.Helper()
	ws := workspace.New(t.TempDir(), "beats")
	engine := task.NewEngine(proc.NewRunner(nil), script.NewEmitter(ws), nil)
	return NewDetector(engine, prober, cfg, nil)
}

func TestBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		times    []float64
		duration float64
		want     []float64
	}{
		{
			name:     "both ends synthesized",
			times:    []float64{1.0, 2.0},
			duration: 10.0,
			want:     []float64{0, 1.0, 2.0, 10.0},
		},
		{
			name:     "early first beat suppresses leading zero",
			times:    []float64{0.4, 1.2, 3.0},
			duration: 4.0,
			want:     []float64{0.4, 1.2, 3.0},
		},
		{
			name:     "late last beat suppresses trailing duration",
			times:    []float64{0.8, 9.5},
			duration: 10.0,
			want:     []float64{0, 0.8, 9.5},
		},
		{
			name:     "exact thresholds synthesize nothing",
			times:    []float64{0.5, 9.0},
			duration: 10.0,
			want:     []float64{0.5, 9.0},
		},
		{
			name:     "no beats",
			times:    nil,
			duration: 10.0,
			want:     nil,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var beats []types.Beat
			for _, tm := range tc.times {
				beats = append(beats, types.Beat{Time: tm, Confidence: 1})
			}
			got := Boundaries(beats, tc.duration)
			if len(got) != len(tc.want) {
				t.Fatalf("Boundaries = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("Boundaries = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestDetectBeats(t *testing.T) {
	t.Parallel()

	python := stubProgram(t, `
echo 'PROGRESS:0.5'
echo 'BEATS:[[0.6,0.9],[2.0,0.8]]'
`)
	d := newDetector(t, Config{Python: python}, fakeProber{})
	audio := touch(t, t.TempDir(), "song.mp3")
	rec := &recorder{}

	beats, err := d.DetectBeats(context.Background(), audio, 0.3, rec)
	if err != nil {
		t.Fatalf("DetectBeats: %v", err)
	}
	if len(beats) != 2 || beats[0].Time != 0.6 || beats[1].Confidence != 0.8 {
		t.Fatalf("beats = %+v", beats)
	}
	c := rec.lastCompletion(t)
	if !c.Success || c.Canceled {
		t.Fatalf("completion = %+v", c)
	}
}

func TestDetectBeatsFallsBackToCLI(t *testing.T) {
	t.Parallel()

	python := stubProgram(t, `echo 'BEATS:[]'`)
	aubio := stubProgram(t, `
echo '0.50'
echo '1.25'
`)
	d := newDetector(t, Config{Python: python, Aubio: aubio}, fakeProber{})
	audio := touch(t, t.TempDir(), "song.wav")
	rec := &recorder{}

	beats, err := d.DetectBeats(context.Background(), audio, 0.3, rec)
	if err != nil {
		t.Fatalf("DetectBeats: %v", err)
	}
	if len(beats) != 2 || beats[0].Time != 0.5 || beats[1].Time != 1.25 {
		t.Fatalf("beats = %+v", beats)
	}
	for _, b := range beats {
		if b.Confidence != 1 {
			t.Fatalf("fallback confidence = %v, want 1", b.Confidence)
		}
	}
	if c := rec.lastCompletion(t); !c.Success {
		t.Fatalf("completion = %+v", c)
	}
}

func TestDetectBeatsBothAttemptsEmpty(t *testing.T) {
	t.Parallel()

	python := stubProgram(t, `echo 'BEATS:[]'`)
	aubio := stubProgram(t, `true`)
	d := newDetector(t, Config{Python: python, Aubio: aubio}, fakeProber{})
	audio := touch(t, t.TempDir(), "silence.wav")
	rec := &recorder{}

	_, err := d.DetectBeats(context.Background(), audio, 0.3, rec)
	if !errors.Is(err, task.ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
	if c := rec.lastCompletion(t); c.Success || c.Canceled {
		t.Fatalf("completion = %+v", c)
	}
}

func TestDetectBeatsMissingInput(t *testing.T) {
	t.Parallel()

	d := newDetector(t, Config{Python: "/bin/false"}, fakeProber{})
	rec := &recorder{}
	missing := filepath.Join(t.TempDir(), "nope.mp3")

	_, err := d.DetectBeats(context.Background(), missing, 0.3, rec)
	if !errors.Is(err, task.ErrInputNotFound) {
		t.Fatalf("err = %v, want ErrInputNotFound", err)
	}
	c := rec.lastCompletion(t)
	if c.Success {
		t.Fatalf("completion = %+v", c)
	}
	if !strings.Contains(c.Message, missing) {
		t.Fatalf("failure message %q lacks input path", c.Message)
	}
}

func TestDetectTempo(t *testing.T) {
	t.Parallel()

	python := stubProgram(t, `
echo 'PROGRESS:0.4'
echo 'TEMPO:128.000000'
`)
	d := newDetector(t, Config{Python: python}, fakeProber{})
	audio := touch(t, t.TempDir(), "song.mp3")
	rec := &recorder{}

	bpm, err := d.DetectTempo(context.Background(), audio, rec)
	if err != nil {
		t.Fatalf("DetectTempo: %v", err)
	}
	if bpm != 128 {
		t.Fatalf("bpm = %v", bpm)
	}
	if c := rec.lastCompletion(t); !c.Success {
		t.Fatalf("completion = %+v", c)
	}
}

func TestDetectTempoNoTempoLine(t *testing.T) {
	t.Parallel()

	python := stubProgram(t, `echo 'PROGRESS:1.0'`)
	d := newDetector(t, Config{Python: python}, fakeProber{})
	audio := touch(t, t.TempDir(), "song.mp3")
	rec := &recorder{}

	_, err := d.DetectTempo(context.Background(), audio, rec)
	if !errors.Is(err, task.ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
}

func TestSplitAtBeats(t *testing.T) {
	t.Parallel()

	// One stub serves both phases; it branches on the emitted script name
	// and records the boundary argv for the split phase.
	python := stubProgram(t, `
case "$1" in
*detect_beats*)
	echo 'PROGRESS:0.5'
	echo 'BEATS:[[1.0,0.9],[2.0,0.8]]'
	;;
*split_at_beats*)
	printf '%s' "$4" > "$3/boundaries.json"
	echo 'PROGRESS:0.5'
	echo 'OUTPUT:["'"$3"'/seg_000.mp4","'"$3"'/seg_001.mp4"]'
	;;
esac
`)
	d := newDetector(t, Config{Python: python}, fakeProber{dur: 10 * time.Second})
	in := touch(t, t.TempDir(), "clip.mp4")
	outDir := filepath.Join(t.TempDir(), "segments")
	rec := &recorder{}

	outputs, err := d.SplitAtBeats(context.Background(), in, outDir, 0.3, rec)
	if err != nil {
		t.Fatalf("SplitAtBeats: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("outputs = %v", outputs)
	}

	bj, err := os.ReadFile(filepath.Join(outDir, "boundaries.json"))
	if err != nil {
		t.Fatalf("split driver never received boundaries: %v", err)
	}
	// Beats at 1.0 and 2.0 in a 10s file: both ends synthesized.
	if got := string(bj); got != "[0,1,2,10]" {
		t.Fatalf("boundaries = %s", got)
	}

	c := rec.lastCompletion(t)
	if !c.Success || c.OutputPath != outDir {
		t.Fatalf("completion = %+v", c)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	prev := -1.0
	for _, f := range rec.fractions {
		if f < prev {
			t.Fatalf("progress regressed across phases: %v", rec.fractions)
		}
		prev = f
	}
	if rec.fractions[0] > DefaultDetectPhaseEnd {
		t.Fatalf("detect-phase progress %v above phase end", rec.fractions[0])
	}
}

func TestSplitAtBeatsNoBeatsNeverSplits(t *testing.T) {
	t.Parallel()

	python := stubProgram(t, `
case "$1" in
*detect_beats*) echo 'BEATS:[]' ;;
*split_at_beats*) printf 'ran' > "$3/split-ran" ;;
esac
`)
	aubio := stubProgram(t, `true`)
	d := newDetector(t, Config{Python: python, Aubio: aubio}, fakeProber{dur: 10 * time.Second})
	in := touch(t, t.TempDir(), "clip.mp4")
	outDir := filepath.Join(t.TempDir(), "segments")
	rec := &recorder{}

	_, err := d.SplitAtBeats(context.Background(), in, outDir, 0.3, rec)
	if !errors.Is(err, task.ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "split-ran")); !os.IsNotExist(err) {
		t.Fatal("split driver ran despite zero beats")
	}
}
