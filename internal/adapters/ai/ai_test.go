package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/clipforge/engine/internal/proc"
	"github.com/clipforge/engine/internal/script"
	"github.com/clipforge/engine/internal/task"
	"github.com/clipforge/engine/internal/types"
	"github.com/clipforge/engine/internal/workspace"
)

type recorder struct {
	mu        sync.Mutex
	completed []types.Completion
}

func (r *recorder) Progress(float64, string) {}

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

type fakeExtractor struct {
	err error
}

func (f fakeExtractor) ExtractAudioMono16k(_ context.Context, _, outWav string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outWav, []byte("RIFF"), 0o644)
}

type fakeTranscriber struct {
	err error
}

func (f fakeTranscriber) Transcribe(_ context.Context, _, outDir, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	srt := filepath.Join(outDir, "captions.srt")
	content := "1\n00:00:00,000 --> 00:00:02,000\nhi\n"
	if err := os.WriteFile(srt, []byte(content), 0o644); err != nil {
		return "", err
	}
	return srt, nil
}

func newServices(t *testing.T, python string, ex fakeExtractor, tr fakeTranscriber) *Services {
	t.Helper()
	ws := workspace.New(t.TempDir(), "ai")
	engine := task.NewEngine(proc.NewRunner(nil), script.NewEmitter(ws), nil)
	return NewServices(engine, ws, ex, tr, Config{Python: python}, nil)
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func stubPython(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "python-stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerateCaptions(t *testing.T) {
	t.Parallel()

	s := newServices(t, "/bin/false", fakeExtractor{}, fakeTranscriber{})
	in := touch(t, t.TempDir(), "talk.mp4")
	rec := &recorder{}

	srt, err := s.GenerateCaptions(context.Background(), in, "en", "base", rec)
	if err != nil {
		t.Fatalf("GenerateCaptions: %v", err)
	}
	if _, err := os.Stat(srt); err != nil {
		t.Fatalf("srt missing: %v", err)
	}
	c := rec.lastCompletion(t)
	if !c.Success || c.OutputPath != srt {
		t.Fatalf("completion = %+v", c)
	}
}

func TestGenerateCaptionsExtractionFailure(t *testing.T) {
	t.Parallel()

	s := newServices(t, "/bin/false", fakeExtractor{err: errors.New("ffmpeg exploded")}, fakeTranscriber{})
	in := touch(t, t.TempDir(), "talk.mp4")
	rec := &recorder{}

	_, err := s.GenerateCaptions(context.Background(), in, "en", "base", rec)
	if !errors.Is(err, task.ErrProcessFailed) {
		t.Fatalf("err = %v, want ErrProcessFailed", err)
	}
	if c := rec.lastCompletion(t); c.Success || c.Canceled {
		t.Fatalf("completion = %+v", c)
	}
}

func TestGenerateCaptionsTranscriberFailure(t *testing.T) {
	t.Parallel()

	s := newServices(t, "/bin/false", fakeExtractor{}, fakeTranscriber{err: errors.New("no model")})
	in := touch(t, t.TempDir(), "talk.mp4")

	_, err := s.GenerateCaptions(context.Background(), in, "", "", &recorder{})
	if !errors.Is(err, task.ErrProcessFailed) {
		t.Fatalf("err = %v, want ErrProcessFailed", err)
	}
}

func TestGenerateCaptionsMissingInput(t *testing.T) {
	t.Parallel()

	s := newServices(t, "/bin/false", fakeExtractor{}, fakeTranscriber{})
	missing := filepath.Join(t.TempDir(), "gone.mp4")

	_, err := s.GenerateCaptions(context.Background(), missing, "en", "base", &recorder{})
	if !errors.Is(err, task.ErrInputNotFound) {
		t.Fatalf("err = %v, want ErrInputNotFound", err)
	}
}

func TestSmartReframe(t *testing.T) {
	t.Parallel()

	python := stubPython(t, `
printf 'mp4' > "$3"
echo 'PROGRESS:0.5'
echo 'SUCCESS'
`)
	s := newServices(t, python, fakeExtractor{}, fakeTranscriber{})
	dir := t.TempDir()
	in := touch(t, dir, "clip.mp4")
	out := filepath.Join(dir, "vertical.mp4")
	rec := &recorder{}

	got, err := s.SmartReframe(context.Background(), in, out, "9:16", rec)
	if err != nil {
		t.Fatalf("SmartReframe: %v", err)
	}
	if got != out {
		t.Fatalf("output = %s, want %s", got, out)
	}
	if c := rec.lastCompletion(t); !c.Success || c.OutputPath != out {
		t.Fatalf("completion = %+v", c)
	}
}

func TestSmartReframeInvalidRatio(t *testing.T) {
	t.Parallel()

	s := newServices(t, "/bin/false", fakeExtractor{}, fakeTranscriber{})

	for _, ratio := range []string{"", "16", "16:", "a:b", "0:9", "-16:9", "16:9:2"} {
		ratio := ratio
		t.Run(ratio, func(t *testing.T) {
			t.Parallel()
			_, err := s.SmartReframe(context.Background(), "in.mp4", "out.mp4", ratio, &recorder{})
			if !errors.Is(err, task.ErrInvalidArgument) {
				t.Fatalf("ratio %q: err = %v, want ErrInvalidArgument", ratio, err)
			}
		})
	}
}

func TestSmartReframeDriverFailed(t *testing.T) {
	t.Parallel()

	python := stubPython(t, `
echo 'Error: could not open video file'
echo 'FAILED'
exit 1
`)
	s := newServices(t, python, fakeExtractor{}, fakeTranscriber{})
	dir := t.TempDir()
	in := touch(t, dir, "clip.mp4")

	_, err := s.SmartReframe(context.Background(), in, filepath.Join(dir, "out.mp4"), "1:1", &recorder{})
	if !errors.Is(err, task.ErrProcessFailed) {
		t.Fatalf("err = %v, want ErrProcessFailed", err)
	}
}
