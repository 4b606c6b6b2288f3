// Package ai provides the transcription-backed captions capability and the
// face-tracking smart reframe capability.
package ai

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipforge/engine/internal/ports"
	"github.com/clipforge/engine/internal/script"
	"github.com/clipforge/engine/internal/task"
	"github.com/clipforge/engine/internal/workspace"
)

type Config struct {
	Python string // interpreter for the reframe driver, default python3
}

// Services bundles the AI-adjacent capabilities. One task at a time;
// concurrent calls queue.
type Services struct {
	engine    *task.Engine
	queue     *task.Queue
	ws        *workspace.Workspace
	extractor ports.AudioExtractor
	scribe    ports.Transcriber
	python    string
	log       *zap.Logger
}

func NewServices(engine *task.Engine, ws *workspace.Workspace, extractor ports.AudioExtractor, scribe ports.Transcriber, cfg Config, log *zap.Logger) *Services {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Services{
		engine:    engine,
		queue:     task.NewQueue(),
		ws:        ws,
		extractor: extractor,
		scribe:    scribe,
		python:    cfg.Python,
		log:       log,
	}
}

// GenerateCaptions transcribes inputFile into an SRT file inside the
// workspace and returns its path. Audio is first pulled out as mono 16 kHz
// WAV, the format the transcriber expects.
func (s *Services) GenerateCaptions(ctx context.Context, inputFile, language, modelSize string, sink task.Sink) (string, error) {
	g := task.NewGuard(sink)
	if _, err := os.Stat(inputFile); err != nil {
		return "", task.Complete(g, fmt.Errorf("%w: %s", task.ErrInputNotFound, inputFile), "", "")
	}
	if err := s.queue.Acquire(ctx); err != nil {
		return "", task.Complete(g, fmt.Errorf("%w: %v", task.ErrCanceled, err), "", "")
	}
	defer s.queue.Release()

	wsDir, err := s.ws.Acquire()
	if err != nil {
		return "", task.Complete(g, fmt.Errorf("%w: %v", task.ErrWorkspaceUnavailable, err), "", "")
	}

	g.Progress(0.05, "extracting audio")
	wav := s.ws.Join("captions-" + uuid.NewString() + ".wav")
	if err := s.extractor.ExtractAudioMono16k(ctx, inputFile, wav); err != nil {
		return "", task.Complete(g, s.external(ctx, err), "", "")
	}
	defer os.Remove(wav)

	g.Progress(0.25, "transcribing")
	srt, err := s.scribe.Transcribe(ctx, wav, wsDir, language, modelSize)
	if err != nil {
		return "", task.Complete(g, s.external(ctx, err), "", "")
	}
	return srt, task.Complete(g, nil, "captions generated", srt)
}

// SmartReframe recrops inputFile to targetRatio ("W:H", two positive
// integers), keeping detected faces in frame.
func (s *Services) SmartReframe(ctx context.Context, inputFile, outputFile, targetRatio string, sink task.Sink) (string, error) {
	g := task.NewGuard(sink)
	if err := validateRatio(targetRatio); err != nil {
		return "", task.Complete(g, err, "", "")
	}
	if _, err := os.Stat(inputFile); err != nil {
		return "", task.Complete(g, fmt.Errorf("%w: %s", task.ErrInputNotFound, inputFile), "", "")
	}
	if err := s.queue.Acquire(ctx); err != nil {
		return "", task.Complete(g, fmt.Errorf("%w: %v", task.ErrCanceled, err), "", "")
	}
	defer s.queue.Release()

	kind := task.Kind{
		Name:     "smart-reframe",
		Template: script.SmartReframe,
		Program:  s.python,
		Args: func(scriptPath string) []string {
			return []string{scriptPath, inputFile, outputFile, targetRatio}
		},
		Message: "reframing",
	}
	outcome, err := s.engine.Run(ctx, kind, g)
	if err != nil {
		return "", task.Complete(g, err, "", "")
	}
	if outcome.Terminal != nil && !*outcome.Terminal {
		return "", task.Complete(g, fmt.Errorf("%w: %s", task.ErrProcessFailed, outcome.Diag()), "", "")
	}
	if _, err := os.Stat(outputFile); err != nil {
		return "", task.Complete(g, fmt.Errorf("%w: output file %s missing", task.ErrEmptyResult, outputFile), "", "")
	}
	return outputFile, task.Complete(g, nil, "reframe done", outputFile)
}

// external maps a failed helper-tool call to the right sentinel: a task
// canceled through ctx must not be reported as a tool failure.
func (s *Services) external(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", task.ErrCanceled, err)
	}
	return fmt.Errorf("%w: %v", task.ErrProcessFailed, err)
}

func validateRatio(ratio string) error {
	parts := strings.Split(ratio, ":")
	if len(parts) != 2 {
		return fmt.Errorf("%w: ratio %q is not W:H", task.ErrInvalidArgument, ratio)
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: ratio %q is not two positive integers", task.ErrInvalidArgument, ratio)
		}
	}
	return nil
}
