// Package beats detects beats and tempo in audio and splits media files at
// beat boundaries, driving python/aubio and moviepy workers through the
// scripted-task engine.
package beats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/clipforge/engine/internal/ports"
	"github.com/clipforge/engine/internal/script"
	"github.com/clipforge/engine/internal/task"
	"github.com/clipforge/engine/internal/types"
)

// DefaultDetectPhaseEnd is where the detection phase of SplitAtBeats ends in
// overall progress; the split phase fills the rest.
const DefaultDetectPhaseEnd = 0.30

// Boundary synthesis thresholds, preserved from long-standing splitter
// behavior.
const (
	leadingBoundaryGap  = 0.5
	trailingBoundaryGap = 1.0
)

type Config struct {
	Python         string // interpreter for the driver scripts, default python3
	Aubio          string // aubio CLI used as detection fallback, default aubio
	DetectPhaseEnd float64
}

// Detector is the beat-analysis capability. One detector runs one task at a
// time; concurrent calls queue.
type Detector struct {
	engine         *task.Engine
	queue          *task.Queue
	prober         ports.Prober
	python         string
	aubio          string
	detectPhaseEnd float64
	log            *zap.Logger
}

func NewDetector(engine *task.Engine, prober ports.Prober, cfg Config, log *zap.Logger) *Detector {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Aubio == "" {
		cfg.Aubio = "aubio"
	}
	if cfg.DetectPhaseEnd <= 0 || cfg.DetectPhaseEnd >= 1 {
		cfg.DetectPhaseEnd = DefaultDetectPhaseEnd
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{
		engine:         engine,
		queue:          task.NewQueue(),
		prober:         prober,
		python:         cfg.Python,
		aubio:          cfg.Aubio,
		detectPhaseEnd: cfg.DetectPhaseEnd,
		log:            log,
	}
}

// DetectBeats runs beat detection on audioFile. The python/aubio driver is
// tried first; when it errors or finds nothing, the aubio CLI gets one
// attempt before the task fails with an empty result.
func (d *Detector) DetectBeats(ctx context.Context, audioFile string, threshold float64, sink task.Sink) ([]types.Beat, error) {
	g := task.NewGuard(sink)
	if err := checkInput(audioFile); err != nil {
		return nil, task.Complete(g, err, "", "")
	}
	if err := d.queue.Acquire(ctx); err != nil {
		return nil, task.Complete(g, fmt.Errorf("%w: %v", task.ErrCanceled, err), "", "")
	}
	defer d.queue.Release()

	out, err := d.detect(ctx, audioFile, threshold, task.Window{}, g)
	if err != nil {
		return nil, task.Complete(g, err, "", "")
	}
	msg := fmt.Sprintf("detected %d beats", len(out.Beats))
	return out.Beats, task.Complete(g, nil, msg, "")
}

// DetectTempo estimates the tempo of audioFile in BPM.
func (d *Detector) DetectTempo(ctx context.Context, audioFile string, sink task.Sink) (float64, error) {
	g := task.NewGuard(sink)
	if err := checkInput(audioFile); err != nil {
		return 0, task.Complete(g, err, "", "")
	}
	if err := d.queue.Acquire(ctx); err != nil {
		return 0, task.Complete(g, fmt.Errorf("%w: %v", task.ErrCanceled, err), "", "")
	}
	defer d.queue.Release()

	kind := task.Kind{
		Name:     "detect-tempo",
		Template: script.DetectTempo,
		Program:  d.python,
		Args: func(scriptPath string) []string {
			return []string{scriptPath, audioFile}
		},
		Message: "analyzing tempo",
	}
	out, err := d.engine.Run(ctx, kind, g)
	if err != nil {
		return 0, task.Complete(g, err, "", "")
	}
	if !out.TempoSeen {
		return 0, task.Complete(g, fmt.Errorf("%w: no tempo reported", task.ErrEmptyResult), "", "")
	}
	return out.Tempo, task.Complete(g, nil, fmt.Sprintf("tempo %.1f BPM", out.Tempo), "")
}

// SplitAtBeats detects beats in inputFile and cuts it into per-beat segments
// under outputDir. Detection occupies the first part of the progress range,
// splitting the rest.
func (d *Detector) SplitAtBeats(ctx context.Context, inputFile, outputDir string, threshold float64, sink task.Sink) ([]string, error) {
	g := task.NewGuard(sink)
	if err := checkInput(inputFile); err != nil {
		return nil, task.Complete(g, err, "", "")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, task.Complete(g, fmt.Errorf("%w: %v", task.ErrWorkspaceUnavailable, err), "", "")
	}
	if err := d.queue.Acquire(ctx); err != nil {
		return nil, task.Complete(g, fmt.Errorf("%w: %v", task.ErrCanceled, err), "", "")
	}
	defer d.queue.Release()

	detected, err := d.detect(ctx, inputFile, threshold, task.Window{Lo: 0, Hi: d.detectPhaseEnd}, g)
	if err != nil {
		return nil, task.Complete(g, err, "", "")
	}
	if len(detected.Beats) == 0 {
		return nil, task.Complete(g, fmt.Errorf("%w: no beats in %s", task.ErrEmptyResult, inputFile), "", "")
	}

	dur, err := d.prober.ProbeDuration(ctx, inputFile)
	if err != nil {
		return nil, task.Complete(g, fmt.Errorf("%w: %v", task.ErrProcessFailed, err), "", "")
	}
	boundaries := Boundaries(detected.Beats, dur.Seconds())
	bj, err := json.Marshal(boundaries)
	if err != nil {
		return nil, task.Complete(g, err, "", "")
	}

	kind := task.Kind{
		Name:     "split-at-beats",
		Template: script.SplitAtBeats,
		Program:  d.python,
		Args: func(scriptPath string) []string {
			return []string{scriptPath, inputFile, outputDir, string(bj)}
		},
		Window:  task.Window{Lo: d.detectPhaseEnd, Hi: 1},
		Message: "splitting at beats",
	}
	out, err := d.engine.Run(ctx, kind, g)
	if err != nil {
		return nil, task.Complete(g, err, "", "")
	}
	if len(out.Outputs) == 0 {
		return nil, task.Complete(g, fmt.Errorf("%w: splitter produced no segments", task.ErrEmptyResult), "", "")
	}
	msg := fmt.Sprintf("wrote %d segments", len(out.Outputs))
	return out.Outputs, task.Complete(g, nil, msg, outputDir)
}

// detect runs the primary python driver with a one-shot aubio CLI fallback.
func (d *Detector) detect(ctx context.Context, audioFile string, threshold float64, win task.Window, g *task.Guard) (task.Outcome, error) {
	primary := func(ctx context.Context) (task.Outcome, error) {
		kind := task.Kind{
			Name:     "detect-beats",
			Template: script.DetectBeats,
			Program:  d.python,
			Args: func(scriptPath string) []string {
				return []string{scriptPath, audioFile, formatFloat(threshold)}
			},
			Window:  win,
			Message: "detecting beats",
		}
		return d.engine.Run(ctx, kind, g)
	}

	fallback := func(ctx context.Context) (task.Outcome, error) {
		d.log.Info("beat driver yielded nothing, trying aubio CLI",
			zap.String("input", audioFile))
		var collected []types.Beat
		kind := task.Kind{
			Name:    "detect-beats-aubio",
			Program: d.aubio,
			Args: func(string) []string {
				return []string{"tempo", "-i", audioFile, "-t", formatFloat(threshold)}
			},
			Window:  win,
			Message: "detecting beats",
			// The CLI prints one beat time per line, no protocol.
			Free: func(line string) {
				f, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
				if err == nil {
					collected = append(collected, types.Beat{Time: f, Confidence: 1})
				}
			},
		}
		out, err := d.engine.Run(ctx, kind, g)
		out.Beats = append(out.Beats, collected...)
		return out, err
	}

	s := task.TwoAttempt{
		Primary:  primary,
		Fallback: fallback,
		Empty:    func(o task.Outcome) bool { return len(o.Beats) == 0 },
	}
	return s.Run(ctx)
}

// Boundaries converts detected beat times into the cut boundary list handed
// to the splitter. A leading 0 is synthesized only when the first beat is
// more than 0.5s in; the file end is appended only when the last beat is
// more than 1.0s before it.
func Boundaries(beats []types.Beat, duration float64) []float64 {
	if len(beats) == 0 {
		return nil
	}
	b := make([]float64, 0, len(beats)+2)
	if beats[0].Time > leadingBoundaryGap {
		b = append(b, 0)
	}
	for _, beat := range beats {
		b = append(b, beat.Time)
	}
	if beats[len(beats)-1].Time < duration-trailingBoundaryGap {
		b = append(b, duration)
	}
	return b
}

func checkInput(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", task.ErrInputNotFound, path)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
