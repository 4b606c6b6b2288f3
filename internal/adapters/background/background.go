// Package background removes or replaces video and image backgrounds through
// rembg and OpenCV driver scripts.
package background

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/clipforge/engine/internal/script"
	"github.com/clipforge/engine/internal/task"
)

// DefaultModel is the rembg segmentation model used when none is given.
const DefaultModel = "u2net"

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Config struct {
	Python string // interpreter for the driver scripts, default python3
}

// Remover is the background-manipulation capability. One task at a time;
// concurrent calls queue.
type Remover struct {
	engine *task.Engine
	queue  *task.Queue
	python string
	log    *zap.Logger
}

func NewRemover(engine *task.Engine, cfg Config, log *zap.Logger) *Remover {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Remover{
		engine: engine,
		queue:  task.NewQueue(),
		python: cfg.Python,
		log:    log,
	}
}

// RemoveImageBackground cuts the subject out of an image. With alpha the
// result keeps transparency; otherwise the background is filled with bgColor.
func (r *Remover) RemoveImageBackground(ctx context.Context, in, out string, alpha bool, bgColor, model string, sink task.Sink) error {
	g := task.NewGuard(sink)
	bgColor, model, err := normalizeFill(bgColor, model)
	if err != nil {
		return task.Complete(g, err, "", "")
	}
	kind := task.Kind{
		Name:     "remove-image-background",
		Template: script.RemoveImageBackground,
		Program:  r.python,
		Args: func(scriptPath string) []string {
			return []string{scriptPath, in, out, strconv.FormatBool(alpha), bgColor, model}
		},
		Message: "removing image background",
	}
	return r.run(ctx, kind, in, out, g)
}

// RemoveVideoBackground cuts the subject out of every frame of a video.
// fps <= 0 keeps the source frame rate.
func (r *Remover) RemoveVideoBackground(ctx context.Context, in, out string, alpha bool, bgColor, model string, fps float64, sink task.Sink) error {
	g := task.NewGuard(sink)
	bgColor, model, err := normalizeFill(bgColor, model)
	if err != nil {
		return task.Complete(g, err, "", "")
	}
	if fps < 0 {
		fps = 0
	}
	kind := task.Kind{
		Name:     "remove-video-background",
		Template: script.RemoveVideoBackground,
		Program:  r.python,
		Args: func(scriptPath string) []string {
			return []string{scriptPath, in, out, strconv.FormatBool(alpha), bgColor, model,
				strconv.FormatFloat(fps, 'f', -1, 64)}
		},
		Message: "removing video background",
	}
	return r.run(ctx, kind, in, out, g)
}

// ApplyChromaKey keys out keyColor from a video. similarity, smoothness and
// spill are in [0,1].
func (r *Remover) ApplyChromaKey(ctx context.Context, in, out, keyColor string, similarity, smoothness, spill float64, sink task.Sink) error {
	g := task.NewGuard(sink)
	if !hexColorRe.MatchString(keyColor) {
		return task.Complete(g, fmt.Errorf("%w: key color %q is not #RRGGBB", task.ErrInvalidArgument, keyColor), "", "")
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"similarity", similarity},
		{"smoothness", smoothness},
		{"spill", spill},
	} {
		if p.v < 0 || p.v > 1 {
			return task.Complete(g, fmt.Errorf("%w: %s %v outside [0,1]", task.ErrInvalidArgument, p.name, p.v), "", "")
		}
	}
	kind := task.Kind{
		Name:     "chroma-key",
		Template: script.ChromaKey,
		Program:  r.python,
		Args: func(scriptPath string) []string {
			return []string{scriptPath, in, out, keyColor,
				strconv.FormatFloat(similarity, 'f', -1, 64),
				strconv.FormatFloat(smoothness, 'f', -1, 64),
				strconv.FormatFloat(spill, 'f', -1, 64)}
		},
		Message: "applying chroma key",
	}
	return r.run(ctx, kind, in, out, g)
}

// run is the shared body: validate input, queue, execute, and require both a
// successful terminal hint and the output file on disk.
func (r *Remover) run(ctx context.Context, kind task.Kind, in, out string, g *task.Guard) error {
	if _, err := os.Stat(in); err != nil {
		return task.Complete(g, fmt.Errorf("%w: %s", task.ErrInputNotFound, in), "", "")
	}
	if err := r.queue.Acquire(ctx); err != nil {
		return task.Complete(g, fmt.Errorf("%w: %v", task.ErrCanceled, err), "", "")
	}
	defer r.queue.Release()

	outcome, err := r.engine.Run(ctx, kind, g)
	if err != nil {
		return task.Complete(g, err, "", "")
	}
	if outcome.Terminal != nil && !*outcome.Terminal {
		return task.Complete(g, fmt.Errorf("%w: %s", task.ErrProcessFailed, outcome.Diag()), "", "")
	}
	if _, err := os.Stat(out); err != nil {
		return task.Complete(g, fmt.Errorf("%w: output file %s missing", task.ErrEmptyResult, out), "", "")
	}
	return task.Complete(g, nil, kind.Name+" done", out)
}

func normalizeFill(bgColor, model string) (string, string, error) {
	if bgColor == "" {
		bgColor = "#000000"
	}
	if !hexColorRe.MatchString(bgColor) {
		return "", "", fmt.Errorf("%w: background color %q is not #RRGGBB", task.ErrInvalidArgument, bgColor)
	}
	if model == "" {
		model = DefaultModel
	}
	return bgColor, model, nil
}
