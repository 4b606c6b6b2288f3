// Package task is the generic scripted-task engine shared by all capability
// adapters: emit a driver script, launch it, fold the stdout line protocol
// into an Outcome, and report exactly one completion per task.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipforge/engine/internal/proc"
	"github.com/clipforge/engine/internal/protocol"
	"github.com/clipforge/engine/internal/script"
	"github.com/clipforge/engine/internal/types"
)

// diagTail bounds how many unrecognized output lines are kept for failure
// messages.
const diagTail = 20

// Window maps a driver's self-reported 0-1 progress into a sub-range of the
// overall task, so multi-phase adapters can compose phases.
type Window struct {
	Lo, Hi float64
}

func (w Window) rescale(f float64) float64 {
	if w.Lo == 0 && w.Hi == 0 {
		return f
	}
	return w.Lo + f*(w.Hi-w.Lo)
}

// Kind describes one external invocation: what script to emit (if any), what
// program to run, and how its progress maps into the task.
type Kind struct {
	Name     string
	Template script.ID // empty: Program is invoked without a driver script
	Program  string
	Args     func(scriptPath string) []string
	Window   Window
	Message  string // message attached to PROGRESS updates

	// Free receives unrecognized output lines for programs that speak no
	// protocol (e.g. a CLI printing one value per line). When set, such
	// lines are consumed here instead of the diagnostic tail.
	Free func(line string)
}

// Outcome is everything the driver reported, plus the exit status.
type Outcome struct {
	Beats       []types.Beat
	Outputs     []string
	Tempo       float64
	TempoSeen   bool
	Terminal    *bool // SUCCESS/FAILED hint, nil if never printed
	Diagnostics []string
	ParseFails  int
	Exit        proc.Exit
}

// Diag joins the captured diagnostic tail for a failure message.
func (o *Outcome) Diag() string {
	return strings.Join(o.Diagnostics, "\n")
}

// Engine runs Kinds. One Engine is shared per adapter; it holds no per-task
// state.
type Engine struct {
	runner  *proc.Runner
	emitter *script.Emitter
	log     *zap.Logger
}

func NewEngine(runner *proc.Runner, emitter *script.Emitter, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{runner: runner, emitter: emitter, log: log}
}

// Run executes one kind to completion. Progress flows to g as output streams
// in; the returned error is nil only for a clean zero exit. Launch and
// emission failures are synchronous; ErrCanceled is returned when ctx was
// canceled while the process ran.
func (e *Engine) Run(ctx context.Context, kind Kind, g *Guard) (Outcome, error) {
	var out Outcome

	taskID := uuid.NewString()
	scriptPath := ""
	if kind.Template != "" {
		p, err := e.emitter.Emit(kind.Template, taskID)
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrWorkspaceUnavailable, err)
		}
		scriptPath = p
	}

	args := kind.Args(scriptPath)
	e.log.Info("launching task",
		zap.String("kind", kind.Name),
		zap.String("task_id", taskID),
		zap.String("program", kind.Program),
	)

	h, err := e.runner.Start(ctx, kind.Program, args...)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrProcessLaunchFailed, err)
	}

	for line := range h.Lines() {
		ev := protocol.Classify(line)
		if ev.Err != nil {
			// Malformed payload on a known prefix: log and keep going.
			out.ParseFails++
			e.log.Warn("protocol parse failure",
				zap.String("kind", kind.Name),
				zap.String("line", ev.Raw),
				zap.Error(ev.Err),
			)
			continue
		}
		switch ev.Kind {
		case protocol.Progress:
			g.Progress(kind.Window.rescale(ev.Fraction), kind.Message)
		case protocol.Beats:
			out.Beats = append(out.Beats, ev.Beats...)
		case protocol.Outputs:
			out.Outputs = append(out.Outputs, ev.Outputs...)
		case protocol.Tempo:
			out.Tempo = ev.Tempo
			out.TempoSeen = true
		case protocol.Terminal:
			ok := ev.Success
			out.Terminal = &ok
		default:
			if kind.Free != nil {
				kind.Free(ev.Raw)
				continue
			}
			if ev.Raw != "" {
				out.Diagnostics = append(out.Diagnostics, ev.Raw)
				if len(out.Diagnostics) > diagTail {
					out.Diagnostics = out.Diagnostics[1:]
				}
			}
		}
	}

	exit := <-h.Exit()
	out.Exit = exit

	if exit.Err != nil && ctx.Err() != nil && errors.Is(exit.Err, ctx.Err()) {
		return out, fmt.Errorf("%w: %s", ErrCanceled, kind.Name)
	}
	if ctx.Err() != nil && exit.Code == -1 {
		return out, fmt.Errorf("%w: %s", ErrCanceled, kind.Name)
	}
	if exit.Code != 0 || exit.Crashed {
		return out, &ProcessError{
			Kind:     kind.Name,
			ExitCode: exit.Code,
			Crashed:  exit.Crashed,
			Output:   out.Diag(),
			Cause:    exit.Err,
		}
	}
	return out, nil
}
