// Package proc launches external driver processes and streams their combined
// output line by line without blocking the caller.
package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultGrace is how long a canceled process gets to exit after SIGTERM
// before it is killed.
const DefaultGrace = 5 * time.Second

// Exit is the terminal status of a process.
type Exit struct {
	Code    int
	Crashed bool // terminated by signal rather than a clean exit
	Err     error
}

// Handle follows one running process. Lines delivers each complete output
// line (stdout and stderr merged) as it becomes available; the channel is
// closed when the process stops producing output. Exit delivers the terminal
// status exactly once, after Lines is closed.
type Handle struct {
	lines <-chan string
	exit  <-chan Exit
}

func (h *Handle) Lines() <-chan string { return h.lines }
func (h *Handle) Exit() <-chan Exit    { return h.exit }

// Wait drains remaining output and returns the exit status.
func (h *Handle) Wait() Exit {
	for range h.lines {
	}
	return <-h.exit
}

// Runner starts external processes. Grace bounds how long cancellation waits
// for a process that ignores SIGTERM.
type Runner struct {
	Grace time.Duration
	Log   *zap.Logger
}

func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Grace: DefaultGrace, Log: log}
}

// Start launches program asynchronously. A failure to launch at all (missing
// executable, permission denied) is returned synchronously; everything after
// a successful launch is observed through the handle. Canceling ctx sends
// SIGTERM and escalates to SIGKILL after the grace period, so an exit is
// always delivered.
func (r *Runner) Start(ctx context.Context, program string, args ...string) (*Handle, error) {
	cmd := exec.CommandContext(ctx, program, args...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.Grace
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultGrace
	}

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return nil, fmt.Errorf("start %s: %w", program, err)
	}
	r.Log.Debug("process started",
		zap.String("program", program),
		zap.Int("pid", cmd.Process.Pid),
	)

	lines := make(chan string, 64)
	exit := make(chan Exit, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	go func() {
		err := cmd.Wait()
		pw.Close()
		exit <- classifyExit(ctx, err)
		close(exit)
	}()

	return &Handle{lines: lines, exit: exit}, nil
}

func classifyExit(ctx context.Context, err error) Exit {
	if err == nil {
		return Exit{Code: 0}
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code := ee.ExitCode()
		if code == -1 {
			// Signal-terminated. A cancellation-induced kill is reported
			// as canceled, not as a crash.
			if ctx.Err() != nil {
				return Exit{Code: -1, Err: ctx.Err()}
			}
			return Exit{Code: -1, Crashed: true, Err: err}
		}
		return Exit{Code: code, Err: err}
	}
	if ctx.Err() != nil {
		return Exit{Code: -1, Err: ctx.Err()}
	}
	return Exit{Code: -1, Crashed: true, Err: err}
}
