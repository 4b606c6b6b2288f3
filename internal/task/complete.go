package task

import (
	"context"
	"errors"

	"github.com/clipforge/engine/internal/types"
)

// Complete delivers the single terminal event for a finished task: success
// with message and outputPath when err is nil, a canceled completion when
// err is a cancellation, and a failure completion otherwise. The error is
// returned unchanged so callers can finish with `return result, task.Complete(...)`.
func Complete(g *Guard, err error, message, outputPath string) error {
	if err == nil {
		g.Progress(1, message)
		g.Completed(types.Completion{
			Success:    true,
			Message:    message,
			OutputPath: outputPath,
		})
		return nil
	}
	if errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		g.Completed(types.Completion{Canceled: true, Message: err.Error()})
		return err
	}
	g.Completed(types.Completion{Message: err.Error()})
	return err
}
