package task

import (
	"sync"

	"github.com/clipforge/engine/internal/types"
)

// Sink receives the two event kinds a caller observes: incremental progress
// and a single terminal completion.
type Sink interface {
	Progress(fraction float64, message string)
	Completed(c types.Completion)
}

// Funcs adapts plain callbacks to a Sink. Nil callbacks are ignored.
type Funcs struct {
	OnProgress  func(fraction float64, message string)
	OnCompleted func(c types.Completion)
}

func (f Funcs) Progress(fraction float64, message string) {
	if f.OnProgress != nil {
		f.OnProgress(fraction, message)
	}
}

func (f Funcs) Completed(c types.Completion) {
	if f.OnCompleted != nil {
		f.OnCompleted(c)
	}
}

// Guard wraps a Sink and enforces the event contract: exactly one completion
// per task, no progress after it, and monotone non-decreasing fractions.
type Guard struct {
	mu   sync.Mutex
	sink Sink
	done bool
	high float64
}

func NewGuard(sink Sink) *Guard {
	if sink == nil {
		sink = Funcs{}
	}
	return &Guard{sink: sink}
}

func (g *Guard) Progress(fraction float64, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	if fraction < g.high {
		fraction = g.high
	}
	g.high = fraction
	g.sink.Progress(fraction, message)
}

// Completed forwards the first completion and drops any later one.
func (g *Guard) Completed(c types.Completion) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	g.sink.Completed(c)
}

// Done reports whether the completion has been delivered.
func (g *Guard) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}
