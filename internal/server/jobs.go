package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipforge/engine/internal/task"
	"github.com/clipforge/engine/internal/types"
)

type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
	StateCanceled   State = "canceled"
)

// Snapshot is the externally visible state of a job; every update delivered
// to subscribers is a full snapshot, so late subscribers never miss state.
type Snapshot struct {
	ID         string    `json:"id"`
	Capability string    `json:"capability"`
	State      State     `json:"state"`
	Fraction   float64   `json:"fraction"`
	Message    string    `json:"message"`
	OutputPath string    `json:"output_path,omitempty"`
	Result     any       `json:"result,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s Snapshot) terminal() bool {
	switch s.State {
	case StateComplete, StateFailed, StateCanceled:
		return true
	}
	return false
}

type job struct {
	snap   Snapshot
	cancel context.CancelFunc
	subs   map[chan Snapshot]struct{}
}

// Manager tracks jobs and fans state changes out to websocket subscribers.
// Finished jobs are evicted after a retention period.
type Manager struct {
	mu     sync.RWMutex
	jobs   map[string]*job
	retain time.Duration
	log    *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		jobs:   make(map[string]*job),
		retain: 10 * time.Minute,
		log:    log,
	}
}

// Create registers a new pending job and returns its snapshot. cancel is
// invoked when the job is canceled through the API.
func (m *Manager) Create(capability string, cancel context.CancelFunc) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := &job{
		snap: Snapshot{
			ID:         uuid.NewString(),
			Capability: capability,
			State:      StatePending,
			CreatedAt:  time.Now(),
		},
		cancel: cancel,
		subs:   make(map[chan Snapshot]struct{}),
	}
	m.jobs[j.snap.ID] = j
	return j.snap
}

// Get returns the snapshot for id.
func (m *Manager) Get(id string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return j.snap, true
}

// Cancel requests cancellation of a running job. Terminal jobs are left
// untouched.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok || j.snap.terminal() {
		m.mu.Unlock()
		return ok
	}
	cancel := j.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Subscribe returns a channel of snapshots for id, starting with the current
// one, and a release function. Updates never block the job: a subscriber that
// falls a full buffer behind loses intermediate snapshots. The channel is
// closed once the job reaches a terminal state.
func (m *Manager) Subscribe(id string) (<-chan Snapshot, func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil, false
	}
	ch := make(chan Snapshot, 16)
	ch <- j.snap
	if j.snap.terminal() {
		close(ch)
		return ch, func() {}, true
	}
	j.subs[ch] = struct{}{}
	release := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, live := j.subs[ch]; live {
			delete(j.subs, ch)
			close(ch)
		}
	}
	return ch, release, true
}

// Sink returns the task.Sink that routes a running task's events into the
// job record.
func (m *Manager) Sink(id string) task.Sink {
	return task.Funcs{
		OnProgress: func(fraction float64, message string) {
			m.update(id, func(s *Snapshot) {
				s.State = StateProcessing
				s.Fraction = fraction
				s.Message = message
			})
		},
		OnCompleted: func(c types.Completion) {
			m.update(id, func(s *Snapshot) {
				switch {
				case c.Canceled:
					s.State = StateCanceled
				case c.Success:
					s.State = StateComplete
					s.Fraction = 1
				default:
					s.State = StateFailed
				}
				s.Message = c.Message
				s.OutputPath = c.OutputPath
			})
		},
	}
}

// SetProcessing marks the job as picked up before its first progress event.
func (m *Manager) SetProcessing(id string) {
	m.update(id, func(s *Snapshot) {
		if s.State == StatePending {
			s.State = StateProcessing
		}
	})
}

// SetResult attaches a capability-specific result payload (beat list, tempo,
// segment paths) to the job.
func (m *Manager) SetResult(id string, result any) {
	m.update(id, func(s *Snapshot) { s.Result = result })
}

func (m *Manager) update(id string, mutate func(*Snapshot)) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	mutate(&j.snap)
	snap := j.snap
	for ch := range j.subs {
		select {
		case ch <- snap:
		default:
			// Subscriber is behind; it will catch up on the next update
			// or the terminal close.
		}
		if snap.terminal() {
			delete(j.subs, ch)
			close(ch)
		}
	}
	m.mu.Unlock()

	if snap.terminal() {
		m.log.Info("job finished",
			zap.String("job_id", id),
			zap.String("capability", snap.Capability),
			zap.String("state", string(snap.State)),
		)
		time.AfterFunc(m.retain, func() {
			m.mu.Lock()
			delete(m.jobs, id)
			m.mu.Unlock()
		})
	}
}
