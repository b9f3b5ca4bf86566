package monitor

import (
	"sync"

	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
	"github/chapool/go-custody/internal/wallet/deposit"
)

// task is a running detector.
type task struct {
	detector *deposit.Detector
	stop     chan struct{}
	done     chan struct{}
}

// slot serializes start, stop and start height changes of one pair.
type slot struct {
	mu   sync.Mutex
	task *task
	// stopping is the done channel of a detached task still finishing its iteration
	stopping chan struct{}
	// last keeps the detector of a stopped pair so its final status stays visible
	last *deposit.Detector
}

// TaskRegistry holds one slot per pair. There is no lock spanning pairs.
type TaskRegistry struct {
	mu    sync.Mutex
	slots map[chain.Pair]*slot
}

var _ cursor.Guard = (*TaskRegistry)(nil)

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{slots: make(map[chain.Pair]*slot)}
}

// lockSettled locks s once no detached detector of the pair is still running.
func (s *slot) lockSettled() {
	s.mu.Lock()
	for s.stopping != nil {
		done := s.stopping
		s.mu.Unlock()
		<-done
		s.mu.Lock()
		if s.stopping == done {
			s.stopping = nil
		}
	}
}

func (r *TaskRegistry) slot(pair chain.Pair) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[pair]
	if !ok {
		s = &slot{}
		r.slots[pair] = s
	}
	return s
}

// WhileStopped runs fn while holding the pair lock, or fails with cursor.ErrInvalidState when the pair is running.
// A detector that is being stopped is waited for first.
func (r *TaskRegistry) WhileStopped(pair chain.Pair, fn func() error) error {
	s := r.slot(pair)
	s.lockSettled()
	defer s.mu.Unlock()

	if s.task != nil {
		return cursor.ErrInvalidState
	}
	return fn()
}

// IsRunning reports whether a detector task exists for pair.
func (r *TaskRegistry) IsRunning(pair chain.Pair) bool {
	s := r.slot(pair)
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.task != nil
}

// pairs returns every pair that ever had a slot.
func (r *TaskRegistry) pairs() []chain.Pair {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]chain.Pair, 0, len(r.slots))
	for p := range r.slots {
		res = append(res, p)
	}
	return res
}

// detector returns the running or last stopped detector of pair.
func (r *TaskRegistry) detector(pair chain.Pair) *deposit.Detector {
	s := r.slot(pair)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task != nil {
		return s.task.detector
	}
	return s.last
}
