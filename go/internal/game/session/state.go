package session

import (
	"maps"
	"sync"
)

// Lease identifies the countdown that owns a running session. Every successful start
// hands out a new lease and invalidates the previous one.
type Lease uint64

// Snapshot is a point-in-time copy of the session
type Snapshot struct {
	Running   bool           `json:"running"`
	Remaining int            `json:"remaining"`
	Scores    map[string]int `json:"scores"`
}

// State is the single in-memory game session. All reads and writes go through mu,
// so handlers and the countdown may run on separate goroutines.
type State struct {
	mu         sync.Mutex
	running    bool
	remaining  int
	scores     map[string]int
	generation uint64
}

// NewState creates an idle session with no time on the clock and no scores
func NewState() *State {
	return &State{
		scores: make(map[string]int),
	}
}

// Start resets the session and begins a new run of the given length.
// Callers are expected to check that no run is active; see TryStart.
func (s *State) Start(seconds int) Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(seconds)
}

// TryStart starts a run only if the session is not already running
func (s *State) TryStart(seconds int) (Lease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return 0, false
	}
	return s.startLocked(seconds), true
}

func (s *State) startLocked(seconds int) Lease {
	if seconds < 0 {
		seconds = 0
	}
	s.running = true
	s.remaining = seconds
	s.scores = make(map[string]int)
	s.generation++
	return Lease(s.generation)
}

// Stop pauses the countdown. Remaining time is kept.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Finish ends the session and zeroes the remaining time
func (s *State) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.remaining = 0
}

// Tick decrements the remaining time by one if the session is running and returns
// the resulting value.
func (s *State) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked()
}

func (s *State) tickLocked() int {
	if s.running && s.remaining > 0 {
		s.remaining--
	}
	return s.remaining
}

// SetScore records the latest score for a player and returns a copy of the full table
func (s *State) SetScore(playerID string, score int) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[playerID] = score
	return maps.Clone(s.scores)
}

// Running reports whether a countdown is in progress
func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Remaining returns the seconds left on the clock
func (s *State) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Snapshot returns a copy of the current session
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Running:   s.running,
		Remaining: s.remaining,
		Scores:    maps.Clone(s.scores),
	}
}

// Holds reports whether the lease still owns an active run, along with the remaining time
func (s *State) Holds(l Lease) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining, s.currentLocked(l) && s.running && s.remaining > 0
}

// Advance ticks the session on behalf of the lease. It is a no-op for a superseded lease.
func (s *State) Advance(l Lease) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(l) {
		return s.remaining, false
	}
	return s.tickLocked(), true
}

// Release stops the session if the lease is still current and reports whether it was
func (s *State) Release(l Lease) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(l) {
		return false
	}
	s.running = false
	return true
}

func (s *State) currentLocked(l Lease) bool {
	return uint64(l) == s.generation
}
