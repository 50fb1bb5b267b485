package statusbridge

import (
	"sync"
	"time"

	"github.com/kingrea/cv-review/internal/session"
)

// Snapshot is the latest published session state.
type Snapshot struct {
	Published   bool          `json:"published"`
	PublishedAt time.Time     `json:"published_at,omitempty"`
	Sequence    uint64        `json:"sequence"`
	State       session.State `json:"state"`
}

// Board holds the most recent session state for readers on other
// goroutines. The presentation layer publishes after every update.
type Board struct {
	mu    sync.RWMutex
	clock func() time.Time
	snap  Snapshot
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{clock: func() time.Time { return time.Now().UTC() }}
}

// Publish replaces the current state and bumps the sequence.
func (b *Board) Publish(state session.State) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = Snapshot{
		Published:   true,
		PublishedAt: b.clock(),
		Sequence:    b.snap.Sequence + 1,
		State:       state,
	}
}

// Snapshot returns the latest state.
func (b *Board) Snapshot() Snapshot {
	if b == nil {
		return Snapshot{}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}
