// Package presence tracks how many sessions are currently joined to each
// puzzle. The map is process-local and non-durable by design: a restart
// forgives any counters orphaned by an ungraceful disconnect, and nothing
// is persisted across process lifetimes.
package presence

import (
	"errors"
	"log/slog"

	"github.com/pommicket/jigsaw/internal/syncx"
)

// ErrTooManyPlayers is returned by TryIncrement when the puzzle is already
// at its admission limit.
var ErrTooManyPlayers = errors.New("too many players")

// Tracker is a single process-wide mapping from puzzle id to player count.
type Tracker struct {
	limit int
	log   *slog.Logger
	m     *syncx.Map[string, int]
}

// New returns an empty Tracker admitting at most limit players per puzzle.
func New(limit int, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}

	return &Tracker{
		limit: limit,
		log:   log.With("component", "presence"),
		m:     syncx.NewMap[string, int](),
	}
}

// TryIncrement admits one more player to id, or returns ErrTooManyPlayers
// if the puzzle is already at the admission limit. The entry is created on
// first admission.
func (t *Tracker) TryIncrement(id string) error {
	var admitted bool

	t.m.UpdateLocked(id, func(cur int, exists bool) (int, bool) {
		if cur >= t.limit {
			admitted = false
			return cur, false
		}
		admitted = true
		return cur + 1, false
	})

	if !admitted {
		return ErrTooManyPlayers
	}

	return nil
}

// Decrement removes one player from id. The entry is deleted once it
// reaches zero. A decrement on a puzzle id with no recorded players is a
// programming error: it is logged and otherwise ignored, never fatal.
func (t *Tracker) Decrement(id string) {
	var wasMissing bool

	t.m.UpdateLocked(id, func(cur int, exists bool) (int, bool) {
		if !exists || cur <= 0 {
			wasMissing = true
			return 0, true
		}
		return cur - 1, cur-1 <= 0
	})

	if wasMissing {
		t.log.Warn("decrement of puzzle with no tracked players", "puzzle_id", id)
	}
}

// Count returns the current player count for id.
func (t *Tracker) Count(id string) int {
	n, _ := t.m.Get(id)
	return n
}

// Puzzles returns the number of puzzles with at least one tracked player.
func (t *Tracker) Puzzles() int {
	return t.m.Len()
}
