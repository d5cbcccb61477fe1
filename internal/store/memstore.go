package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// row is the in-process representation of one puzzle. Its own mutex
// guards every field so that a bounds check and the write it gates (the
// "atomically, within the same statement" requirement of spec §4.2) never
// race against a concurrent Populate or a concurrent mutation of the same
// row.
type row struct {
	mut sync.Mutex
	p   Puzzle
}

// MemStore is the in-tree reference implementation of Store: a
// sync.RWMutex-guarded map from id to *row. Two MovePiece calls against
// different puzzles never contend on the same lock, matching the "why
// this shape" rationale of spec §4.2 — correctness comes from per-row
// locking, not a single process-wide lock over the whole store.
type MemStore struct {
	log     *slog.Logger
	mapMut  sync.RWMutex
	puzzles map[string]*row
}

// NewMemStore returns an empty MemStore.
func NewMemStore(log *slog.Logger) *MemStore {
	if log == nil {
		log = slog.Default()
	}

	return &MemStore{
		log:     log.With("component", "store"),
		puzzles: make(map[string]*row),
	}
}

// Probe always succeeds for MemStore: the schema is the empty map, always
// present once the struct is constructed.
func (s *MemStore) Probe(ctx context.Context) error { return nil }

// EnsureSchema is a no-op for MemStore.
func (s *MemStore) EnsureSchema(ctx context.Context) error { return nil }

func (s *MemStore) Allocate(ctx context.Context, id string) error {
	s.mapMut.Lock()
	defer s.mapMut.Unlock()

	if _, exists := s.puzzles[id]; exists {
		return ErrAlreadyExists
	}

	s.puzzles[id] = &row{p: Puzzle{ID: id}}
	return nil
}

func (s *MemStore) getRow(id string) (*row, bool) {
	s.mapMut.RLock()
	defer s.mapMut.RUnlock()

	r, ok := s.puzzles[id]
	return r, ok
}

func (s *MemStore) Populate(
	ctx context.Context,
	id string,
	width, height int,
	url string,
	seed uint32,
) error {
	r, ok := s.getRow(id)
	if !ok {
		return fmt.Errorf("populate %q: %w", id, ErrNotFound)
	}

	n := width * height

	r.mut.Lock()
	defer r.mut.Unlock()

	r.p.Width = width
	r.p.Height = height
	r.p.URL = url
	r.p.Seed = seed
	r.p.CreateTime = time.Now()
	r.p.Positions = make([]float32, 2*n)
	r.p.Connectivity = initialConnectivity(n)

	return nil
}

func (s *MemStore) MovePiece(
	ctx context.Context,
	id string,
	pieceIndex uint32,
	x, y float32,
) error {
	r, ok := s.getRow(id)
	if !ok {
		return fmt.Errorf("move piece %q: %w", id, ErrNotFound)
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	if r.p.Connectivity == nil {
		return fmt.Errorf("move piece %q: %w", id, ErrNotPopulated)
	}

	n := uint32(r.p.PieceCount())
	if pieceIndex >= n {
		return fmt.Errorf("move piece %q index %d: %w", id, pieceIndex, ErrPieceOutOfRange)
	}

	r.p.Positions[2*pieceIndex] = x
	r.p.Positions[2*pieceIndex+1] = y

	return nil
}

// ConnectPieces replaces every cell of connectivity equal to
// connectivity[piece1] with connectivity[piece2]. Per spec §9, bounds are
// checked as piece <= width*height (1-based indexing in the real store);
// here, where array indices are 0-based, that is piece1, piece2 <
// width*height, which is the same admissible range.
func (s *MemStore) ConnectPieces(ctx context.Context, id string, piece1, piece2 uint32) error {
	r, ok := s.getRow(id)
	if !ok {
		return fmt.Errorf("connect pieces %q: %w", id, ErrNotFound)
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	if r.p.Connectivity == nil {
		return fmt.Errorf("connect pieces %q: %w", id, ErrNotPopulated)
	}

	n := uint32(r.p.PieceCount())
	if piece1 >= n || piece2 >= n {
		return fmt.Errorf(
			"connect pieces %q (%d, %d): %w",
			id, piece1, piece2, ErrPieceOutOfRange,
		)
	}

	from := r.p.Connectivity[piece1]
	to := r.p.Connectivity[piece2]
	if from == to {
		return nil
	}

	for i, c := range r.p.Connectivity {
		if c == from {
			r.p.Connectivity[i] = to
		}
	}

	return nil
}

func (s *MemStore) GetPieceInfo(
	ctx context.Context,
	id string,
) (positions []float32, connectivity []int16, err error) {
	r, ok := s.getRow(id)
	if !ok {
		return nil, nil, fmt.Errorf("get piece info %q: %w", id, ErrNotFound)
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	return append([]float32(nil), r.p.Positions...),
		append([]int16(nil), r.p.Connectivity...),
		nil
}

func (s *MemStore) GetPuzzleInfo(ctx context.Context, id string) (*Puzzle, error) {
	r, ok := s.getRow(id)
	if !ok {
		return nil, fmt.Errorf("get puzzle info %q: %w", id, ErrNotFound)
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	cp := r.p
	cp.Positions = append([]float32(nil), r.p.Positions...)
	cp.Connectivity = append([]int16(nil), r.p.Connectivity...)

	return &cp, nil
}

// Sweep deletes rows whose CreateTime is older than ttl. Candidate rows
// are identified under the map lock, then checked and deleted
// concurrently via errgroup — matching the teacher's own
// errgroup.WithContext fan-out in Store.Run (internal/storage/storage.go).
func (s *MemStore) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)

	s.mapMut.RLock()
	candidates := make([]string, 0, len(s.puzzles))
	for id := range s.puzzles {
		candidates = append(candidates, id)
	}
	s.mapMut.RUnlock()

	var (
		mu      sync.Mutex
		removed int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range candidates {
		id := id
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			r, ok := s.getRow(id)
			if !ok {
				return nil
			}

			r.mut.Lock()
			expired := !r.p.CreateTime.IsZero() && r.p.CreateTime.Before(cutoff)
			r.mut.Unlock()

			if !expired {
				return nil
			}

			s.mapMut.Lock()
			delete(s.puzzles, id)
			s.mapMut.Unlock()

			mu.Lock()
			removed++
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return removed, err
	}

	if removed > 0 {
		s.log.Info("swept expired puzzles", "count", removed)
	}

	return removed, nil
}
