package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newPopulated(t *testing.T, s *MemStore, id string, w, h int) {
	t.Helper()
	ctx := context.Background()

	if err := s.Allocate(ctx, id); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := s.Populate(ctx, id, w, h, "http://example/img", 42); err != nil {
		t.Fatalf("Populate: %v", err)
	}
}

func TestAllocateCollision(t *testing.T) {
	s := NewMemStore(nil)
	ctx := context.Background()

	if err := s.Allocate(ctx, "abc1234"); err != nil {
		t.Fatalf("first Allocate: %v", err)
	}
	if err := s.Allocate(ctx, "abc1234"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second Allocate: got %v, want ErrAlreadyExists", err)
	}
}

func TestPopulateInvariantArrayLengths(t *testing.T) {
	s := NewMemStore(nil)
	ctx := context.Background()
	newPopulated(t, s, "abc1234", 3, 3)

	p, err := s.GetPuzzleInfo(ctx, "abc1234")
	if err != nil {
		t.Fatalf("GetPuzzleInfo: %v", err)
	}

	if got, want := len(p.Positions), 2*3*3; got != want {
		t.Fatalf("len(Positions) = %d, want %d", got, want)
	}
	if got, want := len(p.Connectivity), 3*3; got != want {
		t.Fatalf("len(Connectivity) = %d, want %d", got, want)
	}
	for i, c := range p.Connectivity {
		if int(c) != i {
			t.Fatalf("Connectivity[%d] = %d, want identity %d", i, c, i)
		}
	}
	for i, v := range p.Positions {
		if v != 0 {
			t.Fatalf("Positions[%d] = %v, want 0 at populate", i, v)
		}
	}
}

func TestMovePieceSetsPosition(t *testing.T) {
	s := NewMemStore(nil)
	ctx := context.Background()
	newPopulated(t, s, "abc1234", 4, 3)

	if err := s.MovePiece(ctx, "abc1234", 5, 0.25, 0.75); err != nil {
		t.Fatalf("MovePiece: %v", err)
	}

	positions, _, err := s.GetPieceInfo(ctx, "abc1234")
	if err != nil {
		t.Fatalf("GetPieceInfo: %v", err)
	}

	if positions[10] != 0.25 || positions[11] != 0.75 {
		t.Fatalf("positions[10:12] = %v, %v, want 0.25, 0.75", positions[10], positions[11])
	}
}

func TestMovePieceOutOfRange(t *testing.T) {
	s := NewMemStore(nil)
	ctx := context.Background()
	newPopulated(t, s, "abc1234", 3, 3)

	if err := s.MovePiece(ctx, "abc1234", 9, 0, 0); !errors.Is(err, ErrPieceOutOfRange) {
		t.Fatalf("MovePiece(9): got %v, want ErrPieceOutOfRange", err)
	}
}

func TestConnectPiecesEquivalence(t *testing.T) {
	s := NewMemStore(nil)
	ctx := context.Background()
	newPopulated(t, s, "abc1234", 3, 3)

	if err := s.ConnectPieces(ctx, "abc1234", 0, 1); err != nil {
		t.Fatalf("ConnectPieces(0,1): %v", err)
	}
	if err := s.ConnectPieces(ctx, "abc1234", 1, 2); err != nil {
		t.Fatalf("ConnectPieces(1,2): %v", err)
	}

	_, conn, err := s.GetPieceInfo(ctx, "abc1234")
	if err != nil {
		t.Fatalf("GetPieceInfo: %v", err)
	}

	if conn[0] != conn[1] || conn[1] != conn[2] {
		t.Fatalf("connectivity[0:3] = %v, want all equal", conn[0:3])
	}

	// No other piece was pulled into the merged group.
	for i := 3; i < len(conn); i++ {
		if conn[i] == conn[0] {
			t.Fatalf("piece %d unexpectedly merged into group 0", i)
		}
	}
}

func TestConnectPiecesIdempotent(t *testing.T) {
	s := NewMemStore(nil)
	ctx := context.Background()
	newPopulated(t, s, "abc1234", 3, 3)

	if err := s.ConnectPieces(ctx, "abc1234", 0, 1); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	_, before, _ := s.GetPieceInfo(ctx, "abc1234")

	if err := s.ConnectPieces(ctx, "abc1234", 0, 1); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	_, after, _ := s.GetPieceInfo(ctx, "abc1234")

	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("connectivity[%d] changed on repeat connect: %d -> %d", i, before[i], after[i])
		}
	}
}

func TestConnectPiecesOutOfRange(t *testing.T) {
	s := NewMemStore(nil)
	ctx := context.Background()
	newPopulated(t, s, "abc1234", 3, 3)

	if err := s.ConnectPieces(ctx, "abc1234", 0, 100); !errors.Is(err, ErrPieceOutOfRange) {
		t.Fatalf("ConnectPieces(0,100): got %v, want ErrPieceOutOfRange", err)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	s := NewMemStore(nil)
	ctx := context.Background()

	newPopulated(t, s, "old0001", 3, 3)
	newPopulated(t, s, "new0001", 3, 3)

	r, _ := s.getRow("old0001")
	r.mut.Lock()
	r.p.CreateTime = time.Now().Add(-8 * 24 * time.Hour)
	r.mut.Unlock()

	n, err := s.Sweep(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}

	if _, err := s.GetPuzzleInfo(ctx, "old0001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old puzzle should be gone, got err=%v", err)
	}
	if _, err := s.GetPuzzleInfo(ctx, "new0001"); err != nil {
		t.Fatalf("new puzzle should survive sweep: %v", err)
	}
}
