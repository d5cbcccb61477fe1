package presence

import "testing"

func TestTryIncrementAdmitsUpToLimit(t *testing.T) {
	tr := New(3, nil)

	for i := 0; i < 3; i++ {
		if err := tr.TryIncrement("abc1234"); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	if err := tr.TryIncrement("abc1234"); err != ErrTooManyPlayers {
		t.Fatalf("4th increment: got %v, want ErrTooManyPlayers", err)
	}

	if got := tr.Count("abc1234"); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}
}

func TestDecrementRemovesEntryAtZero(t *testing.T) {
	tr := New(20, nil)

	_ = tr.TryIncrement("abc1234")
	_ = tr.TryIncrement("abc1234")

	if tr.Puzzles() != 1 {
		t.Fatalf("Puzzles() = %d, want 1", tr.Puzzles())
	}

	tr.Decrement("abc1234")
	if got := tr.Count("abc1234"); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}

	tr.Decrement("abc1234")
	if got := tr.Puzzles(); got != 0 {
		t.Fatalf("Puzzles() = %d, want 0 after entry drains", got)
	}
}

func TestDecrementOfMissingEntryIsNonFatal(t *testing.T) {
	tr := New(20, nil)

	// Must not panic.
	tr.Decrement("nonexist")

	if got := tr.Count("nonexist"); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
}

func TestTwentyFirstJoinRejected(t *testing.T) {
	tr := New(20, nil)

	for i := 0; i < 20; i++ {
		if err := tr.TryIncrement("puzzle1"); err != nil {
			t.Fatalf("join %d: unexpected error %v", i+1, err)
		}
	}

	if err := tr.TryIncrement("puzzle1"); err != ErrTooManyPlayers {
		t.Fatalf("21st join: got %v, want ErrTooManyPlayers", err)
	}
}
