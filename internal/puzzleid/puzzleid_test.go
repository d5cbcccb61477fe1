package puzzleid

import "testing"

func TestGenerateLength(t *testing.T) {
	for _, n := range []int{1, 7, 20} {
		id, err := Generate(n)
		if err != nil {
			t.Fatalf("Generate(%d): %v", n, err)
		}
		if len(id) != n {
			t.Fatalf("Generate(%d): got length %d", n, len(id))
		}
		if !Valid(id, n) {
			t.Fatalf("Generate(%d) = %q, not Valid", n, id)
		}
	}
}

func TestGenerateRejectsNonPositive(t *testing.T) {
	if _, err := Generate(0); err == nil {
		t.Fatal("expected error for n=0")
	}
	if _, err := Generate(-1); err == nil {
		t.Fatal("expected error for n=-1")
	}
}

func TestValidRejectsForeignCharacters(t *testing.T) {
	tests := []struct {
		name string
		id   string
		n    int
		want bool
	}{
		{"ok", "2bcdefg", 7, true},
		{"wrong length", "2bcdef", 7, false},
		{"contains zero", "0bcdefg", 7, false},
		{"contains capital I", "Ibcdefg", 7, false},
		{"contains lowercase l", "lbcdefg", 7, false},
		{"contains capital O", "Obcdefg", 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.id, tt.n); got != tt.want {
				t.Errorf("Valid(%q, %d) = %v, want %v", tt.id, tt.n, got, tt.want)
			}
		})
	}
}
