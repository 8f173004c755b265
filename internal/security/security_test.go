package security

import (
	"testing"
)

func TestSHA256Hasher(t *testing.T) {
	h := SHA256Hasher{}

	got := h.Hash("123")
	want := "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3"
	if got != want {
		t.Errorf("Hash(123) = %s, want %s", got, want)
	}
	if len(h.Hash("")) != 64 {
		t.Errorf("expected 64 hex characters for empty input")
	}
	if h.Hash("123") == h.Hash("124") {
		t.Error("different inputs produced the same digest")
	}
}

func TestRandomDigits(t *testing.T) {
	src := RandomDigits{}

	for _, n := range []int{1, 3, 6, 9, 16} {
		got, err := src.Digits(n)
		if err != nil {
			t.Fatalf("Digits(%d): %v", n, err)
		}
		if len(got) != n {
			t.Errorf("Digits(%d) returned %d characters", n, len(got))
		}
		for _, c := range got {
			if c < '0' || c > '9' {
				t.Errorf("Digits(%d) returned non-digit %q", n, c)
			}
		}
	}

	if _, err := src.Digits(0); err == nil {
		t.Error("expected error for zero digits")
	}
}

func TestSystemClockIsUTC(t *testing.T) {
	if loc := (SystemClock{}).Now().Location(); loc.String() != "UTC" {
		t.Errorf("expected UTC, got %s", loc)
	}
}
