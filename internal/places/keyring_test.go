package places

import (
	"errors"
	"testing"
)

func TestNewKeyRingRequiresCredentials(t *testing.T) {
	if _, err := NewKeyRing(nil); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
	if _, err := NewKeyRing([]string{}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestKeyRingRoundRobin(t *testing.T) {
	ring, err := NewKeyRing([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ring.Len() != 3 {
		t.Fatalf("expected 3 keys, got %d", ring.Len())
	}

	want := []string{"a", "b", "c", "a", "b", "c", "a"}
	for i, expected := range want {
		if got := ring.Next(); got != expected {
			t.Fatalf("call %d: expected %s, got %s", i, expected, got)
		}
	}
}
