package proxyshard

import (
	"testing"
	"time"
)

func TestBackoffDoublesUpToMax(t *testing.T) {
	b := NewBackoff()

	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
	}
	for i, w := range want {
		got := b.Next()
		if got != w {
			t.Fatalf("attempt %d: Next() = %v, want %v", i, got, w)
		}
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 20; i++ {
		b.Next()
	}
	if got := b.Next(); got != 300*time.Second {
		t.Fatalf("Next() after many attempts = %v, want capped at 300s", got)
	}
}

func TestBackoffResetReturnsToBasePeriod(t *testing.T) {
	b := NewBackoff()
	b.Next()
	b.Next()
	b.Reset()

	if got := b.Next(); got != 5*time.Second {
		t.Fatalf("Next() after Reset = %v, want 5s", got)
	}
}
