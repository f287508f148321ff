package stream

import (
	"testing"
	"time"
)

func TestBackoffPlateausAtCeiling(t *testing.T) {
	b := NewBackoff(2000*time.Millisecond, 240000*time.Millisecond)

	want := []time.Duration{4000, 8000, 16000, 32000, 64000, 128000, 240000, 240000}
	for i, w := range want {
		b.Advance()
		if got := b.Value(); got != w*time.Millisecond {
			t.Fatalf("advance #%d: got %v, want %v", i+1, got, w*time.Millisecond)
		}
		if b.Value() > 240000*time.Millisecond {
			t.Fatalf("advance #%d exceeded ceiling: %v", i+1, b.Value())
		}
	}

	b.Reset()
	if got := b.Value(); got != 2000*time.Millisecond {
		t.Errorf("Reset() = %v, want 2s", got)
	}
}

func TestBackoffForceToIsMonotonic(t *testing.T) {
	tests := []struct {
		name    string
		advance int
		force   time.Duration
		want    time.Duration
	}{
		{name: "raises below floor", advance: 0, force: 30 * time.Second, want: 30 * time.Second},
		{name: "keeps larger value", advance: 5, force: 30 * time.Second, want: 64 * time.Second},
		{name: "equal value unchanged", advance: 0, force: 2 * time.Second, want: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackoff(2*time.Second, 240*time.Second)
			for i := 0; i < tt.advance; i++ {
				b.Advance()
			}
			b.ForceTo(tt.force)
			if got := b.Value(); got != tt.want {
				t.Errorf("ForceTo(%v) = %v, want %v", tt.force, got, tt.want)
			}
		})
	}
}

func TestBackoffResetAfterForce(t *testing.T) {
	b := NewBackoff(2*time.Second, 240*time.Second)
	b.ForceTo(200 * time.Second)
	b.Advance()
	b.Reset()
	if got := b.Value(); got != 2*time.Second {
		t.Errorf("Reset() = %v, want 2s", got)
	}
}
