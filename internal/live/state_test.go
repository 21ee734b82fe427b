package live

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		allowed  bool
	}{
		{StateIdle, StateConnecting, true},
		{StateIdle, StateOpen, false},
		{StateConnecting, StateOpen, true},
		{StateConnecting, StateErrored, true},
		{StateConnecting, StateClosed, true},
		{StateOpen, StateClosed, true},
		{StateOpen, StateErrored, true},
		{StateOpen, StateConnecting, false},
		{StateClosed, StateConnecting, true},
		{StateClosed, StateOpen, false},
		{StateErrored, StateConnecting, true},
		{StateErrored, StateClosed, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestState_Predicates(t *testing.T) {
	if !StateClosed.Terminal() || !StateErrored.Terminal() || StateOpen.Terminal() {
		t.Error("Expected only closed and errored to be terminal")
	}
	if !StateConnecting.Active() || !StateOpen.Active() || StateIdle.Active() {
		t.Error("Expected only connecting and open to be active")
	}
	if StateOpen.String() != "open" {
		t.Errorf("Expected open, got %s", StateOpen.String())
	}
}
