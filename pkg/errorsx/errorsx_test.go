package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonTurnTimeout)
	if Reason(err) != ReasonTurnTimeout {
		t.Fatalf("expected reason %s, got %s", ReasonTurnTimeout, Reason(err))
	}
	if !HasReason(err, ReasonTurnTimeout) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonTransportConnect)
	second := Wrap(first, ReasonTurnTimeout)
	if Reason(second) != ReasonTransportConnect {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonNormalize) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("nil reason must be unknown")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
