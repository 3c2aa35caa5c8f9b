package errs

import (
	"errors"
	"testing"
)

func TestKindOfFollowsWrappedChain(t *testing.T) {
	base := InvalidState("Marking cycle must be OPEN, current status: %s", "CLOSED")
	wrapped := Wrap(Wrapf(base, "run allocation cycle=%d", 3), "allocate")

	if got := KindOf(wrapped); got != KindInvalidState {
		t.Fatalf("KindOf() = %q, want %q", got, KindInvalidState)
	}
	if !IsKind(wrapped, KindInvalidState) {
		t.Fatalf("IsKind() expected true")
	}
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("KindOf(plain) = %q", got)
	}
	if IsKind(nil, KindInternal) {
		t.Fatalf("IsKind(nil) expected false")
	}
}

func TestWithKindKeepsCause(t *testing.T) {
	cause := errors.New("record not found")
	err := WithKind(cause, KindNotFound, "allocation 9 not found")

	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is() expected cause in chain")
	}
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("errors.As() expected *Error")
	}
	if ce.Message() != "allocation 9 not found" {
		t.Fatalf("Message() = %q", ce.Message())
	}
	if WithKind(nil, KindNotFound, "x") != nil {
		t.Fatalf("WithKind(nil) expected nil")
	}
}

func TestErrorChainStrings(t *testing.T) {
	err := Wrap(NotFound("subject %d not found", 4), "load subject")
	chain := ErrorChainStrings(err)
	if len(chain) != 2 {
		t.Fatalf("chain len = %d, want 2: %v", len(chain), chain)
	}
	if chain[1] != "subject 4 not found" {
		t.Fatalf("chain[1] = %q", chain[1])
	}
}
