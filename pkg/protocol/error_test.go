package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetriableError(t *testing.T) {
	cases := []struct {
		err         error
		shouldRetry bool
	}{
		{nil, false},
		{ErrOutOfResources, true},
		{ErrInvalidState, false},
		{ErrInvalidData, false},
		{ErrUnknown, false},
		{fmt.Errorf("timer: no free slot: %w", ErrOutOfResources), true},
		{errors.New("plain"), false},
	}
	for _, c := range cases {
		if ShouldRetry(c.err) != c.shouldRetry {
			t.Errorf("Unexpected retry behavior for error %v", c.err)
		}
	}
}

func TestWrappedErrorsKeepIdentity(t *testing.T) {
	err := fmt.Errorf("kvstore: %w", ErrUnknown)
	if !errors.Is(err, ErrUnknown) {
		t.Errorf("Expected wrapped error to match ErrUnknown")
	}
	if errors.Is(err, ErrInvalidData) {
		t.Errorf("Wrapped error matched the wrong sentinel")
	}
}

func TestIsOneOf(t *testing.T) {
	if !IsOneOf(ErrInvalidData, ErrInvalidState, ErrInvalidData) {
		t.Errorf("Expected ErrInvalidData to be accepted")
	}
	if IsOneOf(ErrUnknown, ErrInvalidState, ErrInvalidData) {
		t.Errorf("Expected ErrUnknown to be rejected")
	}
	if IsOneOf(nil, ErrInvalidState) {
		t.Errorf("nil must not match")
	}
}
