package smp

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestReasonFormatting(t *testing.T) {
	for r, exp := range map[Reason]string{
		Success:            "success",
		ConfirmValueFailed: "confirm value failed",
		ResponseTimeout:    "smp response timeout",
		Reason(0x42):       "reason(0x42)",
	} {
		if got := fmt.Sprintf("%v", r); got != exp {
			t.Errorf("%%v of 0x%02x: %q", uint8(r), got)
		}
		if got := fmt.Sprintf("%s", r); got != exp {
			t.Errorf("%%s of 0x%02x: %q", uint8(r), got)
		}
	}

	err := errors.Wrap(ConfirmValueFailed, "pairing failed")
	if got := err.Error(); got != "pairing failed: confirm value failed" {
		t.Fatalf("wrapped: %q", got)
	}
	if errors.Cause(err) != ConfirmValueFailed {
		t.Fatal("reason lost in the wrap")
	}
}

func TestWireReason(t *testing.T) {
	for r, exp := range map[Reason]Reason{
		KeyRejected:         KeyRejected,
		UnknownIoCapability: InvalidParameters,
		InternalError:       UnspecifiedReason,
		Busy:                UnspecifiedReason,
	} {
		if got := r.WireReason(); got != exp {
			t.Errorf("%v: %v", r, got)
		}
	}
	if Success.Wire() || ResponseTimeout.Wire() || !PasskeyEntryFailed.Wire() {
		t.Fatal("wire range")
	}
}
