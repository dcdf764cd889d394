package services_test

import (
	"errors"
	"strings"
	"testing"

	"fftoolbox/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExecution, "encode", "pass 2", "encoder exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"encode", "pass 2", "encoder exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToExecution(t *testing.T) {
	err := services.Wrap(nil, "encode", "wait", "", errors.New("exit status 1"))
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected execution marker, got %v", err)
	}
}

func TestInfeasibleTargetIsPlanError(t *testing.T) {
	err := services.Wrap(services.ErrInfeasibleTarget, "plan", "derive bitrate", "below floor at 144p", nil)
	if !errors.Is(err, services.ErrInfeasibleTarget) {
		t.Fatalf("expected infeasible marker, got %v", err)
	}
	if !errors.Is(err, services.ErrPlan) {
		t.Fatalf("expected infeasible target to classify as plan error, got %v", err)
	}
}

func TestStageMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"probe", services.Wrap(services.ErrProbe, "probe", "inspect", "no video stream", nil), "probe"},
		{"plan", services.Wrap(services.ErrInfeasibleTarget, "plan", "", "", nil), "plan"},
		{"capability", services.Wrap(services.ErrCapability, "capability", "nvenc", "", errors.New("timeout")), "capability"},
		{"cancel", services.Wrap(services.ErrCancelled, "encode", "", "", nil), "cancel"},
		{"unknown", errors.New("surprise"), "execution"},
		{"nil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Stage(tc.err); got != tc.want {
				t.Fatalf("Stage(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsTerminalFailure(t *testing.T) {
	if services.IsTerminalFailure(nil) {
		t.Fatal("nil error is not a failure")
	}
	cancel := services.Wrap(services.ErrCancelled, "encode", "", "", nil)
	if services.IsTerminalFailure(cancel) {
		t.Fatal("cancellation must not classify as failure")
	}
	if !services.IsTerminalFailure(errors.New("boom")) {
		t.Fatal("expected arbitrary error to classify as failure")
	}
}
