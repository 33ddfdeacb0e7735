package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"tubelens/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "acquire", "yt-dlp", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"acquire", "yt-dlp", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", services.Wrap(services.ErrInvalidInput, "validate", "", "bad url", nil), http.StatusBadRequest},
		{"validation", services.Wrap(services.ErrValidation, "transcode", "", "empty", nil), http.StatusBadRequest},
		{"not found", services.Wrap(services.ErrNotFound, "lookup", "", "missing", nil), http.StatusNotFound},
		{"timeout", services.Wrap(services.ErrTimeout, "capture", "", "slow", nil), http.StatusGatewayTimeout},
		{"stage failure", services.StageFailure("capture", errors.New("browser died")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStageFailurePreservesMarkerAndStage(t *testing.T) {
	inner := services.Wrap(services.ErrInvalidInput, "validate", "", "no video id", nil)
	err := services.StageFailure("validate", inner)

	stage, ok := services.FailedStage(err)
	if !ok || stage != "validate" {
		t.Fatalf("FailedStage = %q, %v", stage, ok)
	}
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected marker to survive stage wrapping: %v", err)
	}
	if services.StageFailure("x", nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}

func TestRootCause(t *testing.T) {
	base := errors.New("disk full")
	err := services.StageFailure("persist", services.Wrap(services.ErrExternalTool, "store", "write", "", base))
	if got := services.RootCause(err); got != "disk full" {
		t.Fatalf("RootCause = %q", got)
	}
}

func TestRootCauseMarkerOnly(t *testing.T) {
	err := services.StageFailure("transcribe", services.Wrap(services.ErrTranscription, "transcribe", "skip", "no audio", nil))
	if got := services.RootCause(err); got != "transcribe: skip: no audio" {
		t.Fatalf("RootCause = %q", got)
	}
}
