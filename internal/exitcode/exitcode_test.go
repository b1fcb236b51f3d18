package exitcode

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/animeqa/animeqa/internal/backend"
)

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"validation", backend.ErrEmptyInput, Validation},
		{"timeout", &backend.TimeoutError{After: time.Minute}, Timeout},
		{"cancelled", fmt.Errorf("ask: %w", backend.ErrCancelled), Cancelled},
		{"http", &backend.HTTPError{StatusCode: 500}, Error},
		{"backend", &backend.BackendError{Message: "boom"}, Error},
		{"network", &backend.NetworkError{Err: errors.New("refused")}, Error},
		{"explicit", ExitError{Code: 42, Message: "custom"}, 42},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeFor(tc.err); got != tc.want {
				t.Fatalf("CodeFor = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatal("FromError(nil) should be nil")
	}

	err := FromError(&backend.TimeoutError{After: 60 * time.Second})
	var exitErr ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %#v, want ExitError", err)
	}
	if exitErr.Code != Timeout {
		t.Fatalf("code = %d", exitErr.Code)
	}
	if exitErr.Message != "The request took too long (over 60s). Please try again." {
		t.Fatalf("message = %q", exitErr.Message)
	}
	if !errors.Is(err, backend.ErrTimeout) {
		t.Fatal("expected the original error to stay reachable")
	}

	already := Cancel()
	if got := FromError(already); got != error(already) {
		t.Fatalf("FromError re-wrapped an ExitError: %#v", got)
	}
}
