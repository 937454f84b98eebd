package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	base := FeedUnavailable("feedclient.Fetch", errors.New("timeout"))
	wrapped := fmt.Errorf("cycle failed: %w", base)

	if !Is(wrapped, KindFeedUnavailable) {
		t.Fatal("expected Is to unwrap to the underlying Kind")
	}
	if Is(wrapped, KindFeedCorrupt) {
		t.Fatal("expected Is to reject a mismatched Kind")
	}
}

func TestIsFalseForPlainError(t *testing.T) {
	if Is(errors.New("boring"), KindFeedUnavailable) {
		t.Fatal("expected Is to be false for an error with no Kind")
	}
}

func TestIsFalseForNil(t *testing.T) {
	if Is(nil, KindFeedUnavailable) {
		t.Fatal("expected Is to be false for a nil error")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	e := PersistenceTransient("db.Exec", cause)

	if !errors.Is(e, cause) {
		t.Fatal("expected errors.Is to see through Unwrap to the cause")
	}
	if e.Kind() != KindPersistenceTrans {
		t.Fatalf("got kind %s, want %s", e.Kind(), KindPersistenceTrans)
	}
}

func TestErrorStringIncludesOpAndKind(t *testing.T) {
	e := ConfigurationError("config.Load", errors.New("missing field"))
	msg := e.Error()
	if !strings.Contains(msg, "config.Load") || !strings.Contains(msg, string(KindConfigurationError)) {
		t.Fatalf("expected the error string to include op and kind, got %q", msg)
	}
}
