package cloneerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(DestructiveStep, "DropDatabase", "sales_clone", errors.New("database is in use"))

	want := "destructive step error in DropDatabase (sales_clone): database is in use"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(Configuration, "flags", "", nil)
	if !strings.HasPrefix(err.Error(), "configuration error in flags") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestIsThroughWrapping(t *testing.T) {
	inner := New(Connection, "acquire", "postgres://db", errors.New("refused"))
	wrapped := fmt.Errorf("lift schema: %w", inner)

	if !Is(wrapped, Connection) {
		t.Error("expected wrapped error to be a connection error")
	}
	if Is(wrapped, Transform) {
		t.Error("did not expect wrapped error to be a transform error")
	}
	if KindOf(wrapped) != Connection {
		t.Errorf("expected KindOf to return Connection, got %v", KindOf(wrapped))
	}
}

func TestIsNestedKinds(t *testing.T) {
	engineErr := New(MigrationEngine, "apply", "sales", errors.New("bad change set"))
	stepErr := New(DestructiveStep, "ApplyChangelog", "sales", engineErr)

	if !Is(stepErr, DestructiveStep) {
		t.Error("expected outer kind to match")
	}
	if !Is(stepErr, MigrationEngine) {
		t.Error("expected inner kind to match")
	}
}

func TestIsPlainError(t *testing.T) {
	if Is(errors.New("plain"), Configuration) {
		t.Error("plain errors have no kind")
	}
	if KindOf(nil) != 0 {
		t.Error("nil error has no kind")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Newf(Transform, "transform", "in.json", "token %d: %w", 3, cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}
