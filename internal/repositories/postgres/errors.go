package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type errorKind int

const (
	kindUnknown errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

// Error implements repositories.RepositoryError for PostgreSQL backed repositories.
type Error struct {
	op   string
	err  error
	kind errorKind
}

func (e *Error) Error() string {
	if e.op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error       { return e.err }
func (e *Error) IsNotFound() bool    { return e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e.kind == kindUnavailable }

func notFound(op, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), kind: kindNotFound}
}

// wrapError classifies driver errors. Context errors and already classified errors pass through.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{op: op, err: err, kind: kindNotFound}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return &Error{op: op, err: err, kind: kindUnavailable}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case code == "23505", code == "40001", code == "40P01":
			// unique_violation, serialization_failure, deadlock_detected
			return &Error{op: op, err: err, kind: kindConflict}
		case strings.HasPrefix(code, "08"), code == "57P01", code == "53300":
			// connection exceptions, admin_shutdown, too_many_connections
			return &Error{op: op, err: err, kind: kindUnavailable}
		}
	}
	return &Error{op: op, err: err, kind: kindUnknown}
}
