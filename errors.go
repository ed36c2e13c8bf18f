package orbit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for the fatal conditions of an ingestion run.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrUnknownSource indicates no adapter is registered under the requested
	// source identifier. This is a configuration-time error.
	ErrUnknownSource = errors.New("unknown source")

	// ErrSourceUnavailable indicates the adapter could not fetch its data: the
	// location is missing, unreadable, unreachable, or the fetch timed out.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedSource indicates fetched data lacks the container structure
	// the adapter needs (for example a STIX bundle without "objects").
	ErrMalformedSource = errors.New("malformed source")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStoreFailed indicates a persistence collaborator (allow-list store,
	// judgment cache, graph store) failed.
	ErrStoreFailed = errors.New("store operation failed")
)

// Error kinds categorize errors by their type.
const (
	// KindConfiguration represents errors detected before a run starts.
	KindConfiguration = "configuration"

	// KindSourceUnavailable represents fetch failures.
	KindSourceUnavailable = "source_unavailable"

	// KindMalformedSource represents normalize failures.
	KindMalformedSource = "malformed_source"

	// KindStorage represents failures of persistence collaborators.
	KindStorage = "storage"

	// KindInternal represents internal errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// the operation that failed and the category of error.
//
// Error supports unwrapping, so errors.Is() and errors.As() see through it:
//
//	err := &orbit.Error{
//		Op:   "attack.Fetch",
//		Kind: orbit.KindSourceUnavailable,
//		Err:  orbit.ErrSourceUnavailable,
//	}
type Error struct {
	// Op is the operation that failed (e.g., "Pipeline.Run", "attack.Normalize").
	Op string

	// Kind categorizes the error (e.g., KindSourceUnavailable).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context carries identifying details such as the source or location.
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("orbit: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("orbit: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("orbit: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind (and Op, when the target sets one), and
// otherwise delegates to the wrapped error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with ctx merged into its context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	merged := make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	newErr.Context = merged
	return &newErr
}

// NewConfigurationError creates an Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewSourceUnavailableError creates an Error with KindSourceUnavailable.
// The result always matches ErrSourceUnavailable.
func NewSourceUnavailableError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindSourceUnavailable, Err: join(ErrSourceUnavailable, err)}
}

// NewMalformedSourceError creates an Error with KindMalformedSource.
// The result always matches ErrMalformedSource.
func NewMalformedSourceError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindMalformedSource, Err: join(ErrMalformedSource, err)}
}

// NewStorageError creates an Error with KindStorage.
// The result always matches ErrStoreFailed.
func NewStorageError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindStorage, Err: join(ErrStoreFailed, err)}
}

// join wraps err under sentinel unless err already matches it.
func join(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. Intended for defer statements.
//
// If logger is nil, slog.Default() is used.
//
//	defer orbit.CloseWithLog(store, logger, "triple store")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
