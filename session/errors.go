package session

import "errors"

var (
	// ErrNotFound is returned for unknown session ids
	ErrNotFound = errors.New("session not found")

	// ErrStale is returned when an async result no longer matches the
	// session it was computed from
	ErrStale = errors.New("result is stale")

	// ErrEditedDuringExport marks an export whose content was edited while
	// it was built. The session is the same, so the file is still usable.
	ErrEditedDuringExport = errors.New("session edited during export")

	// ErrNoAudio is returned by operations that need loaded audio
	ErrNoAudio = errors.New("no audio loaded")

	// ErrNotDualStem is returned by source and mixdown operations in
	// single-file mode
	ErrNotDualStem = errors.New("session has no instrumental/vocal pair")

	// ErrMixdownRunning is returned when a mixdown is already in flight
	ErrMixdownRunning = errors.New("mixdown already running")

	// ErrMixdownReady is returned when the stems were already mixed
	ErrMixdownReady = errors.New("mixdown already finished")

	// ErrMixdownNotFailed is returned when retrying a mixdown that did not fail
	ErrMixdownNotFailed = errors.New("only a failed mixdown can be retried")

	// ErrSourceUnavailable is returned when the requested source has no audio yet
	ErrSourceUnavailable = errors.New("audio source not available")

	// ErrUnknownSource is returned for source selectors outside main/mixed/instrumental/vocal
	ErrUnknownSource = errors.New("unknown audio source")

	// ErrInvalidPosition is returned for negative or non-finite playback positions
	ErrInvalidPosition = errors.New("invalid playback position")
)

// Kind classifies a session error for callers that map errors to responses
type Kind int

const (
	KindInvalid  Kind = iota // bad input, nothing changed
	KindNotFound             // unknown session, line or source
	KindConflict             // operation not valid in the current state
	KindStale                // async result discarded
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStale:
		return "stale"
	default:
		return "internal"
	}
}

// Error carries the failing operation and its kind
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind Kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not a *Error
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
