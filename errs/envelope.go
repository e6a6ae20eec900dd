// Package errs collects reactor-thread errors and surfaces them to the
// producer thread: the reactor loop never propagates an error out of a
// readiness callback, it deposits an Envelope here and the producer
// observes it on its next Send slow path.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why the producer is seeing an error.
type Kind int

const (
	// BackpressureRejection: Send returned false because the byte cap
	// would be exceeded or the pipeline is at max ring capacity and
	// full. Non-fatal; the caller may retry later. Callers observe
	// this as a plain `false` return from Send, not an Envelope.
	BackpressureRejection Kind = iota
	// FatalOwnershipLost: raised synchronously from Send after the
	// endpoint has been unregistered; it no longer owns the socket.
	FatalOwnershipLost
	// CollectedReactorError: an error raised on the reactor thread
	// during read/write, wrapped and deposited in the error channel.
	CollectedReactorError
	// EndOfStream: signaled by a -1 read, handled internally as an
	// orderly close; surfaced only if a Handler chooses to observe it.
	EndOfStream
)

func (k Kind) String() string {
	switch k {
	case BackpressureRejection:
		return "BackpressureRejection"
	case FatalOwnershipLost:
		return "FatalOwnershipLost"
	case CollectedReactorError:
		return "CollectedReactorError"
	case EndOfStream:
		return "EndOfStream"
	default:
		return "UnknownKind"
	}
}

// Envelope wraps a reactor-thread error with its Kind so the producer
// thread can recover it as a typed error.
type Envelope struct {
	Kind  Kind
	Cause error
}

// Wrap builds an Envelope, attaching a stack trace to cause via
// github.com/pkg/errors so the producer sees where on the reactor thread
// the failure originated.
func Wrap(kind Kind, cause error) *Envelope {
	return &Envelope{Kind: kind, Cause: errors.WithStack(cause)}
}

func (e *Envelope) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Envelope) Unwrap() error {
	return e.Cause
}

// ErrFatalOwnershipLost is returned by Send once the endpoint has been
// unregistered. It carries no reactor-thread cause.
var ErrFatalOwnershipLost = &Envelope{Kind: FatalOwnershipLost, Cause: errors.New("client does not own the socket any longer")}
