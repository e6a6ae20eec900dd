package errs

import (
	"time"

	"go.uber.org/multierr"

	"github.com/y001j/netlet/ring"
)

// DefaultCapacity is the size of the per-endpoint error channel; a
// handful of slots is enough since the producer drains it on every
// Send slow path.
const DefaultCapacity = 4

// DefaultOfferSpinWait bounds how long a reactor-thread Offer spins
// against a momentarily full channel before giving up.
const DefaultOfferSpinWait = 5 * time.Millisecond

// Channel is the bounded ring of Envelopes raised by the reactor thread
// and polled by the producer thread.
type Channel struct {
	ring *ring.Buffer[*Envelope]
}

// NewChannel creates a channel with DefaultCapacity slots.
func NewChannel() *Channel {
	return &Channel{ring: ring.NewBuffer[*Envelope](DefaultCapacity, ring.WithSpinWait(DefaultOfferSpinWait))}
}

// Offer deposits env from the reactor thread. If the channel is
// momentarily full from a burst it spins briefly rather than dropping
// the envelope outright.
func (c *Channel) Offer(env *Envelope) bool {
	return c.ring.OfferWait(env)
}

// Poll removes and returns the oldest pending envelope, if any.
func (c *Channel) Poll() (*Envelope, bool) {
	return c.ring.Poll()
}

// IsEmpty reports whether any envelopes are pending.
func (c *Channel) IsEmpty() bool {
	return c.ring.IsEmpty()
}

// DrainCombined polls every pending envelope and combines their causes
// into a single error via go.uber.org/multierr, or returns nil if none
// were pending. Unlike Poll, which only ever returns the oldest error,
// this lets a caller observe every reactor-side failure queued since the
// last drain in one call.
func (c *Channel) DrainCombined() error {
	var combined error
	for {
		env, ok := c.Poll()
		if !ok {
			break
		}
		combined = multierr.Append(combined, env)
	}
	return combined
}
