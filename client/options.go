package client

import "time"

const defaultWriteBufferSize = 8 * 1024

type options struct {
	writeBuffer              []byte
	sendBufferSize           int
	maxSendBufferBytes       int
	writeCountUpdateInterval time.Duration
}

// Option configures an Endpoint at construction time. Options override
// the process-wide config.Global defaults for this one endpoint; the
// ring growth ceiling (MAX_SENDBUFFER_SIZE) stays process-global.
type Option func(*options)

// WithWriteBuffer supplies a preallocated staging buffer instead of
// letting the endpoint allocate defaultWriteBufferSize bytes.
func WithWriteBuffer(buf []byte) Option {
	return func(o *options) { o.writeBuffer = buf }
}

// WithWriteBufferSize allocates a staging buffer of the given size.
func WithWriteBufferSize(n int) Option {
	return func(o *options) { o.writeBuffer = make([]byte, n) }
}

// WithSendBufferSize sets the requested initial send-ring capacity,
// before rounding via config.InitialSendRingCapacity.
func WithSendBufferSize(n int) Option {
	return func(o *options) { o.sendBufferSize = n }
}

// WithMaxSendBufferBytes caps outstanding send data for this endpoint.
// Pass config.Unlimited to disable the cap (the default).
func WithMaxSendBufferBytes(n int) Option {
	return func(o *options) { o.maxSendBufferBytes = n }
}

// WithWriteCountUpdateInterval overrides how often the reactor thread
// publishes writeBufferBytes to the producer-visible counter.
func WithWriteCountUpdateInterval(d time.Duration) Option {
	return func(o *options) { o.writeCountUpdateInterval = d }
}
