// Package config holds the environment-injected process defaults.
// FromEnv reads the environment on every call and caches nothing, so
// each client.NewEndpoint sees the values set when it runs.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/y001j/netlet/internal/obs"
)

// Unlimited is the sentinel for MaxSendBufferBytes meaning "no byte cap,
// skip pending-bytes accounting entirely".
const Unlimited = -1

const (
	envMaxSendBufferSize        = "MAX_SENDBUFFER_SIZE"
	envMaxSendBufferBytes       = "MAX_SENDBUFFER_BYTES"
	envWriteCountUpdateInterval = "WRITE_COUNT_UPDATE_INTERVAL"
	envPollerBackend            = "POLLER_BACKEND"

	defaultMaxSendBufferSize  = 32768
	defaultWriteCountUpdateMS = 30000
)

// PollerBackend names which reactor implementation a command should
// start: the default epoll poller, or the io_uring-based alternative in
// reactor/uringpoller.
type PollerBackend string

const (
	PollerEpoll PollerBackend = "epoll"
	PollerURing PollerBackend = "uring"
)

// Global holds the process-wide defaults, as read from the environment
// by FromEnv. Per-instance overrides are passed as client.Endpoint
// constructor options instead of mutating this struct.
type Global struct {
	// MaxSendBufferSize bounds a single ring's capacity; rounded up to
	// a power of two (with a logged warning) if the configured value
	// is not already one.
	MaxSendBufferSize int
	// MaxSendBufferBytes caps outstanding send data; Unlimited disables
	// the accounting entirely.
	MaxSendBufferBytes int
	// WriteCountUpdateInterval throttles how often the reactor
	// publishes writeBufferBytes to the producer.
	WriteCountUpdateInterval time.Duration
	// PollerBackend selects which reactor implementation a command
	// should start. Defaults to PollerEpoll.
	PollerBackend PollerBackend
}

// FromEnv reads Global from the environment, applying the documented
// defaults for anything unset or unparseable.
func FromEnv() Global {
	g := Global{
		MaxSendBufferSize:        defaultMaxSendBufferSize,
		MaxSendBufferBytes:       Unlimited,
		WriteCountUpdateInterval: defaultWriteCountUpdateMS * time.Millisecond,
		PollerBackend:            PollerEpoll,
	}

	if raw, ok := os.LookupEnv(envMaxSendBufferSize); ok {
		if n, err := strconv.Atoi(raw); err != nil || n <= 0 {
			obs.L().Sugar().Warnf("%s=%q is not a positive integer, keeping default %d", envMaxSendBufferSize, raw, g.MaxSendBufferSize)
		} else {
			g.MaxSendBufferSize = roundUpToPowerOfTwo(n, envMaxSendBufferSize)
		}
	}

	if raw, ok := os.LookupEnv(envMaxSendBufferBytes); ok {
		if raw == "unlimited" {
			g.MaxSendBufferBytes = Unlimited
		} else if n, err := strconv.Atoi(raw); err != nil {
			obs.L().Sugar().Warnf("%s=%q could not be parsed as an integer, keeping default", envMaxSendBufferBytes, raw)
		} else {
			g.MaxSendBufferBytes = n
		}
	}

	if raw, ok := os.LookupEnv(envWriteCountUpdateInterval); ok {
		if n, err := strconv.ParseInt(raw, 10, 64); err != nil {
			obs.L().Sugar().Warnf("%s=%q could not be parsed as a long, keeping default", envWriteCountUpdateInterval, raw)
		} else {
			g.WriteCountUpdateInterval = time.Duration(n) * time.Millisecond
		}
	}

	if raw, ok := os.LookupEnv(envPollerBackend); ok {
		switch PollerBackend(raw) {
		case PollerEpoll, PollerURing:
			g.PollerBackend = PollerBackend(raw)
		default:
			obs.L().Sugar().Warnf("%s=%q is not a known poller backend, keeping default %q", envPollerBackend, raw, g.PollerBackend)
		}
	}

	return g
}

func roundUpToPowerOfTwo(n int, key string) int {
	if n&(n-1) == 0 {
		return n
	}
	size := n - 1
	size |= size >> 1
	size |= size >> 2
	size |= size >> 4
	size |= size >> 8
	size |= size >> 16
	size++
	obs.L().Sugar().Warnf("%s set to %d since %d is not a power of 2", key, size, n)
	return size
}

// InitialSendRingCapacity rounds requested up to the nearest multiple
// of 1024, with a floor of 1024.
func InitialSendRingCapacity(requested int) int {
	const unit = 1024
	if requested <= unit {
		return unit
	}
	if requested%unit == 0 {
		return requested
	}
	return requested + (unit - requested%unit)
}
