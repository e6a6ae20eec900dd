package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	g := FromEnv()
	assert.Equal(t, defaultMaxSendBufferSize, g.MaxSendBufferSize)
	assert.Equal(t, Unlimited, g.MaxSendBufferBytes)
	assert.Equal(t, 30000*time.Millisecond, g.WriteCountUpdateInterval)
	assert.Equal(t, PollerEpoll, g.PollerBackend)
}

func TestFromEnvParsesPollerBackend(t *testing.T) {
	t.Setenv("POLLER_BACKEND", "uring")
	g := FromEnv()
	assert.Equal(t, PollerURing, g.PollerBackend)
}

func TestFromEnvRejectsUnknownPollerBackend(t *testing.T) {
	t.Setenv("POLLER_BACKEND", "kqueue")
	g := FromEnv()
	assert.Equal(t, PollerEpoll, g.PollerBackend)
}

func TestFromEnvRoundsNonPowerOfTwo(t *testing.T) {
	t.Setenv("MAX_SENDBUFFER_SIZE", "1500")
	g := FromEnv()
	assert.Equal(t, 2048, g.MaxSendBufferSize)
}

func TestFromEnvParsesBytesCap(t *testing.T) {
	t.Setenv("MAX_SENDBUFFER_BYTES", "10000")
	g := FromEnv()
	assert.Equal(t, 10000, g.MaxSendBufferBytes)
}

func TestFromEnvUnlimitedSentinel(t *testing.T) {
	t.Setenv("MAX_SENDBUFFER_BYTES", "unlimited")
	g := FromEnv()
	assert.Equal(t, Unlimited, g.MaxSendBufferBytes)
}

func TestInitialSendRingCapacity(t *testing.T) {
	assert.Equal(t, 1024, InitialSendRingCapacity(0))
	assert.Equal(t, 1024, InitialSendRingCapacity(1000))
	assert.Equal(t, 2048, InitialSendRingCapacity(1025))
	assert.Equal(t, 3072, InitialSendRingCapacity(2049))
}
