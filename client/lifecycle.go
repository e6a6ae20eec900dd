package client

import "github.com/y001j/netlet/internal/obs"

// Registered is called once the reactor has installed this endpoint's
// key. No OP_WRITE interest is implied yet.
func (e *Endpoint) Registered(key Key) {
	e.key = key
	e.state.Store(int32(StateRegistered))
}

// Connected marks the endpoint ready to send and notifies the handler.
// It clears the pipeline's write-interest bookkeeping so the first Send
// after connect asserts OP_WRITE instead of assuming it already is.
func (e *Endpoint) Connected() {
	e.pipeline.SetWriteInterestAsserted(false)
	e.state.Store(int32(StateConnected))
	e.handler.Connected()
}

// Disconnected marks the endpoint as no longer usable for I/O and
// notifies the handler. It marks write interest as already asserted so
// nothing further tries to flip OP_WRITE on a dead key during teardown.
func (e *Endpoint) Disconnected() {
	if e.State() == StateDisconnected || e.State() == StateUnregistered {
		return
	}
	e.pipeline.SetWriteInterestAsserted(true)
	e.state.Store(int32(StateDisconnected))
	e.handler.Disconnected()
}

// Unregistered tears down the outbound pipeline so that no further
// Send succeeds, then marks the endpoint unregistered. If key has an
// Unregister method (reactor.Key does), it is called to remove the key
// from its poller.
func (e *Endpoint) Unregistered(key Key) {
	e.pipeline.Unregister()
	e.state.Store(int32(StateUnregistered))
	if u, ok := key.(interface{ Unregister() }); ok {
		u.Unregister()
	}
}

// IsReadSuspended reports whether OP_READ is currently cleared.
func (e *Endpoint) IsReadSuspended() bool {
	return e.key.InterestOps()&OpRead == 0
}

// SuspendReadIfResumed clears OP_READ if it is currently set, returning
// whether it did anything. Prefer this over the deprecated SuspendRead
// when toggling read interest repeatedly, since it avoids redundant
// SetInterestOps calls.
func (e *Endpoint) SuspendReadIfResumed() bool {
	ops := e.key.InterestOps()
	if ops&OpRead == 0 {
		return false
	}
	e.key.SetInterestOps(ops &^ OpRead)
	return true
}

// ResumeReadIfSuspended sets OP_READ if it is currently cleared,
// returning whether it did anything, and wakes the reactor so the
// change takes effect before the next natural wakeup.
func (e *Endpoint) ResumeReadIfSuspended() bool {
	ops := e.key.InterestOps()
	if ops&OpRead != 0 {
		return false
	}
	e.key.SetInterestOps(ops | OpRead)
	e.key.Wakeup()
	return true
}

// SuspendRead unconditionally clears OP_READ.
//
// Deprecated: use SuspendReadIfResumed, which avoids redundant
// SetInterestOps calls when read interest is already suspended.
func (e *Endpoint) SuspendRead() {
	e.key.SetInterestOps(e.key.InterestOps() &^ OpRead)
	obs.L().Sugar().Debugf("SuspendRead is deprecated, use SuspendReadIfResumed")
}

// ResumeRead unconditionally sets OP_READ and wakes the reactor.
//
// Deprecated: use ResumeReadIfSuspended, which avoids redundant
// SetInterestOps calls when read interest is already active.
func (e *Endpoint) ResumeRead() {
	e.key.SetInterestOps(e.key.InterestOps() | OpRead)
	e.key.Wakeup()
	obs.L().Sugar().Debugf("ResumeRead is deprecated, use ResumeReadIfSuspended")
}
