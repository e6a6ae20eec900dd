package reactor

import "github.com/pkg/errors"

var (
	errNotSyscallConn = errors.New("reactor: connection does not expose a raw file descriptor")
	errPollHangup     = errors.New("reactor: peer hung up or the connection reported an error")
)
