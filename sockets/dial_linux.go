package socket

import (
	"net"
	"syscall"
)

// Dial opens addr over proto ("tcp", "tcp4", "tcp6", "unix"), applying
// opts' socket options (TCPNoDelay, SocketRecvBuffer, SocketSendBuffer,
// TCPKeepAlive, ReuseAddr, ReusePort) before handing back a connection
// ready to register with a reactor.Poller.
func Dial(proto, addr string, opts SocketOptions) (net.Conn, error) {
	d := net.Dialer{KeepAlive: opts.TCPKeepAlive}
	conn, err := d.Dial(proto, addr)
	if err != nil {
		return nil, err
	}
	if err := applyOptions(conn, proto, opts); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func applyOptions(conn net.Conn, proto string, opts SocketOptions) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}

	var applyErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		for _, o := range SetOptions(proto, opts) {
			if err := o.SetSockOpt(int(fd), o.Opt); err != nil {
				applyErr = err
				return
			}
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return applyErr
}
