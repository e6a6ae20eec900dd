//go:build linux

package reactor

import (
	"net"
	"runtime"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/y001j/netlet/client"
	"github.com/y001j/netlet/internal/obs"
)

// Poller is one non-blocking readiness loop: pin to an OS thread, then
// repeatedly wait on epoll_wait and dispatch ready events to the
// listener registered against each fd.
type Poller struct {
	epfd int

	wakeupFD int // eventfd used to interrupt EpollWait

	mu   sync.Mutex
	keys map[int]*Key

	closed chan struct{}
}

// NewPoller creates an epoll instance plus its eventfd-based wakeup
// mechanism.
func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wfd, _, errno := unix.Syscall(unix.SYS_EVENTFD2, 0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC, 0)
	if errno != 0 {
		_ = unix.Close(epfd)
		return nil, errno
	}

	p := &Poller{
		epfd:     epfd,
		wakeupFD: int(wfd),
		keys:     make(map[int]*Key),
		closed:   make(chan struct{}),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, p.wakeupFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(p.wakeupFD),
	}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(p.wakeupFD)
		return nil, err
	}
	return p, nil
}

func connFD(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1, errNotSyscallConn
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	ctrlErr := raw.Control(func(v uintptr) { fd = int(v) })
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}

// Register installs conn with this poller and returns the Key the
// associated client.Endpoint will call Registered() with. The endpoint
// starts with OP_READ interest only; OP_WRITE is asserted later by the
// outbound pipeline once something is actually queued to send.
func (p *Poller) Register(conn net.Conn, listener client.Listener) (*Key, error) {
	fd, err := connFD(conn)
	if err != nil {
		return nil, err
	}
	key := newKey(fd, conn, p, listener)
	key.ops.Store(int32(client.OpRead))

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: epollEventsFor(client.OpRead),
		Fd:     int32(fd),
	}); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.keys[fd] = key
	p.mu.Unlock()
	return key, nil
}

func epollEventsFor(ops int) uint32 {
	var ev uint32
	if ops&client.OpRead != 0 {
		ev |= unix.EPOLLIN
	}
	if ops&client.OpWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *Poller) updateInterest(key *Key, ops int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, key.fd, &unix.EpollEvent{
		Events: epollEventsFor(ops),
		Fd:     int32(key.fd),
	})
}

func (p *Poller) wakeup() {
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(p.wakeupFD, one[:])
}

func (p *Poller) drainWakeup() {
	var buf [8]byte
	for {
		_, err := unix.Read(p.wakeupFD, buf[:])
		if err != nil {
			return
		}
	}
}

// unregister removes fd from the poller entirely, called once a
// connection's endpoint has reached Unregistered.
func (p *Poller) unregister(key *Key) {
	key.invalidate()
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, key.fd, nil)
	p.mu.Lock()
	delete(p.keys, key.fd)
	p.mu.Unlock()
}

// Run pins the calling goroutine to its OS thread and services
// readiness events until Close is called.
func (p *Poller) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	events := make([]unix.EpollEvent, 128)
	for {
		select {
		case <-p.closed:
			return nil
		default:
		}

		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			if int(ev.Fd) == p.wakeupFD {
				p.drainWakeup()
				continue
			}

			p.mu.Lock()
			key, ok := p.keys[int(ev.Fd)]
			p.mu.Unlock()
			if !ok {
				continue
			}

			listener := key.currentListener()
			if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				listener.HandleException(errPollHangup)
				continue
			}
			if ev.Events&unix.EPOLLIN != 0 {
				listener.OnReadable()
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				listener.OnWritable()
			}
		}
	}
}

// Close stops the poller's Run loop and releases its epoll and
// eventfd descriptors.
func (p *Poller) Close() error {
	select {
	case <-p.closed:
		return nil
	default:
		close(p.closed)
	}
	p.wakeup()
	obs.L().Sugar().Debugf("reactor poller closing, %d keys still registered", len(p.keys))
	if err := unix.Close(p.wakeupFD); err != nil {
		return err
	}
	return unix.Close(p.epfd)
}
