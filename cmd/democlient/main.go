// Command democlient wires reactor and client together against a real
// socket: dial out, register with a poller, send one message, and
// print whatever comes back.
package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/y001j/netlet/client"
	"github.com/y001j/netlet/reactor"
	socket "github.com/y001j/netlet/sockets"
)

type echoHandler struct {
	buf  []byte
	once sync.Once
	done chan struct{}
}

func newEchoHandler() *echoHandler {
	return &echoHandler{buf: make([]byte, 4096), done: make(chan struct{})}
}

func (h *echoHandler) Buffer() []byte { return h.buf }

func (h *echoHandler) Read(n int) {
	fmt.Printf("received: %s\n", h.buf[:n])
	h.once.Do(func() { close(h.done) })
}

func (h *echoHandler) Connected()    {}
func (h *echoHandler) Disconnected() { fmt.Println("disconnected") }

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "server address")
	message := flag.String("message", "hello from netlet", "message to send")
	flag.Parse()

	conn, err := socket.Dial("tcp", *addr, socket.SocketOptions{TCPNoDelay: socket.TCPNoDelay})
	if err != nil {
		log.Fatalf("dial: %v", err)
	}

	poller, err := reactor.NewPoller()
	if err != nil {
		log.Fatalf("new poller: %v", err)
	}

	handler := newEchoHandler()
	ep := client.NewEndpoint(handler)

	key, err := poller.Register(conn, ep)
	if err != nil {
		log.Fatalf("register: %v", err)
	}
	ep.Registered(key)
	ep.Connected()

	go func() {
		if err := poller.Run(); err != nil {
			log.Println("poller stopped:", err)
		}
	}()
	defer poller.Close()

	if ok, sendErr := ep.Send([]byte(*message)); !ok {
		log.Fatalf("send rejected: %v", sendErr)
	}

	select {
	case <-handler.done:
	case <-time.After(5 * time.Second):
		fmt.Println("timed out waiting for echo")
	}
}
