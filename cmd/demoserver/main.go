// Command demoserver is the far end of netlet's example client
// (cmd/democlient): a tiny gnet-based echo server. Server-side accept
// handling isn't netlet's job, so this reuses a real server framework
// rather than hand-rolling one.
package main

import (
	"flag"
	"log"

	"github.com/panjf2000/gnet/v2"
	"github.com/valyala/bytebufferpool"
)

type echoServer struct {
	gnet.BuiltinEventEngine
}

func (s *echoServer) OnTraffic(c gnet.Conn) gnet.Action {
	buf, err := c.Next(-1)
	if err != nil {
		return gnet.Close
	}
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	bb.Write(buf)
	if _, err := c.Write(bb.Bytes()); err != nil {
		return gnet.Close
	}
	return gnet.None
}

func main() {
	addr := flag.String("addr", "tcp://127.0.0.1:9000", "listen address")
	multicore := flag.Bool("multicore", false, "run with one event-loop per CPU")
	flag.Parse()

	log.Printf("demoserver listening on %s", *addr)
	if err := gnet.Run(&echoServer{}, *addr, gnet.WithMulticore(*multicore)); err != nil {
		log.Fatal(err)
	}
}
