// Copyright (c) 2022 Rocky Yang
// Copyright (c) 2020 Andy Pan
// Copyright (c) 2017 Max Riveiro
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux
// +build linux

// Package socket carries the client-side socket option plumbing used
// by Dial: SocketOptions plus the SetOptions translation into the
// low-level setsockopt calls in sockopt_linux.go.
package socket

import (
	"strings"
	"time"
)

// Option is used for setting an option on socket.
type Option struct {
	SetSockOpt func(int, int) error
	Opt        int
}

// TCPSocketOpt is the type of TCP socket options.
type TCPSocketOpt int

// Available TCP socket options.
const (
	TCPNoDelay TCPSocketOpt = iota
	TCPDelay
)

// Options are configurations for client-side socket creation.
type SocketOptions struct {
	// ReuseAddr indicates whether to set up the SO_REUSEADDR socket option.
	ReuseAddr bool

	// ReusePort indicates whether to set up the SO_REUSEPORT socket option.
	ReusePort bool

	// TCPKeepAlive sets up a duration for (SO_KEEPALIVE) socket option.
	TCPKeepAlive time.Duration

	// TCPNoDelay controls whether the operating system should delay
	// packet transmission in hopes of sending fewer packets (Nagle's algorithm).
	//
	// The default is true (no delay), meaning that data is sent
	// as soon as possible after a write operation.
	TCPNoDelay TCPSocketOpt

	// SocketRecvBuffer sets the maximum socket receive buffer in bytes.
	SocketRecvBuffer int

	// SocketSendBuffer sets the maximum socket send buffer in bytes.
	SocketSendBuffer int
}

func SetOptions(network string, options SocketOptions) []Option {
	var sockOpts []Option
	if options.ReusePort || strings.HasPrefix(network, "udp") {
		sockOpt := Option{SetSockOpt: SetReuseport, Opt: 1}
		sockOpts = append(sockOpts, sockOpt)
	}
	if options.ReuseAddr {
		sockOpt := Option{SetSockOpt: SetReuseAddr, Opt: 1}
		sockOpts = append(sockOpts, sockOpt)
	}
	if options.TCPNoDelay == TCPNoDelay && strings.HasPrefix(network, "tcp") {
		sockOpt := Option{SetSockOpt: SetNoDelay, Opt: 1}
		sockOpts = append(sockOpts, sockOpt)
	}
	if options.SocketRecvBuffer > 0 {
		sockOpt := Option{SetSockOpt: SetRecvBuffer, Opt: options.SocketRecvBuffer}
		sockOpts = append(sockOpts, sockOpt)
	}
	if options.SocketSendBuffer > 0 {
		sockOpt := Option{SetSockOpt: SetSendBuffer, Opt: options.SocketSendBuffer}
		sockOpts = append(sockOpts, sockOpt)
	}
	return sockOpts
}
