// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"fmt"
	"net"
	"strconv"
)

// LoopbackHost is the only interface either end of the gateway binds.
const LoopbackHost = "127.0.0.1"

// LoopbackAddress returns "127.0.0.1:<port>".
func LoopbackAddress(port int) string {
	return net.JoinHostPort(LoopbackHost, strconv.Itoa(port))
}

// ListenLoopback binds a TCP listener on the loopback interface. Port 0
// asks the kernel for an ephemeral port; read it back with Port.
func ListenLoopback(port int) (net.Listener, error) {
	listener, err := net.Listen("tcp", LoopbackAddress(port))
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", LoopbackAddress(port), err)
	}
	return listener, nil
}

// Port returns the TCP port of addr, or 0 if addr is not a TCP address.
func Port(addr net.Addr) int {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return 0
	}
	return tcpAddr.Port
}
