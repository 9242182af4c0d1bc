// Copyright 2025 The go-cosim Authors
// This file is part of the go-cosim library.
//
// The go-cosim library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-cosim library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-cosim library. If not, see <http://www.gnu.org/licenses/>.

// Package net provides the communication machinery of go-cosim: endpoint
// strings, a single-goroutine reactor for socket events and timers, socket
// wrappers for the request/reply and publish/subscribe channels, and the
// frame packing used to carry multi-frame messages over them.
package net

import (
	"fmt"
	"strings"
)

// Endpoint is a transport address of the form "tcp://HOST:PORT",
// "ipc://NAME" or "inproc://NAME". A TCP port of "*" or "0" requests an
// ephemeral port; the concrete address is read back after binding.
type Endpoint string

func (e Endpoint) String() string { return string(e) }

// Scheme returns the transport scheme of the endpoint, e.g. "tcp".
func (e Endpoint) Scheme() string {
	if i := strings.Index(string(e), "://"); i >= 0 {
		return string(e)[:i]
	}
	return ""
}

// ParseEndpoint validates s and returns it as an Endpoint.
func ParseEndpoint(s string) (Endpoint, error) {
	i := strings.Index(s, "://")
	if i <= 0 || i+3 >= len(s) {
		return "", fmt.Errorf("malformed endpoint %q", s)
	}
	switch s[:i] {
	case "tcp", "ipc", "inproc":
		return Endpoint(s), nil
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", s[:i])
	}
}

// listenAddr rewrites the ZeroMQ-style ephemeral port marker "*" into the
// form the transport layer understands.
func listenAddr(e Endpoint) string {
	s := string(e)
	if strings.HasPrefix(s, "tcp://") && strings.HasSuffix(s, ":*") {
		return strings.TrimSuffix(s, "*") + "0"
	}
	return s
}

// SlaveLocator holds the two endpoints needed to talk to a slave: the
// control channel it serves requests on and the channel it publishes
// variable data on.
type SlaveLocator struct {
	Control Endpoint
	DataPub Endpoint
}
