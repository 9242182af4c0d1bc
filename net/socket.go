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

package net

import (
	"errors"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register the tcp, ipc and inproc transports.
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// errSocketClosed is returned by recvMessage after Close.
var errSocketClosed = errors.New("socket closed")

func isClosed(err error) bool {
	return errors.Is(err, mangos.ErrClosed) || errors.Is(err, errSocketClosed)
}

// ReceivingSocket is a socket whose incoming messages can be pumped by a
// Reactor.
type ReceivingSocket interface {
	recvMessage() ([]byte, error)
}

func listen(sock mangos.Socket, ep Endpoint) (Endpoint, error) {
	l, err := sock.NewListener(listenAddr(ep), nil)
	if err != nil {
		return "", err
	}
	if err := l.Listen(); err != nil {
		return "", err
	}
	// For an ephemeral bind the listener reports the concrete address.
	return Endpoint(l.Address()), nil
}

// ReqSocket is the requesting end of a request/reply channel. Requests and
// replies alternate strictly; a second Send before the reply has arrived
// discards the outstanding request.
type ReqSocket struct {
	sock    mangos.Socket
	pending chan struct{}
	quit    chan struct{}
}

// NewReqSocket creates an unconnected request socket. Automatic request
// retransmission is disabled; timeout handling belongs to the caller.
func NewReqSocket() (*ReqSocket, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.SetOption(mangos.OptionRetryTime, time.Duration(0)); err != nil {
		sock.Close()
		return nil, err
	}
	return &ReqSocket{
		sock:    sock,
		pending: make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}, nil
}

// Connect dials the given endpoint.
func (s *ReqSocket) Connect(ep Endpoint) error {
	return s.sock.Dial(string(ep))
}

// Send issues a request. The reply is delivered through the reactor if the
// socket is registered with one.
func (s *ReqSocket) Send(frames [][]byte) error {
	if err := s.sock.Send(PackFrames(frames...)); err != nil {
		return err
	}
	select {
	case s.pending <- struct{}{}:
	default:
	}
	return nil
}

// Call performs one synchronous request/reply exchange with a deadline. It
// must not be combined with reactor registration.
func (s *ReqSocket) Call(frames [][]byte, timeout time.Duration) ([][]byte, error) {
	if err := s.sock.SetOption(mangos.OptionRecvDeadline, timeout); err != nil {
		return nil, err
	}
	if err := s.sock.Send(PackFrames(frames...)); err != nil {
		return nil, err
	}
	raw, err := s.sock.Recv()
	if err != nil {
		return nil, err
	}
	return SplitFrames(raw)
}

// recvMessage waits until a request is outstanding, then blocks for its
// reply. This keeps the reader goroutine from spinning on the strict
// alternation the protocol imposes.
func (s *ReqSocket) recvMessage() ([]byte, error) {
	select {
	case <-s.quit:
		return nil, errSocketClosed
	case <-s.pending:
	}
	return s.sock.Recv()
}

// Close releases the socket. Safe to call more than once.
func (s *ReqSocket) Close() error {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
	return s.sock.Close()
}

// RepSocket is the serving end of a request/reply channel.
type RepSocket struct {
	sock mangos.Socket
}

// NewRepSocket creates an unbound reply socket.
func NewRepSocket() (*RepSocket, error) {
	sock, err := rep.NewSocket()
	if err != nil {
		return nil, err
	}
	return &RepSocket{sock: sock}, nil
}

// Bind binds the socket and returns the concrete endpoint, which differs
// from ep when an ephemeral port was requested.
func (s *RepSocket) Bind(ep Endpoint) (Endpoint, error) {
	return listen(s.sock, ep)
}

// Send sends the reply to the most recently received request.
func (s *RepSocket) Send(frames [][]byte) error {
	return s.sock.Send(PackFrames(frames...))
}

func (s *RepSocket) recvMessage() ([]byte, error) {
	return s.sock.Recv()
}

// Close releases the socket.
func (s *RepSocket) Close() error {
	return s.sock.Close()
}

// PubSocket is the sending end of a publish/subscribe channel.
type PubSocket struct {
	sock mangos.Socket
}

// NewPubSocket creates an unbound publish socket.
func NewPubSocket() (*PubSocket, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, err
	}
	return &PubSocket{sock: sock}, nil
}

// Bind binds the socket and returns the concrete endpoint.
func (s *PubSocket) Bind(ep Endpoint) (Endpoint, error) {
	return listen(s.sock, ep)
}

// Send publishes one message to all matching subscribers.
func (s *PubSocket) Send(frames [][]byte) error {
	return s.sock.Send(PackFrames(frames...))
}

// Close releases the socket.
func (s *PubSocket) Close() error {
	return s.sock.Close()
}

// SubSocket is the receiving end of a publish/subscribe channel. It can be
// connected to any number of publishers and filters incoming messages by
// byte-prefix subscriptions.
type SubSocket struct {
	sock    mangos.Socket
	dialers map[Endpoint]mangos.Dialer
}

// NewSubSocket creates an unconnected subscribe socket with no
// subscriptions; until Subscribe is called everything is filtered out.
func NewSubSocket() (*SubSocket, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, err
	}
	return &SubSocket{
		sock:    sock,
		dialers: make(map[Endpoint]mangos.Dialer),
	}, nil
}

// Connect dials a publisher endpoint. Connecting to an endpoint the socket
// is already connected to is a no-op.
func (s *SubSocket) Connect(ep Endpoint) error {
	if _, ok := s.dialers[ep]; ok {
		return nil
	}
	d, err := s.sock.NewDialer(string(ep), nil)
	if err != nil {
		return err
	}
	if err := d.Dial(); err != nil {
		return err
	}
	s.dialers[ep] = d
	return nil
}

// Disconnect drops the connection to a publisher endpoint.
func (s *SubSocket) Disconnect(ep Endpoint) error {
	d, ok := s.dialers[ep]
	if !ok {
		return nil
	}
	delete(s.dialers, ep)
	return d.Close()
}

// Connected reports whether the socket has a connection to ep.
func (s *SubSocket) Connected(ep Endpoint) bool {
	_, ok := s.dialers[ep]
	return ok
}

// Subscribe adds a byte-prefix filter.
func (s *SubSocket) Subscribe(prefix []byte) error {
	return s.sock.SetOption(mangos.OptionSubscribe, prefix)
}

// Unsubscribe removes a byte-prefix filter.
func (s *SubSocket) Unsubscribe(prefix []byte) error {
	return s.sock.SetOption(mangos.OptionUnsubscribe, prefix)
}

func (s *SubSocket) recvMessage() ([]byte, error) {
	return s.sock.Recv()
}

// Close releases the socket and all its connections.
func (s *SubSocket) Close() error {
	return s.sock.Close()
}
