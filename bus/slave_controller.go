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

package bus

import (
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/protocol"
)

// SlavePhase is the master's view of one slave's protocol state.
type SlavePhase int

const (
	SlaveConnecting SlavePhase = iota // handshake in progress
	SlaveReady
	SlaveStepping // STEP sent, no reply yet
	SlaveStepped  // STEP_OK received, not yet accepted
	SlaveLost     // failed; sticky
	SlaveTerminated
)

func (p SlavePhase) String() string {
	switch p {
	case SlaveConnecting:
		return "CONNECTING"
	case SlaveReady:
		return "READY"
	case SlaveStepping:
		return "STEPPING"
	case SlaveStepped:
		return "STEPPED"
	case SlaveLost:
		return "LOST"
	case SlaveTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// slaveController is the master's handle on one slave: the request socket
// connected to the slave's control endpoint plus the metadata gathered
// about it. Requests and replies alternate strictly per slave; onReply
// holds the continuation of the request in flight.
type slaveController struct {
	id      model.SlaveID
	name    string
	locator net.SlaveLocator
	logger  log.Logger

	desc         model.SlaveTypeDescription
	dataEndpoint net.Endpoint

	phase   SlavePhase
	req     *net.ReqSocket
	onReply func(frames [][]byte, err error)
	closed  bool
}

// newSlaveController dials the slave's control endpoint and registers the
// reply channel with the reactor.
func newSlaveController(reactor *net.Reactor, locator net.SlaveLocator, logger log.Logger) (*slaveController, error) {
	req, err := net.NewReqSocket()
	if err != nil {
		return nil, err
	}
	if err := req.Connect(locator.Control); err != nil {
		req.Close()
		return nil, err
	}
	c := &slaveController{
		locator: locator,
		logger:  logger,
		phase:   SlaveConnecting,
		req:     req,
	}
	reactor.AddSocket(req, c.dispatchReply)
	return c, nil
}

// sendRequest issues one request. onReply runs on the reactor goroutine
// when the reply arrives; a nil onReply marks a fire-and-forget request.
func (c *slaveController) sendRequest(msgType uint16, body interface{}, onReply func(frames [][]byte, err error)) error {
	if c.onReply != nil {
		return fmt.Errorf("request already in flight to slave %d", c.id)
	}
	frames, err := protocol.MakeMessage(msgType, body)
	if err != nil {
		return err
	}
	if err := c.req.Send(frames); err != nil {
		return err
	}
	c.onReply = onReply
	return nil
}

// sendHello issues the version negotiation request, which may carry a
// version other than the one this implementation speaks.
func (c *slaveController) sendHello(version uint16, body *protocol.HelloBody, onReply func(frames [][]byte, err error)) error {
	if c.onReply != nil {
		return fmt.Errorf("request already in flight")
	}
	frames, err := protocol.MakeMessageV(protocol.MsgHello, version, body)
	if err != nil {
		return err
	}
	if err := c.req.Send(frames); err != nil {
		return err
	}
	c.onReply = onReply
	return nil
}

func (c *slaveController) dispatchReply(frames [][]byte, err error) {
	onReply := c.onReply
	c.onReply = nil
	if onReply == nil {
		c.logger.Warn("Unsolicited reply from slave", "id", c.id)
		return
	}
	onReply(frames, err)
}

// markLost flags the slave as unusable. The flag is sticky; subsequent
// operations skip the slave and report it failed immediately.
func (c *slaveController) markLost(reason error) {
	if c.phase == SlaveLost {
		return
	}
	c.logger.Warn("Slave lost", "id", c.id, "name", c.name, "reason", reason)
	c.phase = SlaveLost
	c.onReply = nil
}

func (c *slaveController) close() {
	if c.closed {
		return
	}
	c.closed = true
	c.req.Close()
}
