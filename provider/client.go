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

package provider

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/protocol"
	"github.com/oceanbed/go-cosim/status"
)

// descCacheSize bounds the per-client slave type description cache.
const descCacheSize = 64

// Client talks to one slave-provider directory service. It is synchronous
// and must be used from a single goroutine.
type Client struct {
	req     *net.ReqSocket
	timeout time.Duration
	cache   *lru.Cache // UUID -> model.SlaveTypeDescription
}

// NewClient connects to a provider. The timeout applies to each directory
// request individually; instantiation requests take their own timeout.
func NewClient(endpoint net.Endpoint, timeout time.Duration) (*Client, error) {
	req, err := net.NewReqSocket()
	if err != nil {
		return nil, err
	}
	if err := req.Connect(endpoint); err != nil {
		req.Close()
		return nil, err
	}
	cache, err := lru.New(descCacheSize)
	if err != nil {
		req.Close()
		return nil, err
	}
	return &Client{req: req, timeout: timeout, cache: cache}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.req.Close() }

// SlaveTypes lists the slave types the provider publishes.
func (c *Client) SlaveTypes() ([]model.SlaveTypeDescription, error) {
	request, err := protocol.MakeMessage(protocol.MsgGetSlaveTypes, nil)
	if err != nil {
		return nil, err
	}
	reply, err := c.req.Call(request, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("querying slave types: %w", err)
	}
	var body protocol.SlaveTypesBody
	if err := c.expect(reply, protocol.MsgSlaveTypes, &body); err != nil {
		return nil, err
	}
	for _, d := range body.Types {
		c.cache.Add(d.UUID, d)
	}
	return body.Types, nil
}

// SlaveType returns the description of one published type, from cache if
// the provider has been queried before.
func (c *Client) SlaveType(uuid string) (model.SlaveTypeDescription, error) {
	if d, ok := c.cache.Get(uuid); ok {
		return d.(model.SlaveTypeDescription), nil
	}
	if _, err := c.SlaveTypes(); err != nil {
		return model.SlaveTypeDescription{}, err
	}
	if d, ok := c.cache.Get(uuid); ok {
		return d.(model.SlaveTypeDescription), nil
	}
	return model.SlaveTypeDescription{}, status.Newf(status.InputError, "provider has no slave type %s", uuid)
}

// InstantiateSlave asks the provider to spawn a slave of the given type
// and returns the new slave's endpoints.
func (c *Client) InstantiateSlave(uuid string, timeout time.Duration) (net.SlaveLocator, error) {
	request, err := protocol.MakeMessage(protocol.MsgInstantiateSlave, &protocol.InstantiateSlaveBody{
		UUID:      uuid,
		TimeoutMS: timeout.Milliseconds(),
	})
	if err != nil {
		return net.SlaveLocator{}, err
	}
	reply, err := c.req.Call(request, timeout)
	if err != nil {
		return net.SlaveLocator{}, fmt.Errorf("instantiating slave: %w", err)
	}
	msgType, _, err := protocol.ParseMessageType(reply)
	if err != nil {
		return net.SlaveLocator{}, err
	}
	switch msgType {
	case protocol.MsgInstantiateSlaveOK:
		var body protocol.InstantiateSlaveOKBody
		if err := protocol.ParseBody(reply, &body); err != nil {
			return net.SlaveLocator{}, err
		}
		control, err := net.ParseEndpoint(body.ControlEndpoint)
		if err != nil {
			return net.SlaveLocator{}, status.Newf(status.ProtocolViolation, "bad control endpoint: %v", err)
		}
		dataPub, err := net.ParseEndpoint(body.DataPubEndpoint)
		if err != nil {
			return net.SlaveLocator{}, status.Newf(status.ProtocolViolation, "bad data endpoint: %v", err)
		}
		return net.SlaveLocator{Control: control, DataPub: dataPub}, nil
	case protocol.MsgInstantiateSlaveFailed:
		var body protocol.InstantiateSlaveFailedBody
		_ = protocol.ParseBody(reply, &body)
		return net.SlaveLocator{}, fmt.Errorf("provider could not instantiate %s: %s", uuid, body.Reason)
	default:
		return net.SlaveLocator{}, status.Newf(status.ProtocolViolation, "unexpected %s reply", protocol.MsgTypeName(msgType))
	}
}

// expect checks the reply type and decodes its body.
func (c *Client) expect(reply [][]byte, want uint16, body interface{}) error {
	msgType, _, err := protocol.ParseMessageType(reply)
	if err != nil {
		return err
	}
	if msgType != want {
		if msgType == protocol.MsgDenied {
			var denied protocol.DeniedBody
			_ = protocol.ParseBody(reply, &denied)
			return status.Newf(status.ProtocolViolation, "request denied: %s", denied.Reason)
		}
		return status.Newf(status.ProtocolViolation, "unexpected %s reply, want %s",
			protocol.MsgTypeName(msgType), protocol.MsgTypeName(want))
	}
	return protocol.ParseBody(reply, body)
}
