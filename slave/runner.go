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

// Package slave hosts simulation instances: it defines the Instance
// interface a simulation unit implements, the Runner which serves one
// instance to a master, and a couple of simple built-in instances.
package slave

import (
	"github.com/oceanbed/go-cosim/bus"
	"github.com/oceanbed/go-cosim/net"
)

// Instance is the simulation unit hosted by a runner. See bus.Instance.
type Instance = bus.Instance

// Runner hosts one simulation instance and serves a master's control
// requests for it until the master terminates the execution.
type Runner struct {
	reactor *net.Reactor
	agent   *bus.SlaveAgent
}

// NewRunner binds the slave's sockets. Both endpoints may request an
// ephemeral port; the concrete addresses are available from the Bound
// methods before Run is called, so they can be advertised to the master.
func NewRunner(instance Instance, controlEndpoint, dataPubEndpoint net.Endpoint) (*Runner, error) {
	reactor := net.NewReactor()
	agent, err := bus.NewSlaveAgent(reactor, instance, controlEndpoint, dataPubEndpoint)
	if err != nil {
		return nil, err
	}
	return &Runner{reactor: reactor, agent: agent}, nil
}

// BoundControlEndpoint returns the concrete control endpoint.
func (r *Runner) BoundControlEndpoint() net.Endpoint {
	return r.agent.BoundControlEndpoint()
}

// BoundDataPubEndpoint returns the concrete data publishing endpoint.
func (r *Runner) BoundDataPubEndpoint() net.Endpoint {
	return r.agent.BoundDataPubEndpoint()
}

// Run serves the instance until the master terminates the execution.
func (r *Runner) Run() error {
	r.reactor.Run()
	return nil
}
