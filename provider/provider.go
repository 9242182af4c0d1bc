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

// Package provider implements the slave-provider directory: a service that
// publishes the slave types available on a host and instantiates them on
// demand, handing the resulting slave's endpoints back to the requester.
package provider

import (
	"fmt"

	log "github.com/inconshreveable/log15"
	"golang.org/x/sync/errgroup"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/protocol"
	"github.com/oceanbed/go-cosim/slave"
)

// SlaveType is one kind of slave a provider can instantiate.
type SlaveType interface {
	// Description describes the type and its variables.
	Description() model.SlaveTypeDescription

	// Instantiate creates a fresh simulation instance of the type.
	Instantiate() (slave.Instance, error)
}

// FactorySlaveType adapts a description and a factory function to the
// SlaveType interface.
type FactorySlaveType struct {
	Desc    model.SlaveTypeDescription
	Factory func() (slave.Instance, error)
}

// Description implements SlaveType.
func (t *FactorySlaveType) Description() model.SlaveTypeDescription { return t.Desc }

// Instantiate implements SlaveType.
func (t *FactorySlaveType) Instantiate() (slave.Instance, error) { return t.Factory() }

// ServerConfig configures a provider server.
type ServerConfig struct {
	// Bind is the endpoint the directory service listens on.
	Bind net.Endpoint

	// SlaveBind is the endpoint template new slaves bind their sockets to,
	// normally with an ephemeral port, e.g. "tcp://10.0.0.5:*".
	SlaveBind net.Endpoint
}

// Server is a slave-provider directory service. It answers type listing
// requests and instantiates slaves, each served by its own runner until
// its execution terminates it.
type Server struct {
	reactor *net.Reactor
	logger  log.Logger

	control *net.RepSocket
	bound   net.Endpoint
	cfg     ServerConfig

	types   map[string]SlaveType // keyed by UUID
	ordered []SlaveType

	runners errgroup.Group
}

// NewServer binds the directory service. The slave types are published in
// the given order.
func NewServer(cfg ServerConfig, types ...SlaveType) (*Server, error) {
	control, err := net.NewRepSocket()
	if err != nil {
		return nil, err
	}
	bound, err := control.Bind(cfg.Bind)
	if err != nil {
		control.Close()
		return nil, err
	}
	s := &Server{
		reactor: net.NewReactor(),
		logger:  log.New("component", "provider", "endpoint", bound),
		control: control,
		bound:   bound,
		cfg:     cfg,
		types:   make(map[string]SlaveType, len(types)),
		ordered: types,
	}
	for _, t := range types {
		desc := t.Description()
		if _, dup := s.types[desc.UUID]; dup {
			control.Close()
			return nil, fmt.Errorf("duplicate slave type UUID %s", desc.UUID)
		}
		s.types[desc.UUID] = t
	}
	s.reactor.AddSocket(control, s.onRequest)
	return s, nil
}

// BoundEndpoint returns the concrete endpoint of the directory service.
func (s *Server) BoundEndpoint() net.Endpoint { return s.bound }

// Run serves directory requests until Stop is called, then waits for the
// slaves spawned meanwhile to finish.
func (s *Server) Run() error {
	s.logger.Info("Slave provider running", "types", len(s.types))
	s.reactor.Run()
	s.control.Close()
	return s.runners.Wait()
}

// Stop makes Run return. Safe to call from any goroutine.
func (s *Server) Stop() {
	s.reactor.Post(s.reactor.Stop)
}

func (s *Server) onRequest(frames [][]byte, err error) {
	if err != nil {
		s.logger.Error("Directory channel receive failed", "err", err)
		return
	}
	msgType, _, err := protocol.ParseMessageType(frames)
	if err != nil {
		s.logger.Warn("Malformed directory request", "err", err)
		s.reply(protocol.MsgDenied, &protocol.DeniedBody{Reason: err.Error()})
		return
	}
	switch msgType {
	case protocol.MsgGetSlaveTypes:
		s.handleGetSlaveTypes()
	case protocol.MsgInstantiateSlave:
		s.handleInstantiateSlave(frames)
	default:
		s.reply(protocol.MsgDenied, &protocol.DeniedBody{
			Reason: fmt.Sprintf("%s not served here", protocol.MsgTypeName(msgType)),
		})
	}
}

func (s *Server) handleGetSlaveTypes() {
	body := &protocol.SlaveTypesBody{Types: make([]model.SlaveTypeDescription, 0, len(s.ordered))}
	for _, t := range s.ordered {
		body.Types = append(body.Types, t.Description())
	}
	s.reply(protocol.MsgSlaveTypes, body)
}

func (s *Server) handleInstantiateSlave(frames [][]byte) {
	var body protocol.InstantiateSlaveBody
	if err := protocol.ParseBody(frames, &body); err != nil {
		s.reply(protocol.MsgInstantiateSlaveFailed, &protocol.InstantiateSlaveFailedBody{Reason: err.Error()})
		return
	}
	t, ok := s.types[body.UUID]
	if !ok {
		s.reply(protocol.MsgInstantiateSlaveFailed, &protocol.InstantiateSlaveFailedBody{
			Reason: fmt.Sprintf("unknown slave type %s", body.UUID),
		})
		return
	}
	instance, err := t.Instantiate()
	if err != nil {
		s.reply(protocol.MsgInstantiateSlaveFailed, &protocol.InstantiateSlaveFailedBody{
			Reason: fmt.Sprintf("instantiation failed: %v", err),
		})
		return
	}
	runner, err := slave.NewRunner(instance, s.cfg.SlaveBind, s.cfg.SlaveBind)
	if err != nil {
		s.reply(protocol.MsgInstantiateSlaveFailed, &protocol.InstantiateSlaveFailedBody{
			Reason: fmt.Sprintf("binding slave sockets failed: %v", err),
		})
		return
	}
	s.runners.Go(runner.Run)
	s.logger.Info("Slave instantiated",
		"type", t.Description().Name,
		"control", runner.BoundControlEndpoint(),
		"dataPub", runner.BoundDataPubEndpoint())
	s.reply(protocol.MsgInstantiateSlaveOK, &protocol.InstantiateSlaveOKBody{
		ControlEndpoint: string(runner.BoundControlEndpoint()),
		DataPubEndpoint: string(runner.BoundDataPubEndpoint()),
	})
}

func (s *Server) reply(msgType uint16, body interface{}) {
	frames, err := protocol.MakeMessage(msgType, body)
	if err != nil {
		s.logger.Error("Encoding directory reply failed", "err", err)
		return
	}
	if err := s.control.Send(frames); err != nil {
		s.logger.Error("Sending directory reply failed", "err", err)
	}
}
