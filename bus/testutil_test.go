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
	"testing"
	"time"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/protocol"
)

// testInstance is a minimal Instance for driving agents in tests. It holds
// real variables only and lets tests hook the step function.
type testInstance struct {
	desc      model.SlaveTypeDescription
	reals     map[model.VariableID]float64
	stepFn    func(currentTime model.TimePoint, stepSize model.TimeDuration) bool
	stepCount int
	started   bool
	ended     bool
}

// newTestInstance creates an instance with one real input (ID 0) and one
// real output (ID 1). The default step copies the input to the output.
func newTestInstance(name string) *testInstance {
	return &testInstance{
		desc: model.SlaveTypeDescription{
			Name: name,
			UUID: "test-" + name,
			Variables: []model.VariableDescription{
				{ID: 0, Name: "in", DataType: model.RealDataType, Causality: model.InputCausality, Variability: model.ContinuousVariability},
				{ID: 1, Name: "out", DataType: model.RealDataType, Causality: model.OutputCausality, Variability: model.ContinuousVariability},
			},
		},
		reals: make(map[model.VariableID]float64),
	}
}

func (i *testInstance) TypeDescription() model.SlaveTypeDescription { return i.desc }

func (i *testInstance) Setup(slaveName, executionName string, startTime, stopTime model.TimePoint, adaptiveStepSize bool, relativeTolerance float64) error {
	return nil
}

func (i *testInstance) StartSimulation() error { i.started = true; return nil }
func (i *testInstance) EndSimulation() error   { i.ended = true; return nil }

func (i *testInstance) DoStep(currentTime model.TimePoint, stepSize model.TimeDuration) bool {
	i.stepCount++
	if i.stepFn != nil {
		return i.stepFn(currentTime, stepSize)
	}
	i.reals[1] = i.reals[0]
	return true
}

func (i *testInstance) GetRealVariable(id model.VariableID) (float64, error) {
	return i.reals[id], nil
}

func (i *testInstance) SetRealVariable(id model.VariableID, value float64) error {
	i.reals[id] = value
	return nil
}

func (i *testInstance) GetIntegerVariable(id model.VariableID) (int32, error) {
	return 0, fmt.Errorf("no integer variable %d", id)
}

func (i *testInstance) GetBooleanVariable(id model.VariableID) (bool, error) {
	return false, fmt.Errorf("no boolean variable %d", id)
}

func (i *testInstance) GetStringVariable(id model.VariableID) (string, error) {
	return "", fmt.Errorf("no string variable %d", id)
}

func (i *testInstance) SetIntegerVariable(id model.VariableID, value int32) error {
	return fmt.Errorf("no integer variable %d", id)
}

func (i *testInstance) SetBooleanVariable(id model.VariableID, value bool) error {
	return fmt.Errorf("no boolean variable %d", id)
}

func (i *testInstance) SetStringVariable(id model.VariableID, value string) error {
	return fmt.Errorf("no string variable %d", id)
}

// testSlave is a slave agent served on its own reactor goroutine.
type testSlave struct {
	inst    *testInstance
	reactor *net.Reactor
	agent   *SlaveAgent
	done    chan struct{}
}

func startTestSlave(t *testing.T, inst *testInstance) *testSlave {
	t.Helper()
	reactor := net.NewReactor()
	agent, err := NewSlaveAgent(reactor, inst, "tcp://127.0.0.1:*", "tcp://127.0.0.1:*")
	if err != nil {
		t.Fatalf("starting slave agent: %v", err)
	}
	s := &testSlave{inst: inst, reactor: reactor, agent: agent, done: make(chan struct{})}
	go func() {
		reactor.Run()
		close(s.done)
	}()
	return s
}

func (s *testSlave) locator() net.SlaveLocator {
	return net.SlaveLocator{Control: s.agent.BoundControlEndpoint()}
}

// connectionCount reads the agent's subscription count on its own reactor.
func (s *testSlave) connectionCount() int {
	c := make(chan int, 1)
	s.reactor.Post(func() { c <- s.agent.vio.connectionCount() })
	return <-c
}

// stop ends the slave's reactor without a TERMINATE exchange.
func (s *testSlave) stop() {
	select {
	case <-s.done:
	default:
		s.reactor.Post(s.reactor.Stop)
		<-s.done
	}
}

// runOp issues one asynchronous manager operation and pumps the reactor
// until its aggregate callback fires.
func runOp(t *testing.T, reactor *net.Reactor, start func(done func(error)) error) error {
	t.Helper()
	var opErr error
	if err := start(func(err error) {
		opErr = err
		reactor.Stop()
	}); err != nil {
		t.Fatalf("starting operation: %v", err)
	}
	reactor.Run()
	return opErr
}

// call performs one synchronous control exchange against an agent.
func call(t *testing.T, req *net.ReqSocket, msgType uint16, body interface{}) [][]byte {
	t.Helper()
	frames, err := protocol.MakeMessage(msgType, body)
	if err != nil {
		t.Fatalf("encoding %s: %v", protocol.MsgTypeName(msgType), err)
	}
	reply, err := req.Call(frames, 2*time.Second)
	if err != nil {
		t.Fatalf("%s exchange: %v", protocol.MsgTypeName(msgType), err)
	}
	return reply
}

func replyType(t *testing.T, frames [][]byte) uint16 {
	t.Helper()
	msgType, _, err := protocol.ParseMessageType(frames)
	if err != nil {
		t.Fatalf("parsing reply: %v", err)
	}
	return msgType
}
