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
	"sort"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/protocol"
	"github.com/oceanbed/go-cosim/status"
)

// variableIO is a slave's data plane. It owns the PUB socket on which the
// slave's outputs are published and the SUB socket on which peer outputs
// arrive, and it implements the per-step input barrier.
//
// Samples are tagged with step IDs. While collecting inputs for step S the
// bus delivers samples tagged S, buffers samples tagged higher (a peer may
// run at most one step ahead) and discards samples tagged lower.
type variableIO struct {
	reactor *net.Reactor
	logger  log.Logger

	pub         *net.PubSocket
	pubEndpoint net.Endpoint
	sub         *net.SubSocket

	slaveID model.SlaveID

	// connections maps each connected input to its remote source. The
	// auxiliary refcounts track how many inputs share a source slave (one
	// dialer per peer) and a source variable (one subscription per topic).
	connections  map[model.VariableID]model.Variable
	peerEndpoint map[model.SlaveID]net.Endpoint
	peerRefs     map[model.SlaveID]int
	topicRefs    map[model.Variable]int

	// Input collection state for the step in progress.
	collecting bool
	step       model.StepID
	missing    map[model.VariableID]struct{}
	values     map[model.VariableID]model.ScalarValue
	timer      net.TimerID
	onDone     func(map[model.VariableID]model.ScalarValue, error)

	// ahead buffers early samples keyed by their step ID.
	ahead map[model.StepID]map[model.Variable]model.ScalarValue
}

// newVariableIO binds the PUB socket to dataPubEndpoint (usually requesting
// an ephemeral port) and registers the SUB socket with the reactor.
func newVariableIO(reactor *net.Reactor, dataPubEndpoint net.Endpoint, logger log.Logger) (*variableIO, error) {
	pub, err := net.NewPubSocket()
	if err != nil {
		return nil, err
	}
	bound, err := pub.Bind(dataPubEndpoint)
	if err != nil {
		pub.Close()
		return nil, err
	}
	sub, err := net.NewSubSocket()
	if err != nil {
		pub.Close()
		return nil, err
	}
	v := &variableIO{
		reactor:      reactor,
		logger:       logger,
		pub:          pub,
		pubEndpoint:  bound,
		sub:          sub,
		connections:  make(map[model.VariableID]model.Variable),
		peerEndpoint: make(map[model.SlaveID]net.Endpoint),
		peerRefs:     make(map[model.SlaveID]int),
		topicRefs:    make(map[model.Variable]int),
		ahead:        make(map[model.StepID]map[model.Variable]model.ScalarValue),
	}
	reactor.AddSocket(sub, v.onSample)
	return v, nil
}

func (v *variableIO) boundEndpoint() net.Endpoint {
	return v.pubEndpoint
}

// connect subscribes the given input to a remote output. Reconnecting an
// already connected input first drops the old connection.
func (v *variableIO) connect(input model.VariableID, source model.Variable, sourceEndpoint net.Endpoint) error {
	if _, ok := v.connections[input]; ok {
		if err := v.disconnect(input); err != nil {
			return err
		}
	}
	if !v.sub.Connected(sourceEndpoint) {
		if err := v.sub.Connect(sourceEndpoint); err != nil {
			return err
		}
	}
	if v.topicRefs[source] == 0 {
		if err := v.sub.Subscribe(protocol.SamplePrefix(source)); err != nil {
			return err
		}
	}
	v.connections[input] = source
	v.topicRefs[source]++
	v.peerRefs[source.Slave]++
	v.peerEndpoint[source.Slave] = sourceEndpoint
	return nil
}

// disconnect removes the subscription of an input. When the last
// subscription to a peer goes away, the connection to it is dropped too.
func (v *variableIO) disconnect(input model.VariableID) error {
	source, ok := v.connections[input]
	if !ok {
		return nil
	}
	delete(v.connections, input)
	v.topicRefs[source]--
	if v.topicRefs[source] == 0 {
		delete(v.topicRefs, source)
		if err := v.sub.Unsubscribe(protocol.SamplePrefix(source)); err != nil {
			return err
		}
	}
	v.peerRefs[source.Slave]--
	if v.peerRefs[source.Slave] == 0 {
		delete(v.peerRefs, source.Slave)
		ep := v.peerEndpoint[source.Slave]
		delete(v.peerEndpoint, source.Slave)
		return v.sub.Disconnect(ep)
	}
	return nil
}

// connectionCount reports the number of connected inputs.
func (v *variableIO) connectionCount() int {
	return len(v.connections)
}

// publish emits one output sample.
func (v *variableIO) publish(step model.StepID, variable model.VariableID, value model.ScalarValue) error {
	frames, err := protocol.MakeSampleMessage(protocol.Sample{
		Variable: model.Variable{Slave: v.slaveID, ID: variable},
		StepID:   step,
		Value:    value,
	})
	if err != nil {
		return err
	}
	return v.pub.Send(frames)
}

// collectInputs starts the input barrier for the given step. onDone is
// invoked on the reactor goroutine, either with the complete input map or
// with a timeout error naming the inputs still pending. With no connected
// inputs it completes immediately.
func (v *variableIO) collectInputs(
	step model.StepID,
	timeout time.Duration,
	onDone func(map[model.VariableID]model.ScalarValue, error),
) {
	if v.collecting {
		panic("variableIO: overlapping input collection")
	}
	v.collecting = true
	v.step = step
	v.onDone = onDone
	v.values = make(map[model.VariableID]model.ScalarValue, len(v.connections))
	v.missing = make(map[model.VariableID]struct{}, len(v.connections))
	for input := range v.connections {
		v.missing[input] = struct{}{}
	}

	// Anything buffered for an older step is stale now.
	for s := range v.ahead {
		if s < step {
			delete(v.ahead, s)
		}
	}
	// Consume early arrivals for this step.
	if buffered, ok := v.ahead[step]; ok {
		delete(v.ahead, step)
		for source, value := range buffered {
			v.deliver(source, value)
		}
		if v.maybeComplete() {
			return
		}
	}
	if v.maybeComplete() {
		return
	}
	v.timer = v.reactor.AddTimerAfter(timeout, v.onTimeout)
}

// onSample is the reactor handler of the SUB socket.
func (v *variableIO) onSample(frames [][]byte, err error) {
	if err != nil {
		v.logger.Warn("Dropping bad variable sample", "err", err)
		return
	}
	sample, err := protocol.ParseSampleMessage(frames)
	if err != nil {
		v.logger.Warn("Dropping malformed variable sample", "err", err)
		return
	}
	if !v.collecting || sample.StepID > v.step {
		v.buffer(sample)
		return
	}
	if sample.StepID < v.step {
		v.logger.Debug("Discarding stale variable sample",
			"variable", sample.Variable, "stepID", sample.StepID, "currentStep", v.step)
		return
	}
	v.deliver(sample.Variable, sample.Value)
	v.maybeComplete()
}

func (v *variableIO) buffer(sample protocol.Sample) {
	m, ok := v.ahead[sample.StepID]
	if !ok {
		m = make(map[model.Variable]model.ScalarValue)
		v.ahead[sample.StepID] = m
	}
	m[sample.Variable] = sample.Value
}

// deliver stores a sample value into every input connected to its source.
func (v *variableIO) deliver(source model.Variable, value model.ScalarValue) {
	for input, s := range v.connections {
		if s == source {
			v.values[input] = value
			delete(v.missing, input)
		}
	}
}

func (v *variableIO) maybeComplete() bool {
	if !v.collecting || len(v.missing) > 0 {
		return false
	}
	v.reactor.CancelTimer(v.timer)
	v.finish(v.values, nil)
	return true
}

func (v *variableIO) onTimeout() {
	pending := make([]model.VariableID, 0, len(v.missing))
	for input := range v.missing {
		pending = append(pending, input)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	v.finish(nil, status.Newf(status.Timeout, "inputs pending for step %d: %v", v.step, pending))
}

func (v *variableIO) finish(values map[model.VariableID]model.ScalarValue, err error) {
	onDone := v.onDone
	v.collecting = false
	v.onDone = nil
	v.missing = nil
	v.values = nil
	onDone(values, err)
}

// close releases both sockets.
func (v *variableIO) close() {
	v.pub.Close()
	v.sub.Close()
}

// connectionsString renders the connection set for logging.
func (v *variableIO) connectionsString() string {
	inputs := make([]model.VariableID, 0, len(v.connections))
	for input := range v.connections {
		inputs = append(inputs, input)
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i] < inputs[j] })
	s := ""
	for i, input := range inputs {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%d<-%s", input, v.connections[input])
	}
	return s
}
