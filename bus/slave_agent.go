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
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/protocol"
)

// agentState is the slave-side protocol state.
type agentState int

const (
	agentConnected agentState = iota // waiting for HELLO
	agentHandshook                   // HELLO accepted, waiting for SETUP
	agentReady
	agentStepping
	agentStepped
	agentTerminated
)

func (s agentState) String() string {
	switch s {
	case agentConnected:
		return "CONNECTED"
	case agentHandshook:
		return "HANDSHOOK"
	case agentReady:
		return "READY"
	case agentStepping:
		return "STEPPING"
	case agentStepped:
		return "STEPPED"
	case agentTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SlaveAgent hosts one simulation instance and serves the master's control
// requests for it. All of its work happens on the reactor goroutine; a STEP
// request does not get its reply until the agent has gathered the step's
// input samples and advanced the instance.
type SlaveAgent struct {
	reactor  *net.Reactor
	instance Instance
	logger   log.Logger

	control         *net.RepSocket
	controlEndpoint net.Endpoint
	vio             *variableIO

	state agentState
	setup SlaveSetup
	desc  model.SlaveTypeDescription

	started     bool // StartSimulation has been called
	currentStep model.StepID
	currentTime model.TimePoint
	stepSize    model.TimeDuration
}

// NewSlaveAgent binds the agent's control and data sockets (either endpoint
// may request an ephemeral port) and registers it with the reactor. The
// agent starts serving when the reactor runs.
func NewSlaveAgent(
	reactor *net.Reactor,
	instance Instance,
	controlEndpoint, dataPubEndpoint net.Endpoint,
) (*SlaveAgent, error) {
	desc := instance.TypeDescription()
	logger := log.New("component", "slave-agent", "type", desc.Name)
	control, err := net.NewRepSocket()
	if err != nil {
		return nil, err
	}
	boundControl, err := control.Bind(controlEndpoint)
	if err != nil {
		control.Close()
		return nil, err
	}
	vio, err := newVariableIO(reactor, dataPubEndpoint, logger)
	if err != nil {
		control.Close()
		return nil, err
	}
	a := &SlaveAgent{
		reactor:         reactor,
		instance:        instance,
		logger:          logger,
		control:         control,
		controlEndpoint: boundControl,
		vio:             vio,
		state:           agentConnected,
		currentStep:     model.NoStepID,
	}
	reactor.AddSocket(control, a.onControlMessage)
	logger.Debug("Slave agent listening", "control", boundControl, "dataPub", vio.boundEndpoint())
	return a, nil
}

// BoundControlEndpoint returns the concrete endpoint of the control socket.
func (a *SlaveAgent) BoundControlEndpoint() net.Endpoint {
	return a.controlEndpoint
}

// BoundDataPubEndpoint returns the concrete endpoint of the data socket.
func (a *SlaveAgent) BoundDataPubEndpoint() net.Endpoint {
	return a.vio.boundEndpoint()
}

// onControlMessage handles one request from the master. Every branch except
// STEP and TERMINATE replies before returning; STEP replies when the input
// barrier and the instance step have finished, and TERMINATE gets no reply.
func (a *SlaveAgent) onControlMessage(frames [][]byte, err error) {
	if err != nil {
		// A request arrived but could not be unpacked; a denial keeps the
		// request/reply alternation intact.
		a.logger.Error("Control channel receive failed", "err", err)
		a.denyf("malformed request: %v", err)
		return
	}
	msgType, version, err := protocol.ParseMessageType(frames)
	if err != nil {
		a.logger.Error("Malformed control message", "err", err)
		a.denyf("malformed message: %v", err)
		return
	}
	if msgType == protocol.MsgHello {
		a.handleHello(frames, version)
		return
	}
	if version != protocol.Version {
		a.denyf("unsupported version %d", version)
		return
	}
	switch msgType {
	case protocol.MsgSetup:
		a.handleSetup(frames)
	case protocol.MsgSetVars:
		a.handleSetVars(frames)
	case protocol.MsgStep:
		a.handleStep(frames)
	case protocol.MsgAcceptStep:
		a.handleAcceptStep()
	case protocol.MsgTerminate:
		a.handleTerminate()
	default:
		a.denyf("%s not allowed here", protocol.MsgTypeName(msgType))
	}
}

func (a *SlaveAgent) handleHello(frames [][]byte, version uint16) {
	if a.state != agentConnected {
		a.denyf("HELLO not allowed in state %s", a.state)
		return
	}
	if version != protocol.Version {
		a.denyf("unsupported version %d", version)
		return
	}
	var hello protocol.HelloBody
	if err := protocol.ParseBody(frames, &hello); err != nil {
		a.denyf("%v", err)
		return
	}
	a.desc = a.instance.TypeDescription()
	a.transition(agentHandshook)
	a.reply(protocol.MsgHelloAck, &protocol.HelloAckBody{
		TypeDescription: a.desc,
		DataPubEndpoint: string(a.vio.boundEndpoint()),
	})
}

func (a *SlaveAgent) handleSetup(frames [][]byte) {
	if a.state != agentHandshook {
		a.denyf("SETUP not allowed in state %s", a.state)
		return
	}
	var body protocol.SetupBody
	if err := protocol.ParseBody(frames, &body); err != nil {
		a.denyf("%v", err)
		return
	}
	a.setup = SlaveSetup{
		SlaveID:             body.SlaveID,
		SlaveName:           body.SlaveName,
		ExecutionName:       body.ExecutionName,
		StartTime:           body.StartTime,
		StopTime:            body.StopTime,
		VariableRecvTimeout: time.Duration(body.VariableRecvTimeoutMS) * time.Millisecond,
	}
	a.vio.slaveID = body.SlaveID
	a.currentTime = body.StartTime
	if err := a.instance.Setup(
		body.SlaveName, body.ExecutionName,
		body.StartTime, body.StopTime,
		false, 0,
	); err != nil {
		a.denyf("instance setup failed: %v", err)
		return
	}
	a.logger = a.logger.New("slave", body.SlaveName, "id", body.SlaveID)
	a.logger.Debug("Slave set up", "start", body.StartTime, "stop", body.StopTime)
	a.transition(agentReady)
	a.reply(protocol.MsgSetupOK, nil)
}

// handleSetVars applies the settings in request order. A failed setting
// does not roll back earlier ones; the reply reports each failure by index.
func (a *SlaveAgent) handleSetVars(frames [][]byte) {
	if a.state != agentReady {
		a.denyf("SET_VARS not allowed in state %s", a.state)
		return
	}
	var body protocol.SetVarsBody
	if err := protocol.ParseBody(frames, &body); err != nil {
		a.denyf("%v", err)
		return
	}
	var failures []protocol.SettingError
	for i, s := range body.Settings {
		if err := a.applySetting(s); err != nil {
			failures = append(failures, protocol.SettingError{Index: i, Reason: err.Error()})
		}
	}
	if len(failures) > 0 {
		a.logger.Warn("Variable settings failed", "failed", len(failures), "total", len(body.Settings))
		a.reply(protocol.MsgSetVarsFailed, &protocol.SetVarsFailedBody{Errors: failures})
		return
	}
	a.logger.Debug("Variables configured", "settings", len(body.Settings), "connections", a.vio.connectionsString())
	a.reply(protocol.MsgSetVarsOK, nil)
}

func (a *SlaveAgent) applySetting(s protocol.VariableSettingMsg) error {
	switch {
	case s.Value != nil:
		return setVariable(a.instance, s.Variable, *s.Value)
	case s.Source != nil:
		ep, err := net.ParseEndpoint(s.SourceEndpoint)
		if err != nil {
			return err
		}
		return a.vio.connect(s.Variable, *s.Source, ep)
	case s.Disconnect:
		return a.vio.disconnect(s.Variable)
	default:
		return fmt.Errorf("empty setting for variable %d", s.Variable)
	}
}

func (a *SlaveAgent) handleStep(frames [][]byte) {
	if a.state != agentReady {
		a.denyf("STEP not allowed in state %s", a.state)
		return
	}
	var body protocol.StepBody
	if err := protocol.ParseBody(frames, &body); err != nil {
		a.denyf("%v", err)
		return
	}
	if !a.started {
		if err := a.instance.StartSimulation(); err != nil {
			a.replyStepFailed(fmt.Sprintf("start simulation failed: %v", err))
			return
		}
		a.started = true
		// The start-time outputs are the inputs of step 0.
		if err := a.publishOutputs(body.StepID); err != nil {
			a.replyStepFailed(fmt.Sprintf("initial publish failed: %v", err))
			return
		}
	}
	a.transition(agentStepping)
	a.currentStep = body.StepID
	a.currentTime = body.CurrentTime
	a.stepSize = body.StepSize

	timeout := a.setup.VariableRecvTimeout
	if t := time.Duration(body.TimeoutMS) * time.Millisecond; t > 0 && t < timeout {
		timeout = t
	}
	a.vio.collectInputs(body.StepID, timeout, func(inputs map[model.VariableID]model.ScalarValue, err error) {
		a.finishStep(body, inputs, err)
	})
}

// finishStep runs after the input barrier: apply the inputs, advance the
// instance, publish the new outputs tagged for the next step.
func (a *SlaveAgent) finishStep(body protocol.StepBody, inputs map[model.VariableID]model.ScalarValue, err error) {
	if a.state != agentStepping {
		// Terminated while the barrier was pending.
		return
	}
	if err != nil {
		a.logger.Warn("Input barrier failed", "stepID", body.StepID, "err", err)
		a.transition(agentReady)
		a.replyStepFailed(err.Error())
		return
	}
	for input, value := range inputs {
		if err := setVariable(a.instance, input, value); err != nil {
			a.transition(agentReady)
			a.replyStepFailed(fmt.Sprintf("setting input %d failed: %v", input, err))
			return
		}
	}
	if !a.instance.DoStep(body.CurrentTime, body.StepSize) {
		a.logger.Warn("Instance refused step", "stepID", body.StepID, "t", body.CurrentTime, "dt", body.StepSize)
		a.transition(agentReady)
		a.replyStepFailed(fmt.Sprintf("step %d failed at t=%g", body.StepID, body.CurrentTime))
		return
	}
	// Outputs observable after step N are the inputs of step N+1.
	if err := a.publishOutputs(body.StepID + 1); err != nil {
		a.transition(agentReady)
		a.replyStepFailed(fmt.Sprintf("publish failed: %v", err))
		return
	}
	a.logger.Debug("Step complete", "stepID", body.StepID, "t", body.CurrentTime, "dt", body.StepSize)
	a.transition(agentStepped)
	a.reply(protocol.MsgStepOK, nil)
}

func (a *SlaveAgent) handleAcceptStep() {
	if a.state != agentStepped {
		a.denyf("ACCEPT_STEP not allowed in state %s", a.state)
		return
	}
	a.currentTime += a.stepSize
	a.transition(agentReady)
	a.reply(protocol.MsgAcceptStepOK, nil)
}

// handleTerminate is legal in every state. No reply is sent; the master
// does not wait for one.
func (a *SlaveAgent) handleTerminate() {
	a.logger.Debug("Terminating", "state", a.state)
	if a.started {
		if err := a.instance.EndSimulation(); err != nil {
			a.logger.Warn("End of simulation reported error", "err", err)
		}
	}
	a.transition(agentTerminated)
	a.vio.close()
	a.control.Close()
	a.reactor.Stop()
}

// publishOutputs publishes the current value of every output variable,
// tagged with the given step ID.
func (a *SlaveAgent) publishOutputs(tag model.StepID) error {
	for _, v := range a.desc.Variables {
		if v.Causality != model.OutputCausality {
			continue
		}
		value, err := getVariable(a.instance, v.ID, v.DataType)
		if err != nil {
			return err
		}
		if err := a.vio.publish(tag, v.ID, value); err != nil {
			return err
		}
	}
	return nil
}

func (a *SlaveAgent) transition(next agentState) {
	if a.state != next {
		a.logger.Debug("State transition", "from", a.state, "to", next)
		a.state = next
	}
}

func (a *SlaveAgent) reply(msgType uint16, body interface{}) {
	frames, err := protocol.MakeMessage(msgType, body)
	if err != nil {
		a.logger.Error("Encoding reply failed", "type", protocol.MsgTypeName(msgType), "err", err)
		return
	}
	if err := a.control.Send(frames); err != nil {
		a.logger.Error("Sending reply failed", "type", protocol.MsgTypeName(msgType), "err", err)
	}
}

func (a *SlaveAgent) replyStepFailed(reason string) {
	a.reply(protocol.MsgStepFailed, &protocol.StepFailedBody{Reason: reason})
}

func (a *SlaveAgent) denyf(format string, args ...interface{}) {
	a.reply(protocol.MsgDenied, &protocol.DeniedBody{Reason: fmt.Sprintf(format, args...)})
}
