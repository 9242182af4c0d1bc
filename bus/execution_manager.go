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
	"github.com/oceanbed/go-cosim/status"
)

// managerState is the global phase of the execution on the master side.
// Control requests that are illegal for the current phase are rejected
// before anything is sent.
type managerState int

const (
	managerSetup    managerState = iota // no slaves admitted yet
	managerConfig                       // admission or reconfiguration in flight
	managerPrimed                       // ready to step
	managerStepping                     // STEP fan-out in flight
	managerStepped                      // step succeeded, awaiting acceptance
	managerAccepting                    // ACCEPT_STEP fan-out in flight
	managerTerminated
)

func (s managerState) String() string {
	switch s {
	case managerSetup:
		return "setup"
	case managerConfig:
		return "config"
	case managerPrimed:
		return "primed"
	case managerStepping:
		return "stepping"
	case managerStepped:
		return "stepped"
	case managerAccepting:
		return "accepting"
	case managerTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AddedSlave names one slave to admit into the execution. An empty Name
// makes the master derive one from the allocated slave ID.
type AddedSlave struct {
	Locator net.SlaveLocator
	Name    string
}

// SlaveConfig carries the variable settings to apply to one slave.
type SlaveConfig struct {
	SlaveID  model.SlaveID
	Settings []model.VariableSetting
}

// ExecutionManager is the master-side state machine of one execution. It
// owns the slave records, fans control requests out to the slaves, tracks
// per-slave completion and sequences the global phases.
//
// All methods must be called on the reactor goroutine (or before the
// reactor runs). Operations return an error only for synchronously detected
// input errors; everything else is reported through the callbacks, which
// also run on the reactor goroutine. Per-slave callbacks fire in response
// arrival order; the aggregate callback fires after the last of them.
type ExecutionManager struct {
	reactor *net.Reactor
	logger  log.Logger

	name string
	opts ExecutionOptions

	state       managerState
	slaves      map[model.SlaveID]*slaveController
	names       map[string]model.SlaveID
	nextSlaveID model.SlaveID

	currentTime model.TimePoint
	nextStepID  model.StepID

	current *rendezvous // in-flight operation, aborted by Terminate
}

// NewExecutionManager creates the manager of a named execution.
func NewExecutionManager(reactor *net.Reactor, executionName string, opts ExecutionOptions) (*ExecutionManager, error) {
	if opts.MaxTime < opts.StartTime {
		return nil, status.Newf(status.InputError, "start time %g is after stop time %g", opts.StartTime, opts.MaxTime)
	}
	if opts.SlaveVariableRecvTimeout <= 0 {
		return nil, status.New(status.InputError, "variable receive timeout must be positive")
	}
	return &ExecutionManager{
		reactor:     reactor,
		logger:      log.New("component", "execution", "name", executionName),
		name:        executionName,
		opts:        opts,
		state:       managerSetup,
		slaves:      make(map[model.SlaveID]*slaveController),
		names:       make(map[string]model.SlaveID),
		currentTime: opts.StartTime,
	}, nil
}

// CurrentTime returns the simulation time reached so far.
func (m *ExecutionManager) CurrentTime() model.TimePoint { return m.currentTime }

// SlaveIDs returns the IDs of all admitted slaves, lost ones included.
func (m *ExecutionManager) SlaveIDs() []model.SlaveID {
	ids := make([]model.SlaveID, 0, len(m.slaves))
	for id := range m.slaves {
		ids = append(ids, id)
	}
	return ids
}

// SlaveName returns the name of an admitted slave.
func (m *ExecutionManager) SlaveName(id model.SlaveID) (string, error) {
	c, ok := m.slaves[id]
	if !ok {
		return "", status.Newf(status.InputError, "unknown slave ID %d", id)
	}
	return c.name, nil
}

// SlaveDescription returns the type description of an admitted slave.
func (m *ExecutionManager) SlaveDescription(id model.SlaveID) (model.SlaveTypeDescription, error) {
	c, ok := m.slaves[id]
	if !ok {
		return model.SlaveTypeDescription{}, status.Newf(status.InputError, "unknown slave ID %d", id)
	}
	return c.desc, nil
}

// SlavePhase returns the master's view of a slave's protocol state.
func (m *ExecutionManager) SlavePhase(id model.SlaveID) (SlavePhase, error) {
	c, ok := m.slaves[id]
	if !ok {
		return 0, status.Newf(status.InputError, "unknown slave ID %d", id)
	}
	return c.phase, nil
}

// Reconstitute admits new slaves: for each one it connects to the control
// endpoint, performs the HELLO handshake, allocates a slave ID and sends
// SETUP. onSlave reports each slave as it resolves, carrying the batch
// index and, on success, the allocated ID. It is legal whenever the
// execution is not mid-step.
func (m *ExecutionManager) Reconstitute(
	added []AddedSlave,
	commTimeout time.Duration,
	onComplete func(error),
	onSlave func(index int, id model.SlaveID, err error),
) error {
	if err := m.checkIdle("Reconstitute"); err != nil {
		return err
	}
	if len(added) == 0 {
		return status.New(status.InputError, "no slaves to add")
	}
	if commTimeout <= 0 {
		return status.New(status.InputError, "communication timeout must be positive")
	}
	// Names must be unique before anything is sent (the IDs allocated later
	// are unique by construction).
	batch := make(map[string]bool, len(added))
	for _, s := range added {
		if s.Name == "" {
			continue
		}
		if _, taken := m.names[s.Name]; taken || batch[s.Name] {
			return status.Newf(status.InputError, "duplicate slave name %q", s.Name)
		}
		batch[s.Name] = true
	}

	prev := m.state
	m.state = managerConfig
	ctrls := make([]*slaveController, len(added))
	r := m.newRendezvous("reconstitute", indexKeys(len(added)), commTimeout,
		func(err error) {
			if m.state == managerConfig {
				if len(m.liveSlaves()) > 0 {
					m.state = managerPrimed
				} else if prev == managerSetup {
					m.state = managerSetup
				} else {
					m.state = prev
				}
			}
			onComplete(err)
		},
		func(key int) {
			c := ctrls[key]
			if c != nil {
				if c.id != model.InvalidSlaveID {
					c.markLost(status.New(status.Timeout, "no response during admission"))
				} else {
					c.close()
				}
			}
			onSlave(key, model.InvalidSlaveID, status.Newf(status.Timeout, "slave %d did not complete its handshake", key))
		})

	for i, s := range added {
		i, s := i, s
		ctrl, err := newSlaveController(m.reactor, s.Locator, m.logger)
		if err != nil {
			onSlave(i, model.InvalidSlaveID, err)
			r.done(i, err)
			continue
		}
		ctrls[i] = ctrl
		err = ctrl.sendHello(protocol.Version, &protocol.HelloBody{ExecutionName: m.name},
			func(frames [][]byte, err error) {
				m.finishHello(r, i, s, ctrl, frames, err, onSlave)
			})
		if err != nil {
			ctrl.close()
			onSlave(i, model.InvalidSlaveID, err)
			r.done(i, err)
		}
	}
	return nil
}

// finishHello handles a slave's HELLO reply: on HELLO_ACK it allocates the
// slave ID, records the slave and proceeds with SETUP.
func (m *ExecutionManager) finishHello(
	r *rendezvous,
	index int,
	added AddedSlave,
	ctrl *slaveController,
	frames [][]byte,
	err error,
	onSlave func(index int, id model.SlaveID, err error),
) {
	if r.finished {
		return
	}
	fail := func(err error) {
		ctrl.close()
		onSlave(index, model.InvalidSlaveID, err)
		r.done(index, err)
	}
	if err != nil {
		fail(status.Newf(status.ProtocolViolation, "HELLO exchange failed: %v", err))
		return
	}
	msgType, _, perr := protocol.ParseMessageType(frames)
	if perr != nil {
		fail(perr)
		return
	}
	switch msgType {
	case protocol.MsgHelloAck:
		var ack protocol.HelloAckBody
		if perr := protocol.ParseBody(frames, &ack); perr != nil {
			fail(perr)
			return
		}
		dataEp, eperr := net.ParseEndpoint(ack.DataPubEndpoint)
		if eperr != nil {
			fail(status.Newf(status.ProtocolViolation, "bad data endpoint in HELLO_ACK: %v", eperr))
			return
		}
		m.nextSlaveID++
		id := m.nextSlaveID
		name := added.Name
		if name == "" {
			name = fmt.Sprintf("slave%d", id)
		}
		ctrl.id = id
		ctrl.name = name
		ctrl.desc = ack.TypeDescription
		ctrl.dataEndpoint = dataEp
		m.slaves[id] = ctrl
		m.names[name] = id
		m.logger.Info("Slave admitted", "id", id, "name", name, "type", ack.TypeDescription.Name)
		m.sendSetup(r, index, ctrl, onSlave)
	case protocol.MsgDenied:
		var denied protocol.DeniedBody
		_ = protocol.ParseBody(frames, &denied)
		fail(status.Newf(status.ProtocolViolation, "slave denied HELLO: %s", denied.Reason))
	default:
		fail(status.Newf(status.ProtocolViolation, "unexpected %s reply to HELLO", protocol.MsgTypeName(msgType)))
	}
}

func (m *ExecutionManager) sendSetup(
	r *rendezvous,
	index int,
	ctrl *slaveController,
	onSlave func(index int, id model.SlaveID, err error),
) {
	body := &protocol.SetupBody{
		SlaveID:               ctrl.id,
		SlaveName:             ctrl.name,
		ExecutionName:         m.name,
		StartTime:             m.opts.StartTime,
		StopTime:              m.opts.MaxTime,
		VariableRecvTimeoutMS: m.opts.SlaveVariableRecvTimeout.Milliseconds(),
	}
	err := ctrl.sendRequest(protocol.MsgSetup, body, func(frames [][]byte, err error) {
		if r.finished {
			return
		}
		serr := m.parseAck(protocol.MsgSetupOK, frames, err)
		if serr != nil {
			ctrl.markLost(serr)
			onSlave(index, ctrl.id, serr)
			r.done(index, serr)
			return
		}
		ctrl.phase = SlaveReady
		onSlave(index, ctrl.id, nil)
		r.done(index, nil)
	})
	if err != nil {
		ctrl.markLost(err)
		onSlave(index, ctrl.id, err)
		r.done(index, err)
	}
}

// Reconfigure applies variable settings to the given slaves in parallel.
// Connections whose source refers to an unknown slave or variable are
// rejected synchronously, before any socket state is touched anywhere.
func (m *ExecutionManager) Reconfigure(
	configs []SlaveConfig,
	commTimeout time.Duration,
	onComplete func(error),
	onSlave func(id model.SlaveID, err error),
) error {
	if err := m.checkIdle("Reconfigure"); err != nil {
		return err
	}
	if commTimeout <= 0 {
		return status.New(status.InputError, "communication timeout must be positive")
	}
	if len(configs) == 0 {
		return status.New(status.InputError, "no slaves to configure")
	}
	bodies := make(map[model.SlaveID]*protocol.SetVarsBody, len(configs))
	for _, cfg := range configs {
		ctrl, ok := m.slaves[cfg.SlaveID]
		if !ok {
			return status.Newf(status.InputError, "unknown slave ID %d", cfg.SlaveID)
		}
		if _, dup := bodies[cfg.SlaveID]; dup {
			return status.Newf(status.InputError, "slave %d configured twice", cfg.SlaveID)
		}
		body := &protocol.SetVarsBody{}
		for _, s := range cfg.Settings {
			msg, err := m.resolveSetting(ctrl, s)
			if err != nil {
				return err
			}
			body.Settings = append(body.Settings, msg)
		}
		bodies[cfg.SlaveID] = body
	}

	prev := m.state
	m.state = managerConfig
	keys := make([]int, 0, len(bodies))
	for id := range bodies {
		keys = append(keys, int(id))
	}
	r := m.newRendezvous("reconfigure", keys, commTimeout,
		func(err error) {
			if m.state == managerConfig {
				m.state = prev
			}
			onComplete(err)
		},
		func(key int) {
			id := model.SlaveID(key)
			if ctrl, ok := m.slaves[id]; ok {
				ctrl.markLost(status.New(status.Timeout, "no response to SET_VARS"))
			}
			onSlave(id, status.New(status.Timeout, "no response to SET_VARS"))
		})

	for id, body := range bodies {
		id, ctrl := id, m.slaves[id]
		if ctrl.phase == SlaveLost {
			err := status.New(status.Lost, "slave is lost")
			onSlave(id, err)
			r.done(int(id), err)
			continue
		}
		err := ctrl.sendRequest(protocol.MsgSetVars, body, func(frames [][]byte, err error) {
			if r.finished {
				return
			}
			serr := m.parseSetVarsReply(ctrl, frames, err)
			onSlave(id, serr)
			r.done(int(id), serr)
		})
		if err != nil {
			ctrl.markLost(err)
			onSlave(id, err)
			r.done(int(id), err)
		}
	}
	return nil
}

// resolveSetting validates one variable setting and translates it to its
// wire form, filling in the source slave's data endpoint.
func (m *ExecutionManager) resolveSetting(target *slaveController, s model.VariableSetting) (protocol.VariableSettingMsg, error) {
	vd, err := target.desc.Variable(s.Variable)
	if err != nil {
		return protocol.VariableSettingMsg{}, status.Newf(status.InputError, "slave %d: %v", target.id, err)
	}
	msg := protocol.VariableSettingMsg{Variable: s.Variable}
	switch {
	case s.Value != nil:
		if vd.DataType != s.Value.Type {
			return protocol.VariableSettingMsg{}, status.Newf(status.InputError,
				"slave %d: variable %d is %s, got %s value", target.id, s.Variable, vd.DataType, s.Value.Type)
		}
		msg.Value = s.Value
	case s.Source != nil:
		if vd.Causality != model.InputCausality {
			return protocol.VariableSettingMsg{}, status.Newf(status.InputError,
				"slave %d: variable %d is not an input", target.id, s.Variable)
		}
		src, ok := m.slaves[s.Source.Slave]
		if !ok {
			return protocol.VariableSettingMsg{}, status.Newf(status.InputError,
				"connection source refers to unknown slave ID %d", s.Source.Slave)
		}
		svd, err := src.desc.Variable(s.Source.ID)
		if err != nil {
			return protocol.VariableSettingMsg{}, status.Newf(status.InputError, "connection source: %v", err)
		}
		if svd.Causality != model.OutputCausality {
			return protocol.VariableSettingMsg{}, status.Newf(status.InputError,
				"connection source %s is not an output", *s.Source)
		}
		if svd.DataType != vd.DataType {
			return protocol.VariableSettingMsg{}, status.Newf(status.InputError,
				"connection %s -> %d crosses data types (%s -> %s)", *s.Source, s.Variable, svd.DataType, vd.DataType)
		}
		msg.Source = s.Source
		msg.SourceEndpoint = string(src.dataEndpoint)
	case s.Disconnect:
		msg.Disconnect = true
	default:
		return protocol.VariableSettingMsg{}, status.Newf(status.InputError, "empty setting for variable %d", s.Variable)
	}
	return msg, nil
}

func (m *ExecutionManager) parseSetVarsReply(ctrl *slaveController, frames [][]byte, err error) error {
	if err != nil {
		serr := status.Newf(status.ProtocolViolation, "SET_VARS exchange failed: %v", err)
		ctrl.markLost(serr)
		return serr
	}
	msgType, _, perr := protocol.ParseMessageType(frames)
	if perr != nil {
		ctrl.markLost(perr)
		return perr
	}
	switch msgType {
	case protocol.MsgSetVarsOK:
		return nil
	case protocol.MsgSetVarsFailed:
		var body protocol.SetVarsFailedBody
		if perr := protocol.ParseBody(frames, &body); perr != nil {
			ctrl.markLost(perr)
			return perr
		}
		// A valid response: the slave stays usable, the configuration is
		// the caller's error.
		return status.Newf(status.InputError, "slave %d rejected %d setting(s): %v", ctrl.id, len(body.Errors), body.Errors)
	default:
		perr = status.Newf(status.ProtocolViolation, "unexpected %s reply to SET_VARS", protocol.MsgTypeName(msgType))
		ctrl.markLost(perr)
		return perr
	}
}

// Step tells every slave to advance time by stepSize. The step ID and the
// current time are shared across slaves; completions arrive per slave, and
// a STEP_FAIL does not cut the operation short, so that no slave is left
// mid-step unaccounted for. On aggregate success the manager advances its
// clock and expects AcceptStep next.
func (m *ExecutionManager) Step(
	stepSize model.TimeDuration,
	timeout time.Duration,
	onComplete func(error),
	onSlaveStep func(id model.SlaveID, err error),
) error {
	if m.state != managerPrimed {
		return status.Newf(status.InputError, "Step not allowed in state %s", m.state)
	}
	if stepSize <= 0 {
		return status.Newf(status.InputError, "step size must be positive, got %g", stepSize)
	}
	if timeout <= 0 {
		return status.New(status.InputError, "step timeout must be positive")
	}
	live := m.liveSlaves()
	if len(live) == 0 {
		return status.New(status.InputError, "no usable slaves")
	}

	stepID := m.nextStepID
	m.state = managerStepping
	m.logger.Debug("Stepping", "stepID", stepID, "t", m.currentTime, "dt", stepSize)

	r := m.newRendezvous("step", slaveKeys(m.slaves), timeout,
		func(err error) {
			if m.state == managerStepping {
				if err == nil {
					m.currentTime += stepSize
					m.nextStepID++
					m.state = managerStepped
				} else {
					m.state = managerPrimed
				}
			}
			onComplete(err)
		},
		func(key int) {
			id := model.SlaveID(key)
			if ctrl, ok := m.slaves[id]; ok {
				ctrl.markLost(status.Newf(status.Timeout, "no response to STEP %d", stepID))
			}
			onSlaveStep(id, status.Newf(status.Timeout, "no response to STEP %d", stepID))
		})

	body := &protocol.StepBody{
		StepID:      stepID,
		CurrentTime: m.currentTime,
		StepSize:    stepSize,
		TimeoutMS:   timeout.Milliseconds(),
	}
	for id, ctrl := range m.slaves {
		id, ctrl := id, ctrl
		if ctrl.phase == SlaveLost || ctrl.phase == SlaveTerminated {
			err := status.New(status.Lost, "slave is lost")
			onSlaveStep(id, err)
			r.done(int(id), err)
			continue
		}
		ctrl.phase = SlaveStepping
		err := ctrl.sendRequest(protocol.MsgStep, body, func(frames [][]byte, err error) {
			if r.finished {
				return
			}
			serr := m.parseStepReply(ctrl, frames, err)
			onSlaveStep(id, serr)
			r.done(int(id), serr)
		})
		if err != nil {
			ctrl.markLost(err)
			onSlaveStep(id, err)
			r.done(int(id), err)
		}
	}
	return nil
}

func (m *ExecutionManager) parseStepReply(ctrl *slaveController, frames [][]byte, err error) error {
	if err != nil {
		serr := status.Newf(status.ProtocolViolation, "STEP exchange failed: %v", err)
		ctrl.markLost(serr)
		return serr
	}
	msgType, _, perr := protocol.ParseMessageType(frames)
	if perr != nil {
		ctrl.markLost(perr)
		return perr
	}
	switch msgType {
	case protocol.MsgStepOK:
		ctrl.phase = SlaveStepped
		return nil
	case protocol.MsgStepFailed:
		var body protocol.StepFailedBody
		if perr := protocol.ParseBody(frames, &body); perr != nil {
			ctrl.markLost(perr)
			return perr
		}
		ctrl.phase = SlaveReady
		return status.Newf(status.StepFailed, "slave %d: %s", ctrl.id, body.Reason)
	default:
		perr = status.Newf(status.ProtocolViolation, "unexpected %s reply to STEP", protocol.MsgTypeName(msgType))
		ctrl.markLost(perr)
		return perr
	}
}

// AcceptStep acknowledges a successful step to every slave, providing the
// global barrier that lets slaves discard per-step state.
func (m *ExecutionManager) AcceptStep(
	timeout time.Duration,
	onComplete func(error),
	onSlaveAccept func(id model.SlaveID, err error),
) error {
	if m.state != managerStepped {
		return status.Newf(status.InputError, "AcceptStep not allowed in state %s", m.state)
	}
	if timeout <= 0 {
		return status.New(status.InputError, "accept timeout must be positive")
	}
	m.state = managerAccepting
	r := m.newRendezvous("accept step", slaveKeys(m.slaves), timeout,
		func(err error) {
			if m.state == managerAccepting {
				m.state = managerPrimed
			}
			onComplete(err)
		},
		func(key int) {
			id := model.SlaveID(key)
			if ctrl, ok := m.slaves[id]; ok {
				ctrl.markLost(status.New(status.Timeout, "no response to ACCEPT_STEP"))
			}
			onSlaveAccept(id, status.New(status.Timeout, "no response to ACCEPT_STEP"))
		})

	for id, ctrl := range m.slaves {
		id, ctrl := id, ctrl
		if ctrl.phase != SlaveStepped {
			err := status.Newf(status.Lost, "slave is %s", ctrl.phase)
			onSlaveAccept(id, err)
			r.done(int(id), err)
			continue
		}
		err := ctrl.sendRequest(protocol.MsgAcceptStep, nil, func(frames [][]byte, err error) {
			if r.finished {
				return
			}
			serr := m.parseAck(protocol.MsgAcceptStepOK, frames, err)
			if serr != nil {
				ctrl.markLost(serr)
			} else {
				ctrl.phase = SlaveReady
			}
			onSlaveAccept(id, serr)
			r.done(int(id), serr)
		})
		if err != nil {
			ctrl.markLost(err)
			onSlaveAccept(id, err)
			r.done(int(id), err)
		}
	}
	return nil
}

// parseAck checks a reply that should be a body-less acknowledgement of
// the given type.
func (m *ExecutionManager) parseAck(want uint16, frames [][]byte, err error) error {
	if err != nil {
		return status.Newf(status.ProtocolViolation, "exchange failed: %v", err)
	}
	msgType, _, perr := protocol.ParseMessageType(frames)
	if perr != nil {
		return perr
	}
	if msgType == protocol.MsgDenied {
		var denied protocol.DeniedBody
		_ = protocol.ParseBody(frames, &denied)
		return status.Newf(status.ProtocolViolation, "request denied: %s", denied.Reason)
	}
	if msgType != want {
		return status.Newf(status.ProtocolViolation, "unexpected %s reply, want %s",
			protocol.MsgTypeName(msgType), protocol.MsgTypeName(want))
	}
	return nil
}

// Terminate sends TERMINATE to every usable slave, best effort, without
// waiting for anything. An in-flight operation completes with Aborted
// status and produces no further per-slave callbacks. Terminate is
// idempotent.
func (m *ExecutionManager) Terminate() {
	if m.state == managerTerminated {
		return
	}
	m.logger.Info("Terminating execution", "t", m.currentTime, "steps", m.nextStepID)
	if m.current != nil {
		m.current.abort()
	}
	for _, ctrl := range m.slaves {
		if ctrl.phase == SlaveLost || ctrl.phase == SlaveTerminated {
			ctrl.close()
			continue
		}
		ctrl.onReply = nil
		frames, err := protocol.MakeMessage(protocol.MsgTerminate, nil)
		if err == nil {
			err = ctrl.req.Send(frames)
		}
		if err != nil {
			m.logger.Warn("Sending TERMINATE failed", "slave", ctrl.id, "err", err)
		}
		ctrl.phase = SlaveTerminated
	}
	m.state = managerTerminated
	// Leave a moment for the terminate messages to flush before the
	// sockets go away.
	slaves := m.slaves
	m.reactor.AddTimerAfter(100*time.Millisecond, func() {
		for _, ctrl := range slaves {
			ctrl.close()
		}
	})
}

// checkIdle verifies that no step is in progress and no operation is in
// flight.
func (m *ExecutionManager) checkIdle(op string) error {
	switch m.state {
	case managerSetup, managerPrimed:
		return nil
	default:
		return status.Newf(status.InputError, "%s not allowed in state %s", op, m.state)
	}
}

// liveSlaves returns the controllers that are still usable.
func (m *ExecutionManager) liveSlaves() []*slaveController {
	var live []*slaveController
	for _, ctrl := range m.slaves {
		if ctrl.phase != SlaveLost && ctrl.phase != SlaveTerminated {
			live = append(live, ctrl)
		}
	}
	return live
}

func indexKeys(n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func slaveKeys(slaves map[model.SlaveID]*slaveController) []int {
	keys := make([]int, 0, len(slaves))
	for id := range slaves {
		keys = append(keys, int(id))
	}
	return keys
}
