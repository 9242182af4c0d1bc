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

// Package master provides the user-facing API for driving a co-simulation:
// a synchronous facade over the asynchronous execution manager.
package master

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/inconshreveable/log15"

	"github.com/oceanbed/go-cosim/bus"
	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
)

// ExecutionOptions are the shared settings of one execution.
type ExecutionOptions = bus.ExecutionOptions

// AddedSlave names one slave to admit.
type AddedSlave = bus.AddedSlave

// SlaveConfig carries variable settings for one slave.
type SlaveConfig = bus.SlaveConfig

// DefaultExecutionOptions returns the options used when none are given.
func DefaultExecutionOptions() ExecutionOptions {
	return bus.DefaultExecutionOptions()
}

// Execution drives one co-simulation. Each method issues the corresponding
// asynchronous operation on the underlying execution manager and pumps the
// reactor until it completes, so calls are synchronous from the caller's
// point of view. An Execution must be used from a single goroutine.
type Execution struct {
	reactor *net.Reactor
	mgr     *bus.ExecutionManager
	logger  log.Logger
	name    string
}

// NewExecution creates an execution. An empty name is replaced by a
// generated unique one.
func NewExecution(name string, opts ExecutionOptions) (*Execution, error) {
	if name == "" {
		name = "execution-" + uuid.New().String()
	}
	reactor := net.NewReactor()
	mgr, err := bus.NewExecutionManager(reactor, name, opts)
	if err != nil {
		return nil, err
	}
	return &Execution{
		reactor: reactor,
		mgr:     mgr,
		logger:  log.New("component", "master", "execution", name),
		name:    name,
	}, nil
}

// Name returns the execution name.
func (e *Execution) Name() string { return e.name }

// CurrentTime returns the simulation time reached so far.
func (e *Execution) CurrentTime() model.TimePoint { return e.mgr.CurrentTime() }

// Manager exposes the underlying asynchronous execution manager, for
// callers that want to drive the reactor themselves.
func (e *Execution) Manager() *bus.ExecutionManager { return e.mgr }

// Reconstitute admits the given slaves and returns their allocated IDs, in
// the order of the argument. A partial admission returns the IDs of the
// admitted slaves together with an error describing the failed ones.
func (e *Execution) Reconstitute(added []AddedSlave, commTimeout time.Duration) ([]model.SlaveID, error) {
	ids := make([]model.SlaveID, len(added))
	var failures []string
	var opErr error
	err := e.mgr.Reconstitute(added, commTimeout,
		func(err error) {
			opErr = err
			e.reactor.Stop()
		},
		func(index int, id model.SlaveID, err error) {
			ids[index] = id
			if err != nil {
				failures = append(failures, fmt.Sprintf("slave %d: %v", index, err))
			}
		})
	if err != nil {
		return nil, err
	}
	e.reactor.Run()
	if opErr != nil {
		return ids, fmt.Errorf("admitting slaves: %v (%s)", opErr, strings.Join(failures, "; "))
	}
	return ids, nil
}

// Reconfigure applies variable settings to the given slaves.
func (e *Execution) Reconfigure(configs []SlaveConfig, commTimeout time.Duration) error {
	return e.fanOut("configuring slaves", func(onComplete func(error), onSlave func(model.SlaveID, error)) error {
		return e.mgr.Reconfigure(configs, commTimeout, onComplete, onSlave)
	})
}

// Step advances the whole execution by stepSize and, on success, accepts
// the step, completing one synchronization cycle.
func (e *Execution) Step(stepSize model.TimeDuration, timeout time.Duration) error {
	if err := e.StepOnly(stepSize, timeout); err != nil {
		return err
	}
	return e.AcceptStep(timeout)
}

// StepOnly advances the execution without accepting the step.
func (e *Execution) StepOnly(stepSize model.TimeDuration, timeout time.Duration) error {
	return e.fanOut("stepping", func(onComplete func(error), onSlave func(model.SlaveID, error)) error {
		return e.mgr.Step(stepSize, timeout, onComplete, onSlave)
	})
}

// AcceptStep acknowledges the last successful step to every slave.
func (e *Execution) AcceptStep(timeout time.Duration) error {
	return e.fanOut("accepting step", func(onComplete func(error), onSlave func(model.SlaveID, error)) error {
		return e.mgr.AcceptStep(timeout, onComplete, onSlave)
	})
}

// Terminate shuts the execution down, best effort.
func (e *Execution) Terminate() {
	e.mgr.Terminate()
	// Pump the reactor long enough for the terminate messages to flush.
	e.reactor.AddTimerAfter(150*time.Millisecond, e.reactor.Stop)
	e.reactor.Run()
}

// fanOut runs one asynchronous fan-out operation to completion, collecting
// per-slave failures into the returned error.
func (e *Execution) fanOut(
	what string,
	start func(onComplete func(error), onSlave func(model.SlaveID, error)) error,
) error {
	var failures []string
	var opErr error
	err := start(
		func(err error) {
			opErr = err
			e.reactor.Stop()
		},
		func(id model.SlaveID, err error) {
			if err != nil {
				name, nerr := e.mgr.SlaveName(id)
				if nerr != nil {
					name = fmt.Sprintf("slave %d", id)
				}
				failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			}
		})
	if err != nil {
		return err
	}
	e.reactor.Run()
	if opErr != nil {
		if len(failures) > 0 {
			return fmt.Errorf("%s: %v (%s)", what, opErr, strings.Join(failures, "; "))
		}
		return fmt.Errorf("%s: %v", what, opErr)
	}
	return nil
}
