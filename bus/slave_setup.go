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
	"time"

	"github.com/oceanbed/go-cosim/model"
)

// SlaveSetup is the configuration sent to each slave as it is admitted to
// an execution.
type SlaveSetup struct {
	SlaveID             model.SlaveID
	SlaveName           string
	ExecutionName       string
	StartTime           model.TimePoint
	StopTime            model.TimePoint
	VariableRecvTimeout time.Duration
}

// ExecutionOptions are the shared settings of one execution.
type ExecutionOptions struct {
	// StartTime is the simulation time at which the execution begins.
	StartTime model.TimePoint

	// MaxTime is the latest possible simulation time point. The default,
	// model.Eternity, declares no end.
	MaxTime model.TimePoint

	// SlaveVariableRecvTimeout bounds each slave's per-step wait for input
	// variable samples from its peers.
	SlaveVariableRecvTimeout time.Duration
}

// DefaultExecutionOptions returns the options used when none are given:
// start at t=0, no stop time, one second variable receive timeout.
func DefaultExecutionOptions() ExecutionOptions {
	return ExecutionOptions{
		StartTime:                0,
		MaxTime:                  model.Eternity,
		SlaveVariableRecvTimeout: time.Second,
	}
}
