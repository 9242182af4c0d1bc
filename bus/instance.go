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

// Package bus implements the execution coordination subsystem: the
// master-side execution manager with its per-slave controllers, and the
// slave-side agent with its variable I/O bus.
package bus

import "github.com/oceanbed/go-cosim/model"

// Instance is a simulation unit hosted by a slave agent. The agent drives
// it through the co-simulation lifecycle and moves variable values in and
// out of it between steps.
//
// All methods are called on the slave's reactor goroutine. A DoStep that
// needs to do heavyweight work should still return only when the step is
// complete; the master's step timeout bounds the wait.
type Instance interface {
	// TypeDescription describes the instance's variables.
	TypeDescription() model.SlaveTypeDescription

	// Setup tells the instance its identity and the simulation horizon.
	Setup(slaveName, executionName string, startTime, stopTime model.TimePoint, adaptiveStepSize bool, relativeTolerance float64) error

	// StartSimulation is called once before the first step.
	StartSimulation() error

	// EndSimulation is called once when the execution terminates.
	EndSimulation() error

	// DoStep advances the instance from currentTime by stepSize. A false
	// return means the step could not be performed.
	DoStep(currentTime model.TimePoint, stepSize model.TimeDuration) bool

	GetRealVariable(id model.VariableID) (float64, error)
	GetIntegerVariable(id model.VariableID) (int32, error)
	GetBooleanVariable(id model.VariableID) (bool, error)
	GetStringVariable(id model.VariableID) (string, error)

	SetRealVariable(id model.VariableID, value float64) error
	SetIntegerVariable(id model.VariableID, value int32) error
	SetBooleanVariable(id model.VariableID, value bool) error
	SetStringVariable(id model.VariableID, value string) error
}

// getVariable reads a variable from inst as a tagged scalar.
func getVariable(inst Instance, id model.VariableID, dataType model.DataType) (model.ScalarValue, error) {
	switch dataType {
	case model.RealDataType:
		v, err := inst.GetRealVariable(id)
		return model.RealValue(v), err
	case model.IntegerDataType:
		v, err := inst.GetIntegerVariable(id)
		return model.IntegerValue(v), err
	case model.BooleanDataType:
		v, err := inst.GetBooleanVariable(id)
		return model.BooleanValue(v), err
	default:
		v, err := inst.GetStringVariable(id)
		return model.StringValue(v), err
	}
}

// setVariable writes a tagged scalar into inst.
func setVariable(inst Instance, id model.VariableID, value model.ScalarValue) error {
	switch value.Type {
	case model.RealDataType:
		return inst.SetRealVariable(id, value.Real)
	case model.IntegerDataType:
		return inst.SetIntegerVariable(id, value.Integer)
	case model.BooleanDataType:
		return inst.SetBooleanVariable(id, value.Boolean)
	default:
		return inst.SetStringVariable(id, value.Str)
	}
}
