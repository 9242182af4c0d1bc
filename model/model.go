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

// Package model defines the basic value types of a co-simulation: simulation
// time, step numbers, slave and variable identifiers, scalar values and the
// descriptions slaves publish about themselves.
package model

import (
	"fmt"
	"math"
)

// TimePoint is a point in simulation time, in seconds.
type TimePoint = float64

// TimeDuration is the difference between two simulation time points.
type TimeDuration = float64

// Eternity is the time point used to signal that an execution has no
// predefined stop time.
var Eternity = math.Inf(1)

// StepID identifies one time step of an execution. The first step performed
// has ID 0, and every subsequent step increments it by one. Variable samples
// are tagged with the step ID they belong to so that receivers can separate
// stale, current and early samples.
type StepID int64

// NoStepID is the value of a StepID before any step has been performed.
const NoStepID StepID = -1

// SlaveID identifies a slave within one execution. IDs are assigned by the
// master on admission, starting at 1; zero means "no slave".
type SlaveID uint16

// InvalidSlaveID is the zero SlaveID.
const InvalidSlaveID SlaveID = 0

// VariableID identifies a variable within one slave type description.
type VariableID uint32

// Variable identifies a variable endpoint globally within an execution.
type Variable struct {
	Slave SlaveID
	ID    VariableID
}

func (v Variable) String() string {
	return fmt.Sprintf("%d:%d", v.Slave, v.ID)
}

// DataType enumerates the scalar data types a variable can have.
type DataType uint8

const (
	RealDataType DataType = iota
	IntegerDataType
	BooleanDataType
	StringDataType
)

func (d DataType) String() string {
	switch d {
	case RealDataType:
		return "real"
	case IntegerDataType:
		return "integer"
	case BooleanDataType:
		return "boolean"
	case StringDataType:
		return "string"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// Causality classifies the role a variable plays in a simulation.
type Causality uint8

const (
	ParameterCausality Causality = iota
	CalculatedParameterCausality
	InputCausality
	OutputCausality
	LocalCausality
)

func (c Causality) String() string {
	switch c {
	case ParameterCausality:
		return "parameter"
	case CalculatedParameterCausality:
		return "calculated_parameter"
	case InputCausality:
		return "input"
	case OutputCausality:
		return "output"
	case LocalCausality:
		return "local"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Variability classifies how a variable may change over the course of a
// simulation.
type Variability uint8

const (
	ConstantVariability Variability = iota
	FixedVariability
	TunableVariability
	DiscreteVariability
	ContinuousVariability
)

func (v Variability) String() string {
	switch v {
	case ConstantVariability:
		return "constant"
	case FixedVariability:
		return "fixed"
	case TunableVariability:
		return "tunable"
	case DiscreteVariability:
		return "discrete"
	case ContinuousVariability:
		return "continuous"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// ScalarValue is a tagged union holding one value of any of the four
// supported data types. Only the field selected by Type is meaningful.
type ScalarValue struct {
	Type    DataType
	Real    float64 `cbor:",omitempty"`
	Integer int32   `cbor:",omitempty"`
	Boolean bool    `cbor:",omitempty"`
	Str     string  `cbor:",omitempty"`
}

// RealValue returns a ScalarValue holding a real number.
func RealValue(v float64) ScalarValue { return ScalarValue{Type: RealDataType, Real: v} }

// IntegerValue returns a ScalarValue holding an integer.
func IntegerValue(v int32) ScalarValue { return ScalarValue{Type: IntegerDataType, Integer: v} }

// BooleanValue returns a ScalarValue holding a boolean.
func BooleanValue(v bool) ScalarValue { return ScalarValue{Type: BooleanDataType, Boolean: v} }

// StringValue returns a ScalarValue holding a string.
func StringValue(v string) ScalarValue { return ScalarValue{Type: StringDataType, Str: v} }

func (s ScalarValue) String() string {
	switch s.Type {
	case RealDataType:
		return fmt.Sprintf("%g", s.Real)
	case IntegerDataType:
		return fmt.Sprintf("%d", s.Integer)
	case BooleanDataType:
		return fmt.Sprintf("%t", s.Boolean)
	case StringDataType:
		return s.Str
	default:
		return fmt.Sprintf("invalid(%d)", uint8(s.Type))
	}
}

// VariableDescription describes one variable of a slave type.
type VariableDescription struct {
	ID          VariableID
	Name        string
	DataType    DataType
	Causality   Causality
	Variability Variability
}

// SlaveTypeDescription describes a type of slave which can be instantiated.
// The UUID is an opaque identity string; two descriptions with the same UUID
// are assumed to describe the same type.
type SlaveTypeDescription struct {
	Name        string
	UUID        string
	Description string
	Author      string
	Version     string
	Variables   []VariableDescription
}

// Variable returns the description of the variable with the given ID, or an
// error if the type has no such variable.
func (d *SlaveTypeDescription) Variable(id VariableID) (VariableDescription, error) {
	for _, v := range d.Variables {
		if v.ID == id {
			return v, nil
		}
	}
	return VariableDescription{}, fmt.Errorf("slave type %q has no variable with ID %d", d.Name, id)
}

// VariableByName returns the description of the variable with the given
// name, or an error if the type has no such variable.
func (d *SlaveTypeDescription) VariableByName(name string) (VariableDescription, error) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, nil
		}
	}
	return VariableDescription{}, fmt.Errorf("slave type %q has no variable named %q", d.Name, name)
}

// VariableSetting is one modification of a slave's variable state: setting a
// value, connecting an input to a remote output, or disconnecting an input.
// Exactly one of Value, Source and Disconnect should be set.
type VariableSetting struct {
	Variable   VariableID
	Value      *ScalarValue
	Source     *Variable
	Disconnect bool
}

// NewValueSetting returns a setting which assigns a value to a variable.
func NewValueSetting(v VariableID, value ScalarValue) VariableSetting {
	return VariableSetting{Variable: v, Value: &value}
}

// NewConnectionSetting returns a setting which connects an input variable to
// a remote output.
func NewConnectionSetting(input VariableID, source Variable) VariableSetting {
	return VariableSetting{Variable: input, Source: &source}
}

// NewDisconnectSetting returns a setting which disconnects an input variable
// from its source, if any.
func NewDisconnectSetting(input VariableID) VariableSetting {
	return VariableSetting{Variable: input, Disconnect: true}
}

// VariableConnection is an established link from a remote output to a local
// input variable.
type VariableConnection struct {
	Input  VariableID
	Source Variable
}
