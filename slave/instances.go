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

package slave

import (
	"fmt"

	"github.com/oceanbed/go-cosim/model"
)

// Variable IDs of GainInstance.
const (
	GainInput  model.VariableID = 0
	GainOutput model.VariableID = 1
	GainFactor model.VariableID = 2
)

// GainTypeUUID identifies the gain slave type.
const GainTypeUUID = "2fbc65b9-5c42-4a22-a32b-bbcdff8e0ad2"

// GainInstance is a trivial simulation unit: on every step its output
// becomes gain times its input. It is used by the standalone slave
// executable and the built-in provider types, and is small enough to
// reason about in closed form when slaves are coupled in a loop.
type GainInstance struct {
	name   string
	gain   float64
	input  float64
	output float64
}

// NewGainInstance creates a gain instance. The gain is also settable as a
// parameter variable.
func NewGainInstance(gain float64) *GainInstance {
	return &GainInstance{gain: gain}
}

// TypeDescription implements Instance.
func (g *GainInstance) TypeDescription() model.SlaveTypeDescription {
	return model.SlaveTypeDescription{
		Name:        "gain",
		UUID:        GainTypeUUID,
		Description: "Multiplies its input by a constant gain",
		Author:      "go-cosim",
		Version:     "1.0",
		Variables: []model.VariableDescription{
			{ID: GainInput, Name: "in", DataType: model.RealDataType, Causality: model.InputCausality, Variability: model.ContinuousVariability},
			{ID: GainOutput, Name: "out", DataType: model.RealDataType, Causality: model.OutputCausality, Variability: model.ContinuousVariability},
			{ID: GainFactor, Name: "gain", DataType: model.RealDataType, Causality: model.ParameterCausality, Variability: model.TunableVariability},
		},
	}
}

// Setup implements Instance.
func (g *GainInstance) Setup(slaveName, executionName string, startTime, stopTime model.TimePoint, adaptiveStepSize bool, relativeTolerance float64) error {
	g.name = slaveName
	return nil
}

// StartSimulation implements Instance.
func (g *GainInstance) StartSimulation() error { return nil }

// EndSimulation implements Instance.
func (g *GainInstance) EndSimulation() error { return nil }

// DoStep implements Instance.
func (g *GainInstance) DoStep(currentTime model.TimePoint, stepSize model.TimeDuration) bool {
	g.output = g.gain * g.input
	return true
}

// GetRealVariable implements Instance.
func (g *GainInstance) GetRealVariable(id model.VariableID) (float64, error) {
	switch id {
	case GainInput:
		return g.input, nil
	case GainOutput:
		return g.output, nil
	case GainFactor:
		return g.gain, nil
	default:
		return 0, fmt.Errorf("gain: no real variable %d", id)
	}
}

// SetRealVariable implements Instance.
func (g *GainInstance) SetRealVariable(id model.VariableID, value float64) error {
	switch id {
	case GainInput:
		g.input = value
	case GainOutput:
		g.output = value
	case GainFactor:
		g.gain = value
	default:
		return fmt.Errorf("gain: no real variable %d", id)
	}
	return nil
}

func (g *GainInstance) GetIntegerVariable(id model.VariableID) (int32, error) {
	return 0, fmt.Errorf("gain: no integer variable %d", id)
}

func (g *GainInstance) GetBooleanVariable(id model.VariableID) (bool, error) {
	return false, fmt.Errorf("gain: no boolean variable %d", id)
}

func (g *GainInstance) GetStringVariable(id model.VariableID) (string, error) {
	return "", fmt.Errorf("gain: no string variable %d", id)
}

func (g *GainInstance) SetIntegerVariable(id model.VariableID, value int32) error {
	return fmt.Errorf("gain: no integer variable %d", id)
}

func (g *GainInstance) SetBooleanVariable(id model.VariableID, value bool) error {
	return fmt.Errorf("gain: no boolean variable %d", id)
}

func (g *GainInstance) SetStringVariable(id model.VariableID, value string) error {
	return fmt.Errorf("gain: no string variable %d", id)
}

// Variable IDs of EchoInstance.
const (
	EchoRealIn     model.VariableID = 0
	EchoRealOut    model.VariableID = 1
	EchoIntegerIn  model.VariableID = 2
	EchoIntegerOut model.VariableID = 3
	EchoBooleanIn  model.VariableID = 4
	EchoBooleanOut model.VariableID = 5
	EchoStringIn   model.VariableID = 6
	EchoStringOut  model.VariableID = 7
)

// EchoTypeUUID identifies the echo slave type.
const EchoTypeUUID = "8a2e2a0d-07c1-4b9f-9b3a-63cfe3a0a2a4"

// EchoInstance mirrors each of its inputs to the output of the same data
// type, delayed by one step. It exercises all four data types.
type EchoInstance struct {
	realIn, realOut       float64
	integerIn, integerOut int32
	booleanIn, booleanOut bool
	stringIn, stringOut   string
}

// NewEchoInstance creates an echo instance.
func NewEchoInstance() *EchoInstance { return &EchoInstance{} }

// TypeDescription implements Instance.
func (e *EchoInstance) TypeDescription() model.SlaveTypeDescription {
	return model.SlaveTypeDescription{
		Name:        "echo",
		UUID:        EchoTypeUUID,
		Description: "Mirrors inputs of every data type to outputs, one step delayed",
		Author:      "go-cosim",
		Version:     "1.0",
		Variables: []model.VariableDescription{
			{ID: EchoRealIn, Name: "real_in", DataType: model.RealDataType, Causality: model.InputCausality, Variability: model.ContinuousVariability},
			{ID: EchoRealOut, Name: "real_out", DataType: model.RealDataType, Causality: model.OutputCausality, Variability: model.ContinuousVariability},
			{ID: EchoIntegerIn, Name: "integer_in", DataType: model.IntegerDataType, Causality: model.InputCausality, Variability: model.DiscreteVariability},
			{ID: EchoIntegerOut, Name: "integer_out", DataType: model.IntegerDataType, Causality: model.OutputCausality, Variability: model.DiscreteVariability},
			{ID: EchoBooleanIn, Name: "boolean_in", DataType: model.BooleanDataType, Causality: model.InputCausality, Variability: model.DiscreteVariability},
			{ID: EchoBooleanOut, Name: "boolean_out", DataType: model.BooleanDataType, Causality: model.OutputCausality, Variability: model.DiscreteVariability},
			{ID: EchoStringIn, Name: "string_in", DataType: model.StringDataType, Causality: model.InputCausality, Variability: model.DiscreteVariability},
			{ID: EchoStringOut, Name: "string_out", DataType: model.StringDataType, Causality: model.OutputCausality, Variability: model.DiscreteVariability},
		},
	}
}

// Setup implements Instance.
func (e *EchoInstance) Setup(slaveName, executionName string, startTime, stopTime model.TimePoint, adaptiveStepSize bool, relativeTolerance float64) error {
	return nil
}

// StartSimulation implements Instance.
func (e *EchoInstance) StartSimulation() error { return nil }

// EndSimulation implements Instance.
func (e *EchoInstance) EndSimulation() error { return nil }

// DoStep implements Instance.
func (e *EchoInstance) DoStep(currentTime model.TimePoint, stepSize model.TimeDuration) bool {
	e.realOut = e.realIn
	e.integerOut = e.integerIn
	e.booleanOut = e.booleanIn
	e.stringOut = e.stringIn
	return true
}

func (e *EchoInstance) GetRealVariable(id model.VariableID) (float64, error) {
	switch id {
	case EchoRealIn:
		return e.realIn, nil
	case EchoRealOut:
		return e.realOut, nil
	default:
		return 0, fmt.Errorf("echo: no real variable %d", id)
	}
}

func (e *EchoInstance) SetRealVariable(id model.VariableID, value float64) error {
	switch id {
	case EchoRealIn:
		e.realIn = value
	case EchoRealOut:
		e.realOut = value
	default:
		return fmt.Errorf("echo: no real variable %d", id)
	}
	return nil
}

func (e *EchoInstance) GetIntegerVariable(id model.VariableID) (int32, error) {
	switch id {
	case EchoIntegerIn:
		return e.integerIn, nil
	case EchoIntegerOut:
		return e.integerOut, nil
	default:
		return 0, fmt.Errorf("echo: no integer variable %d", id)
	}
}

func (e *EchoInstance) SetIntegerVariable(id model.VariableID, value int32) error {
	switch id {
	case EchoIntegerIn:
		e.integerIn = value
	case EchoIntegerOut:
		e.integerOut = value
	default:
		return fmt.Errorf("echo: no integer variable %d", id)
	}
	return nil
}

func (e *EchoInstance) GetBooleanVariable(id model.VariableID) (bool, error) {
	switch id {
	case EchoBooleanIn:
		return e.booleanIn, nil
	case EchoBooleanOut:
		return e.booleanOut, nil
	default:
		return false, fmt.Errorf("echo: no boolean variable %d", id)
	}
}

func (e *EchoInstance) SetBooleanVariable(id model.VariableID, value bool) error {
	switch id {
	case EchoBooleanIn:
		e.booleanIn = value
	case EchoBooleanOut:
		e.booleanOut = value
	default:
		return fmt.Errorf("echo: no boolean variable %d", id)
	}
	return nil
}

func (e *EchoInstance) GetStringVariable(id model.VariableID) (string, error) {
	switch id {
	case EchoStringIn:
		return e.stringIn, nil
	case EchoStringOut:
		return e.stringOut, nil
	default:
		return "", fmt.Errorf("echo: no string variable %d", id)
	}
}

func (e *EchoInstance) SetStringVariable(id model.VariableID, value string) error {
	switch id {
	case EchoStringIn:
		e.stringIn = value
	case EchoStringOut:
		e.stringOut = value
	default:
		return fmt.Errorf("echo: no string variable %d", id)
	}
	return nil
}
