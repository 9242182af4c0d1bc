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

package model

import (
	"math"
	"testing"
)

func TestScalarValueString(t *testing.T) {
	tests := []struct {
		value ScalarValue
		want  string
	}{
		{RealValue(1.5), "1.5"},
		{IntegerValue(-7), "-7"},
		{BooleanValue(true), "true"},
		{StringValue("hello"), "hello"},
	}
	for _, test := range tests {
		if got := test.value.String(); got != test.want {
			t.Errorf("ScalarValue%+v.String() == %q, want %q", test.value, got, test.want)
		}
	}
}

func TestVariableString(t *testing.T) {
	v := Variable{Slave: 3, ID: 17}
	if got := v.String(); got != "3:17" {
		t.Errorf("Variable.String() == %q, want %q", got, "3:17")
	}
}

func TestEternity(t *testing.T) {
	if !math.IsInf(Eternity, 1) {
		t.Fatalf("Eternity is %g, want +Inf", Eternity)
	}
	if !(0 <= Eternity) {
		t.Error("comparison against Eternity failed")
	}
}

func TestSlaveTypeDescriptionLookup(t *testing.T) {
	desc := SlaveTypeDescription{
		Name: "thing",
		Variables: []VariableDescription{
			{ID: 0, Name: "in", DataType: RealDataType, Causality: InputCausality},
			{ID: 1, Name: "out", DataType: RealDataType, Causality: OutputCausality},
		},
	}
	vd, err := desc.Variable(1)
	if err != nil {
		t.Fatalf("Variable(1): %v", err)
	}
	if vd.Name != "out" {
		t.Errorf("Variable(1).Name == %q, want %q", vd.Name, "out")
	}
	if _, err := desc.Variable(42); err == nil {
		t.Error("Variable(42) did not fail")
	}
	vd, err = desc.VariableByName("in")
	if err != nil {
		t.Fatalf("VariableByName(in): %v", err)
	}
	if vd.ID != 0 {
		t.Errorf("VariableByName(in).ID == %d, want 0", vd.ID)
	}
	if _, err := desc.VariableByName("nope"); err == nil {
		t.Error("VariableByName(nope) did not fail")
	}
}

func TestVariableSettingConstructors(t *testing.T) {
	set := NewValueSetting(3, RealValue(2.5))
	if set.Value == nil || set.Value.Real != 2.5 || set.Source != nil || set.Disconnect {
		t.Errorf("unexpected value setting: %+v", set)
	}
	conn := NewConnectionSetting(4, Variable{Slave: 2, ID: 9})
	if conn.Source == nil || conn.Source.Slave != 2 || conn.Value != nil || conn.Disconnect {
		t.Errorf("unexpected connection setting: %+v", conn)
	}
	disc := NewDisconnectSetting(5)
	if !disc.Disconnect || disc.Value != nil || disc.Source != nil {
		t.Errorf("unexpected disconnect setting: %+v", disc)
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{RealDataType.String(), "real"},
		{StringDataType.String(), "string"},
		{InputCausality.String(), "input"},
		{OutputCausality.String(), "output"},
		{CalculatedParameterCausality.String(), "calculated_parameter"},
		{ContinuousVariability.String(), "continuous"},
		{TunableVariability.String(), "tunable"},
	}
	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("got %q, want %q", test.got, test.want)
		}
	}
}
