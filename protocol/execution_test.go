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

package protocol

import (
	"reflect"
	"testing"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/status"
)

func TestHeaderRoundTrip(t *testing.T) {
	for _, msgType := range []uint16{MsgHello, MsgStepFailed, MsgTerminate, MsgInstantiateSlaveOK} {
		h := MakeHeader(msgType, 0)
		gotType, gotVersion, err := ParseHeader(h)
		if err != nil {
			t.Fatalf("%s: %v", MsgTypeName(msgType), err)
		}
		if gotType != msgType || gotVersion != 0 {
			t.Errorf("%s: got (%d, %d)", MsgTypeName(msgType), gotType, gotVersion)
		}
	}
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"short", []byte{0, 0}},
		{"long", []byte{0, 0, 0, 0, 0}},
		{"unknown type", MakeHeader(0x1234, 0)},
	}
	for _, test := range tests {
		if _, _, err := ParseHeader(test.frame); !status.Is(err, status.ProtocolViolation) {
			t.Errorf("%s: got %v, want protocol violation", test.name, err)
		}
	}
}

func TestHelloCarriesForeignVersion(t *testing.T) {
	frames, err := MakeMessageV(MsgHello, 7, &HelloBody{ExecutionName: "x"})
	if err != nil {
		t.Fatal(err)
	}
	_, version, err := ParseMessageType(frames)
	if err != nil {
		t.Fatal(err)
	}
	if version != 7 {
		t.Fatalf("version %d, want 7", version)
	}
}

// Round-trips every body-carrying message type of the control and provider
// channels. The header-only types are covered by TestHeaderOnlyMessages.
func TestMessageBodyRoundTrip(t *testing.T) {
	realVal := model.RealValue(2.5)
	source := model.Variable{Slave: 3, ID: 9}
	tests := []struct {
		msgType uint16
		body    interface{}
		out     interface{}
	}{
		{MsgHello, &HelloBody{ExecutionName: "demo"}, &HelloBody{}},
		{MsgHelloAck, &HelloAckBody{
			TypeDescription: model.SlaveTypeDescription{
				Name: "gain", UUID: "u-1", Description: "d", Author: "a", Version: "1",
				Variables: []model.VariableDescription{
					{ID: 0, Name: "in", DataType: model.RealDataType, Causality: model.InputCausality, Variability: model.ContinuousVariability},
				},
			},
			DataPubEndpoint: "tcp://10.0.0.1:3001",
		}, &HelloAckBody{}},
		{MsgDenied, &DeniedBody{Reason: "unsupported version 7"}, &DeniedBody{}},
		{MsgSetup, &SetupBody{
			SlaveID: 4, SlaveName: "a", ExecutionName: "demo",
			StartTime: 0, StopTime: 10.5, VariableRecvTimeoutMS: 1500,
		}, &SetupBody{}},
		{MsgSetVars, &SetVarsBody{
			Settings: []VariableSettingMsg{
				{Variable: 1, Value: &realVal},
				{Variable: 2, Source: &source, SourceEndpoint: "tcp://10.0.0.2:3001"},
				{Variable: 3, Disconnect: true},
			},
		}, &SetVarsBody{}},
		{MsgSetVarsFailed, &SetVarsFailedBody{
			Errors: []SettingError{{Index: 1, Reason: "no such variable"}},
		}, &SetVarsFailedBody{}},
		{MsgStep, &StepBody{StepID: 12, CurrentTime: 1.2, StepSize: 0.1, TimeoutMS: 200}, &StepBody{}},
		{MsgStepFailed, &StepFailedBody{Reason: "solver blew up"}, &StepFailedBody{}},
		{MsgSlaveTypes, &SlaveTypesBody{
			Types: []model.SlaveTypeDescription{{Name: "echo", UUID: "u-2"}},
		}, &SlaveTypesBody{}},
		{MsgInstantiateSlave, &InstantiateSlaveBody{UUID: "u-2", TimeoutMS: 5000}, &InstantiateSlaveBody{}},
		{MsgInstantiateSlaveOK, &InstantiateSlaveOKBody{
			ControlEndpoint: "tcp://10.0.0.3:4000", DataPubEndpoint: "tcp://10.0.0.3:4001",
		}, &InstantiateSlaveOKBody{}},
		{MsgInstantiateSlaveFailed, &InstantiateSlaveFailedBody{Reason: "no dice"}, &InstantiateSlaveFailedBody{}},
	}
	for _, test := range tests {
		frames, err := MakeMessage(test.msgType, test.body)
		if err != nil {
			t.Fatalf("%s: MakeMessage: %v", MsgTypeName(test.msgType), err)
		}
		gotType, gotVersion, err := ParseMessageType(frames)
		if err != nil {
			t.Fatalf("%s: ParseMessageType: %v", MsgTypeName(test.msgType), err)
		}
		if gotType != test.msgType || gotVersion != Version {
			t.Errorf("%s: header (%d, %d)", MsgTypeName(test.msgType), gotType, gotVersion)
		}
		if err := ParseBody(frames, test.out); err != nil {
			t.Fatalf("%s: ParseBody: %v", MsgTypeName(test.msgType), err)
		}
		if !reflect.DeepEqual(test.out, test.body) {
			t.Errorf("%s: round trip mismatch:\n got %+v\nwant %+v", MsgTypeName(test.msgType), test.out, test.body)
		}
	}
}

func TestHeaderOnlyMessages(t *testing.T) {
	for _, msgType := range []uint16{MsgSetupOK, MsgSetVarsOK, MsgStepOK, MsgAcceptStep, MsgAcceptStepOK, MsgTerminate, MsgGetSlaveTypes} {
		frames, err := MakeMessage(msgType, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(frames) != 1 {
			t.Errorf("%s: %d frames, want 1", MsgTypeName(msgType), len(frames))
		}
		var out DeniedBody
		if err := ParseBody(frames, &out); !status.Is(err, status.ProtocolViolation) {
			t.Errorf("%s: ParseBody on body-less message: %v", MsgTypeName(msgType), err)
		}
	}
}

func TestParseBodyMalformed(t *testing.T) {
	frames := [][]byte{MakeHeader(MsgStep, Version), {0xff, 0xff, 0xff}}
	var out StepBody
	if err := ParseBody(frames, &out); !status.Is(err, status.ProtocolViolation) {
		t.Errorf("malformed body: %v, want protocol violation", err)
	}
}
