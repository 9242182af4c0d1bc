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

// Package protocol defines the messages exchanged between the master, the
// slaves and the slave providers, and the codecs that put them on the wire.
//
// Every control-plane message is a sequence of frames. Frame 0 is a 4-byte
// header carrying the message type and the protocol version as little-endian
// 16-bit integers. Frame 1, when present, is the message body, a CBOR-encoded
// struct. Additional frames carry opaque byte strings.
package protocol

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/oceanbed/go-cosim/model"
	cosimnet "github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/status"
)

// Version is the protocol version spoken by this implementation, carried in
// every message header. Version negotiation happens at HELLO; a slave
// replies DENIED to any version it does not support.
const Version uint16 = 0

// headerSize is the length of frame 0 of every control-plane message.
const headerSize = 4

// Control-channel message types. HELLO, SETUP, SET_VARS, STEP, ACCEPT_STEP
// and TERMINATE go from master to slave; the others are slave replies.
const (
	MsgHello uint16 = iota
	MsgHelloAck
	MsgDenied
	MsgSetup
	MsgSetupOK
	MsgSetVars
	MsgSetVarsOK
	MsgSetVarsFailed
	MsgStep
	MsgStepOK
	MsgStepFailed
	MsgAcceptStep
	MsgAcceptStepOK
	MsgTerminate
)

var msgTypeNames = map[uint16]string{
	MsgHello:                  "HELLO",
	MsgHelloAck:               "HELLO_ACK",
	MsgDenied:                 "DENIED",
	MsgSetup:                  "SETUP",
	MsgSetupOK:                "SETUP_OK",
	MsgSetVars:                "SET_VARS",
	MsgSetVarsOK:              "SET_VARS_OK",
	MsgSetVarsFailed:          "SET_VARS_FAIL",
	MsgStep:                   "STEP",
	MsgStepOK:                 "STEP_OK",
	MsgStepFailed:             "STEP_FAIL",
	MsgAcceptStep:             "ACCEPT_STEP",
	MsgAcceptStepOK:           "ACCEPT_STEP_OK",
	MsgTerminate:              "TERMINATE",
	MsgGetSlaveTypes:          "GET_SLAVE_TYPES",
	MsgSlaveTypes:             "SLAVE_TYPES",
	MsgInstantiateSlave:       "INSTANTIATE_SLAVE",
	MsgInstantiateSlaveOK:     "INSTANTIATE_SLAVE_OK",
	MsgInstantiateSlaveFailed: "INSTANTIATE_SLAVE_FAILED",
}

// MsgTypeName returns the wire name of a message type code.
func MsgTypeName(msgType uint16) string {
	if name, ok := msgTypeNames[msgType]; ok {
		return name
	}
	return "UNKNOWN"
}

// MakeHeader builds the header frame for a message.
func MakeHeader(msgType, version uint16) []byte {
	h := make([]byte, 0, headerSize)
	h = append(h, cosimnet.PutUint16(msgType)...)
	return append(h, cosimnet.PutUint16(version)...)
}

// ParseHeader decodes a header frame, rejecting wrong lengths and unknown
// message types.
func ParseHeader(frame []byte) (msgType, version uint16, err error) {
	if len(frame) != headerSize {
		return 0, 0, status.Newf(status.ProtocolViolation, "header is %d bytes, want %d", len(frame), headerSize)
	}
	msgType, _ = cosimnet.Uint16(frame[:2])
	version, _ = cosimnet.Uint16(frame[2:])
	if _, ok := msgTypeNames[msgType]; !ok {
		return 0, 0, status.Newf(status.ProtocolViolation, "unknown message type %#x", msgType)
	}
	return msgType, version, nil
}

// MakeMessage builds a message from a type code and an optional body. A nil
// body yields a header-only message.
func MakeMessage(msgType uint16, body interface{}) ([][]byte, error) {
	return makeMessage(msgType, Version, body)
}

// MakeMessageV builds a message carrying an explicit protocol version. Only
// the HELLO exchange uses versions other than Version.
func MakeMessageV(msgType, version uint16, body interface{}) ([][]byte, error) {
	return makeMessage(msgType, version, body)
}

func makeMessage(msgType, version uint16, body interface{}) ([][]byte, error) {
	frames := [][]byte{MakeHeader(msgType, version)}
	if body != nil {
		enc, err := cbor.Marshal(body)
		if err != nil {
			return nil, err
		}
		frames = append(frames, enc)
	}
	return frames, nil
}

// ParseMessageType decodes the header of a received message and returns its
// type and version.
func ParseMessageType(frames [][]byte) (msgType, version uint16, err error) {
	if len(frames) == 0 {
		return 0, 0, status.New(status.ProtocolViolation, "empty message")
	}
	return ParseHeader(frames[0])
}

// ParseBody decodes the body frame of a received message into out.
func ParseBody(frames [][]byte, out interface{}) error {
	if len(frames) < 2 {
		return status.Newf(status.ProtocolViolation, "%s message has no body", frameName(frames))
	}
	if err := cbor.Unmarshal(frames[1], out); err != nil {
		return status.Newf(status.ProtocolViolation, "malformed %s body: %v", frameName(frames), err)
	}
	return nil
}

func frameName(frames [][]byte) string {
	if len(frames) == 0 || len(frames[0]) != headerSize {
		return "UNKNOWN"
	}
	t, _ := cosimnet.Uint16(frames[0][:2])
	return MsgTypeName(t)
}

// HelloBody is the body of HELLO.
type HelloBody struct {
	ExecutionName string
}

// HelloAckBody is the body of HELLO_ACK.
type HelloAckBody struct {
	TypeDescription model.SlaveTypeDescription
	DataPubEndpoint string
}

// DeniedBody is the body of DENIED.
type DeniedBody struct {
	Reason string
}

// SetupBody is the body of SETUP. The timeout is in milliseconds.
type SetupBody struct {
	SlaveID               model.SlaveID
	SlaveName             string
	ExecutionName         string
	StartTime             model.TimePoint
	StopTime              model.TimePoint
	VariableRecvTimeoutMS int64
}

// VariableSettingMsg is the wire form of a variable setting. Unlike
// model.VariableSetting it carries the data endpoint of the source slave,
// which the receiving slave needs to connect its subscription socket.
type VariableSettingMsg struct {
	Variable       model.VariableID
	Value          *model.ScalarValue `cbor:",omitempty"`
	Source         *model.Variable    `cbor:",omitempty"`
	SourceEndpoint string             `cbor:",omitempty"`
	Disconnect     bool               `cbor:",omitempty"`
}

// SetVarsBody is the body of SET_VARS.
type SetVarsBody struct {
	Settings []VariableSettingMsg
}

// SettingError reports the failure of one setting in a SET_VARS request, by
// its index in the request.
type SettingError struct {
	Index  int
	Reason string
}

// SetVarsFailedBody is the body of SET_VARS_FAIL. Settings not listed were
// applied; applied settings are not rolled back.
type SetVarsFailedBody struct {
	Errors []SettingError
}

// StepBody is the body of STEP. The timeout bounds the slave's wait for
// input variable samples, in milliseconds.
type StepBody struct {
	StepID      model.StepID
	CurrentTime model.TimePoint
	StepSize    model.TimeDuration
	TimeoutMS   int64
}

// StepFailedBody is the body of STEP_FAIL.
type StepFailedBody struct {
	Reason string
}

