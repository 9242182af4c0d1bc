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
	"github.com/fxamacker/cbor/v2"

	"github.com/oceanbed/go-cosim/model"
	cosimnet "github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/status"
)

// Messages on the execution data channel carry variable samples. Frame 0 is
// a fixed 6-byte prefix [SlaveID:2][VariableID:4] which doubles as the
// subscription filter key, frame 1 is the 8-byte step ID, and frame 2 the
// encoded scalar value.

// Sample is one published variable value, tagged with the step that
// produced it.
type Sample struct {
	Variable model.Variable
	StepID   model.StepID
	Value    model.ScalarValue
}

// SamplePrefix returns the 6-byte topic prefix of a variable. Subscribers
// subscribe by this prefix exactly.
func SamplePrefix(v model.Variable) []byte {
	p := make([]byte, 0, 6)
	p = append(p, cosimnet.PutUint16(uint16(v.Slave))...)
	return append(p, cosimnet.PutUint32(uint32(v.ID))...)
}

// MakeSampleMessage encodes a sample for publishing.
func MakeSampleMessage(s Sample) ([][]byte, error) {
	value, err := cbor.Marshal(&s.Value)
	if err != nil {
		return nil, err
	}
	return [][]byte{
		SamplePrefix(s.Variable),
		cosimnet.PutUint64(uint64(s.StepID)),
		value,
	}, nil
}

// ParseSampleMessage decodes a received sample.
func ParseSampleMessage(frames [][]byte) (Sample, error) {
	if len(frames) != 3 {
		return Sample{}, status.Newf(status.ProtocolViolation, "sample has %d frames, want 3", len(frames))
	}
	if len(frames[0]) != 6 {
		return Sample{}, status.Newf(status.ProtocolViolation, "sample prefix is %d bytes, want 6", len(frames[0]))
	}
	slave, _ := cosimnet.Uint16(frames[0][:2])
	varID, _ := cosimnet.Uint32(frames[0][2:])
	step, err := cosimnet.Uint64(frames[1])
	if err != nil {
		return Sample{}, err
	}
	var s Sample
	s.Variable = model.Variable{Slave: model.SlaveID(slave), ID: model.VariableID(varID)}
	s.StepID = model.StepID(step)
	if err := cbor.Unmarshal(frames[2], &s.Value); err != nil {
		return Sample{}, status.Newf(status.ProtocolViolation, "malformed sample value: %v", err)
	}
	return s, nil
}
