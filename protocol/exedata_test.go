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
	"bytes"
	"reflect"
	"testing"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/status"
)

func TestSamplePrefixLayout(t *testing.T) {
	prefix := SamplePrefix(model.Variable{Slave: 0x0102, ID: 0x03040506})
	want := []byte{0x02, 0x01, 0x06, 0x05, 0x04, 0x03}
	if !bytes.Equal(prefix, want) {
		t.Fatalf("prefix %x, want %x", prefix, want)
	}
}

func TestSampleRoundTrip(t *testing.T) {
	samples := []Sample{
		{Variable: model.Variable{Slave: 1, ID: 2}, StepID: 0, Value: model.RealValue(3.25)},
		{Variable: model.Variable{Slave: 65535, ID: 7}, StepID: 41, Value: model.IntegerValue(-9)},
		{Variable: model.Variable{Slave: 2, ID: 0}, StepID: 1, Value: model.BooleanValue(true)},
		{Variable: model.Variable{Slave: 9, ID: 9}, StepID: 100000, Value: model.StringValue("tick")},
	}
	for _, sample := range samples {
		frames, err := MakeSampleMessage(sample)
		if err != nil {
			t.Fatalf("MakeSampleMessage(%v): %v", sample, err)
		}
		if len(frames) != 3 {
			t.Fatalf("%d frames, want 3", len(frames))
		}
		if !bytes.Equal(frames[0], SamplePrefix(sample.Variable)) {
			t.Errorf("frame 0 is %x, want the subscription prefix", frames[0])
		}
		got, err := ParseSampleMessage(frames)
		if err != nil {
			t.Fatalf("ParseSampleMessage: %v", err)
		}
		if !reflect.DeepEqual(got, sample) {
			t.Errorf("round trip: got %+v, want %+v", got, sample)
		}
	}
}

func TestParseSampleErrors(t *testing.T) {
	good, err := MakeSampleMessage(Sample{Variable: model.Variable{Slave: 1, ID: 2}, Value: model.RealValue(1)})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		frames [][]byte
	}{
		{"two frames", good[:2]},
		{"short prefix", [][]byte{{1, 2, 3}, good[1], good[2]}},
		{"short step id", [][]byte{good[0], {1, 2}, good[2]}},
		{"bad value", [][]byte{good[0], good[1], {0xff}}},
	}
	for _, test := range tests {
		if _, err := ParseSampleMessage(test.frames); !status.Is(err, status.ProtocolViolation) {
			t.Errorf("%s: got %v, want protocol violation", test.name, err)
		}
	}
}
