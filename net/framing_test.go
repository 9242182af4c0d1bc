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

package net

import (
	"bytes"
	"testing"

	"github.com/oceanbed/go-cosim/status"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := [][][]byte{
		{{1, 2, 3}},
		{{}, {4, 5}},
		{{0xff}, {}, bytes.Repeat([]byte{7}, 1000)},
	}
	for _, frames := range tests {
		msg := PackFrames(frames...)
		got, err := SplitFrames(msg)
		if err != nil {
			t.Fatalf("SplitFrames: %v", err)
		}
		if len(got) != len(frames) {
			t.Fatalf("got %d frames, want %d", len(got), len(frames))
		}
		for i := range frames {
			if !bytes.Equal(got[i], frames[i]) {
				t.Errorf("frame %d: got %x, want %x", i, got[i], frames[i])
			}
		}
	}
}

func TestSplitFramesErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
	}{
		{"empty", nil},
		{"short length", []byte{1, 0}},
		{"truncated body", []byte{5, 0, 0, 0, 1, 2}},
	}
	for _, test := range tests {
		if _, err := SplitFrames(test.msg); !status.Is(err, status.ProtocolViolation) {
			t.Errorf("%s: got %v, want protocol violation", test.name, err)
		}
	}
}

func TestIntegerHelpers(t *testing.T) {
	if v, err := Uint16(PutUint16(0xbeef)); err != nil || v != 0xbeef {
		t.Errorf("Uint16 round trip: %x, %v", v, err)
	}
	if v, err := Uint32(PutUint32(0xdeadbeef)); err != nil || v != 0xdeadbeef {
		t.Errorf("Uint32 round trip: %x, %v", v, err)
	}
	if v, err := Uint64(PutUint64(0x0123456789abcdef)); err != nil || v != 0x0123456789abcdef {
		t.Errorf("Uint64 round trip: %x, %v", v, err)
	}
	// Little-endian layout is part of the wire format.
	if b := PutUint16(0x0102); !bytes.Equal(b, []byte{2, 1}) {
		t.Errorf("PutUint16 layout: %x", b)
	}
	if _, err := Uint32([]byte{1, 2}); !status.Is(err, status.ProtocolViolation) {
		t.Errorf("short Uint32: %v", err)
	}
}
