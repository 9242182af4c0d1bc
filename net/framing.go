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
	"encoding/binary"

	"github.com/oceanbed/go-cosim/status"
)

// Messages on the wire consist of one or more frames. The transport carries
// each message as a single byte string, so frames are packed back to back,
// each preceded by a 4-byte little-endian length.

// PackFrames concatenates frames into a single transport message.
func PackFrames(frames ...[]byte) []byte {
	size := 0
	for _, f := range frames {
		size += 4 + len(f)
	}
	msg := make([]byte, 0, size)
	for _, f := range frames {
		msg = AppendFrame(msg, f)
	}
	return msg
}

// AppendFrame appends one length-prefixed frame to msg.
func AppendFrame(msg, frame []byte) []byte {
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(frame)))
	msg = append(msg, lenbuf[:]...)
	return append(msg, frame...)
}

// SplitFrames unpacks a transport message into its frames. The returned
// slices alias msg. A truncated or trailing-garbage message yields a
// protocol violation error.
func SplitFrames(msg []byte) ([][]byte, error) {
	var frames [][]byte
	for len(msg) > 0 {
		if len(msg) < 4 {
			return nil, status.New(status.ProtocolViolation, "truncated frame length")
		}
		n := binary.LittleEndian.Uint32(msg)
		msg = msg[4:]
		if uint32(len(msg)) < n {
			return nil, status.Newf(status.ProtocolViolation, "truncated frame: want %d bytes, have %d", n, len(msg))
		}
		frames = append(frames, msg[:n:n])
		msg = msg[n:]
	}
	if frames == nil {
		return nil, status.New(status.ProtocolViolation, "empty message")
	}
	return frames, nil
}

// PutUint16 encodes v as 2 little-endian bytes.
func PutUint16(v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return b[:]
}

// PutUint32 encodes v as 4 little-endian bytes.
func PutUint32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

// PutUint64 encodes v as 8 little-endian bytes.
func PutUint64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// Uint16 decodes 2 little-endian bytes.
func Uint16(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, status.Newf(status.ProtocolViolation, "want 2 bytes, have %d", len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 decodes 4 little-endian bytes.
func Uint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, status.Newf(status.ProtocolViolation, "want 4 bytes, have %d", len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 decodes 8 little-endian bytes.
func Uint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, status.Newf(status.ProtocolViolation, "want 8 bytes, have %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}
