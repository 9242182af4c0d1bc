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

import "github.com/oceanbed/go-cosim/model"

// Provider-channel message types. They live in a separate code range so a
// message delivered to the wrong channel fails header parsing outright.
const (
	MsgGetSlaveTypes uint16 = 0x4000 + iota
	MsgSlaveTypes
	MsgInstantiateSlave
	MsgInstantiateSlaveOK
	MsgInstantiateSlaveFailed
)

// SlaveTypesBody is the body of SLAVE_TYPES.
type SlaveTypesBody struct {
	Types []model.SlaveTypeDescription
}

// InstantiateSlaveBody is the body of INSTANTIATE_SLAVE.
type InstantiateSlaveBody struct {
	UUID      string
	TimeoutMS int64
}

// InstantiateSlaveOKBody is the body of INSTANTIATE_SLAVE_OK.
type InstantiateSlaveOKBody struct {
	ControlEndpoint string
	DataPubEndpoint string
}

// InstantiateSlaveFailedBody is the body of INSTANTIATE_SLAVE_FAILED.
type InstantiateSlaveFailedBody struct {
	Reason string
}
