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

package bus

import (
	"testing"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/protocol"
	"github.com/oceanbed/go-cosim/status"
)

func newTestVIO(t *testing.T) (*net.Reactor, *variableIO) {
	t.Helper()
	reactor := net.NewReactor()
	vio, err := newVariableIO(reactor, "tcp://127.0.0.1:*", log.New("test", t.Name()))
	if err != nil {
		t.Fatalf("creating variable I/O: %v", err)
	}
	vio.slaveID = 1
	return reactor, vio
}

func newTestPublisher(t *testing.T) (*net.PubSocket, net.Endpoint) {
	t.Helper()
	pub, err := net.NewPubSocket()
	if err != nil {
		t.Fatal(err)
	}
	bound, err := pub.Bind("tcp://127.0.0.1:*")
	if err != nil {
		t.Fatal(err)
	}
	return pub, bound
}

func publishSample(t *testing.T, pub *net.PubSocket, v model.Variable, step model.StepID, value model.ScalarValue) {
	t.Helper()
	frames, err := protocol.MakeSampleMessage(protocol.Sample{Variable: v, StepID: step, Value: value})
	if err != nil {
		t.Fatal(err)
	}
	if err := pub.Send(frames); err != nil {
		t.Fatal(err)
	}
}

// The barrier must not complete before every expected (peer, variable) pair
// has been seen, regardless of publisher arrival order.
func TestBarrierCollectsAllPublishers(t *testing.T) {
	reactor, vio := newTestVIO(t)
	defer vio.close()
	pubA, epA := newTestPublisher(t)
	defer pubA.Close()
	pubB, epB := newTestPublisher(t)
	defer pubB.Close()

	srcA := model.Variable{Slave: 7, ID: 3}
	srcB := model.Variable{Slave: 8, ID: 4}
	if err := vio.connect(10, srcA, epA); err != nil {
		t.Fatal(err)
	}
	if err := vio.connect(11, srcB, epB); err != nil {
		t.Fatal(err)
	}

	var got map[model.VariableID]model.ScalarValue
	var gotErr error
	vio.collectInputs(5, 2*time.Second, func(values map[model.VariableID]model.ScalarValue, err error) {
		got, gotErr = values, err
		reactor.Stop()
	})
	go func() {
		time.Sleep(50 * time.Millisecond)
		publishSample(t, pubB, srcB, 5, model.RealValue(2))
		publishSample(t, pubA, srcA, 5, model.RealValue(1))
	}()
	reactor.Run()

	if gotErr != nil {
		t.Fatalf("barrier failed: %v", gotErr)
	}
	if len(got) != 2 {
		t.Fatalf("got %d inputs, want 2", len(got))
	}
	if got[10].Real != 1 || got[11].Real != 2 {
		t.Errorf("inputs %v", got)
	}
}

// A sample for step N+1 arriving while step N is being collected is
// buffered and consumed by the next barrier, not discarded.
func TestBarrierBuffersEarlySamples(t *testing.T) {
	reactor, vio := newTestVIO(t)
	defer vio.close()
	pub, ep := newTestPublisher(t)
	defer pub.Close()

	src := model.Variable{Slave: 7, ID: 3}
	if err := vio.connect(10, src, ep); err != nil {
		t.Fatal(err)
	}

	var got0, got1 map[model.VariableID]model.ScalarValue
	var err0, err1 error
	vio.collectInputs(0, 2*time.Second, func(values map[model.VariableID]model.ScalarValue, err error) {
		got0, err0 = values, err
		reactor.Stop()
	})
	go func() {
		time.Sleep(50 * time.Millisecond)
		publishSample(t, pub, src, 0, model.RealValue(10))
		publishSample(t, pub, src, 1, model.RealValue(11)) // one step ahead
	}()
	reactor.Run()
	if err0 != nil {
		t.Fatalf("step 0 barrier failed: %v", err0)
	}
	if got0[10].Real != 10 {
		t.Fatalf("step 0 input %v, want 10", got0[10])
	}

	// Nothing more is published; step 1 completes from the buffer.
	vio.collectInputs(1, 2*time.Second, func(values map[model.VariableID]model.ScalarValue, err error) {
		got1, err1 = values, err
		reactor.Stop()
	})
	reactor.Run()
	if err1 != nil {
		t.Fatalf("step 1 barrier failed: %v", err1)
	}
	if got1[10].Real != 11 {
		t.Fatalf("step 1 input %v, want 11", got1[10])
	}
}

// Samples tagged with an older step are discarded, and the barrier times
// out naming the pending inputs.
func TestBarrierDiscardsStaleAndTimesOut(t *testing.T) {
	reactor, vio := newTestVIO(t)
	defer vio.close()
	pub, ep := newTestPublisher(t)
	defer pub.Close()

	src := model.Variable{Slave: 7, ID: 3}
	if err := vio.connect(10, src, ep); err != nil {
		t.Fatal(err)
	}

	var gotErr error
	vio.collectInputs(2, 200*time.Millisecond, func(values map[model.VariableID]model.ScalarValue, err error) {
		gotErr = err
		reactor.Stop()
	})
	go func() {
		time.Sleep(30 * time.Millisecond)
		publishSample(t, pub, src, 1, model.RealValue(99)) // stale
	}()
	reactor.Run()

	if !status.Is(gotErr, status.Timeout) {
		t.Fatalf("got %v, want timeout", gotErr)
	}
}

func TestConnectionRefcounts(t *testing.T) {
	_, vio := newTestVIO(t)
	defer vio.close()
	pub, ep := newTestPublisher(t)
	defer pub.Close()

	srcA := model.Variable{Slave: 7, ID: 3}
	srcB := model.Variable{Slave: 7, ID: 4}
	if err := vio.connect(10, srcA, ep); err != nil {
		t.Fatal(err)
	}
	if err := vio.connect(11, srcB, ep); err != nil {
		t.Fatal(err)
	}
	if vio.connectionCount() != 2 {
		t.Fatalf("%d connections, want 2", vio.connectionCount())
	}

	if err := vio.disconnect(10); err != nil {
		t.Fatal(err)
	}
	if !vio.sub.Connected(ep) {
		t.Fatal("peer connection dropped while a subscription remains")
	}
	if err := vio.disconnect(11); err != nil {
		t.Fatal(err)
	}
	if vio.sub.Connected(ep) {
		t.Fatal("peer connection survived the last disconnect")
	}
	// Disconnecting an unconnected input is a no-op.
	if err := vio.disconnect(10); err != nil {
		t.Fatal(err)
	}
}
