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
	"math"
	"testing"
	"time"

	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/status"
)

func newTestManager(t *testing.T) (*ExecutionManager, *net.Reactor) {
	t.Helper()
	reactor := net.NewReactor()
	mgr, err := NewExecutionManager(reactor, "test-exec", DefaultExecutionOptions())
	if err != nil {
		t.Fatal(err)
	}
	return mgr, reactor
}

func admit(t *testing.T, mgr *ExecutionManager, reactor *net.Reactor, slaves ...*testSlave) []model.SlaveID {
	t.Helper()
	added := make([]AddedSlave, len(slaves))
	for i, s := range slaves {
		added[i] = AddedSlave{Locator: s.locator()}
	}
	ids := make([]model.SlaveID, len(slaves))
	err := runOp(t, reactor, func(done func(error)) error {
		return mgr.Reconstitute(added, 2*time.Second, done, func(index int, id model.SlaveID, err error) {
			if err != nil {
				t.Errorf("slave %d: %v", index, err)
			}
			ids[index] = id
		})
	})
	if err != nil {
		t.Fatalf("Reconstitute: %v", err)
	}
	return ids
}

// Admitted slaves get unique IDs and unique names.
func TestReconstituteAllocatesUniqueIDs(t *testing.T) {
	mgr, reactor := newTestManager(t)
	defer mgr.Terminate()
	var slaves []*testSlave
	for i := 0; i < 3; i++ {
		s := startTestSlave(t, newTestInstance("u"))
		defer s.stop()
		slaves = append(slaves, s)
	}

	ids := admit(t, mgr, reactor, slaves...)
	seenID := make(map[model.SlaveID]bool)
	seenName := make(map[string]bool)
	for _, id := range ids {
		if id == model.InvalidSlaveID {
			t.Fatal("slave got the invalid ID")
		}
		if seenID[id] {
			t.Fatalf("duplicate slave ID %d", id)
		}
		seenID[id] = true
		name, err := mgr.SlaveName(id)
		if err != nil {
			t.Fatal(err)
		}
		if seenName[name] {
			t.Fatalf("duplicate slave name %q", name)
		}
		seenName[name] = true
		phase, err := mgr.SlavePhase(id)
		if err != nil {
			t.Fatal(err)
		}
		if phase != SlaveReady {
			t.Errorf("slave %d is %s, want READY", id, phase)
		}
	}
}

func TestReconstituteDuplicateName(t *testing.T) {
	mgr, _ := newTestManager(t)
	added := []AddedSlave{
		{Locator: net.SlaveLocator{Control: "tcp://127.0.0.1:1"}, Name: "twin"},
		{Locator: net.SlaveLocator{Control: "tcp://127.0.0.1:2"}, Name: "twin"},
	}
	err := mgr.Reconstitute(added, time.Second, func(error) {}, func(int, model.SlaveID, error) {})
	if !status.Is(err, status.InputError) {
		t.Fatalf("got %v, want input error", err)
	}
}

// A peer that never answers HELLO is reported lost after the timeout while
// the responsive peers are admitted normally.
func TestReconstituteTimeoutForSilentPeer(t *testing.T) {
	mgr, reactor := newTestManager(t)
	defer mgr.Terminate()
	good := startTestSlave(t, newTestInstance("good"))
	defer good.stop()

	// A bound control socket which never serves anything.
	silent, err := net.NewRepSocket()
	if err != nil {
		t.Fatal(err)
	}
	defer silent.Close()
	silentEp, err := silent.Bind("tcp://127.0.0.1:*")
	if err != nil {
		t.Fatal(err)
	}

	results := make(map[int]error)
	ids := make(map[int]model.SlaveID)
	opErr := runOp(t, reactor, func(done func(error)) error {
		return mgr.Reconstitute(
			[]AddedSlave{
				{Locator: good.locator()},
				{Locator: net.SlaveLocator{Control: silentEp}},
			},
			300*time.Millisecond,
			done,
			func(index int, id model.SlaveID, err error) {
				results[index] = err
				ids[index] = id
			})
	})
	if !status.Is(opErr, status.Timeout) {
		t.Fatalf("aggregate %v, want timeout", opErr)
	}
	if results[0] != nil {
		t.Errorf("good slave failed: %v", results[0])
	}
	if !status.Is(results[1], status.Timeout) {
		t.Errorf("silent slave: %v, want timeout", results[1])
	}
	if phase, err := mgr.SlavePhase(ids[0]); err != nil || phase != SlaveReady {
		t.Errorf("good slave phase %v (%v), want READY", phase, err)
	}
}

// current_t after N accepted steps equals start_t plus the sum of the step
// sizes.
func TestStepAdvancesTime(t *testing.T) {
	mgr, reactor := newTestManager(t)
	defer mgr.Terminate()
	a := startTestSlave(t, newTestInstance("a"))
	defer a.stop()
	b := startTestSlave(t, newTestInstance("b"))
	defer b.stop()
	admit(t, mgr, reactor, a, b)

	var want model.TimePoint
	for i := 0; i < 3; i++ {
		dt := model.TimeDuration(0.1 * float64(i+1))
		err := runOp(t, reactor, func(done func(error)) error {
			return mgr.Step(dt, 2*time.Second, done, func(model.SlaveID, error) {})
		})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		err = runOp(t, reactor, func(done func(error)) error {
			return mgr.AcceptStep(2*time.Second, done, func(model.SlaveID, error) {})
		})
		if err != nil {
			t.Fatalf("accept %d: %v", i, err)
		}
		want += dt
		if got := mgr.CurrentTime(); math.Abs(got-want) > 1e-12 {
			t.Fatalf("after step %d: t == %g, want %g", i, got, want)
		}
	}
	if mgr.nextStepID != 3 {
		t.Errorf("next step ID %d, want 3", mgr.nextStepID)
	}
}

// A Connect whose source names an unknown slave fails synchronously and no
// subscription appears anywhere.
func TestReconfigureUnknownSource(t *testing.T) {
	mgr, reactor := newTestManager(t)
	defer mgr.Terminate()
	s := startTestSlave(t, newTestInstance("lonely"))
	defer s.stop()
	ids := admit(t, mgr, reactor, s)

	err := mgr.Reconfigure(
		[]SlaveConfig{{
			SlaveID: ids[0],
			Settings: []model.VariableSetting{
				model.NewConnectionSetting(0, model.Variable{Slave: 99, ID: 0}),
			},
		}},
		time.Second,
		func(error) { t.Error("aggregate callback fired") },
		func(model.SlaveID, error) { t.Error("per-slave callback fired") },
	)
	if !status.Is(err, status.InputError) {
		t.Fatalf("got %v, want input error", err)
	}
	if n := s.connectionCount(); n != 0 {
		t.Fatalf("slave has %d subscriptions, want 0", n)
	}
}

func TestReconfigureConnectsInputs(t *testing.T) {
	mgr, reactor := newTestManager(t)
	defer mgr.Terminate()
	a := startTestSlave(t, newTestInstance("src"))
	defer a.stop()
	b := startTestSlave(t, newTestInstance("dst"))
	defer b.stop()
	ids := admit(t, mgr, reactor, a, b)

	err := runOp(t, reactor, func(done func(error)) error {
		return mgr.Reconfigure(
			[]SlaveConfig{{
				SlaveID: ids[1],
				Settings: []model.VariableSetting{
					model.NewConnectionSetting(0, model.Variable{Slave: ids[0], ID: 1}),
				},
			}},
			2*time.Second, done,
			func(id model.SlaveID, err error) {
				if err != nil {
					t.Errorf("slave %d: %v", id, err)
				}
			})
	})
	if err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if n := b.connectionCount(); n != 1 {
		t.Fatalf("destination has %d subscriptions, want 1", n)
	}
}

// One slave sleeping through the step deadline fails the aggregate
// operation and becomes lost; the punctual ones finish their step.
func TestStepTimeoutMarksSlaveLost(t *testing.T) {
	mgr, reactor := newTestManager(t)
	defer mgr.Terminate()
	fast0 := startTestSlave(t, newTestInstance("fast0"))
	defer fast0.stop()
	fast1 := startTestSlave(t, newTestInstance("fast1"))
	defer fast1.stop()
	slowInst := newTestInstance("slow")
	slowInst.stepFn = func(model.TimePoint, model.TimeDuration) bool {
		time.Sleep(600 * time.Millisecond)
		return true
	}
	slow := startTestSlave(t, slowInst)
	defer slow.stop()
	ids := admit(t, mgr, reactor, fast0, fast1, slow)

	perSlave := make(map[model.SlaveID]error)
	opErr := runOp(t, reactor, func(done func(error)) error {
		return mgr.Step(0.01, 150*time.Millisecond, done, func(id model.SlaveID, err error) {
			perSlave[id] = err
		})
	})
	if !status.Is(opErr, status.Timeout) {
		t.Fatalf("aggregate %v, want timeout", opErr)
	}
	for _, id := range ids[:2] {
		if perSlave[id] != nil {
			t.Errorf("fast slave %d: %v", id, perSlave[id])
		}
		if phase, _ := mgr.SlavePhase(id); phase != SlaveStepped {
			t.Errorf("fast slave %d is %v, want STEPPED", id, phase)
		}
	}
	if !status.Is(perSlave[ids[2]], status.Timeout) {
		t.Errorf("slow slave: %v, want timeout", perSlave[ids[2]])
	}
	if phase, _ := mgr.SlavePhase(ids[2]); phase != SlaveLost {
		t.Errorf("slow slave is %v, want LOST", phase)
	}
}

// Terminating while a step is in flight completes the step's rendezvous
// with Aborted status and produces no further callbacks from it.
func TestTerminateDuringStep(t *testing.T) {
	mgr, reactor := newTestManager(t)
	slowInst := newTestInstance("slow")
	slowInst.stepFn = func(model.TimePoint, model.TimeDuration) bool {
		time.Sleep(400 * time.Millisecond)
		return true
	}
	slow := startTestSlave(t, slowInst)
	defer slow.stop()
	admit(t, mgr, reactor, slow)

	perSlaveCalls := 0
	var opErr error
	err := mgr.Step(0.01, 5*time.Second,
		func(err error) {
			opErr = err
			reactor.Stop()
		},
		func(model.SlaveID, error) { perSlaveCalls++ })
	if err != nil {
		t.Fatal(err)
	}
	reactor.AddTimerAfter(50*time.Millisecond, mgr.Terminate)
	reactor.Run()

	if !status.Is(opErr, status.Aborted) {
		t.Fatalf("aggregate %v, want aborted", opErr)
	}
	if perSlaveCalls != 0 {
		t.Errorf("%d per-slave callbacks after abort, want 0", perSlaveCalls)
	}
}

func TestStepIllegalInSetupState(t *testing.T) {
	mgr, _ := newTestManager(t)
	err := mgr.Step(0.1, time.Second, func(error) {}, func(model.SlaveID, error) {})
	if !status.Is(err, status.InputError) {
		t.Fatalf("got %v, want input error", err)
	}
}
