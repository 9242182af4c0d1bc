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
	"time"

	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/status"
)

// rendezvous aggregates the completion of one fan-out operation. It counts
// down the pending per-slave responses, keeps the worst status observed and
// fires the aggregate callback exactly once: when the countdown reaches
// zero, when the operation timer expires, or when termination aborts it.
//
// Keys are small integers chosen by the operation (slave IDs, or batch
// indices during admission when no IDs exist yet). Rendezvous objects never
// hold slave records; the per-key timeout handlers look controllers up by
// key and treat "gone" as benign, while reply continuations carry the
// controller they were issued on.
type rendezvous struct {
	mgr          *ExecutionManager
	op           string
	pending      map[int]struct{}
	worst        error
	onComplete   func(error)
	onKeyTimeout func(key int)
	timer        timerHandle
	finished     bool
}

type timerHandle struct {
	id     net.TimerID
	active bool
}

// newRendezvous registers the operation timer and remembers the rendezvous
// as the in-flight operation, so Terminate can abort it.
func (m *ExecutionManager) newRendezvous(
	op string,
	keys []int,
	timeout time.Duration,
	onComplete func(error),
	onKeyTimeout func(key int),
) *rendezvous {
	r := &rendezvous{
		mgr:          m,
		op:           op,
		pending:      make(map[int]struct{}, len(keys)),
		onComplete:   onComplete,
		onKeyTimeout: onKeyTimeout,
	}
	for _, k := range keys {
		r.pending[k] = struct{}{}
	}
	r.timer = timerHandle{id: m.reactor.AddTimerAfter(timeout, r.onTimeout), active: true}
	m.current = r
	return r
}

// done resolves one key. Unknown or repeated keys are ignored.
func (r *rendezvous) done(key int, err error) {
	if r.finished {
		return
	}
	if _, ok := r.pending[key]; !ok {
		return
	}
	delete(r.pending, key)
	r.observe(err)
	if len(r.pending) == 0 {
		r.finish(r.worst)
	}
}

func (r *rendezvous) observe(err error) {
	if severity(err) > severity(r.worst) {
		r.worst = err
	}
}

func (r *rendezvous) onTimeout() {
	if r.finished {
		return
	}
	r.timer.active = false
	for key := range r.pending {
		r.onKeyTimeout(key)
	}
	r.pending = make(map[int]struct{})
	r.observe(status.Newf(status.Timeout, "%s timed out", r.op))
	r.finish(r.worst)
}

// abort completes the rendezvous with Aborted status. Pending keys get no
// further callbacks.
func (r *rendezvous) abort() {
	if r.finished {
		return
	}
	r.finish(status.Newf(status.Aborted, "%s aborted by termination", r.op))
}

func (r *rendezvous) finish(err error) {
	r.finished = true
	if r.timer.active {
		r.mgr.reactor.CancelTimer(r.timer.id)
		r.timer.active = false
	}
	if r.mgr.current == r {
		r.mgr.current = nil
	}
	r.onComplete(err)
}

// severity orders error kinds so that the aggregate callback reports the
// worst per-slave outcome.
func severity(err error) int {
	switch status.KindOf(err) {
	case status.OK:
		return 0
	case status.StepFailed:
		return 1
	case status.Unknown, status.InputError:
		return 2
	case status.Timeout:
		return 3
	case status.ProtocolViolation:
		return 4
	case status.Lost:
		return 5
	default: // Aborted
		return 6
	}
}
