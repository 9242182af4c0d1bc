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
	"runtime/debug"
	"sort"
	"time"

	log "github.com/inconshreveable/log15"
)

// MessageHandler is called on the reactor goroutine for every message
// received on a registered socket. A transport or framing problem is passed
// through err with frames nil.
type MessageHandler func(frames [][]byte, err error)

// TimerID identifies a timer registered with a reactor.
type TimerID uint64

type reactorTimer struct {
	id       TimerID
	deadline time.Time
	callback func()
}

// Reactor is a cooperative event loop. All handler and timer callbacks run
// on the goroutine that called Run, which is therefore the sole mutator of
// any state they touch. Sockets are read by helper goroutines which post
// their messages back to the loop; Post offers the same facility for other
// out-of-loop work.
//
// AddTimer, CancelTimer and Stop must only be called from the Run goroutine
// or before Run is entered.
type Reactor struct {
	events      chan func()
	timers      []*reactorTimer
	nextTimerID TimerID
	stopped     bool
	logger      log.Logger
}

// NewReactor creates an idle reactor.
func NewReactor() *Reactor {
	return &Reactor{
		events: make(chan func(), 256),
		logger: log.New("component", "reactor"),
	}
}

// AddSocket registers a socket with the reactor. Every message received on
// it is delivered to handler on the reactor goroutine, until the socket is
// closed.
func (r *Reactor) AddSocket(s ReceivingSocket, handler MessageHandler) {
	go func() {
		for {
			raw, err := s.recvMessage()
			if err != nil {
				if isClosed(err) {
					return
				}
				r.Post(func() { handler(nil, err) })
				continue
			}
			frames, ferr := SplitFrames(raw)
			r.Post(func() { handler(frames, ferr) })
		}
	}()
}

// Post schedules fn to run on the reactor goroutine. It is safe to call
// from any goroutine.
func (r *Reactor) Post(fn func()) {
	r.events <- fn
}

// AddTimer registers a callback to fire once at the given deadline and
// returns its ID. A deadline in the past fires on the next loop iteration.
func (r *Reactor) AddTimer(deadline time.Time, callback func()) TimerID {
	r.nextTimerID++
	t := &reactorTimer{id: r.nextTimerID, deadline: deadline, callback: callback}
	i := sort.Search(len(r.timers), func(i int) bool {
		return r.timers[i].deadline.After(deadline)
	})
	r.timers = append(r.timers, nil)
	copy(r.timers[i+1:], r.timers[i:])
	r.timers[i] = t
	return t.id
}

// AddTimerAfter registers a callback to fire once after the given delay.
func (r *Reactor) AddTimerAfter(delay time.Duration, callback func()) TimerID {
	return r.AddTimer(time.Now().Add(delay), callback)
}

// CancelTimer removes a timer. A timer that has become due but whose
// callback has not yet been dispatched is suppressed. Cancelling an unknown
// or already fired timer is a no-op.
func (r *Reactor) CancelTimer(id TimerID) {
	for i, t := range r.timers {
		if t.id == id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			return
		}
	}
}

// Run drives the loop until Stop is called. A Stop issued before Run, by
// an operation that completed synchronously, makes Run return at once. It
// may be called again after it returns.
func (r *Reactor) Run() {
	defer func() { r.stopped = false }()
	for !r.stopped {
		var (
			timerC <-chan time.Time
			tm     *time.Timer
		)
		if len(r.timers) > 0 {
			d := time.Until(r.timers[0].deadline)
			if d <= 0 {
				r.fireDueTimers()
				continue
			}
			tm = time.NewTimer(d)
			timerC = tm.C
		}
		select {
		case fn := <-r.events:
			if tm != nil {
				tm.Stop()
			}
			r.invoke(fn)
		case <-timerC:
			r.fireDueTimers()
		}
	}
}

// Stop makes Run return after the current callback.
func (r *Reactor) Stop() {
	r.stopped = true
}

func (r *Reactor) fireDueTimers() {
	now := time.Now()
	for len(r.timers) > 0 && !r.timers[0].deadline.After(now) {
		t := r.timers[0]
		r.timers = r.timers[1:]
		r.invoke(t.callback)
		if r.stopped {
			return
		}
	}
}

// invoke runs a callback, containing any panic so that one misbehaving
// handler cannot take down the loop.
func (r *Reactor) invoke(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("Handler panicked", "err", err, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
