// SPDX-License-Identifier: MPL-2.0

package watch

import "sync/atomic"

// Metrics is a point-in-time copy of the engine counters.
type Metrics struct {
	CyclesStarted    uint64
	CyclesSkipped    uint64
	EventsDispatched uint64
	CallbackFailures uint64
	Overflows        uint64
	Registrations    int
}

type counters struct {
	cyclesStarted    atomic.Uint64
	cyclesSkipped    atomic.Uint64
	eventsDispatched atomic.Uint64
	callbackFailures atomic.Uint64
	overflows        atomic.Uint64
}

// Metrics returns the current counters.
func (e *Engine) Metrics() Metrics {
	e.mu.RLock()
	registrations := len(e.registrations)
	e.mu.RUnlock()

	return Metrics{
		CyclesStarted:    e.counters.cyclesStarted.Load(),
		CyclesSkipped:    e.counters.cyclesSkipped.Load(),
		EventsDispatched: e.counters.eventsDispatched.Load(),
		CallbackFailures: e.counters.callbackFailures.Load(),
		Overflows:        e.counters.overflows.Load(),
		Registrations:    registrations,
	}
}
