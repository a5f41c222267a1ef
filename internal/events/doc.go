// Package events defines the typed events consumed by the orchestrator core
// loop and the ordered queue that carries them.
//
// Every asynchronous source (the signal coordinator, process reaping,
// readiness listeners, timers, the control API) only ever talks to the core
// by pushing an Event onto a Sink. The loop is the single consumer:
//
//	q := events.NewQueue()
//	go func() { q.Push(events.Shutdown{}) }()
//	for {
//		ev, ok := q.Pop(stopping)
//		if !ok {
//			return
//		}
//		handle(ev)
//	}
//
// Tests inject synthetic events the same way, without any real processes or
// signal delivery.
package events
