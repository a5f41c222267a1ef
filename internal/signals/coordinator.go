package signals

import (
	"os"
	"os/signal"
	"syscall"

	"warden/pkg/logging"
)

// Kind is a normalized asynchronous notification.
type Kind int

const (
	Unknown Kind = iota
	// ChildExited means one or more children may be waiting to be reaped.
	ChildExited
	// Terminate requests an orderly shutdown.
	Terminate
	// Interrupt is treated like Terminate.
	Interrupt
	// Reload requests a re-read of the service definitions.
	Reload
	// DumpStatus requests a state snapshot on the log sink.
	DumpStatus
)

func (k Kind) String() string {
	switch k {
	case ChildExited:
		return "child-exited"
	case Terminate:
		return "terminate"
	case Interrupt:
		return "interrupt"
	case Reload:
		return "reload"
	case DumpStatus:
		return "dump-status"
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) Kind {
	for _, k := range []Kind{ChildExited, Terminate, Interrupt, Reload, DumpStatus} {
		if k.String() == s {
			return k
		}
	}
	return Unknown
}

// Watched lists the OS signals the coordinator subscribes to.
var Watched = []os.Signal{
	syscall.SIGCHLD,
	syscall.SIGTERM,
	syscall.SIGINT,
	syscall.SIGHUP,
	syscall.SIGUSR1,
}

// KindFor maps an OS signal to its normalized kind.
func KindFor(sig os.Signal) Kind {
	switch sig {
	case syscall.SIGCHLD:
		return ChildExited
	case syscall.SIGTERM:
		return Terminate
	case syscall.SIGINT:
		return Interrupt
	case syscall.SIGHUP:
		return Reload
	case syscall.SIGUSR1:
		return DumpStatus
	}
	return Unknown
}

// Handler receives normalized notifications. Implementations must not
// block; the orchestrator only pushes an event onto its queue.
type Handler interface {
	HandleSignal(kind Kind)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(kind Kind)

func (f HandlerFunc) HandleSignal(kind Kind) { f(kind) }

// Coordinator is the single listener for OS signals.
type Coordinator struct {
	handler Handler
	ch      chan os.Signal
}

// NewCoordinator subscribes to Watched immediately, so no signal delivered
// between construction and Run is lost.
func NewCoordinator(handler Handler) *Coordinator {
	c := &Coordinator{
		handler: handler,
		// SIGCHLD coalesces anyway: one pending wakeup triggers a full reap.
		ch: make(chan os.Signal, 16),
	}
	signal.Notify(c.ch, Watched...)
	return c
}

// Run forwards signals to the handler until stopping is closed.
func (c *Coordinator) Run(stopping <-chan struct{}) {
	defer signal.Stop(c.ch)
	for {
		select {
		case <-stopping:
			return
		case sig := <-c.ch:
			kind := KindFor(sig)
			if kind == Unknown {
				continue
			}
			if kind != ChildExited {
				logging.Info("Signals", "Received %s (%s)", sig, kind)
			}
			c.handler.HandleSignal(kind)
		}
	}
}
