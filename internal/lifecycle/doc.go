// Package lifecycle implements the per-instance service state machine on top
// of github.com/looplab/fsm.
//
// States are api.StateInactive (initial, and terminal for a clean stop),
// Starting, Active, Stopping, Restarting and Failed (terminal until a manual
// start). The legal transitions are listed in Transitions; anything else is
// rejected with an InvalidTransitionError and leaves the state unchanged.
package lifecycle
