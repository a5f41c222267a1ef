package api

import "time"

// StateChange is published to subscribers every time an instance moves
// between lifecycle states. To is empty when the instance was removed.
type StateChange struct {
	Name      string       `json:"name"`
	From      ServiceState `json:"from"`
	To        ServiceState `json:"to"`
	Reason    string       `json:"reason,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
