package session

import "time"

// State is the login lifecycle phase. Exactly one Manager exists per process
// and its transition methods are the only mutator.
type State int

const (
	StateLoggedOut State = iota
	StateQRPending
	StatePolling
	StateAuthenticated
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateQRPending:
		return "qr_pending"
	case StatePolling:
		return "polling"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// Snapshot is a point-in-time copy of the session state for callers.
type Snapshot struct {
	State     State     `json:"state"`
	QRURL     string    `json:"qr_url,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	AccountID string    `json:"account_id,omitempty"`
	ExpiresAt int64     `json:"expires_at,omitempty"`
}
