// Package session drives the login lifecycle: QR issuance, cooperative
// status polling, credential refresh, and logout. All state transitions are
// serialized through one mutex; network calls run outside the lock and the
// state is committed only once a terminal outcome is known, so an abandoned
// in-flight call never leaves a partial transition behind.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/livectl/internal/credential"
	"github.com/nextlevelbuilder/livectl/internal/platform"
	"github.com/nextlevelbuilder/livectl/internal/request"
)

// DefaultRefreshLead is how far before expiry Refresh starts exchanging the
// refresh token.
const DefaultRefreshLead = 24 * time.Hour

// Authenticator is the slice of the platform client the manager needs.
type Authenticator interface {
	QRIssue(ctx context.Context) (*platform.QRCode, error)
	QRPoll(ctx context.Context, authCode string) (platform.PollOutcome, *credential.Credential, error)
	Refresh(ctx context.Context, cred *credential.Credential) (*credential.Credential, error)
}

// Manager owns the process-wide SessionState.
type Manager struct {
	auth  Authenticator
	store credential.Store
	lead  time.Duration
	now   func() time.Time

	mu       sync.Mutex
	state    State
	qrCode   string // auth code of the outstanding QR token
	qrURL    string
	issuedAt time.Time
	cred     *credential.Credential
}

// NewManager creates a manager in the LoggedOut state. lead <= 0 selects
// DefaultRefreshLead.
func NewManager(auth Authenticator, store credential.Store, lead time.Duration) *Manager {
	if lead <= 0 {
		lead = DefaultRefreshLead
	}
	return &Manager{auth: auth, store: store, lead: lead, now: time.Now}
}

// Snapshot returns the current state for callers.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{State: m.state}
	switch m.state {
	case StateQRPending, StatePolling:
		snap.QRURL = m.qrURL
		snap.IssuedAt = m.issuedAt
	case StateAuthenticated:
		snap.AccountID = m.cred.AccountID
		snap.ExpiresAt = m.cred.ExpiresAt
	}
	return snap
}

// Credential returns a copy of the active credential. Fails unless the
// session is Authenticated.
func (m *Manager) Credential() (*credential.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return nil, request.NewError(request.KindAuthRejected, "not authenticated (state "+m.state.String()+")")
	}
	return m.cred.Clone(), nil
}

// Resume loads a persisted, unexpired credential and moves to Authenticated.
// Unlike Start it never issues a QR token: when nothing usable is stored the
// state is left alone.
func (m *Manager) Resume() Snapshot {
	m.mu.Lock()
	if m.state != StateLoggedOut {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap
	}
	m.mu.Unlock()

	stored, err := m.store.Load()
	if err != nil {
		slog.Warn("credential store unreadable, staying logged out", "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateLoggedOut && stored != nil && !stored.Expired(m.now()) {
		m.setAuthenticated(stored)
	}
	return m.snapshotLocked()
}

// Start resumes a persisted session when possible, otherwise requests a QR
// token and moves to QRPending. Safe to call again from LoggedOut/Expired.
func (m *Manager) Start(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if m.state == StateAuthenticated {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	m.mu.Unlock()

	stored, err := m.store.Load()
	if err != nil {
		// Storage trouble downgrades to an unauthenticated start, never a crash.
		slog.Warn("credential store unreadable, starting logged out", "error", err)
	}
	if stored != nil && !stored.Expired(m.now()) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.setAuthenticated(stored)
		return m.snapshotLocked(), nil
	}

	qr, err := m.auth.QRIssue(ctx)
	if err != nil {
		return m.Snapshot(), fmt.Errorf("start login: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateQRPending
	m.qrCode = qr.AuthCode
	m.qrURL = qr.URL
	m.issuedAt = m.now()
	m.cred = nil
	slog.Info("login qr issued")
	return m.snapshotLocked(), nil
}

// Poll performs one cooperative login tick. The caller drives the cadence;
// there is no internal timer. Outcomes:
//   - pending: state stays Polling, call again after your interval
//   - confirmed: credential persisted, state Authenticated
//   - expired or fatally rejected: state LoggedOut, restart with Start
func (m *Manager) Poll(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if m.state != StateQRPending && m.state != StatePolling {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, request.Validation("no login in progress (state %s)", snap.State)
	}
	authCode := m.qrCode
	m.mu.Unlock()

	outcome, cred, pollErr := m.auth.QRPoll(ctx, authCode)

	m.mu.Lock()
	defer m.mu.Unlock()

	// A restart or logout may have raced this poll; drop a stale result.
	if m.qrCode != authCode || (m.state != StateQRPending && m.state != StatePolling) {
		return m.snapshotLocked(), nil
	}

	if pollErr != nil {
		if re, ok := request.As(pollErr); ok && re.Kind.Retryable() {
			// Exhausted transport budget: the QR token may still be good,
			// leave the state for the next tick.
			return m.snapshotLocked(), pollErr
		}
		// A rejected QR token cannot become valid again.
		m.setLoggedOut()
		return m.snapshotLocked(), pollErr
	}

	switch outcome {
	case platform.PollPending:
		m.state = StatePolling
		return m.snapshotLocked(), nil
	case platform.PollExpired:
		slog.Info("login qr expired")
		m.setLoggedOut()
		return m.snapshotLocked(), nil
	case platform.PollConfirmed:
		m.setAuthenticated(cred)
		slog.Info("login confirmed", "account", cred.AccountID)
		if err := m.store.Save(cred); err != nil {
			// Session is usable in memory; surface the storage failure.
			return m.snapshotLocked(), request.Persistence(err)
		}
		return m.snapshotLocked(), nil
	}
	return m.snapshotLocked(), nil
}

// Refresh proactively exchanges the refresh token when the credential's
// expiry falls inside the lead window. Outside the window it is a no-op.
// A remote rejection moves the session to Expired and clears the store.
func (m *Manager) Refresh(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, request.Validation("refresh requires an authenticated session (state %s)", snap.State)
	}
	if !m.cred.ExpiresWithin(m.now(), m.lead) {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	current := m.cred.Clone()
	m.mu.Unlock()

	fresh, err := m.auth.Refresh(ctx, current)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated || m.cred.AccountID != current.AccountID {
		// Logged out or re-logged-in while the exchange was in flight.
		return m.snapshotLocked(), nil
	}

	if err != nil {
		if request.IsKind(err, request.KindAuthRejected) {
			slog.Warn("refresh rejected, session expired", "account", current.AccountID)
			m.state = StateExpired
			m.cred = nil
			if clearErr := m.store.Clear(); clearErr != nil {
				slog.Warn("failed to clear credential store", "error", clearErr)
			}
		}
		return m.snapshotLocked(), err
	}

	m.cred = fresh
	if saveErr := m.store.Save(fresh); saveErr != nil {
		return m.snapshotLocked(), request.Persistence(saveErr)
	}
	slog.Info("credential refreshed", "account", fresh.AccountID, "expires_at", fresh.ExpiresAt)
	return m.snapshotLocked(), nil
}

// Logout clears persisted state and moves to LoggedOut from any state.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLoggedOut()
	if err := m.store.Clear(); err != nil {
		return request.Persistence(err)
	}
	slog.Info("logged out")
	return nil
}

// Expire marks the session expired after a remote auth rejection observed by
// another component. The store is cleared, the caller must re-authenticate.
func (m *Manager) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return
	}
	slog.Warn("session expired by remote auth rejection")
	m.state = StateExpired
	m.cred = nil
	if err := m.store.Clear(); err != nil {
		slog.Warn("failed to clear credential store", "error", err)
	}
}

func (m *Manager) setAuthenticated(cred *credential.Credential) {
	m.state = StateAuthenticated
	m.cred = cred
	m.qrCode = ""
	m.qrURL = ""
	m.issuedAt = time.Time{}
}

func (m *Manager) setLoggedOut() {
	m.state = StateLoggedOut
	m.cred = nil
	m.qrCode = ""
	m.qrURL = ""
	m.issuedAt = time.Time{}
}
