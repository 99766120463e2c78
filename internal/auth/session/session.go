// Package session owns the authoritative in-memory session state. All UI
// surfaces read it; only the six operations defined here write it.
//
// The session is a volatile projection of the persisted credential bundle:
// it starts all-false at boot and is rebuilt by validating whatever the
// credential store holds against the server. Losing or corrupting the
// bundle degrades to "not authenticated", never to a crash or a stuck
// loading state.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"bookden/internal/api"
	"bookden/internal/auth/credentials"
	"bookden/internal/platform/metrics"
	"bookden/pkg/domainerrors"
	"bookden/pkg/platform/sanitize"
)

const (
	// logoutNotifyTimeout bounds the best-effort server notify during teardown.
	logoutNotifyTimeout = 5 * time.Second
	// refreshTimeout bounds a coalesced token refresh.
	refreshTimeout = 15 * time.Second
)

// Navigator is invoked when the session must return the user to the login
// surface. The CLI installs its own; tests install counters.
type Navigator interface {
	ToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() { f() }

// State is a point-in-time snapshot of the session.
type State struct {
	User           *api.User
	Authenticated  bool
	Loading        bool
	APIInitialized bool
	Err            error
}

// Manager implements the session state machine.
type Manager struct {
	account *api.AccountClient
	creds   credentials.Store
	nav     Navigator
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	state State

	// refreshGroup coalesces concurrent refresh calls: simultaneous 401s
	// across in-flight requests share one upstream refresh.
	refreshGroup singleflight.Group

	// forcingLogout elects a single teardown winner when cascading 401s
	// invoke ForceLogout concurrently.
	forcingLogout atomic.Bool
}

// Config wires the manager's collaborators.
type Config struct {
	Account     *api.AccountClient
	Credentials credentials.Store
	Navigator   Navigator
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// NewManager builds a session manager with an all-false initial state.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	nav := cfg.Navigator
	if nav == nil {
		nav = NavigatorFunc(func() {})
	}
	return &Manager{
		account: cfg.Account,
		creds:   cfg.Credentials,
		nav:     nav,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// SetAccount installs the account client. Wiring is two-step: the HTTP
// transport needs the manager's hooks before the client it serves can be
// built. Call before any session operation runs.
func (m *Manager) SetAccount(account *api.AccountClient) {
	m.account = account
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetAPIInitialized records that the HTTP client has been configured. The
// guard refuses to evaluate authentication before this is set.
func (m *Manager) SetAPIInitialized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.APIInitialized = true
}

// AccessToken implements authtransport.TokenSource, reading the stored
// bundle fresh at send time.
func (m *Manager) AccessToken() string {
	bundle, _ := m.creds.Load()
	return bundle.AccessToken
}

// Login authenticates and establishes a session. Failures populate the
// state's Err for form display and leave stored credentials untouched.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.beginOperation()
	defer m.endOperation()

	payload, err := m.account.Authenticate(ctx, username, password)
	if err != nil {
		m.logger.WarnContext(ctx, "login failed", "username", username, "error", sanitize.ForLog(err))
		m.setFailure(err)
		return err
	}
	return m.establish(ctx, payload)
}

// Register creates an account and establishes a session, with the same
// failure semantics as Login.
func (m *Manager) Register(ctx context.Context, data api.RegisterData) error {
	m.beginOperation()
	defer m.endOperation()

	payload, err := m.account.Register(ctx, data)
	if err != nil {
		m.logger.WarnContext(ctx, "registration failed", "username", data.Username, "error", sanitize.ForLog(err))
		m.setFailure(err)
		return err
	}
	return m.establish(ctx, payload)
}

// establish persists the server-issued credential bundle and marks the
// session authenticated. A new login replaces the whole bundle; tokens are
// never merged across logins.
func (m *Manager) establish(ctx context.Context, payload *api.AuthPayload) error {
	err := m.creds.Replace(credentials.Bundle{
		AccessToken:  payload.Token,
		RefreshToken: payload.Refresh,
		Email:        payload.User.Email,
	})
	if err != nil {
		wrapped := domainerrors.Wrap(err, domainerrors.CodeInternal, "persisting credentials")
		m.setFailure(wrapped)
		return wrapped
	}

	user := payload.User
	m.mu.Lock()
	m.state.User = &user
	m.state.Authenticated = true
	m.state.Err = nil
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session established", "username", user.Username)
	return nil
}

// Logout notifies the server best-effort, then unconditionally clears local
// credentials, resets the session, and navigates to the login surface.
func (m *Manager) Logout(ctx context.Context) error {
	m.beginOperation()
	defer m.endOperation()

	if err := m.account.Logout(ctx); err != nil {
		// Server notify is best-effort; local teardown proceeds regardless.
		m.logger.WarnContext(ctx, "server logout failed", "error", sanitize.ForLog(err))
	}

	m.teardown()
	m.nav.ToLogin()
	return nil
}

// RefreshToken mints a new access token from the stored refresh token and
// persists it (access token only; the refresh token and email survive).
// All failures, including network errors, report false and mark the session
// unauthenticated; this never returns an error into caller code.
//
// Concurrent calls coalesce onto a single upstream refresh.
func (m *Manager) RefreshToken(ctx context.Context) bool {
	ok, _, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		// The triggering request may be cancelled while other callers still
		// depend on this shared refresh; detach from its cancellation.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refreshOnce(refreshCtx), nil
	})
	success, _ := ok.(bool)
	return success
}

func (m *Manager) refreshOnce(ctx context.Context) bool {
	bundle, _ := m.creds.Load()
	if bundle.RefreshToken == "" {
		m.metrics.ObserveRefresh(false)
		m.setUnauthenticated()
		return false
	}

	access, err := m.account.RefreshToken(ctx, bundle.RefreshToken)
	if err != nil || access == "" {
		m.logger.WarnContext(ctx, "token refresh failed", "error", sanitize.ForLog(err))
		m.metrics.ObserveRefresh(false)
		m.setUnauthenticated()
		return false
	}

	if err := m.creds.Save(credentials.Bundle{AccessToken: access}); err != nil {
		m.logger.ErrorContext(ctx, "persisting refreshed token failed", "error", sanitize.ForLog(err))
		m.metrics.ObserveRefresh(false)
		m.setUnauthenticated()
		return false
	}

	m.mu.Lock()
	m.state.Authenticated = true
	m.mu.Unlock()
	m.metrics.ObserveRefresh(true)
	return true
}

// Refresh implements authtransport.SessionHooks.
func (m *Manager) Refresh(ctx context.Context) bool {
	return m.RefreshToken(ctx)
}

// VerifyToken checks a token/subject pair against the server. With empty
// arguments it verifies the stored bundle. It never mutates session state
// and swallows every failure into false.
func (m *Manager) VerifyToken(ctx context.Context, token, email string) bool {
	if token == "" || email == "" {
		bundle, _ := m.creds.Load()
		if token == "" {
			token = bundle.AccessToken
		}
		if email == "" {
			email = bundle.Email
		}
	}
	if token == "" || email == "" {
		return false
	}
	return m.account.VerifyToken(ctx, token, email)
}

// Restore rebuilds the session from stored credentials at boot: verify the
// access token, fall back to one refresh attempt, and set Authenticated
// accordingly. Loading always clears, whatever path exits.
func (m *Manager) Restore(ctx context.Context) {
	bundle, _ := m.creds.Load()
	if bundle.AccessToken == "" && bundle.RefreshToken == "" {
		// Nothing persisted; stay unauthenticated without a loading cycle.
		m.setUnauthenticated()
		return
	}

	m.beginOperation()
	defer m.endOperation()

	authenticated := false
	if bundle.AccessToken != "" && bundle.Email != "" &&
		m.account.VerifyToken(ctx, bundle.AccessToken, bundle.Email) {
		authenticated = true
	} else {
		// Through the shared singleflight, so a boot-time restore racing an
		// in-flight 401 refresh does not double-hit the upstream.
		authenticated = m.RefreshToken(ctx)
	}

	m.mu.Lock()
	m.state.Authenticated = authenticated
	m.mu.Unlock()

	if authenticated {
		m.loadProfile(ctx)
	}
}

// GetProfile refreshes the session's user record from the server.
func (m *Manager) GetProfile(ctx context.Context) error {
	user, err := m.account.Profile(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.state.User = user
	m.mu.Unlock()
	return nil
}

func (m *Manager) loadProfile(ctx context.Context) {
	if err := m.GetProfile(ctx); err != nil {
		// The session stays authenticated; the profile is cosmetic here.
		m.logger.WarnContext(ctx, "loading profile failed", "error", sanitize.ForLog(err))
	}
}

// ForceLogout implements authtransport.SessionHooks: unrecoverable refresh
// failure tears the session down. It is idempotent; once the session is
// already torn down it does nothing, so cascading 401s navigate to the
// login surface exactly once.
func (m *Manager) ForceLogout() {
	// One winner per cascade; losers return while the teardown, including
	// the slow server notify, is still in flight. The liveness check runs
	// after the election so a caller racing the winner cannot observe the
	// pre-teardown state and navigate a second time.
	if !m.forcingLogout.CompareAndSwap(false, true) {
		return
	}
	defer m.forcingLogout.Store(false)

	bundle, _ := m.creds.Load()
	m.mu.Lock()
	wasLive := m.state.Authenticated || !bundle.IsZero()
	m.mu.Unlock()
	if !wasLive {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), logoutNotifyTimeout)
	defer cancel()
	if err := m.account.Logout(ctx); err != nil {
		m.logger.Warn("server logout failed during forced logout", "error", sanitize.ForLog(err))
	}

	m.teardown()
	m.metrics.IncrementForcedLogouts()
	m.nav.ToLogin()
}

// teardown clears credentials and resets the session to defaults, keeping
// only the API-initialized flag.
func (m *Manager) teardown() {
	if err := m.creds.Clear(); err != nil {
		m.logger.Warn("clearing credentials failed", "error", sanitize.ForLog(err))
	}
	m.mu.Lock()
	m.state.User = nil
	m.state.Authenticated = false
	m.state.Err = nil
	m.mu.Unlock()
}

func (m *Manager) beginOperation() {
	m.mu.Lock()
	m.state.Loading = true
	m.state.Err = nil
	m.mu.Unlock()
}

func (m *Manager) endOperation() {
	m.mu.Lock()
	m.state.Loading = false
	m.mu.Unlock()
}

func (m *Manager) setFailure(err error) {
	m.mu.Lock()
	m.state.Err = err
	m.state.Authenticated = false
	m.mu.Unlock()
}

func (m *Manager) setUnauthenticated() {
	m.mu.Lock()
	m.state.Authenticated = false
	m.mu.Unlock()
}
