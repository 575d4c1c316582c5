// Package auth owns the session lifecycle of the client: login and logout, the
// single-flight token refresh with its proactive schedule, the startup
// bootstrap, and the HTTP gatekeeper that attaches credentials to outgoing
// calls and recovers once from a stale access token.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/lMazer/pocket-finance-dashboard/api"
	"github.com/lMazer/pocket-finance-dashboard/session"
)

// DefaultRefreshLead is how far ahead of access-token expiry the proactive
// refresh fires.
const DefaultRefreshLead = time.Minute

// LoginRequest is the credential pair sent to /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the wire shape shared by /auth/login and /auth/refresh.
type authResponse struct {
	TokenType    string       `json:"tokenType"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int          `json:"expiresIn"` // seconds
	User         session.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Service drives the session lifecycle against the backend's auth endpoints.
// It is the single writer of the session store: every mutation (login, refresh,
// profile patch, logout) goes through it so the proactive refresh timer always
// tracks the live session.
type Service struct {
	api     *api.Client
	store   *session.Store
	log     zerolog.Logger
	nowTime func() time.Time

	refreshLead time.Duration

	mu       sync.Mutex
	inflight *refreshCall
	timer    *time.Timer
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithLogger sets the service's logger.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// WithRefreshLead overrides the proactive refresh lead time.
func WithRefreshLead(lead time.Duration) ServiceOption {
	return func(s *Service) {
		s.refreshLead = lead
	}
}

// NewService initializes a Service with its required dependencies.
func NewService(apiClient *api.Client, store *session.Store, options ...ServiceOption) (*Service, error) {
	if apiClient == nil {
		return nil, errors.New("[NewService] api client is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] session store is required")
	}

	s := &Service{
		api:         apiClient,
		store:       store,
		log:         zerolog.Nop(),
		nowTime:     time.Now,
		refreshLead: DefaultRefreshLead,
	}
	for _, opt := range options {
		opt(s)
	}

	// A session restored from disk needs its refresh schedule re-armed.
	if sess := store.Current(); sess != nil {
		s.scheduleRefresh(*sess)
	}

	return s, nil
}

// Store returns the session store the service writes to.
func (s *Service) Store() *session.Store {
	return s.store
}

// Login exchanges the credential pair for a session and installs it.
func (s *Service) Login(ctx context.Context, email, password string) (*session.Session, error) {
	var resp authResponse
	err := s.api.Post(ctx, "/auth/login", LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		if api.IsUnauthorized(err) {
			return nil, InvalidCredentialsErr
		}
		return nil, errors.Wrap(err, "[Service.Login] POST /auth/login")
	}

	sess := s.toSession(resp)
	s.setSession(sess)
	s.log.Info().Str("email", sess.User.Email).Msg("logged in")
	return &sess, nil
}

// Logout tells the backend to revoke the session, best effort, and clears the
// local session regardless of the network outcome.
func (s *Service) Logout(ctx context.Context) error {
	if s.store.Current() == nil {
		return nil
	}

	err := s.api.Post(ctx, "/auth/logout", struct{}{}, nil)
	s.ClearSession()
	if err != nil {
		return errors.Wrap(err, "[Service.Logout] POST /auth/logout")
	}
	s.log.Info().Msg("logged out")
	return nil
}

// Me fetches the current user's profile.
func (s *Service) Me(ctx context.Context) (*session.User, error) {
	var user session.User
	if err := s.api.Get(ctx, "/me", nil, &user); err != nil {
		return nil, errors.Wrap(err, "[Service.Me] GET /me")
	}
	return &user, nil
}

// Bootstrap reconciles a possibly-stale persisted session with the backend.
// It runs once at process start, before the client is considered ready: an
// absent session succeeds immediately, a present one is verified via the
// profile endpoint with one refresh-and-retry, and anything beyond that
// degrades to an anonymous start instead of blocking.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.store.Current() == nil {
		return nil
	}

	user, err := s.Me(ctx)
	if err == nil {
		s.patchProfile(*user)
		return nil
	}
	s.log.Debug().Err(err).Msg("bootstrap profile fetch failed, refreshing")

	if _, err := s.RefreshSession(ctx); err != nil {
		s.log.Warn().Err(err).Msg("bootstrap refresh failed, starting anonymous")
		s.ClearSession()
		return nil
	}

	user, err = s.Me(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("bootstrap profile retry failed, starting anonymous")
		s.ClearSession()
		return nil
	}
	s.patchProfile(*user)
	return nil
}

// patchProfile overwrites only the user field of the live session, keeping
// tokens and expiry intact. Racing a logout makes it a no-op.
func (s *Service) patchProfile(user session.User) {
	current := s.store.Current()
	if current == nil {
		return
	}
	patched := *current
	patched.User = user
	s.setSession(patched)
}

// setSession installs a new session value and re-arms the proactive refresh.
func (s *Service) setSession(sess session.Session) {
	s.store.Set(sess)
	s.scheduleRefresh(sess)
}

// ClearSession drops the session and cancels any pending proactive refresh.
func (s *Service) ClearSession() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.store.Clear()
}

// toSession converts a token response into a session value, anchoring the
// relative expiresIn to an absolute instant.
func (s *Service) toSession(resp authResponse) session.Session {
	return session.Session{
		TokenType:    resp.TokenType,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.nowTime().Add(time.Duration(resp.ExpiresIn) * time.Second).UnixMilli(),
		User:         resp.User,
	}
}
