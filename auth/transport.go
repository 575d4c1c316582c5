package auth

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lMazer/pocket-finance-dashboard/session"
)

// SessionRefresher is what the gatekeeper needs from the refresh coordinator.
// *Service satisfies it.
type SessionRefresher interface {
	RefreshSession(ctx context.Context) (*session.Session, error)
	ClearSession()
}

// retryMarkerKey marks a request as the one allowed retry. It lives on the
// retried request's context, never in shared state, so concurrent requests
// cannot touch each other's retry budget.
type retryMarkerKey struct{}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryMarkerKey{}, true)
}

func wasRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retryMarkerKey{}).(bool)
	return retried
}

// Transport is the HTTP gatekeeper: an http.RoundTripper that attaches bearer
// credentials to backend calls and recovers exactly once from an unauthorized
// response by refreshing the session and re-issuing the request.
//
// Requests outside the API path, and the login/refresh endpoints themselves,
// pass through untouched - a stale token must never reach the login endpoint,
// and refreshing the refresh call would recurse.
type Transport struct {
	store     *session.Store
	refresher SessionRefresher
	next      http.RoundTripper
	log       zerolog.Logger

	apiPath  string
	excluded []string

	// onLoginRedirect runs when the session is torn down because authorization
	// could not be recovered. The CLI and UI layers hook navigation here.
	onLoginRedirect func()
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithNext sets the underlying round tripper (default http.DefaultTransport).
func WithNext(next http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.next = next
	}
}

// WithAPIPath sets the path prefix below which requests are authenticated
// (default "/api").
func WithAPIPath(path string) TransportOption {
	return func(t *Transport) {
		t.apiPath = strings.TrimRight(path, "/")
	}
}

// WithLoginRedirect sets the hook invoked after an unrecoverable
// authorization failure tears the session down.
func WithLoginRedirect(fn func()) TransportOption {
	return func(t *Transport) {
		t.onLoginRedirect = fn
	}
}

// WithTransportLogger sets the transport's logger.
func WithTransportLogger(log zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.log = log
	}
}

// NewTransport creates the gatekeeper around the given store. The refresher
// may be nil at construction time and supplied later via SetRefresher: the
// refresh coordinator's own HTTP client carries this transport, so one of the
// two has to be wired up after the other.
func NewTransport(store *session.Store, refresher SessionRefresher, options ...TransportOption) *Transport {
	t := &Transport{
		store:     store,
		refresher: refresher,
		next:      http.DefaultTransport,
		log:       zerolog.Nop(),
		apiPath:   "/api",
	}
	for _, opt := range options {
		opt(t)
	}
	t.excluded = []string{
		t.apiPath + "/auth/login",
		t.apiPath + "/auth/refresh",
	}
	return t
}

// SetRefresher wires in the refresh coordinator. Must be called before the
// first request when NewTransport was given a nil refresher.
func (t *Transport) SetRefresher(refresher SessionRefresher) {
	t.refresher = refresher
}

// RoundTrip implements the per-request authorization state machine. Every path
// through it is terminal after at most one retry.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !strings.HasPrefix(req.URL.Path, t.apiPath) || t.excludedPath(req.URL.Path) {
		return t.next.RoundTrip(req)
	}

	// The session is read once and treated as a stable snapshot for this
	// attempt, even if a concurrent refresh replaces it mid-flight.
	resp, err := t.next.RoundTrip(t.withToken(req, t.store.Current()))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if wasRetried(req.Context()) {
		return resp, nil
	}

	if !t.store.HasSession() || t.refresher == nil {
		t.logout()
		return resp, nil
	}

	retry, ok := t.rewind(req)
	if !ok {
		t.log.Debug().Str("path", req.URL.Path).Msg("unauthorized response not retried: body not replayable")
		return resp, nil
	}
	drain(resp)

	if _, err := t.refresher.RefreshSession(req.Context()); err != nil {
		t.logout()
		return nil, err
	}

	t.log.Debug().Str("path", req.URL.Path).Msg("retrying request with refreshed token")
	retry = retry.WithContext(markRetried(req.Context()))
	return t.next.RoundTrip(t.withToken(retry, t.store.Current()))
}

func (t *Transport) excludedPath(path string) bool {
	for _, prefix := range t.excluded {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// withToken returns a clone of req carrying the session's bearer credential.
// An absent session sends the request bare and lets the backend reject it.
func (t *Transport) withToken(req *http.Request, sess *session.Session) *http.Request {
	out := req.Clone(req.Context())
	if sess == nil || sess.AccessToken == "" {
		return out
	}
	scheme := sess.TokenType
	if scheme == "" {
		scheme = "Bearer"
	}
	out.Header.Set("Authorization", scheme+" "+sess.AccessToken)
	return out
}

// rewind produces a re-issuable copy of req. Requests with a consumed,
// non-replayable body cannot be retried.
func (t *Transport) rewind(req *http.Request) (*http.Request, bool) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	out.Body = body
	return out, true
}

func (t *Transport) logout() {
	if t.refresher != nil {
		t.refresher.ClearSession()
	} else {
		t.store.Clear()
	}
	if t.onLoginRedirect != nil {
		t.onLoginRedirect()
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
