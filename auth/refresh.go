package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/lMazer/pocket-finance-dashboard/session"
)

// refreshCall is the in-flight operation handle for a single-flight refresh.
// Waiters block on done and then read the shared outcome.
type refreshCall struct {
	done chan struct{}
	sess *session.Session
	err  error
}

// RefreshSession exchanges the current refresh token for a new session. At
// most one refresh is in flight at any time: callers arriving while one is
// outstanding join it and receive the same outcome instead of spending another
// refresh token. The backend rotates refresh tokens, so redundant concurrent
// calls would invalidate each other and force spurious logouts.
//
// On success the new session replaces the store's value. On failure the store
// is left untouched; callers decide whether to tear the session down.
func (s *Service) RefreshSession(ctx context.Context) (*session.Session, error) {
	s.mu.Lock()
	if call := s.inflight; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.sess, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	current := s.store.Current()
	if current == nil || current.RefreshToken == "" {
		s.mu.Unlock()
		return nil, NoRefreshTokenErr
	}

	call := &refreshCall{done: make(chan struct{})}
	s.inflight = call
	s.mu.Unlock()

	// The flight outlives the initiating caller's context: joined waiters
	// must not see a cancellation that only concerned the initiator.
	call.sess, call.err = s.doRefresh(context.WithoutCancel(ctx), current.RefreshToken)

	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()
	close(call.done)

	return call.sess, call.err
}

func (s *Service) doRefresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	var resp authResponse
	if err := s.api.Post(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, errors.Wrap(err, "[Service.doRefresh] POST /auth/refresh")
	}

	sess := s.toSession(resp)
	s.setSession(sess)
	s.log.Debug().Time("expires_at", sess.ExpiryTime()).Msg("session refreshed")
	return &sess, nil
}

// scheduleRefresh arms the one-shot proactive refresh for the given session,
// replacing any pending timer. Rescheduling is cancel-then-arm: two live timers
// never coexist.
func (s *Service) scheduleRefresh(sess session.Session) {
	delay := sess.ExpiryTime().Sub(s.nowTime()) - s.refreshLead
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, s.proactiveRefresh)
}

// proactiveRefresh fires ahead of expiry. A fire after logout is a no-op; the
// session's existence is re-checked here rather than trusting the schedule.
func (s *Service) proactiveRefresh() {
	if !s.store.HasSession() {
		return
	}
	if _, err := s.RefreshSession(context.Background()); err != nil {
		s.log.Warn().Err(err).Msg("proactive refresh failed, clearing session")
		s.ClearSession()
	}
}
