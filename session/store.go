package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store is the single source of truth for "is there a usable session, and what
// is it". The in-memory value is authoritative; the Storage mirror only exists
// to survive restarts, and failures to keep it in sync are advisory.
type Store struct {
	mu      sync.RWMutex
	current *Session

	storage Storage
	log     zerolog.Logger
	nowTime func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store's logger.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// NewStore creates a Store and attempts to load a persisted session. A record
// that cannot be parsed, is missing either token, or is already expired is
// discarded silently: corruption is treated as absence, never as an error.
func NewStore(storage Storage, options ...StoreOption) *Store {
	s := &Store{
		storage: storage,
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.current = s.loadStored()
	return s
}

// Current returns the live session value, or nil when none exists. The returned
// value is a stable snapshot: the store never mutates a session in place, it
// only replaces the whole value.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentUser returns the cached profile of the live session, or nil.
func (s *Store) CurrentUser() *User {
	sess := s.Current()
	if sess == nil {
		return nil
	}
	user := sess.User
	return &user
}

// AccessToken returns the live access token, or "" when no session exists.
func (s *Store) AccessToken() string {
	sess := s.Current()
	if sess == nil {
		return ""
	}
	return sess.AccessToken
}

// IsAuthenticated reports whether a session exists and its access token has not
// expired yet.
func (s *Store) IsAuthenticated() bool {
	sess := s.Current()
	return sess != nil && !sess.Expired(s.nowTime())
}

// HasSession reports whether a session with a usable refresh token exists,
// regardless of access-token expiry. It distinguishes "fully logged out" from
// "expired but recoverable".
func (s *Store) HasSession() bool {
	sess := s.Current()
	return sess != nil && sess.RefreshToken != ""
}

// Set replaces the live session wholesale and mirrors it to storage. A failing
// mirror write is logged and swallowed; the in-memory value stands regardless.
func (s *Store) Set(sess Session) {
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	data, err := json.Marshal(sess)
	if err != nil {
		s.log.Warn().Err(err).Msg("session not persisted: marshal failed")
		return
	}
	if err := s.storage.Save(data); err != nil {
		s.log.Warn().Err(err).Msg("session not persisted")
	}
}

// Clear drops the live session and removes the mirror. Storage failures follow
// the same advisory rule as Set.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.storage.Remove(); err != nil {
		s.log.Warn().Err(err).Msg("stored session not removed")
	}
}

func (s *Store) loadStored() *Session {
	data, err := s.storage.Load()
	if err != nil {
		if err != ErrNotStored {
			s.log.Debug().Err(err).Msg("stored session unreadable, starting anonymous")
		}
		return nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.log.Debug().Err(err).Msg("stored session malformed, starting anonymous")
		return nil
	}
	if !sess.Valid() {
		return nil
	}

	sess.recoverExpiry()
	if sess.ExpiresAt != 0 && sess.Expired(s.nowTime()) {
		if err := s.storage.Remove(); err != nil {
			s.log.Debug().Err(err).Msg("expired stored session not removed")
		}
		return nil
	}

	return &sess
}
