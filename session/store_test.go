package session_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/lMazer/pocket-finance-dashboard/session"
)

// fakeStorage is an in-memory Storage with injectable failures.
type fakeStorage struct {
	data       []byte
	saveErr    error
	removeErr  error
	saveCalls  int
	removeCall int
}

func (f *fakeStorage) Load() ([]byte, error) {
	if f.data == nil {
		return nil, session.ErrNotStored
	}
	return f.data, nil
}

func (f *fakeStorage) Save(data []byte) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.data = data
	return nil
}

func (f *fakeStorage) Remove() error {
	f.removeCall++
	if f.removeErr != nil {
		return f.removeErr
	}
	f.data = nil
	return nil
}

func storedSession(t *testing.T, sess session.Session) []byte {
	t.Helper()
	data, err := json.Marshal(sess)
	require.NoError(t, err)
	return data
}

func testSession(expiresAt int64) session.Session {
	return session.Session{
		TokenType:    "Bearer",
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresAt:    expiresAt,
		User:         session.User{ID: "u1", Email: "demo@pocket.local", FullName: "Demo User"},
	}
}

func TestNewStore_Load(t *testing.T) {
	now := time.Now()
	nowFunc := func() time.Time { return now }

	t.Run("valid persisted session is restored", func(t *testing.T) {
		storage := &fakeStorage{data: storedSession(t, testSession(now.Add(time.Hour).UnixMilli()))}
		store := session.NewStore(storage, session.WithNowTime(nowFunc))

		sess := store.Current()
		require.NotNil(t, sess)
		require.Equal(t, "a1", sess.AccessToken)
		require.True(t, store.IsAuthenticated())
		require.True(t, store.HasSession())
	})

	t.Run("no persisted session starts anonymous", func(t *testing.T) {
		store := session.NewStore(&fakeStorage{}, session.WithNowTime(nowFunc))
		require.Nil(t, store.Current())
		require.False(t, store.IsAuthenticated())
		require.False(t, store.HasSession())
	})

	t.Run("malformed payload is treated as absence", func(t *testing.T) {
		storage := &fakeStorage{data: []byte("{not json")}
		store := session.NewStore(storage, session.WithNowTime(nowFunc))
		require.Nil(t, store.Current())
	})

	t.Run("missing refresh token is treated as absence", func(t *testing.T) {
		sess := testSession(now.Add(time.Hour).UnixMilli())
		sess.RefreshToken = ""
		storage := &fakeStorage{data: storedSession(t, sess)}

		store := session.NewStore(storage, session.WithNowTime(nowFunc))
		require.Nil(t, store.Current())
		require.False(t, store.HasSession())
	})

	t.Run("missing access token is treated as absence", func(t *testing.T) {
		sess := testSession(now.Add(time.Hour).UnixMilli())
		sess.AccessToken = ""
		storage := &fakeStorage{data: storedSession(t, sess)}

		store := session.NewStore(storage, session.WithNowTime(nowFunc))
		require.Nil(t, store.Current())
	})

	t.Run("expired persisted session is discarded and removed", func(t *testing.T) {
		storage := &fakeStorage{data: storedSession(t, testSession(now.Add(-time.Minute).UnixMilli()))}
		store := session.NewStore(storage, session.WithNowTime(nowFunc))

		require.Nil(t, store.Current())
		require.Equal(t, 1, storage.removeCall)
	})

	t.Run("missing expiry is recovered from the access token", func(t *testing.T) {
		exp := now.Add(30 * time.Minute)
		token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(exp),
		}).SignedString([]byte("test-key"))
		require.NoError(t, err)

		sess := testSession(0)
		sess.AccessToken = token
		storage := &fakeStorage{data: storedSession(t, sess)}

		store := session.NewStore(storage, session.WithNowTime(nowFunc))
		restored := store.Current()
		require.NotNil(t, restored)
		require.Equal(t, exp.Truncate(time.Second).UnixMilli(), restored.ExpiresAt)
		require.True(t, store.IsAuthenticated())
	})
}

func TestStore_SetAndClear(t *testing.T) {
	now := time.Now()
	nowFunc := func() time.Time { return now }

	t.Run("set persists and replaces wholesale", func(t *testing.T) {
		storage := &fakeStorage{}
		store := session.NewStore(storage, session.WithNowTime(nowFunc))

		first := testSession(now.Add(time.Hour).UnixMilli())
		store.Set(first)
		snapshot := store.Current()

		second := first
		second.AccessToken = "a2"
		store.Set(second)

		// The earlier snapshot is untouched by the replacement.
		require.Equal(t, "a1", snapshot.AccessToken)
		require.Equal(t, "a2", store.Current().AccessToken)

		var persisted session.Session
		require.NoError(t, json.Unmarshal(storage.data, &persisted))
		require.Equal(t, "a2", persisted.AccessToken)
	})

	t.Run("clear drops the session and the mirror", func(t *testing.T) {
		storage := &fakeStorage{}
		store := session.NewStore(storage, session.WithNowTime(nowFunc))

		store.Set(testSession(now.Add(time.Hour).UnixMilli()))
		store.Clear()

		require.Nil(t, store.Current())
		require.Nil(t, storage.data)
	})

	t.Run("persistence failures are advisory", func(t *testing.T) {
		storage := &fakeStorage{saveErr: errors.New("quota exceeded"), removeErr: errors.New("io error")}
		store := session.NewStore(storage, session.WithNowTime(nowFunc))

		store.Set(testSession(now.Add(time.Hour).UnixMilli()))
		require.NotNil(t, store.Current())
		require.True(t, store.IsAuthenticated())

		store.Clear()
		require.Nil(t, store.Current())
	})
}

func TestStore_DerivedFacts(t *testing.T) {
	now := time.Now()
	store := session.NewStore(&fakeStorage{}, session.WithNowTime(func() time.Time { return now }))

	t.Run("expired session is recoverable but not authenticated", func(t *testing.T) {
		store.Set(testSession(now.Add(-time.Minute).UnixMilli()))

		require.False(t, store.IsAuthenticated())
		require.True(t, store.HasSession())
	})

	t.Run("current user is the cached profile", func(t *testing.T) {
		store.Set(testSession(now.Add(time.Hour).UnixMilli()))

		user := store.CurrentUser()
		require.NotNil(t, user)
		require.Equal(t, "demo@pocket.local", user.Email)
		require.Equal(t, "a1", store.AccessToken())
	})

	t.Run("no session means no user and no token", func(t *testing.T) {
		store.Clear()
		require.Nil(t, store.CurrentUser())
		require.Empty(t, store.AccessToken())
	})
}
