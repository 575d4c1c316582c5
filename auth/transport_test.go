package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lMazer/pocket-finance-dashboard/api"
	"github.com/lMazer/pocket-finance-dashboard/session"
)

func TestTransport_TokenAttachment(t *testing.T) {
	t.Run("api requests carry the bearer token", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed("a1", "r1", time.Now().Add(time.Hour))

		var gotAuth string
		fx.backend.handle("GET /api/ping", func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, fx.client.Get(context.Background(), "/ping", nil, nil))
		require.Equal(t, "Bearer a1", gotAuth)
	})

	t.Run("anonymous api requests go out bare", func(t *testing.T) {
		fx := newFixture(t)

		var gotAuth string
		fx.backend.handle("GET /api/open", func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, fx.client.Get(context.Background(), "/open", nil, nil))
		require.Empty(t, gotAuth)
	})

	t.Run("requests outside the api path pass through untouched", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed("a1", "r1", time.Now().Add(time.Hour))

		var gotAuth string
		fx.backend.handle("GET /actuator/health", func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		})

		raw := &http.Client{Transport: fx.transport}
		resp, err := raw.Get(fx.backend.srv.URL + "/actuator/health")
		require.NoError(t, err)
		resp.Body.Close()
		require.Empty(t, gotAuth)
	})

	t.Run("login and refresh are never authenticated", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed("a1", "r1", time.Now().Add(time.Hour))

		// The backend handlers assert an empty Authorization header.
		_, err := fx.svc.RefreshSession(context.Background())
		require.NoError(t, err)

		_, err = fx.svc.Login(context.Background(), testEmail, testPassword)
		require.NoError(t, err)
	})
}

func TestTransport_Recovery(t *testing.T) {
	t.Run("a stale token is refreshed and the request retried once", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed("stale", "r1", time.Now().Add(time.Hour))

		user, err := fx.svc.Me(context.Background())
		require.NoError(t, err)
		require.Equal(t, testUser, *user)

		require.EqualValues(t, 1, fx.backend.refreshCalls.Load())
		require.EqualValues(t, 2, fx.backend.meCalls.Load())
		require.Equal(t, "a2", fx.store.Current().AccessToken)
		require.EqualValues(t, 0, fx.redirects.Load())
	})

	t.Run("a second unauthorized response is final", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed("a1", "r1", time.Now().Add(time.Hour))

		var hits int
		fx.backend.handle("GET /api/locked", func(w http.ResponseWriter, r *http.Request) {
			hits++
			writeUnauthorized(w, r.URL.Path)
		})

		err := fx.client.Get(context.Background(), "/locked", nil, nil)
		require.True(t, api.IsUnauthorized(err))
		require.Equal(t, 2, hits)
		require.EqualValues(t, 1, fx.backend.refreshCalls.Load())
	})

	t.Run("unauthorized without a session redirects to login", func(t *testing.T) {
		fx := newFixture(t)

		_, err := fx.svc.Me(context.Background())
		require.True(t, api.IsUnauthorized(err))
		require.EqualValues(t, 0, fx.backend.refreshCalls.Load())
		require.EqualValues(t, 1, fx.backend.meCalls.Load())
		require.EqualValues(t, 1, fx.redirects.Load())
	})

	t.Run("unauthorized without a refresh token tears the session down", func(t *testing.T) {
		fx := newFixture(t)
		fx.store.Set(session.Session{
			TokenType:   "Bearer",
			AccessToken: "stale",
			ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
			User:        testUser,
		})

		_, err := fx.svc.Me(context.Background())
		require.True(t, api.IsUnauthorized(err))
		require.EqualValues(t, 0, fx.backend.refreshCalls.Load())
		require.Nil(t, fx.store.Current())
		require.EqualValues(t, 1, fx.redirects.Load())
	})

	t.Run("a failing refresh surfaces its error and clears the session", func(t *testing.T) {
		fx := newFixture(t)
		fx.backend.refreshFail = true
		fx.seed("stale", "r1", time.Now().Add(time.Hour))

		_, err := fx.svc.Me(context.Background())
		require.Error(t, err)

		// The caller sees the refresh failure, not the original 401.
		var apiErr *api.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "/api/auth/refresh", apiErr.Path)
		require.Nil(t, fx.store.Current())
		require.EqualValues(t, 1, fx.redirects.Load())
	})

	t.Run("concurrent stale requests share one refresh", func(t *testing.T) {
		fx := newFixture(t)
		fx.backend.refreshDelay = 150 * time.Millisecond
		fx.seed("stale", "r1", time.Now().Add(time.Hour))

		const callers = 8
		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = fx.svc.Me(context.Background())
			}()
		}
		wg.Wait()

		for i := range callers {
			require.NoError(t, errs[i])
		}
		require.EqualValues(t, 1, fx.backend.refreshCalls.Load())
	})

	t.Run("a request body is replayed on retry", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed("stale", "r1", time.Now().Add(time.Hour))

		type note struct {
			Text string `json:"text"`
		}
		var bodies []string
		fx.backend.handle("POST /api/notes", func(w http.ResponseWriter, r *http.Request) {
			var n note
			require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
			bodies = append(bodies, n.Text)
			if !fx.backend.authorized(r) {
				writeUnauthorized(w, r.URL.Path)
				return
			}
			writeJSON(t, w, n)
		})

		var echoed note
		err := fx.client.Post(context.Background(), "/notes", note{Text: "groceries"}, &echoed)
		require.NoError(t, err)
		require.Equal(t, "groceries", echoed.Text)
		require.Equal(t, []string{"groceries", "groceries"}, bodies)
	})
}
