package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookden/internal/api"
	"bookden/internal/apiclient"
	"bookden/internal/auth/credentials"
)

type navCounter struct {
	calls atomic.Int32
}

func (n *navCounter) ToLogin() { n.calls.Add(1) }

type fixture struct {
	manager *Manager
	creds   *credentials.MemStore
	nav     *navCounter
}

func newFixture(t *testing.T, handler http.Handler) *fixture {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	creds := credentials.NewMemStore()
	nav := &navCounter{}
	manager := NewManager(Config{
		Account:     api.NewAccountClient(client),
		Credentials: creds,
		Navigator:   nav,
	})
	return &fixture{manager: manager, creds: creds, nav: nav}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func authPayload() map[string]any {
	return map[string]any{
		"token":   "access-1",
		"refresh": "refresh-1",
		"user": map[string]any{
			"id":       1,
			"username": "reader",
			"email":    "reader@example.com",
		},
	}
}

func TestLoginRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/authenticate/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "reader", body["username"])
		assert.Equal(t, "hunter2", body["password"])
		writeJSON(w, http.StatusOK, authPayload())
	})
	f := newFixture(t, mux)

	err := f.manager.Login(context.Background(), "reader", "hunter2")
	require.NoError(t, err)

	state := f.manager.Snapshot()
	assert.True(t, state.Authenticated)
	assert.False(t, state.Loading)
	assert.Nil(t, state.Err)
	require.NotNil(t, state.User)
	assert.Equal(t, "reader", state.User.Username)

	bundle, _ := f.creds.Load()
	assert.Equal(t, "access-1", bundle.AccessToken)
	assert.Equal(t, "refresh-1", bundle.RefreshToken)
	assert.Equal(t, "reader@example.com", bundle.Email)
}

func TestLoginFailureLeavesCredentialsUntouched(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/authenticate/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Failed Authentication: Incorrect Credentials"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.creds.Replace(credentials.Bundle{AccessToken: "old", RefreshToken: "old-ref"}))

	err := f.manager.Login(context.Background(), "reader", "wrong")
	require.Error(t, err)

	state := f.manager.Snapshot()
	assert.False(t, state.Authenticated)
	assert.False(t, state.Loading)
	require.Error(t, state.Err)
	assert.Contains(t, state.Err.Error(), "Incorrect Credentials")

	bundle, _ := f.creds.Load()
	assert.Equal(t, "old", bundle.AccessToken, "failed login must not mutate stored credentials")
	assert.Equal(t, "old-ref", bundle.RefreshToken)
}

func TestRegisterDuplicateSurfacesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/registration/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "User already exists"})
	})
	f := newFixture(t, mux)

	err := f.manager.Register(context.Background(), api.RegisterData{Username: "reader", Email: "r@example.com"})
	require.Error(t, err)

	state := f.manager.Snapshot()
	assert.False(t, state.Authenticated)
	require.Error(t, state.Err)
	assert.Contains(t, state.Err.Error(), "already exists")
}

func TestLogoutClearsStateEvenWhenServerNotifyFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/logout/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backend down"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.creds.Replace(credentials.Bundle{AccessToken: "acc", RefreshToken: "ref"}))

	require.NoError(t, f.manager.Logout(context.Background()))

	state := f.manager.Snapshot()
	assert.False(t, state.Authenticated)
	assert.Nil(t, state.User)
	assert.False(t, state.Loading)

	bundle, _ := f.creds.Load()
	assert.True(t, bundle.IsZero())
	assert.Equal(t, int32(1), f.nav.calls.Load())
}

func TestRefreshTokenPersistsAccessOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/refresh-token/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ref-1", body["refresh"])
		writeJSON(w, http.StatusOK, map[string]string{"access": "access-2"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.creds.Replace(credentials.Bundle{
		AccessToken:  "access-1",
		RefreshToken: "ref-1",
		Email:        "reader@example.com",
	}))

	assert.True(t, f.manager.RefreshToken(context.Background()))
	assert.True(t, f.manager.Snapshot().Authenticated)

	bundle, _ := f.creds.Load()
	assert.Equal(t, "access-2", bundle.AccessToken)
	assert.Equal(t, "ref-1", bundle.RefreshToken, "refresh token survives an access refresh")
	assert.Equal(t, "reader@example.com", bundle.Email)
}

func TestRefreshTokenFailureReportsFalse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/refresh-token/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Refresh token has expired"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.creds.Replace(credentials.Bundle{RefreshToken: "expired"}))

	assert.False(t, f.manager.RefreshToken(context.Background()))
	assert.False(t, f.manager.Snapshot().Authenticated)
}

func TestRefreshTokenWithoutStoredTokenReportsFalse(t *testing.T) {
	f := newFixture(t, http.NewServeMux())
	assert.False(t, f.manager.RefreshToken(context.Background()))
}

func TestRefreshTokenSwallowsNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	srv.Close()
	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	creds := credentials.NewMemStore()
	require.NoError(t, creds.Replace(credentials.Bundle{RefreshToken: "ref"}))
	manager := NewManager(Config{
		Account:     api.NewAccountClient(client),
		Credentials: creds,
		Navigator:   &navCounter{},
	})

	assert.False(t, manager.RefreshToken(context.Background()))
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	var upstreamCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/account/refresh-token/", func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		time.Sleep(50 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]string{"access": "access-2"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.creds.Replace(credentials.Bundle{RefreshToken: "ref-1"}))

	const workers = 10
	var wg sync.WaitGroup
	results := make([]bool, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.manager.RefreshToken(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), upstreamCalls.Load(), "overlapping refreshes share one upstream call")
	for _, ok := range results {
		assert.True(t, ok)
	}
}

func TestRestoreJoinsInFlightRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/account/verify-token/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false})
	})
	mux.HandleFunc("/account/refresh-token/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(50 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
	})
	mux.HandleFunc("/account/users/profile/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "username": "reader"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.creds.Replace(credentials.Bundle{
		AccessToken: "stale", RefreshToken: "ref", Email: "r@example.com",
	}))

	var refreshed bool
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		refreshed = f.manager.RefreshToken(context.Background())
	}()
	go func() {
		defer wg.Done()
		f.manager.Restore(context.Background())
	}()
	wg.Wait()

	assert.True(t, refreshed)
	assert.True(t, f.manager.Snapshot().Authenticated)
	assert.Equal(t, int32(1), refreshCalls.Load(),
		"a boot-time restore overlapping a refresh shares the upstream call")
}

func TestVerifyTokenSwallowsAllFailures(t *testing.T) {
	t.Run("server rejects", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/account/verify-token/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "message": "Token has expired"})
		})
		f := newFixture(t, mux)
		assert.False(t, f.manager.VerifyToken(context.Background(), "tok", "a@b.c"))
	})

	t.Run("missing token and email", func(t *testing.T) {
		f := newFixture(t, http.NewServeMux())
		assert.False(t, f.manager.VerifyToken(context.Background(), "", ""))
	})

	t.Run("falls back to stored bundle", func(t *testing.T) {
		var gotToken, gotEmail string
		mux := http.NewServeMux()
		mux.HandleFunc("/account/verify-token/", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotToken, gotEmail = body["token"], body["email"]
			writeJSON(w, http.StatusOK, map[string]any{"valid": true})
		})
		f := newFixture(t, mux)
		require.NoError(t, f.creds.Replace(credentials.Bundle{AccessToken: "stored-tok", Email: "stored@example.com"}))

		assert.True(t, f.manager.VerifyToken(context.Background(), "", ""))
		assert.Equal(t, "stored-tok", gotToken)
		assert.Equal(t, "stored@example.com", gotEmail)
	})
}

func TestRestore(t *testing.T) {
	t.Run("valid token restores and loads profile", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/account/verify-token/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"valid": true})
		})
		mux.HandleFunc("/account/users/profile/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": 1, "username": "reader"})
		})
		f := newFixture(t, mux)
		require.NoError(t, f.creds.Replace(credentials.Bundle{AccessToken: "acc", Email: "r@example.com"}))

		f.manager.Restore(context.Background())

		state := f.manager.Snapshot()
		assert.True(t, state.Authenticated)
		assert.False(t, state.Loading)
		require.NotNil(t, state.User)
		assert.Equal(t, "reader", state.User.Username)
	})

	t.Run("invalid token falls back to refresh", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/account/verify-token/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false})
		})
		mux.HandleFunc("/account/refresh-token/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
		})
		mux.HandleFunc("/account/users/profile/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": 1, "username": "reader"})
		})
		f := newFixture(t, mux)
		require.NoError(t, f.creds.Replace(credentials.Bundle{
			AccessToken: "stale", RefreshToken: "ref", Email: "r@example.com",
		}))

		f.manager.Restore(context.Background())

		state := f.manager.Snapshot()
		assert.True(t, state.Authenticated)
		assert.False(t, state.Loading)

		bundle, _ := f.creds.Load()
		assert.Equal(t, "fresh", bundle.AccessToken)
	})

	t.Run("verify and refresh both fail", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/account/verify-token/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false})
		})
		mux.HandleFunc("/account/refresh-token/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid"})
		})
		f := newFixture(t, mux)
		require.NoError(t, f.creds.Replace(credentials.Bundle{
			AccessToken: "stale", RefreshToken: "bad", Email: "r@example.com",
		}))

		f.manager.Restore(context.Background())

		state := f.manager.Snapshot()
		assert.False(t, state.Authenticated)
		assert.False(t, state.Loading)
	})

	t.Run("empty store stays unauthenticated", func(t *testing.T) {
		f := newFixture(t, http.NewServeMux())
		f.manager.Restore(context.Background())
		state := f.manager.Snapshot()
		assert.False(t, state.Authenticated)
		assert.False(t, state.Loading)
	})
}

func TestLoadingAlwaysResolves(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.creds.Replace(credentials.Bundle{
		AccessToken: "acc", RefreshToken: "ref", Email: "r@example.com",
	}))
	ctx := context.Background()

	_ = f.manager.Login(ctx, "u", "p")
	assert.False(t, f.manager.Snapshot().Loading, "after failed login")

	_ = f.manager.Register(ctx, api.RegisterData{})
	assert.False(t, f.manager.Snapshot().Loading, "after failed register")

	f.manager.RefreshToken(ctx)
	assert.False(t, f.manager.Snapshot().Loading, "after failed refresh")

	f.manager.Restore(ctx)
	assert.False(t, f.manager.Snapshot().Loading, "after failed restore")

	_ = f.manager.Logout(ctx)
	assert.False(t, f.manager.Snapshot().Loading, "after logout")
}

func TestForceLogoutIsIdempotent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/logout/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.creds.Replace(credentials.Bundle{AccessToken: "acc", RefreshToken: "ref"}))
	f.manager.SetAPIInitialized()

	f.manager.ForceLogout()
	f.manager.ForceLogout()

	state := f.manager.Snapshot()
	assert.False(t, state.Authenticated)
	assert.True(t, state.APIInitialized, "teardown keeps the client-initialized flag")

	bundle, _ := f.creds.Load()
	assert.True(t, bundle.IsZero())
	assert.Equal(t, int32(1), f.nav.calls.Load(), "cascading teardowns navigate exactly once")
}

func TestConcurrentForceLogoutsNavigateOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/logout/", func(w http.ResponseWriter, r *http.Request) {
		// Hold the notify open so every caller arrives before teardown lands.
		time.Sleep(50 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.creds.Replace(credentials.Bundle{AccessToken: "acc", RefreshToken: "ref"}))

	const workers = 10
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.manager.ForceLogout()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.nav.calls.Load(), "one navigation per cascade")
	assert.False(t, f.manager.Snapshot().Authenticated)
	bundle, _ := f.creds.Load()
	assert.True(t, bundle.IsZero())
}
