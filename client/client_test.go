package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func newTestClient(t *testing.T, server *httptest.Server, opts Options) *Client {
	t.Helper()
	c, err := New(server.URL, opts)
	require.NoError(t, err)
	return c
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeData(w, http.StatusOK, User{ID: "u1", Name: "Alice"})
	}))
	defer server.Close()

	c := newTestClient(t, server, Options{})
	c.SetAccessToken("token-abc")

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "Bearer token-abc", gotAuth)
}

func TestClient_Login_StoresAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "alice@example.com", body["email"])

		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "rt-1", Path: "/api/auth", HttpOnly: true})
		writeData(w, http.StatusOK, Session{
			User:        User{ID: "u1", Email: "alice@example.com"},
			AccessToken: "fresh-token",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server, Options{})
	session, err := c.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", session.AccessToken)
	assert.Equal(t, "fresh-token", c.AccessToken())
}

func TestClient_DecodesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
	}))
	defer server.Close()

	c := newTestClient(t, server, Options{})
	c.SetAccessToken("tok")

	_, err := c.Me(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "user not found", apiErr.Message)
}

func TestClient_RefreshOn401_SingleFlight(t *testing.T) {
	var refreshCalls, meCalls int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&meCalls, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token expired")
			return
		}
		writeData(w, http.StatusOK, User{ID: "u1", Name: "Alice"})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		// Hold the refresh open long enough for every concurrent caller to
		// hit its 401 and line up behind the in-flight refresh.
		time.Sleep(250 * time.Millisecond)
		writeData(w, http.StatusOK, map[string]string{"access_token": "fresh"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server, Options{})
	c.SetAccessToken("stale")

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Me(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.EqualValues(t, 1, atomic.LoadInt64(&refreshCalls), "all callers must share one refresh")
	// Each caller sends once with the stale token and replays once after the
	// shared refresh completes.
	assert.EqualValues(t, 2*callers, atomic.LoadInt64(&meCalls))
	assert.Equal(t, "fresh", c.AccessToken())
}

func TestClient_RefreshFailure_ExpiresSessionOnce(t *testing.T) {
	var expired int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token expired")
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(250 * time.Millisecond)
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "refresh token expired")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server, Options{
		OnSessionExpired: func() { atomic.AddInt64(&expired, 1) },
	})
	c.SetAccessToken("stale")

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Me(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.Error(t, err, "caller %d", i)
		assert.Contains(t, err.Error(), "session refresh failed")
	}
	assert.EqualValues(t, 1, atomic.LoadInt64(&expired), "session expiry callback must fire once")
	assert.Empty(t, c.AccessToken(), "a failed refresh must clear the stored token")
}

func TestClient_ReplaysRequestAtMostOnce(t *testing.T) {
	var meCalls int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&meCalls, 1)
		// Reject even the refreshed token: the client must give up after one
		// replay instead of looping.
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "nope")
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"access_token": "fresh"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server, Options{})
	c.SetAccessToken("stale")

	_, err := c.Me(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt64(&meCalls))
}

func TestClient_NoRefreshWithoutToken(t *testing.T) {
	var refreshCalls int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing token")
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		writeData(w, http.StatusOK, map[string]string{"access_token": "fresh"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server, Options{})

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 0, atomic.LoadInt64(&refreshCalls), "logged-out clients must not attempt a refresh")
}

func TestClient_RefreshSendsCookieNotBearer(t *testing.T) {
	var refreshAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "rt-1", Path: "/api/auth", HttpOnly: true})
		writeData(w, http.StatusOK, Session{AccessToken: "stale"})
	})
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token expired")
			return
		}
		writeData(w, http.StatusOK, User{ID: "u1"})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshAuth = r.Header.Get("Authorization")
		cookie, err := r.Cookie("refresh_token")
		if err != nil || cookie.Value != "rt-1" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing refresh cookie")
			return
		}
		writeData(w, http.StatusOK, map[string]string{"access_token": "fresh"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server, Options{})
	_, err := c.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Empty(t, refreshAuth, "refresh must authenticate with the cookie only")
	assert.Equal(t, "fresh", c.AccessToken())
}

func TestClient_PutPresigned(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		gotContentType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body
		w.WriteHeader(http.StatusOK)
	}))
	defer storage.Close()

	api := httptest.NewServer(http.NotFoundHandler())
	defer api.Close()

	c := newTestClient(t, api, Options{})
	err := c.PutPresigned(context.Background(), storage.URL+"/uploads/pic.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", gotContentType)
	assert.Equal(t, "png-bytes", string(gotBody))
}

func TestClient_PutPresignedRejected(t *testing.T) {
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer storage.Close()

	api := httptest.NewServer(http.NotFoundHandler())
	defer api.Close()

	c := newTestClient(t, api, Options{})
	err := c.PutPresigned(context.Background(), storage.URL+"/uploads/pic.png", "image/png", []byte("x"))
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("", Options{})
	require.Error(t, err)
}
