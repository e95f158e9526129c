package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesdesk-dev/salesdesk/internal/apitest"
	"github.com/salesdesk-dev/salesdesk/internal/cli/auth"
)

type testEnv struct {
	backend *apitest.Server
	tokens  *auth.TokenStore
	client  *Client
	expired *atomic.Int32
	user    *apitest.User
}

// newTestEnv starts a fake backend with one signed-in admin
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := apitest.New(t)
	user := backend.AddUser("alice", "alice@example.com", "secret", "admin", 0)
	access, refresh := backend.IssueTokens(user.ID)

	tokens := auth.NewTokenStore(auth.NewMemoryStorage(), "")
	require.NoError(t, tokens.WriteAccess(access, user.Email))
	require.NoError(t, tokens.WriteRefresh(refresh))

	expired := &atomic.Int32{}
	c := New(backend.URL, tokens, WithAuthExpiredHandler(func() { expired.Add(1) }))

	return &testEnv{backend: backend, tokens: tokens, client: c, expired: expired, user: user}
}

// captureServer records the last request it received and replies with status and body
type captured struct {
	method      string
	path        string
	contentType string
	auth        string
	body        string
}

func captureServer(t *testing.T, status int, contentType, body string) (*httptest.Server, *captured) {
	t.Helper()

	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.RequestURI()
		got.contentType = r.Header.Get("Content-Type")
		got.auth = r.Header.Get("Authorization")
		got.body = string(data)

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestDo_ContentTypeFollowsPayloadShape(t *testing.T) {
	form, err := NewFormData(map[string]string{"name": "report"}, FormFile{
		Field:    "file",
		FileName: "report.csv",
		Content:  strings.NewReader("a,b\n1,2\n"),
	})
	require.NoError(t, err)

	tests := []struct {
		name            string
		payload         any
		wantContentType string
		wantBody        string
	}{
		{
			name:            "struct is sent as JSON",
			payload:         LoginRequest{Username: "u", Password: "p"},
			wantContentType: "application/json",
			wantBody:        `{"username":"u","password":"p"}`,
		},
		{
			name:            "url.Values is form encoded",
			payload:         url.Values{"a": {"1"}, "b": {"x y"}},
			wantContentType: "application/x-www-form-urlencoded",
			wantBody:        "a=1&b=x+y",
		},
		{
			name:            "nil payload sends no body",
			payload:         nil,
			wantContentType: "",
			wantBody:        "",
		},
		{
			name:            "form data keeps its boundary",
			payload:         form,
			wantContentType: form.ContentType(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := captureServer(t, http.StatusOK, "application/json", `{}`)
			c := New(srv.URL, auth.NewTokenStore(auth.NewMemoryStorage(), ""))

			_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x/", Payload: tt.payload})
			require.NoError(t, err)

			assert.Equal(t, tt.wantContentType, got.contentType)
			if tt.wantBody != "" || tt.payload == nil {
				assert.Equal(t, tt.wantBody, got.body)
			}
		})
	}

	assert.True(t, strings.HasPrefix(form.ContentType(), "multipart/form-data; boundary="))
}

func TestDo_ResponseClassification(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantKind    BodyKind
	}{
		{"json object", "application/json", `{"id":1}`, KindJSON},
		{"json without content type", "", `[1,2]`, KindJSON},
		{"plain text", "text/plain", "hello", KindText},
		{"invalid json", "application/json", "{not json", KindText},
		{"empty body", "application/json", "", KindText},
		{"pdf", "application/pdf", "%PDF-1.4", KindBlob},
		{"octet stream with params", "application/octet-stream; charset=binary", "\x00\x01", KindBlob},
		{"powerpoint", "application/vnd.ms-powerpoint", "ppt", KindBlob},
		{"pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation", "pptx", KindBlob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := captureServer(t, http.StatusOK, tt.contentType, tt.body)
			c := New(srv.URL, auth.NewTokenStore(auth.NewMemoryStorage(), ""))

			body, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x/"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.Equal(t, tt.body, body.Text())
		})
	}
}

func TestDo_AuthHeaderOnlyWhenRequired(t *testing.T) {
	tokens := auth.NewTokenStore(auth.NewMemoryStorage(), "")
	require.NoError(t, tokens.WriteAccess("tok-123", ""))

	srv, got := captureServer(t, http.StatusOK, "application/json", `{}`)
	c := New(srv.URL, tokens)

	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/public/"})
	require.NoError(t, err)
	assert.Empty(t, got.auth)

	_, err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/private/", RequireAuth: true})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", got.auth)
}

func TestDo_NoTokenSendsNoHeader(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, "application/json", `{}`)
	c := New(srv.URL, auth.NewTokenStore(auth.NewMemoryStorage(), ""))

	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/private/", RequireAuth: true})
	require.NoError(t, err)
	assert.Empty(t, got.auth)
}

func TestDo_HTTPErrorCarriesStatusAndText(t *testing.T) {
	srv, _ := captureServer(t, http.StatusForbidden, "application/json", `{"detail":"You do not have permission to perform this action."}`)
	tokens := auth.NewTokenStore(auth.NewMemoryStorage(), "")
	require.NoError(t, tokens.WriteAccess("tok", ""))
	require.NoError(t, tokens.WriteRefresh("ref"))

	c := New(srv.URL, tokens)
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/vehicles/", RequireAuth: true})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
	assert.Contains(t, httpErr.Message, "permission")
	assert.Equal(t, "request failed (status 403): You do not have permission to perform this action.", err.Error())

	// 403 is not an expiry signal: tokens stay
	access, _ := tokens.ReadAccess()
	require.NotNil(t, access)
	assert.Equal(t, "tok", access.Token)
}

func TestDo_RefreshesAndRetriesOnce(t *testing.T) {
	env := newTestEnv(t)
	oldAccess, _ := env.tokens.ReadAccess()
	env.backend.ExpireAccessTokens()

	vehicles, err := env.client.ListVehicles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vehicles)

	assert.Equal(t, 1, env.backend.Calls("POST /users/token/refresh/"))
	assert.Equal(t, 2, env.backend.Calls("GET /vehicles/"))

	headers := env.backend.AuthHeaders("GET /vehicles/")
	require.Len(t, headers, 2)
	assert.Equal(t, "Bearer "+oldAccess.Token, headers[0])
	assert.NotEqual(t, headers[0], headers[1])

	newAccess, err := env.tokens.ReadAccess()
	require.NoError(t, err)
	require.NotNil(t, newAccess)
	assert.Equal(t, "Bearer "+newAccess.Token, headers[1])
	assert.Equal(t, "alice@example.com", newAccess.Email)
	assert.Zero(t, env.expired.Load())
}

func TestDo_RefreshRotatesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	before, _ := env.tokens.ReadRefresh()
	env.backend.ExpireAccessTokens()

	_, err := env.client.ListSales(context.Background(), nil)
	require.NoError(t, err)

	after, err := env.tokens.ReadRefresh()
	require.NoError(t, err)
	assert.NotEmpty(t, after)
	assert.NotEqual(t, before, after)
}

func TestDo_NotFoundIsTreatedAsExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Configure(func(s *apitest.Server) { s.ExpiredStatus = http.StatusNotFound })
	env.backend.ExpireAccessTokens()

	_, err := env.client.ListAgents(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, env.backend.Calls("POST /users/token/refresh/"))
}

func TestDo_NoRefreshTokenExpiresSession(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.tokens.WriteRefresh(""))
	env.backend.ExpireAccessTokens()

	_, err := env.client.ListVehicles(context.Background(), nil)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)

	assert.Zero(t, env.backend.Calls("POST /users/token/refresh/"))
	assert.Equal(t, 1, env.backend.Calls("GET /vehicles/"))
	assert.Equal(t, int32(1), env.expired.Load())

	access, err := env.tokens.ReadAccess()
	require.NoError(t, err)
	assert.Nil(t, access)
}

func TestDo_FailedRefreshExpiresSession(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Configure(func(s *apitest.Server) { s.FailRefresh = true })
	env.backend.ExpireAccessTokens()

	_, err := env.client.ListVehicles(context.Background(), nil)

	// The original 401 is surfaced, not the refresh failure
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Contains(t, err.Error(), "failed to list vehicles")

	assert.Equal(t, 1, env.backend.Calls("POST /users/token/refresh/"))
	assert.Equal(t, 1, env.backend.Calls("GET /vehicles/"))
	assert.Equal(t, int32(1), env.expired.Load())

	access, _ := env.tokens.ReadAccess()
	assert.Nil(t, access)
	refresh, _ := env.tokens.ReadRefresh()
	assert.Empty(t, refresh)
}

func TestDo_RetryFailureIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == pathRefreshToken {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access":"new-token"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"still no"}`))
	}))
	t.Cleanup(srv.Close)

	tokens := auth.NewTokenStore(auth.NewMemoryStorage(), "")
	require.NoError(t, tokens.WriteAccess("old-token", ""))
	require.NoError(t, tokens.WriteRefresh("ref"))

	var expired atomic.Int32
	c := New(srv.URL, tokens, WithAuthExpiredHandler(func() { expired.Add(1) }))

	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/sales/", RequireAuth: true})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "still no", httpErr.Summary())
	// original, refresh, retry: no second refresh
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, expired.Load())

	// The refresh response had no refresh token, so the old one is kept
	access, _ := tokens.ReadAccess()
	require.NotNil(t, access)
	assert.Equal(t, "new-token", access.Token)
	refresh, _ := tokens.ReadRefresh()
	assert.Equal(t, "ref", refresh)
}

func TestDo_ConcurrentExpiriesShareOneRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Configure(func(s *apitest.Server) { s.RefreshDelay = 200 * time.Millisecond })
	env.backend.ExpireAccessTokens()

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.client.ListVehicles(context.Background(), nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, env.backend.Calls("POST /users/token/refresh/"))
	assert.Zero(t, env.expired.Load())
}

func TestDo_TimeoutDuringRefreshKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Configure(func(s *apitest.Server) { s.RefreshDelay = 300 * time.Millisecond })
	env.backend.ExpireAccessTokens()
	oldRefresh, _ := env.tokens.ReadRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := env.client.ListVehicles(ctx, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, env.expired.Load())

	access, _ := env.tokens.ReadAccess()
	assert.NotNil(t, access)

	// the exchange finishes on its own and stores the rotated tokens
	assert.Eventually(t, func() bool {
		refresh, _ := env.tokens.ReadRefresh()
		return refresh != "" && refresh != oldRefresh
	}, 2*time.Second, 20*time.Millisecond)

	_, err = env.client.ListVehicles(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, env.backend.Calls("POST /users/token/refresh/"))
	assert.Zero(t, env.expired.Load())
}

func TestDo_SharedRefreshSurvivesOneCallerCancelling(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Configure(func(s *apitest.Server) { s.RefreshDelay = 300 * time.Millisecond })
	env.backend.ExpireAccessTokens()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := env.client.ListVehicles(ctx, nil)
		first <- err
	}()
	require.Eventually(t, func() bool {
		return env.backend.Calls("POST /users/token/refresh/") == 1
	}, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := env.client.ListVehicles(context.Background(), nil)
		second <- err
	}()
	require.Eventually(t, func() bool {
		return env.backend.Calls("GET /vehicles/") == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	assert.NoError(t, <-second)

	assert.Equal(t, 1, env.backend.Calls("POST /users/token/refresh/"))
	assert.Zero(t, env.expired.Load())
}

func TestDo_UnauthenticatedCallsAreNeverRefreshed(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.Login(context.Background(), "alice", "wrong")

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Equal(t, "Invalid credentials", httpErr.Summary())

	assert.Zero(t, env.backend.Calls("POST /users/token/refresh/"))
	assert.Zero(t, env.expired.Load())

	access, _ := env.tokens.ReadAccess()
	assert.NotNil(t, access)
}

func TestDo_CancelledContext(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.client.ListVehicles(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, env.backend.Calls("GET /vehicles/"))
	assert.Zero(t, env.expired.Load())
}

func TestHTTPError_Summary(t *testing.T) {
	tests := []struct {
		name string
		err  HTTPError
		want string
	}{
		{"detail field", HTTPError{Status: 400, Message: `{"detail":"bad"}`}, "bad"},
		{"message field", HTTPError{Status: 400, Message: `{"message":"worse"}`}, "worse"},
		{"error field", HTTPError{Status: 500, Message: `{"error":"boom"}`}, "boom"},
		{"field errors fall back to raw", HTTPError{Status: 400, Message: `{"brand":["required"]}`}, `{"brand":["required"]}`},
		{"plain text", HTTPError{Status: 502, Message: "  Bad Gateway\n"}, "Bad Gateway"},
		{"empty body", HTTPError{Status: 503}, "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Summary())
		})
	}

	long := HTTPError{Status: 500, Message: strings.Repeat("x", 400)}
	assert.Len(t, long.Summary(), 303)
}

func TestHTTPError_IsAuthExpiry(t *testing.T) {
	assert.True(t, (&HTTPError{Status: 401}).IsAuthExpiry())
	assert.True(t, (&HTTPError{Status: 404}).IsAuthExpiry())
	assert.False(t, (&HTTPError{Status: 403}).IsAuthExpiry())
	assert.False(t, (&HTTPError{Status: 500}).IsAuthExpiry())
}
