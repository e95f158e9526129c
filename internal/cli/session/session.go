// Package session holds the signed-in state of the CLI. It is built once per
// process from the token store and is the only place that writes tokens after
// a login, signup or logout.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/salesdesk-dev/salesdesk/internal/cli/auth"
	"github.com/salesdesk-dev/salesdesk/internal/cli/client"
)

// ErrCredentialsRequired is returned by Login when the username or password is empty
var ErrCredentialsRequired = errors.New("username and password are required")

// Error is a failed login or signup, carrying the message to show the user
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// API is the subset of the API client the session talks to
type API interface {
	Login(ctx context.Context, username, password string) (*client.TokenResponse, error)
	Register(ctx context.Context, req client.SignupRequest) (*client.TokenResponse, error)
}

// State is a snapshot of the session
type State struct {
	IsAuthenticated bool
	Token           string
	UserEmail       string
	UserName        string
	Loading         bool
}

// Session is the process-wide authentication state
type Session struct {
	mu     sync.Mutex
	state  State
	tokens *auth.TokenStore
	api    API
	logger zerolog.Logger
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger used for login and logout events
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a session. It stays in the loading state until Initialize runs.
func New(tokens *auth.TokenStore, api API, opts ...Option) *Session {
	s := &Session{
		state:  State{Loading: true},
		tokens: tokens,
		api:    api,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the stored access token. A storage failure leaves the
// session signed out.
func (s *Session) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}

	token, err := s.tokens.ReadAccess()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read stored access token")
		return
	}
	if token == nil {
		return
	}

	s.state = State{
		IsAuthenticated: true,
		Token:           token.Token,
		UserEmail:       token.Email,
		UserName:        localPart(token.Email),
	}
}

// State returns a copy of the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Login signs in with a username (or email) and password
func (s *Session) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrCredentialsRequired
	}

	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.logger.Debug().Err(err).Str("username", username).Msg("Login request failed")
		return &Error{Message: failureMessage(err, "Login failed"), Err: err}
	}

	access, refresh := res.Tokens()
	if access == "" {
		msg := firstNonEmpty(res.Message.String(), res.Detail.String(), "Invalid credentials")
		return &Error{Message: msg}
	}

	email := firstNonEmpty(res.Email.String(), username)
	userName := username
	if res.Email != "" {
		userName = localPart(res.Email.String())
	}

	if err := s.store(access, refresh, email, userName); err != nil {
		return err
	}

	s.logger.Info().Str("email", email).Msg("Logged in")
	return nil
}

// Signup registers a new account and signs in with it
func (s *Session) Signup(ctx context.Context, req client.SignupRequest) error {
	if err := client.Validate(req); err != nil {
		return err
	}

	res, err := s.api.Register(ctx, req)
	if err != nil {
		s.logger.Debug().Err(err).Str("email", req.Email).Msg("Signup request failed")
		return &Error{Message: failureMessage(err, "Signup failed"), Err: err}
	}

	if res.AccessToken == "" {
		return &Error{Message: firstNonEmpty(res.Message.String(), "Signup failed")}
	}

	email := firstNonEmpty(res.Email.String(), req.Email)
	if err := s.store(res.AccessToken, res.RefreshToken, email, req.FullName); err != nil {
		return err
	}

	s.logger.Info().Str("email", email).Msg("Signed up")
	return nil
}

// Logout forgets the stored tokens. It never calls the backend.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}
	if err := s.tokens.Clear(); err != nil {
		return err
	}

	s.logger.Info().Msg("Logged out")
	return nil
}

// store persists the tokens and updates the in-memory state under one lock
func (s *Session) store(access, refresh, email, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tokens.WriteAccess(access, email); err != nil {
		return err
	}
	if refresh != "" {
		if err := s.tokens.WriteRefresh(refresh); err != nil {
			return err
		}
	}

	s.state = State{
		IsAuthenticated: true,
		Token:           access,
		UserEmail:       email,
		UserName:        userName,
	}
	return nil
}

// failureMessage prefers the server's own explanation over the wrapped error text
func failureMessage(err error, fallback string) string {
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Summary()
	}
	return firstNonEmpty(err.Error(), fallback)
}

// localPart returns the part of an email before "@"
func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
