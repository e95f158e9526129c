package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	accessTokenKey  = "accessToken"
	refreshTokenKey = "refreshToken"
)

// AccessToken is the stored access token envelope. Email is empty when the
// backend did not tell us who the token belongs to.
type AccessToken struct {
	Token string
	Email string
}

// accessEnvelope is the serialized form: {"token": "...", "email": "..."|null}
type accessEnvelope struct {
	Token string  `json:"token"`
	Email *string `json:"email"`
}

// TokenStore reads and writes the access token envelope and the refresh token
// for one server. It is the only component that touches the Storage.
type TokenStore struct {
	storage   Storage
	namespace string
}

// NewTokenStore creates a token store whose keys are scoped to namespace
// (normally the server base URL). An empty namespace uses bare keys.
func NewTokenStore(storage Storage, namespace string) *TokenStore {
	return &TokenStore{
		storage:   storage,
		namespace: namespace,
	}
}

func (s *TokenStore) key(name string) string {
	if s.namespace == "" {
		return name
	}
	return fmt.Sprintf("%s-%s", name, s.namespace)
}

// ReadAccess returns the stored access token or nil if none is stored.
// Only a value starting with "{" is read as an envelope; anything else,
// including "null", is a legacy raw token. A well-formed object without a
// token (e.g. "{}") counts as nothing stored.
func (s *TokenStore) ReadAccess() (*AccessToken, error) {
	raw, err := s.get(accessTokenKey)
	if err != nil || raw == "" {
		return nil, err
	}
	if !strings.HasPrefix(raw, "{") {
		return &AccessToken{Token: raw}, nil
	}

	var env accessEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return &AccessToken{Token: raw}, nil
	}
	if env.Token == "" {
		return nil, nil
	}

	token := &AccessToken{Token: env.Token}
	if env.Email != nil {
		token.Email = *env.Email
	}
	return token, nil
}

// ReadRefresh returns the stored refresh token, or "" if none is stored
func (s *TokenStore) ReadRefresh() (string, error) {
	return s.get(refreshTokenKey)
}

// WriteAccess stores the access token envelope
func (s *TokenStore) WriteAccess(token, email string) error {
	env := accessEnvelope{Token: token}
	if email != "" {
		env.Email = &email
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal access token: %w", err)
	}

	if err := s.storage.Set(s.key(accessTokenKey), string(data)); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

// WriteRefresh stores the refresh token
func (s *TokenStore) WriteRefresh(token string) error {
	if err := s.storage.Set(s.key(refreshTokenKey), token); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// Clear removes both tokens. Both deletes are attempted even if one fails.
func (s *TokenStore) Clear() error {
	return errors.Join(
		s.storage.Delete(s.key(accessTokenKey)),
		s.storage.Delete(s.key(refreshTokenKey)),
	)
}

func (s *TokenStore) get(name string) (string, error) {
	value, err := s.storage.Get(s.key(name))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}
