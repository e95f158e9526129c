package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "salesdesk-cli"
)

// KeyringStorage persists credentials in the OS keychain/credential manager
type KeyringStorage struct {
	Service string
}

// NewKeyringStorage returns a keychain-backed storage for the CLI service name
func NewKeyringStorage() *KeyringStorage {
	return &KeyringStorage{Service: service}
}

func (k *KeyringStorage) Get(key string) (string, error) {
	value, err := keyring.Get(k.Service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	return value, nil
}

func (k *KeyringStorage) Set(key, value string) error {
	if err := keyring.Set(k.Service, key, value); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (k *KeyringStorage) Delete(key string) error {
	if err := keyring.Delete(k.Service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
