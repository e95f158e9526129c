package auth

import "fmt"

// OpenStorage returns the Storage for a backend name from configuration
func OpenStorage(backend string) (Storage, error) {
	switch backend {
	case "", "keyring":
		return NewKeyringStorage(), nil
	case "file":
		path, err := DefaultCredentialsPath()
		if err != nil {
			return nil, err
		}
		return NewFileStorage(path), nil
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown token backend %q", backend)
	}
}
