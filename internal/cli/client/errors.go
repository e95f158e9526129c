package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is returned for any non-2xx response
type HTTPError struct {
	Status  int
	Message string // raw response text
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.Status, e.Summary())
}

// Summary returns the most human-readable part of the response: the
// detail/message/error field of a JSON body, or the trimmed raw text.
func (e *HTTPError) Summary() string {
	var body map[string]any
	if err := json.Unmarshal([]byte(e.Message), &body); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			if s, ok := body[key].(string); ok && s != "" {
				return s
			}
		}
	}

	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return http.StatusText(e.Status)
	}
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

// IsAuthExpiry reports whether the status means the access token is no
// longer accepted. 404 is included because some backend routes answer 404
// when a stale token resolves to a user scope that no longer exists.
func (e *HTTPError) IsAuthExpiry() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusNotFound
}
