package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strings"
)

const (
	contentTypeJSON       = "application/json"
	contentTypeURLEncoded = "application/x-www-form-urlencoded"
)

// Request describes one API call
type Request struct {
	Method      string
	Path        string // appended to the base URL, may include a query string
	Payload     any    // nil, *FormData, url.Values, or anything JSON-encodable
	RequireAuth bool
}

// FormFile is a file part of a multipart payload
type FormFile struct {
	Field    string
	FileName string
	Content  io.Reader
}

// FormData is a pre-encoded multipart/form-data payload. It is sent as-is
// with its own boundary content type.
type FormData struct {
	data        []byte
	contentType string
}

// NewFormData encodes fields and files as multipart/form-data
func NewFormData(fields map[string]string, files ...FormFile) (*FormData, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("failed to write form file %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form data: %w", err)
	}

	return &FormData{data: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}

// ContentType returns the multipart content type including the boundary
func (f *FormData) ContentType() string {
	return f.contentType
}

// encodePayload picks the body and Content-Type from the payload's shape alone
func encodePayload(payload any) (io.Reader, string, error) {
	switch p := payload.(type) {
	case nil:
		return nil, "", nil
	case *FormData:
		return bytes.NewReader(p.data), p.contentType, nil
	case url.Values:
		return strings.NewReader(p.Encode()), contentTypeURLEncoded, nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request: %w", err)
		}
		return bytes.NewReader(data), contentTypeJSON, nil
	}
}

// withQuery appends a query string to path when query is non-empty
func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
