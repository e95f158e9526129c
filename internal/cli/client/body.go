package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elnormous/contenttype"
)

// BodyKind classifies a successful response body
type BodyKind string

const (
	KindBlob BodyKind = "blob"
	KindJSON BodyKind = "json"
	KindText BodyKind = "text"
)

// binaryMediaTypes are returned as opaque blobs instead of being read as text
var binaryMediaTypes = []contenttype.MediaType{
	contenttype.NewMediaType("application/octet-stream"),
	contenttype.NewMediaType("application/pdf"),
	contenttype.NewMediaType("application/vnd.ms-powerpoint"),
	contenttype.NewMediaType("application/vnd.openxmlformats-officedocument.presentationml.presentation"),
}

// Body is a successful response
type Body struct {
	Kind        BodyKind
	ContentType string
	Raw         []byte
	Value       any // parsed JSON for KindJSON
}

// Text returns the body as a string
func (b *Body) Text() string {
	return string(b.Raw)
}

// Decode unmarshals a JSON body into v
func (b *Body) Decode(v any) error {
	if b.Kind != KindJSON {
		return fmt.Errorf("unexpected %s response: %s", b.Kind, preview(b.Raw))
	}
	if err := json.Unmarshal(b.Raw, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// isBinaryContentType reports whether a Content-Type header names one of the
// document/binary media types. Parameters are ignored.
func isBinaryContentType(header string) bool {
	if header == "" {
		return false
	}
	// contenttype parses from a request, so wrap the response header in one
	probe := &http.Request{Header: http.Header{}}
	probe.Header.Set("Content-Type", header)
	mediaType, err := contenttype.GetMediaType(probe)
	if err != nil {
		return false
	}
	for _, binary := range binaryMediaTypes {
		if mediaType.Matches(binary) {
			return true
		}
	}
	return false
}

// parseTextBody returns the JSON value when raw parses, otherwise the text
func parseTextBody(raw []byte, contentType string) *Body {
	var value any
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &value) == nil {
		return &Body{Kind: KindJSON, ContentType: contentType, Raw: raw, Value: value}
	}
	return &Body{Kind: KindText, ContentType: contentType, Raw: raw}
}

func preview(raw []byte) string {
	s := string(bytes.TrimSpace(raw))
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
