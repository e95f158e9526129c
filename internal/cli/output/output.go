// Package output renders list results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a --output value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected table, json or yaml)", s)
	}
}

// ListOptions are the shared list flags
type ListOptions struct {
	Format   Format
	Sort     string // column[:desc]
	Filter   string
	Page     int
	PageSize int
}

// Write applies opts to t and writes the result. JSON and YAML emit the
// items behind the remaining rows, in display order.
func Write(w io.Writer, t *Table, opts ListOptions) error {
	t = t.Filter(opts.Filter)
	if err := t.Sort(opts.Sort); err != nil {
		return err
	}
	t = t.Page(opts.Page, opts.PageSize)

	switch opts.Format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(t.Items())
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(t.Items()); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return t.Render(w)
	}
}
