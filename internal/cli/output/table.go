package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"
)

// Row is one table line and the value it was built from
type Row struct {
	Cells []string
	Item  any
}

// Table represents tabular data
type Table struct {
	Headers []string
	Rows    []Row
}

// NewTable creates an empty table with the given headers
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// Add appends a row. Empty cells are shown as "-".
func (t *Table) Add(item any, cells ...string) {
	row := make([]string, len(cells))
	for i, c := range cells {
		if c == "" {
			c = "-"
		}
		row[i] = c
	}
	t.Rows = append(t.Rows, Row{Cells: row, Item: item})
}

// Items returns the items of every row, in row order
func (t *Table) Items() []any {
	items := make([]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		items = append(items, r.Item)
	}
	return items
}

// Filter keeps the rows where any cell contains text, ignoring case
func (t *Table) Filter(text string) *Table {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return t
	}

	out := &Table{Headers: t.Headers}
	for _, r := range t.Rows {
		for _, c := range r.Cells {
			if strings.Contains(strings.ToLower(c), text) {
				out.Rows = append(out.Rows, r)
				break
			}
		}
	}
	return out
}

// Sort orders rows by a column given as "name" or "name:desc". Numeric
// columns compare as numbers. The sort is stable.
func (t *Table) Sort(by string) error {
	if by == "" {
		return nil
	}

	name, dir, _ := strings.Cut(by, ":")
	desc := false
	switch strings.ToLower(dir) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return fmt.Errorf("invalid sort direction %q (expected asc or desc)", dir)
	}

	col := t.column(name)
	if col < 0 {
		return fmt.Errorf("unknown column %q (available: %s)", name, strings.ToLower(strings.Join(t.Headers, ", ")))
	}

	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i].Cells[col], t.Rows[j].Cells[col]
		if desc {
			a, b = b, a
		}
		return less(a, b)
	})
	return nil
}

func (t *Table) column(name string) int {
	name = strings.ReplaceAll(strings.ToLower(name), "_", " ")
	for i, h := range t.Headers {
		if strings.ToLower(h) == name {
			return i
		}
	}
	return -1
}

func less(a, b string) bool {
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

// Page returns page n (1-based) of size rows. A non-positive size disables paging.
func (t *Table) Page(n, size int) *Table {
	if size <= 0 {
		return t
	}
	if n < 1 {
		n = 1
	}

	start := (n - 1) * size
	if start >= len(t.Rows) {
		return &Table{Headers: t.Headers}
	}
	end := min(start+size, len(t.Rows))
	return &Table{Headers: t.Headers, Rows: t.Rows[start:end]}
}

// Render writes the table with a leading row number column
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	headers := append([]string{"#"}, t.Headers...)
	rules := make([]string, len(headers))
	for i, h := range headers {
		rules[i] = strings.Repeat("─", utf8.RuneCountInString(h))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	fmt.Fprintln(tw, strings.Join(rules, "\t"))

	for i, r := range t.Rows {
		fmt.Fprintf(tw, "%d\t%s\n", i+1, strings.Join(r.Cells, "\t"))
	}

	return tw.Flush()
}
