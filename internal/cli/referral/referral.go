// Package referral lays out an agent's downline by level.
package referral

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode"
	"unicode/utf8"

	"github.com/salesdesk-dev/salesdesk/internal/cli/client"
)

// Level is one tier of the downline
type Level struct {
	Number int
	Agents []client.Agent
}

// BuildLevels groups agents by their level, lowest first. Agents without a
// level belong to level 1. Order inside a level is preserved.
func BuildLevels(agents []client.Agent) []Level {
	byLevel := make(map[int][]client.Agent)
	for _, a := range agents {
		lvl := a.Level
		if lvl <= 0 {
			lvl = 1
		}
		byLevel[lvl] = append(byLevel[lvl], a)
	}

	levels := make([]Level, 0, len(byLevel))
	for n, list := range byLevel {
		levels = append(levels, Level{Number: n, Agents: list})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Number < levels[j].Number })
	return levels
}

// Initials returns the upper-cased first letters of the first two words of name
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		if utf8.RuneCountInString(b.String()) == 2 {
			break
		}
	}
	return b.String()
}

// Render writes every level with one line per agent
func Render(w io.Writer, levels []Level) error {
	if len(levels) == 0 {
		_, err := fmt.Fprintln(w, "No downline found.")
		return err
	}

	for i, lvl := range levels {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "LEVEL %d (%d)\n", lvl.Number, len(lvl.Agents))

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, a := range lvl.Agents {
			fmt.Fprintf(tw, "  [%s]\t%s\t%s\tearnings %s\tsales %d\t%s\t%s\n",
				Initials(a.Username),
				a.Username,
				strings.ToUpper(a.Role),
				dash(a.Earnings.String()),
				a.TotalSales,
				dash(a.Phone),
				dash(a.ReferralCode),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
