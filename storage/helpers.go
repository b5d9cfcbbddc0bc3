package storage

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// nextStreak computes the login streak after a login at now, given the
// stored streak and last login date ("YYYY-MM-DD", empty when never logged
// in). Consecutive days extend the streak, same-day logins keep it, and a
// gap resets it to 1.
func nextStreak(current int, lastLogin string, now time.Time) int {
	if lastLogin == "" {
		return 1
	}
	last, err := time.Parse(dateLayout, lastLogin)
	if err != nil {
		return 1
	}
	today, _ := time.Parse(dateLayout, now.Format(dateLayout))
	days := int(today.Sub(last).Hours() / 24)
	switch {
	case days == 1:
		return current + 1
	case days == 0:
		if current < 1 {
			return 1
		}
		return current
	default:
		return 1
	}
}

// pgPlaceholder renders the i-th (1-based) Postgres bind parameter.
func pgPlaceholder(i int) string { return fmt.Sprintf("$%d", i) }

// sqlitePlaceholder renders a SQLite bind parameter.
func sqlitePlaceholder(int) string { return "?" }

// buildSettingsUpdate renders SET clauses and args for a partial settings
// update, using the dialect's placeholder style.
func buildSettingsUpdate(upd SettingsUpdate, placeholder func(int) string) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, col+" = "+placeholder(len(args)))
	}
	if upd.Difficulty != nil {
		add("difficulty", *upd.Difficulty)
	}
	if upd.Volume != nil {
		add("volume", *upd.Volume)
	}
	if upd.Keybinds != nil {
		add("keybinds", *upd.Keybinds)
	}
	return sets, args
}

func joinSets(sets []string) string { return strings.Join(sets, ", ") }
