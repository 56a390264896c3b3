// Package search implements marketplace search: a substring filter, an
// optional relevance re-ranking ("pro mode"), and a debounced widget that
// drives both from keystrokes.
package search

import "strings"

// Item is a searchable marketplace entry.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Result is an Item as returned by a search. Score is set only by pro mode.
type Result struct {
	Item
	Score *float64 `json:"score,omitempty"`
}

// Mode selects basic filtering or re-ranked search.
type Mode string

const (
	ModeBasic Mode = "basic"
	ModePro   Mode = "pro"
)

// ParseMode maps a request parameter to a Mode. Anything but "pro" is basic.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModePro)) {
		return ModePro
	}
	return ModeBasic
}

// Filter returns the items whose title, description or any tag contains
// query, ignoring case. Order is preserved. A blank query matches nothing.
func Filter(items []Item, query string) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Result{}
	}

	out := make([]Result, 0)
	for _, it := range items {
		if matches(it, q) {
			out = append(out, Result{Item: it})
		}
	}
	return out
}

func matches(it Item, q string) bool {
	if strings.Contains(strings.ToLower(it.Title), q) ||
		strings.Contains(strings.ToLower(it.Description), q) {
		return true
	}
	for _, tag := range it.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
