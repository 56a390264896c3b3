package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var catalog = []Item{
	{ID: "1", Title: "Weather MCP", Description: "Forecasts and alerts", Tags: []string{"weather", "api"}},
	{ID: "2", Title: "Postgres Tools", Description: "Query your database", Tags: []string{"sql"}},
	{ID: "3", Title: "Calendar", Description: "Schedule meetings with an MCP server", Tags: nil},
	{ID: "4", Title: "Notes", Description: "Markdown notes", Tags: []string{"MCP-ready"}},
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "title case-insensitive", query: "weather", want: []string{"1"}},
		{name: "description", query: "DATABASE", want: []string{"2"}},
		{name: "tags and text keep order", query: "mcp", want: []string{"1", "3", "4"}},
		{name: "trimmed", query: "  sql ", want: []string{"2"}},
		{name: "no match", query: "blockchain", want: []string{}},
		{name: "blank", query: "   ", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(catalog, tt.query)
			assert.Equal(t, tt.want, ids(got))
			for _, r := range got {
				assert.Nil(t, r.Score)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModePro, ParseMode("pro"))
	assert.Equal(t, ModePro, ParseMode(" PRO "))
	assert.Equal(t, ModeBasic, ParseMode("basic"))
	assert.Equal(t, ModeBasic, ParseMode(""))
	assert.Equal(t, ModeBasic, ParseMode("turbo"))
}
