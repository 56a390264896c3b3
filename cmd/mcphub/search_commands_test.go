package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/mcphub/client"
	"github.com/brojonat/mcphub/service/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedInput struct {
	queries []string
	modes   []bool
}

func (r *recordedInput) OnQueryChange(text string) { r.queries = append(r.queries, text) }
func (r *recordedInput) SetProMode(pro bool)       { r.modes = append(r.modes, pro) }

func TestApplyInput(t *testing.T) {
	rec := &recordedInput{}

	applyInput(rec, "weather")
	applyInput(rec, " :pro ")
	applyInput(rec, "weather forecast")
	applyInput(rec, ":basic")
	applyInput(rec, "")

	assert.Equal(t, []string{"weather", "weather forecast", ""}, rec.queries)
	assert.Equal(t, []bool{true, false}, rec.modes)
}

func TestListingSource(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/mcps", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"listings": []map[string]any{
				{"id": "1", "title": "Weather", "description": "Forecasts", "tags": []string{"weather"}, "status": "approved"},
			},
		})
	}))
	defer srv.Close()

	api := client.NewClient(srv.URL, srv.Client(), nil)
	items, err := listingSource(api, "mcps")(context.Background())
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "status=approved")
	require.Len(t, items, 1)
	assert.Equal(t, search.Item{ID: "1", Title: "Weather", Description: "Forecasts", Tags: []string{"weather"}}, items[0])
}

func TestPrintWidgetResults(t *testing.T) {
	score := 0.5

	var buf bytes.Buffer
	printWidgetResults(&buf, search.Response{
		Query: "weather",
		Mode:  search.ModePro,
		Results: []search.Result{
			{Item: search.Item{ID: "1", Title: "Weather"}, Score: &score},
		},
	})
	out := buf.String()
	assert.Contains(t, out, `1 result(s) for "weather" [pro]`)
	assert.Contains(t, out, "0.500")

	buf.Reset()
	printWidgetResults(&buf, search.Response{Query: "  ", Results: []search.Result{}})
	assert.Empty(t, buf.String())

	buf.Reset()
	printWidgetResults(&buf, search.Response{Query: "x", Mode: search.ModeBasic, Degraded: true, Results: []search.Result{}})
	assert.Contains(t, buf.String(), "0 result(s)")
	assert.Contains(t, buf.String(), "re-ranking unavailable")

	buf.Reset()
	printWidgetResults(&buf, search.Response{Query: "x", Mode: search.ModeBasic, Results: []search.Result{}, Error: "connection refused"})
	assert.Contains(t, buf.String(), `search for "x" failed: connection refused`)
	assert.NotContains(t, buf.String(), "result(s)")
}
