package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/search"
)

// maxSearchCorpus bounds how many approved listings a search loads.
const maxSearchCorpus = 1000

// handleSearch returns a handler that searches approved listings.
// GET /api/v1/search?q=&mode=basic|pro&collection=
func handleSearch(store db.ListingStore, ranker *search.Ranker, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		q := query.Get("q")
		mode := search.ParseMode(query.Get("mode"))

		collection := db.CollectionMCPs
		if c := query.Get("collection"); c != "" {
			parsed, err := db.ParseCollection(c)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			collection = parsed
		}

		if err := validateText("q", q, maxTitleLength); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := search.Response{Query: q, Mode: mode, Results: []search.Result{}}
		if strings.TrimSpace(q) != "" {
			listings, err := store.ListListings(r.Context(), collection, db.ListListingsParams{
				Status: db.StatusApproved,
				Limit:  maxSearchCorpus,
			})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to load listings for search", "collection", collection, "error", err)
				writeError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			resp = ranker.Search(r.Context(), db.SearchItems(listings), q, mode == search.ModePro)
		}

		logger.DebugContext(r.Context(), "search completed",
			"query", q,
			"mode", resp.Mode,
			"count", len(resp.Results),
			"degraded", resp.Degraded,
		)

		writeJSON(w, map[string]any{
			"query":    resp.Query,
			"mode":     resp.Mode,
			"results":  resp.Results,
			"count":    len(resp.Results),
			"degraded": resp.Degraded,
		}, http.StatusOK)
	})
}
