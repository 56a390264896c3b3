package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/metrics"
	natspkg "github.com/brojonat/mcphub/service/nats"
	"github.com/brojonat/mcphub/service/temporal"
	"github.com/brojonat/mcphub/service/wallet"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxTitleLength     = 200
	maxDescLength      = 10000
	maxEndpoints       = 20
	maxTags            = 20
	defaultListLimit   = 100
	maxListLimit       = 1000

	// walletHeader carries the caller's connected wallet address. Admin
	// requests also carry wallet.SignatureHeader and wallet.TimestampHeader.
	walletHeader = wallet.AddressHeader
)

// EventPublisher is the subset of the NATS publisher the handlers use.
type EventPublisher interface {
	PublishListingEvent(ctx context.Context, event *natspkg.ListingEvent) error
}

// createListingRequest is the body of POST /api/v1/{collection}.
type createListingRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Price        *float64 `json:"price"`
	APIEndpoints []string `json:"apiEndpoints"`
	Tags         []string `json:"tags"`
	Category     string   `json:"category"`
	Owner        string   `json:"owner"`
}

func (r *createListingRequest) validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.Owner = strings.TrimSpace(r.Owner)

	var missing []string
	if r.Title == "" {
		missing = append(missing, "title")
	}
	if r.Description == "" {
		missing = append(missing, "description")
	}
	if r.Price == nil {
		missing = append(missing, "price")
	}
	r.APIEndpoints = nonBlank(r.APIEndpoints)
	r.Tags = nonBlank(r.Tags)
	if len(r.APIEndpoints) == 0 {
		missing = append(missing, "apiEndpoints")
	}
	if len(missing) > 0 {
		return errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if err := validateText("title", r.Title, maxTitleLength); err != nil {
		return err
	}
	if err := validateText("description", r.Description, maxDescLength); err != nil {
		return err
	}
	if *r.Price < 0 {
		return errorf("price cannot be negative")
	}
	if len(r.APIEndpoints) > maxEndpoints {
		return errorf("too many apiEndpoints: maximum is %d", maxEndpoints)
	}
	if len(r.Tags) > maxTags {
		return errorf("too many tags: maximum is %d", maxTags)
	}
	if err := db.ValidateOwner(r.Owner); err != nil {
		return errorf("invalid owner: %v", err)
	}
	return nil
}

// nonBlank trims each value and drops the empty ones.
func nonBlank(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// updateStatusRequest is the body of PATCH /api/v1/{collection}/{id}/status.
type updateStatusRequest struct {
	Status   string `json:"status"`
	Reviewer string `json:"reviewer"`
}

// listingResponse is the JSON response format for a listing.
type listingResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	APIEndpoints []string  `json:"apiEndpoints"`
	Tags         []string  `json:"tags"`
	Category     string    `json:"category,omitempty"`
	Owner        string    `json:"owner,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// listingToResponse converts a domain Listing to a response format.
func listingToResponse(l *db.Listing) listingResponse {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return listingResponse{
		ID:           l.ID,
		Title:        l.Title,
		Description:  l.Description,
		Price:        l.Price,
		APIEndpoints: l.APIEndpoints,
		Tags:         tags,
		Category:     l.Category,
		Owner:        l.Owner,
		Status:       string(l.Status),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

// handleCreateListing returns a handler that submits a listing for review.
// POST /api/v1/{collection}
func handleCreateListing(collection db.Collection, store db.ListingStore, reviewer temporal.Reviewer, publisher EventPublisher, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req createListingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := req.validate(); err != nil {
			logger.DebugContext(r.Context(), "invalid listing", "collection", collection, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		l, err := store.CreateListing(r.Context(), collection, db.CreateListingParams{
			Title:        req.Title,
			Description:  req.Description,
			Price:        *req.Price,
			APIEndpoints: req.APIEndpoints,
			Tags:         req.Tags,
			Category:     req.Category,
			Owner:        db.NormalizeOwner(req.Owner),
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to create listing", "collection", collection, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		m.RecordListingCreated(string(collection))
		logger.InfoContext(r.Context(), "listing created",
			"collection", collection,
			"id", l.ID,
			"owner", l.Owner,
		)

		publishListingEvent(r.Context(), publisher, natspkg.FromListing(natspkg.ListingCreated, collection, l), logger)

		if reviewer != nil {
			if _, err := reviewer.StartReview(r.Context(), string(collection), l.ID); err != nil {
				// The listing stays pending and can still be reviewed directly.
				logger.ErrorContext(r.Context(), "failed to start review", "id", l.ID, "error", err)
			}
		}

		writeJSON(w, map[string]any{
			"id":      l.ID,
			"listing": listingToResponse(l),
		}, http.StatusCreated)
	})
}

// handleListListings returns a handler that lists listings newest first.
// GET /api/v1/{collection}?status=&limit=&offset=
func handleListListings(collection db.Collection, store db.ListingStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		var params db.ListListingsParams
		if s := query.Get("status"); s != "" {
			status, err := db.ParseStatus(s)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			params.Status = status
		}

		limit, err := parseQueryInt(query.Get("limit"), "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		offset, err := parseQueryInt(query.Get("offset"), "offset", 0, 0, math.MaxInt32)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		params.Limit = int32(limit)
		params.Offset = int32(offset)

		listings, err := store.ListListings(r.Context(), collection, params)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list listings", "collection", collection, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]listingResponse, len(listings))
		for i, l := range listings {
			resp[i] = listingToResponse(l)
		}

		writeJSON(w, map[string]any{
			"listings": resp,
			"count":    len(resp),
			"limit":    params.Limit,
			"offset":   params.Offset,
		}, http.StatusOK)
	})
}

// handleGetListing returns a handler that fetches one listing.
// GET /api/v1/{collection}/{id}
func handleGetListing(collection db.Collection, store db.ListingStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := validateID(id); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		l, err := store.GetListing(r.Context(), collection, id)
		if errors.Is(err, db.ErrListingNotFound) {
			writeError(w, "listing not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get listing", "collection", collection, "id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, listingToResponse(l), http.StatusOK)
	})
}

// handleUpdateListingStatus returns a handler that applies an admin review
// decision. When a review workflow is running the decision is routed to it
// and the handler answers 202.
// PATCH /api/v1/{collection}/{id}/status
func handleUpdateListingStatus(collection db.Collection, store db.ListingStore, reviewer temporal.Reviewer, publisher EventPublisher, adminAddress string, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return requireAdmin(adminAddress, logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := validateID(id); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		status, err := db.ParseStatus(req.Status)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		reviewedBy := strings.TrimSpace(req.Reviewer)
		if reviewedBy == "" {
			reviewedBy = r.Header.Get(walletHeader)
		}

		if reviewer != nil && status != db.StatusPending {
			err := reviewer.SubmitDecision(r.Context(), string(collection), id, temporal.ReviewDecision{
				Status:   string(status),
				Reviewer: reviewedBy,
			})
			switch {
			case err == nil:
				logger.InfoContext(r.Context(), "review decision routed to workflow", "id", id, "status", status)
				writeJSON(w, map[string]any{
					"id":         id,
					"status":     string(status),
					"workflowId": temporal.ReviewWorkflowID(string(collection), id),
				}, http.StatusAccepted)
				return
			case errors.Is(err, temporal.ErrReviewNotFound):
				logger.DebugContext(r.Context(), "no running review, updating directly", "id", id)
			default:
				logger.ErrorContext(r.Context(), "failed to submit review decision", "id", id, "error", err)
				writeError(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}

		l, err := store.UpdateListingStatus(r.Context(), collection, id, status)
		if errors.Is(err, db.ErrListingNotFound) {
			writeError(w, "listing not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to update listing status", "id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		m.RecordListingStatusChange(string(collection), string(status))
		logger.InfoContext(r.Context(), "listing status updated",
			"collection", collection,
			"id", id,
			"status", status,
			"reviewer", reviewedBy,
		)

		event := natspkg.FromListing(natspkg.ListingStatusChanged, collection, l)
		event.Reviewer = reviewedBy
		publishListingEvent(r.Context(), publisher, event, logger)

		writeJSON(w, listingToResponse(l), http.StatusOK)
	}))
}

// handleDeleteListing returns a handler that removes a listing.
// DELETE /api/v1/{collection}/{id}
func handleDeleteListing(collection db.Collection, store db.ListingStore, publisher EventPublisher, adminAddress string, logger *slog.Logger) http.Handler {
	return requireAdmin(adminAddress, logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := validateID(id); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		err := store.DeleteListing(r.Context(), collection, id)
		if errors.Is(err, db.ErrListingNotFound) {
			writeError(w, "listing not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to delete listing", "id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "listing deleted", "collection", collection, "id", id)
		publishListingEvent(r.Context(), publisher, &natspkg.ListingEvent{
			Type:        natspkg.ListingDeleted,
			Collection:  string(collection),
			ListingID:   id,
			PublishedAt: time.Now().UTC(),
		}, logger)

		w.WriteHeader(http.StatusNoContent)
	}))
}

// requireAdmin only lets through requests signed by the admin wallet. The
// signature covers the method, the path, the body and a recent timestamp.
func requireAdmin(adminAddress string, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get(walletHeader)

		var body []byte
		if r.Body != nil {
			b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
			if err != nil {
				writeError(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			body = b
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		ts, err := strconv.ParseInt(r.Header.Get(wallet.TimestampHeader), 10, 64)
		if err == nil {
			err = wallet.VerifyAdminRequest(wallet.AdminRequest{
				Method:    r.Method,
				Path:      r.URL.EscapedPath(),
				Body:      body,
				Timestamp: ts,
			}, caller, r.Header.Get(wallet.SignatureHeader), adminAddress, time.Now())
		}
		if err != nil {
			logger.WarnContext(r.Context(), "admin action denied",
				"path", r.URL.Path,
				"caller", caller,
				"error", err,
			)
			writeError(w, "admin wallet signature required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func publishListingEvent(ctx context.Context, publisher EventPublisher, event *natspkg.ListingEvent, logger *slog.Logger) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishListingEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish listing event",
			"type", event.Type,
			"id", event.ListingID,
			"error", err,
		)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateText rejects oversized values and control characters other than
// whitespace.
func validateText(field, value string, maxLen int) error {
	if len(value) > maxLen {
		return errorf("%s too long: maximum length is %d characters", field, maxLen)
	}
	for _, r := range value {
		if r == 0 || (unicode.IsControl(r) && !unicode.IsSpace(r)) {
			return errorf("invalid characters in %s: control characters not allowed", field)
		}
	}
	return nil
}

// validateID checks a listing id path parameter.
func validateID(id string) error {
	if id == "" {
		return errorf("id is required")
	}
	if len(id) > 64 {
		return errorf("id too long")
	}
	for _, r := range id {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return errorf("invalid id format")
		}
	}
	return nil
}

// parseQueryInt parses an integer query parameter within [lo, hi].
// A negative hi means unbounded.
func parseQueryInt(raw, name string, def, lo, hi int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorf("invalid %s parameter: must be an integer", name)
	}
	if v < lo {
		return 0, errorf("%s must be at least %d", name, lo)
	}
	if hi >= 0 && v > hi {
		return 0, errorf("%s cannot exceed %d", name, hi)
	}
	return v, nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...any) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
