package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/metrics"
	natspkg "github.com/brojonat/mcphub/service/nats"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishListingEvent(ctx context.Context, event *natspkg.ListingEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	store     db.ListingStore
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance. publisher and m may be nil.
func NewActivities(store db.ListingStore, publisher PublisherInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// SetListingStatusInput contains parameters for SetListingStatus.
type SetListingStatusInput struct {
	Collection string `json:"collection"`
	ListingID  string `json:"listing_id"`
	Status     string `json:"status"`
}

// SetListingStatus writes the review outcome to the store.
func (a *Activities) SetListingStatus(ctx context.Context, input SetListingStatusInput) error {
	collection, err := db.ParseCollection(input.Collection)
	if err != nil {
		return temporalsdk.NewNonRetryableApplicationError(err.Error(), "InvalidCollection", err)
	}
	status, err := db.ParseStatus(input.Status)
	if err != nil {
		return temporalsdk.NewNonRetryableApplicationError(err.Error(), "InvalidStatus", err)
	}

	_, err = a.store.UpdateListingStatus(ctx, collection, input.ListingID, status)
	if errors.Is(err, db.ErrListingNotFound) {
		a.metrics.RecordReviewWorkflow("not_found")
		return temporalsdk.NewNonRetryableApplicationError(err.Error(), "ListingNotFound", err)
	}
	if err != nil {
		return fmt.Errorf("failed to update listing %s: %w", input.ListingID, err)
	}

	a.metrics.RecordListingStatusChange(string(collection), string(status))
	a.metrics.RecordReviewWorkflow(string(status))
	a.logger.InfoContext(ctx, "listing reviewed",
		"collection", collection,
		"listing_id", input.ListingID,
		"status", status,
	)
	return nil
}

// PublishReviewEventInput contains parameters for PublishReviewEvent.
type PublishReviewEventInput struct {
	Collection string `json:"collection"`
	ListingID  string `json:"listing_id"`
	Reviewer   string `json:"reviewer,omitempty"`
}

// PublishReviewEvent announces the listing's new status on NATS.
func (a *Activities) PublishReviewEvent(ctx context.Context, input PublishReviewEventInput) error {
	if a.publisher == nil {
		return nil
	}

	collection, err := db.ParseCollection(input.Collection)
	if err != nil {
		return temporalsdk.NewNonRetryableApplicationError(err.Error(), "InvalidCollection", err)
	}
	l, err := a.store.GetListing(ctx, collection, input.ListingID)
	if errors.Is(err, db.ErrListingNotFound) {
		return temporalsdk.NewNonRetryableApplicationError(err.Error(), "ListingNotFound", err)
	}
	if err != nil {
		return fmt.Errorf("failed to load listing %s: %w", input.ListingID, err)
	}

	event := natspkg.FromListing(natspkg.ListingStatusChanged, collection, l)
	event.Reviewer = input.Reviewer
	if err := a.publisher.PublishListingEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to publish review event: %w", err)
	}
	return nil
}
