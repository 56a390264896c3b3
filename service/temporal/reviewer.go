package temporal

import (
	"context"
	"errors"
)

// ErrReviewNotFound is returned when no review workflow is running for a listing.
var ErrReviewNotFound = errors.New("no review in progress for listing")

// Reviewer routes listing reviews through Temporal.
type Reviewer interface {
	// StartReview starts the review workflow for a new listing and returns
	// the workflow id.
	StartReview(ctx context.Context, collection, listingID string) (string, error)

	// SubmitDecision delivers an admin decision to the running review.
	// It returns ErrReviewNotFound when the review has already finished.
	SubmitDecision(ctx context.Context, collection, listingID string, decision ReviewDecision) error
}

// ReviewWorkflowID returns the workflow id of a listing's review.
func ReviewWorkflowID(collection, listingID string) string {
	return "review-" + collection + "-" + listingID
}
