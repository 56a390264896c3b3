package temporal

import (
	"time"

	"github.com/brojonat/mcphub/service/db"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// ReviewDecisionSignal carries a ReviewDecision to a running review.
	ReviewDecisionSignal = "review-decision"

	// DefaultReviewTimeout is how long a listing waits for an admin decision.
	DefaultReviewTimeout = 7 * 24 * time.Hour
)

var a *Activities // for type-safe activity invocation

// ReviewInput starts a ListingReviewWorkflow.
type ReviewInput struct {
	Collection string        `json:"collection"`
	ListingID  string        `json:"listing_id"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// ReviewDecision is the payload of ReviewDecisionSignal.
type ReviewDecision struct {
	Status   string `json:"status"`
	Reviewer string `json:"reviewer,omitempty"`
}

// ReviewResult summarises a finished review.
type ReviewResult struct {
	Collection string `json:"collection"`
	ListingID  string `json:"listing_id"`
	Status     string `json:"status"`
	Reviewer   string `json:"reviewer,omitempty"`
	TimedOut   bool   `json:"timed_out"`
}

// ListingReviewWorkflow waits for an admin to approve or reject a listing.
// Decisions with an unknown status, or "pending", are ignored. If no decision
// arrives before the timeout the listing is left pending.
func ListingReviewWorkflow(ctx workflow.Context, input ReviewInput) (*ReviewResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ListingReviewWorkflow started",
		"collection", input.Collection,
		"listing_id", input.ListingID,
	)

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = DefaultReviewTimeout
	}

	result := &ReviewResult{
		Collection: input.Collection,
		ListingID:  input.ListingID,
		Status:     string(db.StatusPending),
	}

	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	timer := workflow.NewTimer(timerCtx, timeout)
	decisions := workflow.GetSignalChannel(ctx, ReviewDecisionSignal)

	var decision *ReviewDecision
	for decision == nil && !result.TimedOut {
		selector := workflow.NewSelector(ctx)
		selector.AddReceive(decisions, func(c workflow.ReceiveChannel, more bool) {
			var d ReviewDecision
			c.Receive(ctx, &d)
			status, err := db.ParseStatus(d.Status)
			if err != nil || status == db.StatusPending {
				logger.Warn("ignoring review decision", "status", d.Status, "reviewer", d.Reviewer)
				return
			}
			d.Status = string(status)
			decision = &d
		})
		selector.AddFuture(timer, func(f workflow.Future) {
			result.TimedOut = true
		})
		selector.Select(ctx)
	}

	if result.TimedOut {
		logger.Info("review timed out", "listing_id", input.ListingID)
		return result, nil
	}
	cancelTimer()

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})

	err := workflow.ExecuteActivity(ctx, a.SetListingStatus, SetListingStatusInput{
		Collection: input.Collection,
		ListingID:  input.ListingID,
		Status:     decision.Status,
	}).Get(ctx, nil)
	if err != nil {
		logger.Error("failed to set listing status", "error", err)
		return result, err
	}
	result.Status = decision.Status
	result.Reviewer = decision.Reviewer

	err = workflow.ExecuteActivity(ctx, a.PublishReviewEvent, PublishReviewEventInput{
		Collection: input.Collection,
		ListingID:  input.ListingID,
		Reviewer:   decision.Reviewer,
	}).Get(ctx, nil)
	if err != nil {
		// The status change has already been committed.
		logger.Warn("failed to publish review event", "error", err)
	}

	logger.Info("ListingReviewWorkflow completed",
		"listing_id", input.ListingID,
		"status", result.Status,
		"reviewer", result.Reviewer,
	)
	return result, nil
}
