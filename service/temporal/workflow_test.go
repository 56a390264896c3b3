package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func newReviewEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(a.SetListingStatus)
	env.RegisterActivity(a.PublishReviewEvent)
	return env
}

func TestListingReviewWorkflow(t *testing.T) {
	input := ReviewInput{Collection: "mcps", ListingID: "listing-1", Timeout: time.Hour}

	tests := []struct {
		name       string
		signals    []ReviewDecision
		publishErr error
		wantStatus string
		wantActs   bool
		timedOut   bool
	}{
		{
			name:       "approved",
			signals:    []ReviewDecision{{Status: "approved", Reviewer: "0xadmin"}},
			wantStatus: "approved",
			wantActs:   true,
		},
		{
			name:       "rejected with mixed case",
			signals:    []ReviewDecision{{Status: " Rejected ", Reviewer: "0xadmin"}},
			wantStatus: "rejected",
			wantActs:   true,
		},
		{
			name: "invalid decisions are ignored",
			signals: []ReviewDecision{
				{Status: "maybe"},
				{Status: "pending"},
				{Status: "approved", Reviewer: "0xadmin"},
			},
			wantStatus: "approved",
			wantActs:   true,
		},
		{
			name:       "publish failure does not fail the review",
			signals:    []ReviewDecision{{Status: "approved", Reviewer: "0xadmin"}},
			publishErr: errors.New("nats down"),
			wantStatus: "approved",
			wantActs:   true,
		},
		{
			name:       "no decision times out",
			wantStatus: "pending",
			timedOut:   true,
		},
		{
			name:       "only invalid decisions times out",
			signals:    []ReviewDecision{{Status: "maybe"}},
			wantStatus: "pending",
			timedOut:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newReviewEnv(t)

			for i, sig := range tt.signals {
				sig := sig
				env.RegisterDelayedCallback(func() {
					env.SignalWorkflow(ReviewDecisionSignal, sig)
				}, time.Duration(i+1)*time.Minute)
			}

			if tt.wantActs {
				env.OnActivity(a.SetListingStatus, mock.Anything, SetListingStatusInput{
					Collection: input.Collection,
					ListingID:  input.ListingID,
					Status:     tt.wantStatus,
				}).Return(nil).Once()
				env.OnActivity(a.PublishReviewEvent, mock.Anything, PublishReviewEventInput{
					Collection: input.Collection,
					ListingID:  input.ListingID,
					Reviewer:   "0xadmin",
				}).Return(tt.publishErr)
			}

			env.ExecuteWorkflow(ListingReviewWorkflow, input)

			require.True(t, env.IsWorkflowCompleted())
			require.NoError(t, env.GetWorkflowError())

			var result ReviewResult
			require.NoError(t, env.GetWorkflowResult(&result))
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.timedOut, result.TimedOut)
			assert.Equal(t, input.ListingID, result.ListingID)
			if tt.wantActs {
				assert.Equal(t, "0xadmin", result.Reviewer)
			}
			env.AssertExpectations(t)
		})
	}
}

func TestListingReviewWorkflow_StatusUpdateFails(t *testing.T) {
	env := newReviewEnv(t)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ReviewDecisionSignal, ReviewDecision{Status: "approved"})
	}, time.Minute)
	env.OnActivity(a.SetListingStatus, mock.Anything, mock.Anything).
		Return(errors.New("database unavailable"))

	env.ExecuteWorkflow(ListingReviewWorkflow, ReviewInput{Collection: "mcps", ListingID: "listing-1"})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertNotCalled(t, "PublishReviewEvent", mock.Anything, mock.Anything)
}

func TestListingReviewWorkflow_DefaultTimeout(t *testing.T) {
	env := newReviewEnv(t)

	// A decision just before the default deadline still counts.
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ReviewDecisionSignal, ReviewDecision{Status: "rejected"})
	}, DefaultReviewTimeout-time.Minute)
	env.OnActivity(a.SetListingStatus, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.PublishReviewEvent, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(ListingReviewWorkflow, ReviewInput{Collection: "mcp_list", ListingID: "listing-2"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result ReviewResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "rejected", result.Status)
	assert.False(t, result.TimedOut)
}

func TestReviewWorkflowID(t *testing.T) {
	assert.Equal(t, "review-mcps-abc", ReviewWorkflowID("mcps", "abc"))
}
