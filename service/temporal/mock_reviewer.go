package temporal

import (
	"context"
	"sync"
)

// MockReviewer is a mock implementation of Reviewer for testing.
type MockReviewer struct {
	mu        sync.Mutex
	reviews   map[string]bool // workflow id -> still running
	decisions map[string][]ReviewDecision
	startErr  error
	submitErr error
}

// NewMockReviewer creates a new MockReviewer.
func NewMockReviewer() *MockReviewer {
	return &MockReviewer{
		reviews:   make(map[string]bool),
		decisions: make(map[string][]ReviewDecision),
	}
}

// StartReview records that a review was started.
func (m *MockReviewer) StartReview(ctx context.Context, collection, listingID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return "", m.startErr
	}
	id := ReviewWorkflowID(collection, listingID)
	m.reviews[id] = true
	return id, nil
}

// SubmitDecision records the decision and completes the review.
func (m *MockReviewer) SubmitDecision(ctx context.Context, collection, listingID string, decision ReviewDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitErr != nil {
		return m.submitErr
	}
	id := ReviewWorkflowID(collection, listingID)
	if !m.reviews[id] {
		return ErrReviewNotFound
	}
	m.reviews[id] = false
	m.decisions[id] = append(m.decisions[id], decision)
	return nil
}

// HasReview reports whether a review was ever started for the listing.
func (m *MockReviewer) HasReview(collection, listingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reviews[ReviewWorkflowID(collection, listingID)]
	return ok
}

// Decisions returns the decisions submitted for a listing.
func (m *MockReviewer) Decisions(collection, listingID string) []ReviewDecision {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ReviewDecision, len(m.decisions[ReviewWorkflowID(collection, listingID)]))
	copy(out, m.decisions[ReviewWorkflowID(collection, listingID)])
	return out
}

// SetStartError configures the mock to return an error on StartReview.
func (m *MockReviewer) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetSubmitError configures the mock to return an error on SubmitDecision.
func (m *MockReviewer) SetSubmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}
