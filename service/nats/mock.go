package nats

import (
	"context"
	"sync"

	"github.com/brojonat/mcphub/service/wallet"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu            sync.RWMutex
	listingEvents []*ListingEvent
	walletEvents  []*WalletEvent
	publishError  error
	closed        bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishListingEvent records the event and returns any configured error.
func (m *MockPublisher) PublishListingEvent(ctx context.Context, event *ListingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.listingEvents = append(m.listingEvents, event)
	return nil
}

// PublishWalletEvent records the event and returns any configured error.
func (m *MockPublisher) PublishWalletEvent(ctx context.Context, event *WalletEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.walletEvents = append(m.walletEvents, event)
	return nil
}

// Notify implements wallet.Notifier.
func (m *MockPublisher) Notify(ctx context.Context, n wallet.Notification) {
	_ = m.PublishWalletEvent(ctx, FromNotification(n))
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ListingEvents returns a copy of the published listing events.
func (m *MockPublisher) ListingEvents() []*ListingEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*ListingEvent, len(m.listingEvents))
	copy(events, m.listingEvents)
	return events
}

// WalletEvents returns a copy of the published wallet events.
func (m *MockPublisher) WalletEvents() []*WalletEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*WalletEvent, len(m.walletEvents))
	copy(events, m.walletEvents)
	return events
}

// SetPublishError configures the mock to fail every publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listingEvents = nil
	m.walletEvents = nil
	m.publishError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
