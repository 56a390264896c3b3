package nats

import (
	"time"

	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/wallet"
)

// Listing event types.
const (
	ListingCreated       = "listing.created"
	ListingStatusChanged = "listing.status_changed"
	ListingDeleted       = "listing.deleted"
)

// ListingEvent is published to "events.listings.{collection}".
type ListingEvent struct {
	Type       string    `json:"type"`
	Collection string    `json:"collection"`
	ListingID  string    `json:"listing_id"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	Owner      string    `json:"owner,omitempty"`
	Reviewer   string    `json:"reviewer,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// FromListing builds a ListingEvent of the given type.
func FromListing(eventType string, collection db.Collection, l *db.Listing) *ListingEvent {
	return &ListingEvent{
		Type:        eventType,
		Collection:  string(collection),
		ListingID:   l.ID,
		Title:       l.Title,
		Status:      string(l.Status),
		Owner:       l.Owner,
		CreatedAt:   l.CreatedAt,
		PublishedAt: time.Now().UTC(),
	}
}

// WalletEvent is published to "events.wallet.{kind}".
type WalletEvent struct {
	Kind    string `json:"kind"`
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Account string `json:"account,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// FromNotification converts a wallet notification into an event.
func FromNotification(n wallet.Notification) *WalletEvent {
	return &WalletEvent{
		Kind:        n.Kind,
		Level:       n.Level,
		Title:       n.Title,
		Message:     n.Message,
		Account:     n.Account,
		PublishedAt: time.Now().UTC(),
	}
}

// ListingSubject returns the subject listing events of a collection go to.
func ListingSubject(collection string) string {
	return SubjectPrefix + "listings." + collection
}

// WalletSubject returns the subject wallet events of a kind go to.
func WalletSubject(kind string) string {
	return SubjectPrefix + "wallet." + kind
}
