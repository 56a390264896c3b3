package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "events.listings.mcps", ListingSubject("mcps"))
	assert.Equal(t, "events.wallet.connected", WalletSubject(wallet.KindConnected))
}

func TestFromListing(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := &db.Listing{ID: "abc", Title: "Weather", Status: db.StatusPending, Owner: "0xabc", CreatedAt: created}

	ev := FromListing(ListingCreated, db.CollectionMCPs, l)
	assert.Equal(t, ListingCreated, ev.Type)
	assert.Equal(t, "mcps", ev.Collection)
	assert.Equal(t, "abc", ev.ListingID)
	assert.Equal(t, "pending", ev.Status)
	assert.Equal(t, created, ev.CreatedAt)
	assert.WithinDuration(t, time.Now(), ev.PublishedAt, 5*time.Second)
}

func TestMockPublisher_Notify(t *testing.T) {
	m := NewMockPublisher()
	var _ Publisher = m
	var _ wallet.Notifier = m

	m.Notify(context.Background(), wallet.Notification{Kind: wallet.KindConnected, Level: wallet.LevelSuccess, Account: "0xabc"})
	events := m.WalletEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "0xabc", events[0].Account)

	m.SetPublishError(errors.New("down"))
	err := m.PublishListingEvent(context.Background(), &ListingEvent{Collection: "mcps"})
	assert.Error(t, err)
	assert.Empty(t, m.ListingEvents())
}
