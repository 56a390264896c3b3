package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps listings in process memory. It backs local development
// (STORE_BACKEND=memory) and handler tests.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      uint64
	listings map[Collection]map[string]*memoryListing
	now      func() time.Time
}

type memoryListing struct {
	listing Listing
	seq     uint64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[Collection]map[string]*memoryListing),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func clone(l Listing) *Listing {
	l.APIEndpoints = append([]string(nil), l.APIEndpoints...)
	l.Tags = append([]string{}, l.Tags...)
	return &l
}

// CreateListing implements ListingStore.
func (s *MemoryStore) CreateListing(ctx context.Context, collection Collection, params CreateListingParams) (*Listing, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.seq++
	entry := &memoryListing{
		seq: s.seq,
		listing: Listing{
			ID:           uuid.NewString(),
			Title:        params.Title,
			Description:  params.Description,
			Price:        params.Price,
			APIEndpoints: params.APIEndpoints,
			Tags:         params.Tags,
			Category:     params.Category,
			Owner:        params.Owner,
			Status:       StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	if s.listings[collection] == nil {
		s.listings[collection] = make(map[string]*memoryListing)
	}
	s.listings[collection][entry.listing.ID] = entry
	return clone(entry.listing), nil
}

// GetListing implements ListingStore.
func (s *MemoryStore) GetListing(ctx context.Context, collection Collection, id string) (*Listing, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.listings[collection][id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return clone(entry.listing), nil
}

// ListListings implements ListingStore. Listings created in the same
// instant are ordered by insertion, newest first.
func (s *MemoryStore) ListListings(ctx context.Context, collection Collection, params ListListingsParams) ([]*Listing, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make([]*memoryListing, 0, len(s.listings[collection]))
	for _, e := range s.listings[collection] {
		if params.Status != "" && e.listing.Status != params.Status {
			continue
		}
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.listing.CreatedAt.Equal(b.listing.CreatedAt) {
			return a.listing.CreatedAt.After(b.listing.CreatedAt)
		}
		return a.seq > b.seq
	})

	if params.Offset > 0 {
		if int(params.Offset) >= len(entries) {
			entries = nil
		} else {
			entries = entries[params.Offset:]
		}
	}
	if params.Limit > 0 && int(params.Limit) < len(entries) {
		entries = entries[:params.Limit]
	}

	out := make([]*Listing, len(entries))
	for i, e := range entries {
		out[i] = clone(e.listing)
	}
	return out, nil
}

// UpdateListingStatus implements ListingStore.
func (s *MemoryStore) UpdateListingStatus(ctx context.Context, collection Collection, id string, status Status) (*Listing, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.listings[collection][id]
	if !ok {
		return nil, ErrListingNotFound
	}
	entry.listing.Status = status
	entry.listing.UpdatedAt = s.now()
	return clone(entry.listing), nil
}

// DeleteListing implements ListingStore.
func (s *MemoryStore) DeleteListing(ctx context.Context, collection Collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[collection][id]; !ok {
		return ErrListingNotFound
	}
	delete(s.listings[collection], id)
	return nil
}
