package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/mcphub/service/search"
	"github.com/ethereum/go-ethereum/common"
	solanago "github.com/gagliardetto/solana-go"
)

// ErrListingNotFound is returned when a listing does not exist.
var ErrListingNotFound = errors.New("listing not found")

// Collection names a listings table.
type Collection string

const (
	// CollectionMCPList holds submissions made through the listing form.
	CollectionMCPList Collection = "mcp_list"
	// CollectionMCPs holds the marketplace catalogue.
	CollectionMCPs Collection = "mcps"
)

// Collections lists every known collection.
var Collections = []Collection{CollectionMCPList, CollectionMCPs}

// ParseCollection validates a collection name. It accepts both the table
// name and the URL form ("mcp-list").
func ParseCollection(s string) (Collection, error) {
	switch strings.ReplaceAll(strings.TrimSpace(s), "-", "_") {
	case string(CollectionMCPList):
		return CollectionMCPList, nil
	case string(CollectionMCPs):
		return CollectionMCPs, nil
	default:
		return "", fmt.Errorf("unknown collection %q", s)
	}
}

// Path returns the URL segment for the collection.
func (c Collection) Path() string {
	return strings.ReplaceAll(string(c), "_", "-")
}

// Status is the review state of a listing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus validates a status value.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("invalid status %q (must be pending, approved or rejected)", s)
	}
}

// Listing is an MCP server offered on the marketplace.
type Listing struct {
	ID           string
	Title        string
	Description  string
	Price        float64
	APIEndpoints []string
	Tags         []string
	Category     string
	Owner        string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SearchItem returns the searchable view of a listing.
func (l *Listing) SearchItem() search.Item {
	return search.Item{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Tags:        l.Tags,
	}
}

// SearchItems converts listings for the search package.
func SearchItems(listings []*Listing) []search.Item {
	items := make([]search.Item, len(listings))
	for i, l := range listings {
		items[i] = l.SearchItem()
	}
	return items
}

// CreateListingParams contains the parameters for creating a listing.
type CreateListingParams struct {
	Title        string
	Description  string
	Price        float64
	APIEndpoints []string
	Tags         []string
	Category     string
	Owner        string
}

// ListListingsParams filters and limits a listing query.
type ListListingsParams struct {
	// Status filters by review state when non-empty.
	Status Status
	Limit  int32
	Offset int32
}

// ValidateOwner accepts an empty owner, an EVM hex address or a Solana
// base58 public key.
func ValidateOwner(owner string) error {
	if owner == "" {
		return nil
	}
	if common.IsHexAddress(owner) {
		return nil
	}
	if _, err := solanago.PublicKeyFromBase58(owner); err == nil {
		return nil
	}
	return fmt.Errorf("owner %q is neither an EVM address nor a Solana public key", owner)
}

// NormalizeOwner returns the canonical form of a valid owner.
func NormalizeOwner(owner string) string {
	if common.IsHexAddress(owner) {
		return common.HexToAddress(owner).Hex()
	}
	return owner
}
