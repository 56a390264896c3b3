package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/mcphub/service/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListingStore is implemented by Store (Postgres) and MemoryStore.
type ListingStore interface {
	CreateListing(ctx context.Context, collection Collection, params CreateListingParams) (*Listing, error)
	GetListing(ctx context.Context, collection Collection, id string) (*Listing, error)
	ListListings(ctx context.Context, collection Collection, params ListListingsParams) ([]*Listing, error)
	UpdateListingStatus(ctx context.Context, collection Collection, id string, status Status) (*Listing, error)
	DeleteListing(ctx context.Context, collection Collection, id string) error
}

// Store provides listing persistence on Postgres.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL,
	price         DOUBLE PRECISION NOT NULL CHECK (price >= 0),
	api_endpoints TEXT[] NOT NULL,
	tags          TEXT[] NOT NULL DEFAULT '{}',
	category      TEXT NOT NULL DEFAULT '',
	owner         TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[1]s_created_at_idx ON %[1]s (created_at DESC);
CREATE INDEX IF NOT EXISTS %[1]s_status_idx ON %[1]s (status);
`

// Migrate creates the listing tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, c := range Collections {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaTemplate, c.table())); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", c, err)
		}
	}
	return nil
}

// table returns the SQL identifier for a collection. Only known collections
// map to a table; this is what keeps table names out of user input.
func (c Collection) table() string {
	switch c {
	case CollectionMCPList:
		return "mcp_list"
	case CollectionMCPs:
		return "mcps"
	default:
		panic(fmt.Sprintf("unknown collection %q", string(c)))
	}
}

func checkCollection(c Collection) error {
	if _, err := ParseCollection(string(c)); err != nil {
		return err
	}
	return nil
}

const listingColumns = `id, title, description, price, api_endpoints, tags, category, owner, status, created_at, updated_at`

func scanListing(row pgx.Row) (*Listing, error) {
	var (
		l      Listing
		status string
	)
	err := row.Scan(
		&l.ID,
		&l.Title,
		&l.Description,
		&l.Price,
		&l.APIEndpoints,
		&l.Tags,
		&l.Category,
		&l.Owner,
		&status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = Status(status)
	return &l, nil
}

func (s *Store) observe(op string, c Collection, start time.Time, err error) {
	if errors.Is(err, ErrListingNotFound) {
		err = nil
	}
	s.metrics.RecordDBQuery(op, string(c), time.Since(start).Seconds(), err)
}

// CreateListing inserts a new pending listing.
func (s *Store) CreateListing(ctx context.Context, collection Collection, params CreateListingParams) (l *Listing, err error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	defer func(start time.Time) { s.observe("insert", collection, start, err) }(time.Now())

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, title, description, price, api_endpoints, tags, category, owner, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING %s`, collection.table(), listingColumns)

	row := s.pool.QueryRow(ctx, query,
		uuid.NewString(),
		params.Title,
		params.Description,
		params.Price,
		params.APIEndpoints,
		tags,
		params.Category,
		params.Owner,
		string(StatusPending),
	)
	l, err = scanListing(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	return l, nil
}

// GetListing returns a listing by id.
func (s *Store) GetListing(ctx context.Context, collection Collection, id string) (l *Listing, err error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	defer func(start time.Time) { s.observe("select", collection, start, err) }(time.Now())

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, listingColumns, collection.table())
	l, err = scanListing(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// ListListings returns listings newest first.
func (s *Store) ListListings(ctx context.Context, collection Collection, params ListListingsParams) (out []*Listing, err error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	defer func(start time.Time) { s.observe("list", collection, start, err) }(time.Now())

	var (
		where []string
		args  []any
	)
	if params.Status != "" {
		args = append(args, string(params.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, listingColumns, collection.table())
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	out = make([]*Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return out, nil
}

// UpdateListingStatus sets the review state of a listing.
func (s *Store) UpdateListingStatus(ctx context.Context, collection Collection, id string, status Status) (l *Listing, err error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	defer func(start time.Time) { s.observe("update", collection, start, err) }(time.Now())

	query := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = now() WHERE id = $1 RETURNING %s`,
		collection.table(), listingColumns)
	l, err = scanListing(s.pool.QueryRow(ctx, query, id, string(status)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update listing status: %w", err)
	}
	return l, nil
}

// DeleteListing removes a listing.
func (s *Store) DeleteListing(ctx context.Context, collection Collection, id string) (err error) {
	if err := checkCollection(collection); err != nil {
		return err
	}
	defer func(start time.Time) { s.observe("delete", collection, start, err) }(time.Now())

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, collection.table()), id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

// OwnerMigration reports what NormalizeOwners did to one collection.
type OwnerMigration struct {
	Scanned int
	Updated int
	// Invalid holds the ids of listings whose owner is not a valid address.
	Invalid []string
}

// NormalizeOwners rewrites every owner in a collection into canonical form
// (checksummed EVM addresses). Invalid owners are reported, not changed.
func (s *Store) NormalizeOwners(ctx context.Context, collection Collection) (res OwnerMigration, err error) {
	if err := checkCollection(collection); err != nil {
		return res, err
	}
	defer func(start time.Time) { s.observe("normalize_owners", collection, start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, owner FROM %s WHERE owner <> '' ORDER BY created_at`, collection.table()))
	if err != nil {
		return res, fmt.Errorf("failed to query owners: %w", err)
	}
	type ownerRow struct{ id, owner string }
	var owners []ownerRow
	for rows.Next() {
		var r ownerRow
		if err := rows.Scan(&r.id, &r.owner); err != nil {
			rows.Close()
			return res, fmt.Errorf("failed to scan owner row: %w", err)
		}
		owners = append(owners, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("error iterating owner rows: %w", err)
	}

	update := fmt.Sprintf(`UPDATE %s SET owner = $1, updated_at = now() WHERE id = $2`, collection.table())
	for _, r := range owners {
		res.Scanned++
		if ValidateOwner(r.owner) != nil {
			res.Invalid = append(res.Invalid, r.id)
			continue
		}
		canonical := NormalizeOwner(r.owner)
		if canonical == r.owner {
			continue
		}
		if _, err := s.pool.Exec(ctx, update, canonical, r.id); err != nil {
			return res, fmt.Errorf("failed to update owner of %s: %w", r.id, err)
		}
		res.Updated++
	}
	return res, nil
}
