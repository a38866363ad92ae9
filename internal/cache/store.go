// Package cache implements the cache store (C1): a content-addressed,
// append-only collection of GeocodeRecords with a single "current" pointer
// per ticket, lock support, query, and statistics — grounded on the
// teacher's internal/store package shape and SQLite-backed
// internal/store/sqlite.go implementation.
package cache

import (
	"context"
	"strings"

	"github.com/sells-group/geoticket/internal/model"
)

// Filter selects records for Query. Zero-value fields are unconstrained;
// non-empty slices/sets are OR'd within the field and AND'd across fields.
type Filter struct {
	QualityTiers    []model.QualityTier
	ReviewPriority  []model.ReviewPriority
	Locked          *bool
	Methods         []string
	MinConfidence   *float64
	GeocodeKey      string
	Limit           int
}

// Stats is the cache-wide statistics snapshot.
type Stats struct {
	TotalRecords   int
	TierCounts     map[model.QualityTier]int
	PriorityCounts map[model.ReviewPriority]int
	LockedCount    int
	MethodCounts   map[string]int
}

// Store is the persistence interface for geocode records.
type Store interface {
	// Current returns the current record for a ticket, or nil if none exists.
	Current(ctx context.Context, ticketNumber string) (*model.GeocodeRecord, error)

	// History returns every version for a ticket, newest first.
	History(ctx context.Context, ticketNumber string) ([]model.GeocodeRecord, error)

	// Put stores rec as a new version, superseding any current record.
	// Fails with a LockedError if the prior current record is locked and
	// stageID != "human_review"; fails with a StorageError if an
	// invariant would be broken.
	Put(ctx context.Context, rec *model.GeocodeRecord, stageID string) (*model.GeocodeRecord, error)

	// Lock and Unlock mutate lock fields on the current record only.
	Lock(ctx context.Context, ticketNumber, reason, actor string) error
	Unlock(ctx context.Context, ticketNumber string) error

	// Query returns current records matching filter.
	Query(ctx context.Context, filter Filter) ([]model.GeocodeRecord, error)

	// Statistics summarizes the current-record population.
	Statistics(ctx context.Context) (Stats, error)

	Close() error
}

// Key computes geocode_key: a stable hash over the normalized
// (street, intersection, city, county) 4-tuple. Case- and
// whitespace-insensitive; pure — identical inputs always produce the same
// key across processes.
func Key(street, intersection, city, county string) string {
	return hashNormalized(street, intersection, city, county)
}

func normalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
