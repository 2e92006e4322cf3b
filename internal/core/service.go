package core

import (
	"context"
	"fmt"
	"math"
	"time"
)

// DefaultMaxReportedErrors caps the violations returned for a rejected batch.
const DefaultMaxReportedErrors = 10

// Options configures a Service. Zero values select defaults.
type Options struct {
	Query             QueryOptions
	MaxReportedErrors int

	// MaxConcurrentIngests and IngestWait configure the IngestLimiter.
	MaxConcurrentIngests int
	IngestWait           time.Duration
}

// Service provides the core business logic for farm records.
type Service struct {
	store     Store
	validator *RecordValidator
	limiter   *IngestLimiter
	observer  Observer
	opts      Options
}

// NewService creates a new Service backed by store. observer may be nil.
func NewService(store Store, opts Options, observer Observer) *Service {
	if opts.Query.DefaultPageSize <= 0 {
		opts.Query.DefaultPageSize = DefaultQueryOptions.DefaultPageSize
	}
	if opts.Query.MaxPageSize <= 0 {
		opts.Query.MaxPageSize = DefaultQueryOptions.MaxPageSize
	}
	if opts.MaxReportedErrors <= 0 {
		opts.MaxReportedErrors = DefaultMaxReportedErrors
	}
	if observer == nil {
		observer = nopObserver{}
	}

	return &Service{
		store:     store,
		validator: NewRecordValidator(),
		limiter:   NewIngestLimiter(opts.MaxConcurrentIngests, opts.IngestWait),
		observer:  observer,
		opts:      opts,
	}
}

// QueryOptions returns the effective list bounds.
func (s *Service) QueryOptions() QueryOptions {
	return s.opts.Query
}

// IngestStatus reports the CSV batches currently in flight.
func (s *Service) IngestStatus() IngestStatus {
	return s.limiter.Status()
}

// WaitForIngests blocks until in-flight ingestions finish or ctx is done.
func (s *Service) WaitForIngests(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

// lookup returns record id if it is inside p's scope.
func lookup(ctx context.Context, tx Records, p Principal, id int64) (Record, error) {
	if id <= 0 {
		return Record{}, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	rows, err := tx.Query(ctx, Query{
		Where: Predicate{Scope: ScopeFor(p), ID: id},
		Sort:  DefaultSort,
		Limit: 1,
	})
	if err != nil {
		return Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	if len(rows) == 0 {
		return Record{}, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	return rows[0], nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
