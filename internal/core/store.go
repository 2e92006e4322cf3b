package core

import (
	"context"
	"time"
)

// Records is the storage collaborator. Implementations must be safe for
// concurrent use; the transactional view passed to InTx callbacks need not be.
type Records interface {
	// Query returns records matching q.Where ordered by q.Sort then id ASC.
	Query(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, where Predicate) (int64, error)

	// Insert creates one record owned by ownerID.
	Insert(ctx context.Context, ownerID int64, p RecordPayload) (Record, error)
	// InsertMany creates every row owned by ownerID and returns the count written.
	InsertMany(ctx context.Context, ownerID int64, rows []RecordPayload) (int64, error)
	// Update replaces the payload of record id and refreshes updated_at.
	// Owner and id never change. Returns ErrNotFound if id does not exist.
	Update(ctx context.Context, id int64, p RecordPayload) (Record, error)
	// Delete removes record id. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error
	DeleteWhere(ctx context.Context, where Predicate) (int64, error)

	Summarize(ctx context.Context, where Predicate) (Summary, error)
	TopCrops(ctx context.Context, where Predicate, limit int) ([]CropSummary, error)
	VillageStats(ctx context.Context, where Predicate, limit int) ([]VillageSummary, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, int64, error)
	PurgeAudit(ctx context.Context, before time.Time) (int64, error)
}

// Store is a Records with transactions. Operations called on Store itself
// autocommit.
type Store interface {
	Records

	// InTx runs fn in one transaction. The transaction commits if fn returns
	// nil and rolls back otherwise, including when ctx is cancelled.
	InTx(ctx context.Context, fn func(tx Records) error) error
}
