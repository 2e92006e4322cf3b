package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/agrorecords/internal/logging"
)

const (
	// DefaultStatsLimit is the number of groups returned by TopCrops and VillageStats.
	DefaultStatsLimit = 10
	// MaxStatsLimit bounds the limit parameter of TopCrops and VillageStats.
	MaxStatsLimit = 100

	// DefaultAuditLimit is the audit page size when none is requested.
	DefaultAuditLimit = 50
	// MaxAuditLimit bounds the audit page size.
	MaxAuditLimit = 500
)

// List returns one page of the records p may see, filtered and sorted.
// Count and page are read in the same transaction so Total matches Data.
func (s *Service) List(ctx context.Context, p Principal, req ListRequest) (ListResult, error) {
	q, err := NewListQuery(req, s.opts.Query)
	if err != nil {
		return ListResult{}, err
	}
	if q.SortFallback {
		logging.FromContext(ctx).Warn("unknown sort key, using default",
			"sort_by", q.RequestedSort,
			"fallback", string(DefaultSortKey),
		)
		s.observer.SortFellBack(q.RequestedSort)
	}

	where := Predicate{Scope: ScopeFor(p), Filter: q.Filter}
	res := ListResult{
		Page:         q.Page,
		PageSize:     q.PageSize,
		SortFallback: q.SortFallback,
	}

	err = s.store.InTx(ctx, func(tx Records) error {
		total, err := tx.Count(ctx, where)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		res.Total = total

		if total == 0 {
			return nil
		}
		rows, err := tx.Query(ctx, Query{
			Where:  where,
			Sort:   q.Sort,
			Limit:  q.PageSize,
			Offset: q.Offset(),
		})
		if err != nil {
			return fmt.Errorf("query records: %w", err)
		}
		res.Data = rows
		return nil
	})
	if err != nil {
		return ListResult{}, err
	}

	if res.Data == nil {
		res.Data = []Record{}
	}
	res.TotalPages = TotalPages(res.Total, res.PageSize)
	s.observer.RecordsListed(p.Role, len(res.Data))
	return res, nil
}

// Get returns record id. Records outside p's scope are reported as ErrNotFound.
func (s *Service) Get(ctx context.Context, p Principal, id int64) (Record, error) {
	return lookup(ctx, s.store, p, id)
}

// Summary returns dashboard totals over the records p may see.
func (s *Service) Summary(ctx context.Context, p Principal) (Summary, error) {
	sum, err := s.store.Summarize(ctx, Predicate{Scope: ScopeFor(p)})
	if err != nil {
		return Summary{}, fmt.Errorf("summarize records: %w", err)
	}
	sum.TotalArea = round2(sum.TotalArea)
	sum.AverageYield = round2(sum.AverageYield)
	return sum, nil
}

// TopCrops returns crop groups ordered by total area, largest first.
func (s *Service) TopCrops(ctx context.Context, p Principal, limit int) ([]CropSummary, error) {
	limit, err := statsLimit(limit)
	if err != nil {
		return nil, err
	}
	crops, err := s.store.TopCrops(ctx, Predicate{Scope: ScopeFor(p)}, limit)
	if err != nil {
		return nil, fmt.Errorf("top crops: %w", err)
	}
	for i := range crops {
		crops[i].TotalArea = round2(crops[i].TotalArea)
		crops[i].AverageYield = round2(crops[i].AverageYield)
	}
	if crops == nil {
		crops = []CropSummary{}
	}
	return crops, nil
}

// VillageStats returns village groups ordered by record count, largest first.
func (s *Service) VillageStats(ctx context.Context, p Principal, limit int) ([]VillageSummary, error) {
	limit, err := statsLimit(limit)
	if err != nil {
		return nil, err
	}
	villages, err := s.store.VillageStats(ctx, Predicate{Scope: ScopeFor(p)}, limit)
	if err != nil {
		return nil, fmt.Errorf("village stats: %w", err)
	}
	for i := range villages {
		villages[i].TotalArea = round2(villages[i].TotalArea)
	}
	if villages == nil {
		villages = []VillageSummary{}
	}
	return villages, nil
}

func statsLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultStatsLimit, nil
	case limit < 0 || limit > MaxStatsLimit:
		return 0, badRequest("limit", "must be between 1 and %d", MaxStatsLimit)
	default:
		return limit, nil
	}
}

// Export returns every record p may see that matches req's filters, in req's
// sort order. Pagination fields are ignored.
func (s *Service) Export(ctx context.Context, p Principal, req ListRequest) ([]Record, error) {
	if err := req.Filter.Validate(); err != nil {
		return nil, err
	}
	sort, fellBack, err := ParseSort(req.SortBy, req.SortOrder, s.opts.Query.StrictSort)
	if err != nil {
		return nil, err
	}
	if fellBack {
		s.observer.SortFellBack(req.SortBy)
	}

	rows, err := s.store.Query(ctx, Query{
		Where: Predicate{Scope: ScopeFor(p), Filter: req.Filter},
		Sort:  sort,
	})
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	return rows, nil
}

// AuditLog returns a page of the audit trail. Only officers may read it.
func (s *Service) AuditLog(ctx context.Context, p Principal, f AuditFilter) (AuditPage, error) {
	if p.Role != RoleOfficer {
		return AuditPage{}, fmt.Errorf("read audit log: %w", ErrPermissionDenied)
	}

	switch {
	case f.Limit == 0:
		f.Limit = DefaultAuditLimit
	case f.Limit < 0 || f.Limit > MaxAuditLimit:
		return AuditPage{}, badRequest("limit", "must be between 1 and %d", MaxAuditLimit)
	}
	if f.Offset < 0 {
		return AuditPage{}, badRequest("offset", "must not be negative")
	}

	entries, total, err := s.store.ListAudit(ctx, f)
	if err != nil {
		return AuditPage{}, fmt.Errorf("list audit log: %w", err)
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return AuditPage{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}
