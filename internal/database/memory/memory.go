// Package memory implements core.Store in process memory.
//
// Transactions hold the store lock for their whole duration and work on a
// copy of the state, which replaces the live state only on commit. It backs
// tests and the CLI's --dry-run mode.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

// Fault makes InsertMany misbehave so rollback paths can be exercised.
type Fault int

const (
	NoFault Fault = iota
	// FaultInsertError writes half the rows, then fails.
	FaultInsertError
	// FaultShortInsert writes one row fewer than asked and reports it.
	FaultShortInsert
)

// ErrInjected is returned by InsertMany under FaultInsertError.
var ErrInjected = errors.New("memory: injected insert failure")

// Store is an in-memory core.Store.
type Store struct {
	mu    sync.Mutex
	st    *state
	fault Fault
	now   func() time.Time

	// owners, when set, lists the accounts records may be written for.
	owners map[int64]bool
}

type state struct {
	nextID  int64
	records []core.Record // ascending id
	audit   []core.AuditEntry
}

func (s *state) clone() *state {
	return &state{
		nextID:  s.nextID,
		records: slices.Clone(s.records),
		audit:   slices.Clone(s.audit),
	}
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		st:  &state{nextID: 1},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetInsertFault configures the behavior of subsequent InsertMany calls.
func (s *Store) SetInsertFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// SetOwners restricts inserts to the given account ids, the way the users
// foreign key does in Postgres. With no ids any positive owner is accepted.
func (s *Store) SetOwners(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		s.owners = nil
		return
	}
	s.owners = make(map[int64]bool, len(ids))
	for _, id := range ids {
		s.owners[id] = true
	}
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.records)
}

// InTx runs fn against a copy of the state and commits the copy if fn
// succeeds and ctx is still live.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Records) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&view{st: work, store: s}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.st = work
	return nil
}

// autocommit runs a single operation against the live state.
func (s *Store) autocommit(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{st: s.st, store: s})
}

func (s *Store) Query(ctx context.Context, q core.Query) (out []core.Record, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.Query(ctx, q)
		return err
	})
	return out, err
}

func (s *Store) Count(ctx context.Context, where core.Predicate) (n int64, err error) {
	err = s.autocommit(func(v *view) error {
		n, err = v.Count(ctx, where)
		return err
	})
	return n, err
}

func (s *Store) Insert(ctx context.Context, ownerID int64, p core.RecordPayload) (rec core.Record, err error) {
	err = s.autocommit(func(v *view) error {
		rec, err = v.Insert(ctx, ownerID, p)
		return err
	})
	return rec, err
}

// InsertMany is atomic even outside a transaction.
func (s *Store) InsertMany(ctx context.Context, ownerID int64, rows []core.RecordPayload) (int64, error) {
	var n int64
	err := s.InTx(ctx, func(tx core.Records) error {
		var err error
		n, err = tx.InsertMany(ctx, ownerID, rows)
		return err
	})
	return n, err
}

func (s *Store) Update(ctx context.Context, id int64, p core.RecordPayload) (rec core.Record, err error) {
	err = s.autocommit(func(v *view) error {
		rec, err = v.Update(ctx, id, p)
		return err
	})
	return rec, err
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.autocommit(func(v *view) error {
		return v.Delete(ctx, id)
	})
}

func (s *Store) DeleteWhere(ctx context.Context, where core.Predicate) (n int64, err error) {
	err = s.autocommit(func(v *view) error {
		n, err = v.DeleteWhere(ctx, where)
		return err
	})
	return n, err
}

func (s *Store) Summarize(ctx context.Context, where core.Predicate) (sum core.Summary, err error) {
	err = s.autocommit(func(v *view) error {
		sum, err = v.Summarize(ctx, where)
		return err
	})
	return sum, err
}

func (s *Store) TopCrops(ctx context.Context, where core.Predicate, limit int) (out []core.CropSummary, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.TopCrops(ctx, where, limit)
		return err
	})
	return out, err
}

func (s *Store) VillageStats(ctx context.Context, where core.Predicate, limit int) (out []core.VillageSummary, err error) {
	err = s.autocommit(func(v *view) error {
		out, err = v.VillageStats(ctx, where, limit)
		return err
	})
	return out, err
}

func (s *Store) AppendAudit(ctx context.Context, e core.AuditEntry) error {
	return s.autocommit(func(v *view) error {
		return v.AppendAudit(ctx, e)
	})
}

func (s *Store) ListAudit(ctx context.Context, f core.AuditFilter) (out []core.AuditEntry, total int64, err error) {
	err = s.autocommit(func(v *view) error {
		out, total, err = v.ListAudit(ctx, f)
		return err
	})
	return out, total, err
}

func (s *Store) PurgeAudit(ctx context.Context, before time.Time) (n int64, err error) {
	err = s.autocommit(func(v *view) error {
		n, err = v.PurgeAudit(ctx, before)
		return err
	})
	return n, err
}

// view implements core.Records over one state. It is not safe for
// concurrent use; the store lock guards it.
type view struct {
	st    *state
	store *Store
}

func (v *view) matching(where core.Predicate) []core.Record {
	var out []core.Record
	for _, r := range v.st.records {
		if where.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (v *view) Query(ctx context.Context, q core.Query) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := v.matching(q.Where)
	slices.SortStableFunc(rows, func(a, b core.Record) int {
		c := compareBy(q.Sort.Key, a, b)
		if q.Sort.Direction == core.SortDesc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if q.Offset < 0 {
		return nil, fmt.Errorf("query: negative offset %d", q.Offset)
	}
	if q.Offset >= len(rows) {
		return []core.Record{}, nil
	}
	rows = rows[q.Offset:]
	if q.Limit > 0 && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func compareBy(key core.SortKey, a, b core.Record) int {
	switch key {
	case core.SortByFarmerName:
		return strings.Compare(a.FarmerName, b.FarmerName)
	case core.SortByVillageName:
		return strings.Compare(a.VillageName, b.VillageName)
	case core.SortByCropType:
		return strings.Compare(a.CropType, b.CropType)
	case core.SortByAreaAcres:
		return cmp.Compare(a.AreaAcres, b.AreaAcres)
	case core.SortByYieldKg:
		return cmp.Compare(a.YieldKg, b.YieldKg)
	case core.SortByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case core.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return cmp.Compare(a.ID, b.ID)
	}
}

func (v *view) Count(ctx context.Context, where core.Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(v.matching(where))), nil
}

func (v *view) Insert(ctx context.Context, ownerID int64, p core.RecordPayload) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return core.Record{}, err
	}
	if ownerID <= 0 || (v.store.owners != nil && !v.store.owners[ownerID]) {
		return core.Record{}, fmt.Errorf("insert record: owner %d: %w", ownerID, core.ErrUnknownOwner)
	}
	now := v.store.now()
	rec := core.Record{
		ID:            v.st.nextID,
		OwnerID:       ownerID,
		RecordPayload: p,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	v.st.nextID++
	v.st.records = append(v.st.records, rec)
	return rec, nil
}

func (v *view) InsertMany(ctx context.Context, ownerID int64, rows []core.RecordPayload) (int64, error) {
	want := len(rows)
	switch v.store.fault {
	case FaultInsertError:
		rows = rows[:want/2]
	case FaultShortInsert:
		if want > 0 {
			rows = rows[:want-1]
		}
	}

	var n int64
	for _, p := range rows {
		if _, err := v.Insert(ctx, ownerID, p); err != nil {
			return n, err
		}
		n++
	}
	if v.store.fault == FaultInsertError {
		return n, ErrInjected
	}
	return n, nil
}

func (v *view) index(id int64) int {
	i, ok := slices.BinarySearchFunc(v.st.records, id, func(r core.Record, id int64) int {
		return cmp.Compare(r.ID, id)
	})
	if !ok {
		return -1
	}
	return i
}

func (v *view) Update(ctx context.Context, id int64, p core.RecordPayload) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return core.Record{}, err
	}
	i := v.index(id)
	if i < 0 {
		return core.Record{}, fmt.Errorf("update record %d: %w", id, core.ErrNotFound)
	}
	rec := v.st.records[i]
	rec.RecordPayload = p
	rec.UpdatedAt = v.store.now()
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		rec.UpdatedAt = rec.CreatedAt
	}
	v.st.records[i] = rec
	return rec, nil
}

func (v *view) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i := v.index(id)
	if i < 0 {
		return fmt.Errorf("delete record %d: %w", id, core.ErrNotFound)
	}
	v.st.records = slices.Delete(v.st.records, i, i+1)
	return nil
}

func (v *view) DeleteWhere(ctx context.Context, where core.Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	before := len(v.st.records)
	v.st.records = slices.DeleteFunc(v.st.records, where.Match)
	return int64(before - len(v.st.records)), nil
}

func (v *view) Summarize(ctx context.Context, where core.Predicate) (core.Summary, error) {
	if err := ctx.Err(); err != nil {
		return core.Summary{}, err
	}
	rows := v.matching(where)
	var (
		sum      core.Summary
		yield    float64
		villages = make(map[string]struct{})
		crops    = make(map[string]struct{})
	)
	for _, r := range rows {
		sum.TotalArea += r.AreaAcres
		yield += r.YieldKg
		villages[r.VillageName] = struct{}{}
		crops[r.CropType] = struct{}{}
	}
	sum.TotalFarmers = int64(len(rows))
	sum.TotalVillages = int64(len(villages))
	sum.TotalCrops = int64(len(crops))
	if len(rows) > 0 {
		sum.AverageYield = yield / float64(len(rows))
	}
	return sum, nil
}

func (v *view) TopCrops(ctx context.Context, where core.Predicate, limit int) ([]core.CropSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups := make(map[string]*core.CropSummary)
	yields := make(map[string]float64)
	for _, r := range v.matching(where) {
		g, ok := groups[r.CropType]
		if !ok {
			g = &core.CropSummary{CropType: r.CropType}
			groups[r.CropType] = g
		}
		g.Count++
		g.TotalArea += r.AreaAcres
		yields[r.CropType] += r.YieldKg
	}

	out := make([]core.CropSummary, 0, len(groups))
	for name, g := range groups {
		g.AverageYield = yields[name] / float64(g.Count)
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b core.CropSummary) int {
		if c := cmp.Compare(b.TotalArea, a.TotalArea); c != 0 {
			return c
		}
		return strings.Compare(a.CropType, b.CropType)
	})
	return truncate(out, limit), nil
}

func (v *view) VillageStats(ctx context.Context, where core.Predicate, limit int) ([]core.VillageSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups := make(map[string]*core.VillageSummary)
	for _, r := range v.matching(where) {
		g, ok := groups[r.VillageName]
		if !ok {
			g = &core.VillageSummary{VillageName: r.VillageName}
			groups[r.VillageName] = g
		}
		g.FarmerCount++
		g.TotalArea += r.AreaAcres
	}

	out := make([]core.VillageSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b core.VillageSummary) int {
		if c := cmp.Compare(b.FarmerCount, a.FarmerCount); c != 0 {
			return c
		}
		return strings.Compare(a.VillageName, b.VillageName)
	})
	return truncate(out, limit), nil
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

func (v *view) AppendAudit(ctx context.Context, e core.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.st.audit = append(v.st.audit, e)
	return nil
}

// ListAudit returns entries newest first.
func (v *view) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	var out []core.AuditEntry
	for i := len(v.st.audit) - 1; i >= 0; i-- {
		e := v.st.audit[i]
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.ActorID != 0 && e.ActorID != f.ActorID {
			continue
		}
		out = append(out, e)
	}
	total := int64(len(out))
	if f.Offset >= len(out) {
		return []core.AuditEntry{}, total, nil
	}
	return truncate(out[f.Offset:], f.Limit), total, nil
}

func (v *view) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := len(v.st.audit)
	v.st.audit = slices.DeleteFunc(v.st.audit, func(e core.AuditEntry) bool {
		return e.CreatedAt.Before(before)
	})
	return int64(n - len(v.st.audit)), nil
}
