package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

func payload(name, village, crop string, area, yield float64) core.RecordPayload {
	return core.RecordPayload{
		FarmerName:  name,
		VillageName: village,
		CropType:    crop,
		AreaAcres:   area,
		YieldKg:     yield,
		Latitude:    10,
		Longitude:   20,
	}
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []struct {
		owner int64
		p     core.RecordPayload
	}{
		{1, payload("Asha", "V1", "Rice", 2, 500)},
		{1, payload("Bala", "V2", "Wheat", 5, 300)},
		{2, payload("Chen", "V1", "Rice", 5, 700)},
		{2, payload("Devi", "V1", "Maize", 1, 100)},
	} {
		_, err := s.Insert(ctx, p.owner, p.p)
		require.NoError(t, err)
	}
}

func TestQuery_ScopeSortAndPage(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	rows, err := s.Query(ctx, core.Query{
		Where: core.Predicate{Scope: core.AllRecords()},
		Sort:  core.SortSpec{Key: core.SortByAreaAcres, Direction: core.SortDesc},
	})
	require.NoError(t, err)
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	// Records 2 and 3 share an area and tie-break by ascending id.
	assert.Equal(t, []int64{2, 3, 1, 4}, ids)

	rows, err = s.Query(ctx, core.Query{
		Where:  core.Predicate{Scope: core.OwnedBy(2)},
		Sort:   core.DefaultSort,
		Limit:  1,
		Offset: 1,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(4), rows[0].ID)

	rows, err = s.Query(ctx, core.Query{Where: core.Predicate{}, Sort: core.DefaultSort})
	require.NoError(t, err)
	assert.Empty(t, rows, "zero scope must match nothing")

	rows, err = s.Query(ctx, core.Query{Where: core.Predicate{Scope: core.AllRecords()}, Sort: core.DefaultSort, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = s.Query(ctx, core.Query{Where: core.Predicate{Scope: core.AllRecords()}, Sort: core.DefaultSort, Offset: -16})
	assert.Error(t, err)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx core.Records) error {
		_, err := tx.InsertMany(ctx, 1, []core.RecordPayload{payload("E", "V", "Rice", 1, 1)})
		require.NoError(t, err)
		require.NoError(t, tx.Delete(ctx, 1))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, s.Len())

	rows, err := s.Query(ctx, core.Query{Where: core.Predicate{Scope: core.AllRecords(), ID: 1}})
	require.NoError(t, err)
	assert.Len(t, rows, 1, "deleted record restored")
}

func TestInTx_RollsBackOnCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.InTx(ctx, func(tx core.Records) error {
		_, err := tx.Insert(ctx, 1, payload("A", "V", "Rice", 1, 1))
		require.NoError(t, err)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func TestInsertMany_Faults(t *testing.T) {
	ctx := context.Background()
	rows := []core.RecordPayload{
		payload("A", "V", "Rice", 1, 1),
		payload("B", "V", "Rice", 1, 1),
		payload("C", "V", "Rice", 1, 1),
	}

	s := New()
	s.SetInsertFault(FaultInsertError)
	_, err := s.InsertMany(ctx, 1, rows)
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, s.Len())

	s.SetInsertFault(FaultShortInsert)
	n, err := s.InsertMany(ctx, 1, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpdateAndDelete(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	rec, err := s.Update(ctx, 3, payload("Chen", "V9", "Rice", 6, 700))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.OwnerID)
	assert.Equal(t, "V9", rec.VillageName)
	assert.False(t, rec.UpdatedAt.Before(rec.CreatedAt))

	_, err = s.Update(ctx, 99, payload("X", "V", "Rice", 1, 1))
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.Delete(ctx, 3))
	assert.ErrorIs(t, s.Delete(ctx, 3), core.ErrNotFound)

	n, err := s.DeleteWhere(ctx, core.Predicate{Scope: core.OwnedBy(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, s.Len())
}

func TestAggregates(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	all := core.Predicate{Scope: core.AllRecords()}

	sum, err := s.Summarize(ctx, all)
	require.NoError(t, err)
	assert.Equal(t, core.Summary{
		TotalFarmers:  4,
		TotalArea:     13,
		AverageYield:  400,
		TotalVillages: 2,
		TotalCrops:    3,
	}, sum)

	crops, err := s.TopCrops(ctx, all, 2)
	require.NoError(t, err)
	assert.Equal(t, []core.CropSummary{
		{CropType: "Rice", Count: 2, TotalArea: 7, AverageYield: 600},
		{CropType: "Wheat", Count: 1, TotalArea: 5, AverageYield: 300},
	}, crops)

	villages, err := s.VillageStats(ctx, core.Predicate{Scope: core.OwnedBy(1)}, 10)
	require.NoError(t, err)
	assert.Equal(t, []core.VillageSummary{
		{VillageName: "V1", FarmerCount: 1, TotalArea: 2},
		{VillageName: "V2", FarmerCount: 1, TotalArea: 5},
	}, villages)
}

func TestAudit(t *testing.T) {
	s := New()
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, s.AppendAudit(ctx, core.AuditEntry{ID: "a", Action: core.ActionRecordCreate, ActorID: 1, CreatedAt: old}))
	require.NoError(t, s.AppendAudit(ctx, core.AuditEntry{ID: "b", Action: core.ActionBatchIngest, ActorID: 2, CreatedAt: time.Now()}))
	require.NoError(t, s.AppendAudit(ctx, core.AuditEntry{ID: "c", Action: core.ActionRecordCreate, ActorID: 2, CreatedAt: time.Now()}))

	entries, total, err := s.ListAudit(ctx, core.AuditFilter{Action: core.ActionRecordCreate})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "c", entries[0].ID, "newest first")

	n, err := s.PurgeAudit(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, total, err = s.ListAudit(ctx, core.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
