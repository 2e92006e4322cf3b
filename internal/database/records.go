package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

const recordColumns = `id, user_id, farmer_name, village_name, crop_type, area_acres, yield_kg, latitude, longitude, created_at, updated_at`

// insertColumns is the COPY column list, in the order copyRows emits values.
var insertColumns = []string{
	"user_id", "farmer_name", "village_name", "crop_type",
	"area_acres", "yield_kg", "latitude", "longitude",
	"created_at", "updated_at",
}

func scanRecord(row pgx.Row) (core.Record, error) {
	var r core.Record
	err := row.Scan(
		&r.ID, &r.OwnerID,
		&r.FarmerName, &r.VillageName, &r.CropType,
		&r.AreaAcres, &r.YieldKg, &r.Latitude, &r.Longitude,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (q queries) Query(ctx context.Context, query core.Query) ([]core.Record, error) {
	wb := wherePredicate(query.Where)
	where, args := wb.Build()

	var sb strings.Builder
	sb.WriteString("SELECT " + recordColumns + " FROM farmer_records")
	sb.WriteString(where)
	sb.WriteString(orderBy(query.Sort))

	next := wb.NextArgIndex()
	if query.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT $%d", next)
		args = append(args, query.Limit)
		next++
	}
	if query.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET $%d", next)
		args = append(args, query.Offset)
	}

	rows, err := q.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q queries) Count(ctx context.Context, where core.Predicate) (int64, error) {
	clause, args := wherePredicate(where).Build()
	var n int64
	err := q.db.QueryRow(ctx, "SELECT count(*) FROM farmer_records"+clause, args...).Scan(&n)
	return n, err
}

func (q queries) Insert(ctx context.Context, ownerID int64, p core.RecordPayload) (core.Record, error) {
	const sql = `INSERT INTO farmer_records
	(user_id, farmer_name, village_name, crop_type, area_acres, yield_kg, latitude, longitude)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + recordColumns

	rec, err := scanRecord(q.db.QueryRow(ctx, sql,
		ownerID, p.FarmerName, p.VillageName, p.CropType,
		p.AreaAcres, p.YieldKg, p.Latitude, p.Longitude,
	))
	return rec, ownerError(ownerID, err)
}

// InsertMany bulk-loads rows with COPY. Outside a transaction COPY is still
// a single statement, so it is all-or-nothing either way.
func (q queries) InsertMany(ctx context.Context, ownerID int64, rows []core.RecordPayload) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	n, err := q.db.CopyFrom(ctx,
		pgx.Identifier{"farmer_records"},
		insertColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			p := rows[i]
			return []any{
				ownerID, p.FarmerName, p.VillageName, p.CropType,
				p.AreaAcres, p.YieldKg, p.Latitude, p.Longitude,
				now, now,
			}, nil
		}),
	)
	return n, ownerError(ownerID, err)
}

// foreignKeyViolation is the SQLSTATE Postgres reports for a broken reference.
const foreignKeyViolation = "23503"

// ownerError reports a write for an account that no longer exists as
// core.ErrUnknownOwner. Other errors pass through unchanged.
func ownerError(ownerID int64, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation && pgErr.TableName == "farmer_records" {
		return fmt.Errorf("owner %d: %w", ownerID, core.ErrUnknownOwner)
	}
	return err
}

func (q queries) Update(ctx context.Context, id int64, p core.RecordPayload) (core.Record, error) {
	const sql = `UPDATE farmer_records SET
	farmer_name = $2, village_name = $3, crop_type = $4,
	area_acres = $5, yield_kg = $6, latitude = $7, longitude = $8,
	updated_at = greatest(now(), created_at)
	WHERE id = $1
	RETURNING ` + recordColumns

	r, err := scanRecord(q.db.QueryRow(ctx, sql,
		id, p.FarmerName, p.VillageName, p.CropType,
		p.AreaAcres, p.YieldKg, p.Latitude, p.Longitude,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Record{}, fmt.Errorf("update record %d: %w", id, core.ErrNotFound)
	}
	return r, err
}

func (q queries) Delete(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, "DELETE FROM farmer_records WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete record %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (q queries) DeleteWhere(ctx context.Context, where core.Predicate) (int64, error) {
	clause, args := wherePredicate(where).Build()
	tag, err := q.db.Exec(ctx, "DELETE FROM farmer_records"+clause, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q queries) Summarize(ctx context.Context, where core.Predicate) (core.Summary, error) {
	clause, args := wherePredicate(where).Build()
	sql := `SELECT count(*),
		coalesce(sum(area_acres), 0),
		coalesce(avg(yield_kg), 0),
		count(DISTINCT village_name),
		count(DISTINCT crop_type)
	FROM farmer_records` + clause

	var s core.Summary
	err := q.db.QueryRow(ctx, sql, args...).Scan(
		&s.TotalFarmers, &s.TotalArea, &s.AverageYield, &s.TotalVillages, &s.TotalCrops,
	)
	return s, err
}

func (q queries) TopCrops(ctx context.Context, where core.Predicate, limit int) ([]core.CropSummary, error) {
	wb := wherePredicate(where)
	clause, args := wb.Build()
	sql := fmt.Sprintf(`SELECT crop_type, count(*), sum(area_acres), avg(yield_kg)
	FROM farmer_records%s
	GROUP BY crop_type
	ORDER BY sum(area_acres) DESC, crop_type ASC
	LIMIT $%d`, clause, wb.NextArgIndex())

	rows, err := q.db.Query(ctx, sql, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.CropSummary, error) {
		var c core.CropSummary
		err := row.Scan(&c.CropType, &c.Count, &c.TotalArea, &c.AverageYield)
		return c, err
	})
}

func (q queries) VillageStats(ctx context.Context, where core.Predicate, limit int) ([]core.VillageSummary, error) {
	wb := wherePredicate(where)
	clause, args := wb.Build()
	sql := fmt.Sprintf(`SELECT village_name, count(*), sum(area_acres)
	FROM farmer_records%s
	GROUP BY village_name
	ORDER BY count(*) DESC, village_name ASC
	LIMIT $%d`, clause, wb.NextArgIndex())

	rows, err := q.db.Query(ctx, sql, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.VillageSummary, error) {
		var v core.VillageSummary
		err := row.Scan(&v.VillageName, &v.FarmerCount, &v.TotalArea)
		return v, err
	})
}
