package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

func (q queries) AppendAudit(ctx context.Context, e core.AuditEntry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("audit id: %w", err)
	}
	var batchID *uuid.UUID
	if e.BatchID != "" {
		b, err := uuid.Parse(e.BatchID)
		if err != nil {
			return fmt.Errorf("audit batch id: %w", err)
		}
		batchID = &b
	}

	_, err = q.db.Exec(ctx, `INSERT INTO record_audit
	(id, action, severity, actor_id, actor_role, record_id, batch_id, rows_affected, changes, ip_address, user_agent, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, string(e.Action), string(e.Severity), e.ActorID, string(e.ActorRole),
		nullInt(e.RecordID), batchID, e.RowsAffected, nullJSON(e.Changes),
		nullString(e.IPAddress), nullString(e.UserAgent), e.CreatedAt,
	)
	return err
}

// ListAudit returns entries newest first with the total matching count.
func (q queries) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, int64, error) {
	wb := NewWhereBuilder()
	wb.Add("action", string(f.Action))
	if f.ActorID != 0 {
		wb.Add("actor_id", f.ActorID)
	}
	where, args := wb.Build()

	var total int64
	if err := q.db.QueryRow(ctx, "SELECT count(*) FROM record_audit"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, action, severity, actor_id, actor_role, coalesce(record_id, 0), batch_id,
	rows_affected, changes, coalesce(ip_address, ''), coalesce(user_agent, ''), created_at
	FROM record_audit`)
	sb.WriteString(where)
	sb.WriteString(" ORDER BY created_at DESC, id")
	next := wb.NextArgIndex()
	if f.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT $%d", next)
		args = append(args, f.Limit)
		next++
	}
	if f.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET $%d", next)
		args = append(args, f.Offset)
	}

	rows, err := q.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.AuditEntry, error) {
		var (
			e       core.AuditEntry
			id      uuid.UUID
			batchID *uuid.UUID
			action  string
			sev     string
			role    string
		)
		err := row.Scan(&id, &action, &sev, &e.ActorID, &role, &e.RecordID, &batchID,
			&e.RowsAffected, &e.Changes, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		if err != nil {
			return e, err
		}
		e.ID = id.String()
		e.Action = core.AuditAction(action)
		e.Severity = core.AuditSeverity(sev)
		e.ActorRole = core.Role(role)
		if batchID != nil {
			e.BatchID = batchID.String()
		}
		return e, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan audit: %w", err)
	}
	return entries, total, nil
}

func (q queries) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, "DELETE FROM record_audit WHERE created_at < $1", before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullInt(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
