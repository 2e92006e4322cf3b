package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wI2L/jsondiff"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionRecordCreate AuditAction = "record_create"
	ActionRecordUpdate AuditAction = "record_update"
	ActionRecordDelete AuditAction = "record_delete"
	ActionBatchIngest  AuditAction = "batch_ingest"
	ActionBatchPurge   AuditAction = "batch_purge"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string          `json:"id"`
	Action       AuditAction     `json:"action"`
	Severity     AuditSeverity   `json:"severity"`
	ActorID      int64           `json:"actor_id"`
	ActorRole    Role            `json:"actor_role"`
	RecordID     int64           `json:"record_id,omitempty"`
	BatchID      string          `json:"batch_id,omitempty"`
	RowsAffected int64           `json:"rows_affected"`
	Changes      json.RawMessage `json:"changes,omitempty"`
	IPAddress    string          `json:"ip_address,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AuditFilter selects audit entries. Zero fields impose no constraint.
type AuditFilter struct {
	Action  AuditAction
	ActorID int64
	Limit   int
	Offset  int
}

// AuditPage is one page of the audit trail.
type AuditPage struct {
	Entries []AuditEntry `json:"entries"`
	Total   int64        `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionRecordCreate:
		return SeverityLow
	case ActionRecordUpdate:
		return SeverityMedium
	case ActionRecordDelete, ActionBatchIngest:
		return SeverityHigh
	case ActionBatchPurge:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// newAuditEntry starts an entry for p, stamped with request metadata from ctx.
func newAuditEntry(ctx context.Context, p Principal, action AuditAction) AuditEntry {
	return AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Severity:  determineSeverity(action),
		ActorID:   p.ID,
		ActorRole: p.Role,
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		CreatedAt: time.Now().UTC(),
	}
}

// payloadDiff returns a JSON Patch describing before -> after.
func payloadDiff(before, after RecordPayload) (json.RawMessage, error) {
	patch, err := jsondiff.Compare(before, after)
	if err != nil {
		return nil, fmt.Errorf("diff payloads: %w", err)
	}
	if len(patch) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode diff: %w", err)
	}
	return b, nil
}

// snapshot encodes a payload for create/delete audit entries.
func snapshot(p RecordPayload) json.RawMessage {
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return b
}
