package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/JonMunkholm/agrorecords/internal/logging"
)

// Create validates in and stores it as a new record owned by p.
func (s *Service) Create(ctx context.Context, p Principal, in RecordInput) (Record, error) {
	if !p.Role.Valid() {
		return Record{}, fmt.Errorf("create record: %w", ErrPermissionDenied)
	}

	payload, violations := s.validator.Validate(0, in)
	if len(violations) > 0 {
		return Record{}, &ValidationError{Violations: violations, Total: len(violations)}
	}

	var created Record
	err := s.store.InTx(ctx, func(tx Records) error {
		rec, err := tx.Insert(ctx, p.ID, payload)
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		created = rec

		entry := newAuditEntry(ctx, p, ActionRecordCreate)
		entry.RecordID = rec.ID
		entry.RowsAffected = 1
		entry.Changes = snapshot(rec.RecordPayload)
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		return Record{}, err
	}

	s.observer.RecordsMutated(ActionRecordCreate, 1)
	logging.FromContext(ctx).Info("record created", "record_id", created.ID, "owner_id", created.OwnerID)
	return created, nil
}

// Update applies patch, a JSON merge patch (RFC 7396), to record id and
// revalidates the result. Owner and id never change.
func (s *Service) Update(ctx context.Context, p Principal, id int64, patch []byte) (Record, error) {
	trimmed := bytes.TrimSpace(patch)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, badRequest("body", "must be a JSON object")
	}

	var updated Record
	err := s.store.InTx(ctx, func(tx Records) error {
		current, err := lookup(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if !CanMutate(p, current) {
			return fmt.Errorf("update record %d: %w", id, ErrPermissionDenied)
		}

		in, err := mergeInput(current.RecordPayload, trimmed)
		if err != nil {
			return err
		}
		payload, violations := s.validator.Validate(0, in)
		if len(violations) > 0 {
			return &ValidationError{Violations: violations, Total: len(violations)}
		}

		rec, err := tx.Update(ctx, id, payload)
		if err != nil {
			return fmt.Errorf("update record %d: %w", id, err)
		}
		updated = rec

		changes, err := payloadDiff(current.RecordPayload, rec.RecordPayload)
		if err != nil {
			return err
		}
		entry := newAuditEntry(ctx, p, ActionRecordUpdate)
		entry.RecordID = id
		entry.RowsAffected = 1
		entry.Changes = changes
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		return Record{}, err
	}

	s.observer.RecordsMutated(ActionRecordUpdate, 1)
	logging.FromContext(ctx).Info("record updated", "record_id", id)
	return updated, nil
}

// mergeInput applies a merge patch to the textual form of current.
func mergeInput(current RecordPayload, patch []byte) (RecordInput, error) {
	doc, err := json.Marshal(current.Input())
	if err != nil {
		return RecordInput{}, fmt.Errorf("encode record: %w", err)
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return RecordInput{}, badRequest("body", "is not a valid merge patch: %v", err)
	}

	var in RecordInput
	if err := json.Unmarshal(merged, &in); err != nil {
		return RecordInput{}, badRequest("body", "%v", err)
	}
	return in, nil
}

// Delete removes record id.
func (s *Service) Delete(ctx context.Context, p Principal, id int64) error {
	err := s.store.InTx(ctx, func(tx Records) error {
		current, err := lookup(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if !CanMutate(p, current) {
			return fmt.Errorf("delete record %d: %w", id, ErrPermissionDenied)
		}
		if err := tx.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete record %d: %w", id, err)
		}

		entry := newAuditEntry(ctx, p, ActionRecordDelete)
		entry.RecordID = id
		entry.RowsAffected = 1
		entry.Changes = snapshot(current.RecordPayload)
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		return err
	}

	s.observer.RecordsMutated(ActionRecordDelete, 1)
	logging.FromContext(ctx).Info("record deleted", "record_id", id)
	return nil
}

// DeleteOwnedRecords removes every record owned by p. Only principals that
// may bulk upload may bulk delete.
func (s *Service) DeleteOwnedRecords(ctx context.Context, p Principal) (int64, error) {
	if !CanBulkUpload(p) {
		return 0, fmt.Errorf("delete all records: %w", ErrPermissionDenied)
	}

	var deleted int64
	err := s.store.InTx(ctx, func(tx Records) error {
		n, err := tx.DeleteWhere(ctx, Predicate{Scope: OwnedBy(p.ID)})
		if err != nil {
			return fmt.Errorf("delete owned records: %w", err)
		}
		deleted = n

		entry := newAuditEntry(ctx, p, ActionBatchPurge)
		entry.RowsAffected = n
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		return 0, err
	}

	s.observer.RecordsMutated(ActionBatchPurge, deleted)
	logging.FromContext(ctx).Info("owned records deleted", "owner_id", p.ID, "records_deleted", deleted)
	return deleted, nil
}
