package core

// ingest.go implements CSV batch ingestion.
//
// A batch moves through Received -> Parsed -> Validated -> Committed, or ends
// in Rejected. Every row is validated before anything is written, and the
// insert plus its audit entry commit in one transaction: a batch is applied
// in full or not at all.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/agrorecords/internal/logging"
)

// IngestPhase is the last state a batch reached.
type IngestPhase string

const (
	PhaseReceived  IngestPhase = "received"
	PhaseParsed    IngestPhase = "parsed"
	PhaseValidated IngestPhase = "validated"
	PhaseCommitted IngestPhase = "committed"
	PhaseRejected  IngestPhase = "rejected"
)

// IngestResult summarizes one batch. On failure it reports how far the
// batch got; RecordsCreated is non-zero only when Phase is PhaseCommitted.
type IngestResult struct {
	BatchID        string      `json:"batch_id"`
	Phase          IngestPhase `json:"phase"`
	RowsRead       int         `json:"rows_read"`
	RecordsCreated int64       `json:"records_created"`
	BytesRead      int64       `json:"-"`
}

// batchRow is one non-blank data row and its 1-based position in the file,
// counting the header as row 1.
type batchRow struct {
	row   int
	input RecordInput
}

// Ingest parses, validates and commits a CSV batch owned by p.
func (s *Service) Ingest(ctx context.Context, p Principal, r io.Reader) (IngestResult, error) {
	start := time.Now()
	res := IngestResult{BatchID: uuid.NewString(), Phase: PhaseReceived}
	logger := logging.WithFields(ctx, "batch_id", res.BatchID)

	if !CanBulkUpload(p) {
		return s.rejectBatch(ctx, &res, fmt.Errorf("upload csv: %w", ErrPermissionDenied))
	}

	release, err := s.limiter.Admit(ctx, res.BatchID)
	if err != nil {
		return s.rejectBatch(ctx, &res, fmt.Errorf("upload csv: %w", err))
	}
	defer release()

	counter := WrapForIngest(r)
	rows, err := parseBatch(counter)
	res.BytesRead = counter.BytesRead
	if err != nil {
		return s.rejectBatch(ctx, &res, err)
	}
	res.Phase = PhaseParsed
	res.RowsRead = len(rows)

	payloads, err := s.validateBatch(rows)
	if err != nil {
		return s.rejectBatch(ctx, &res, err)
	}
	res.Phase = PhaseValidated

	err = s.store.InTx(ctx, func(tx Records) error {
		n, err := tx.InsertMany(ctx, p.ID, payloads)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		if n != int64(len(payloads)) {
			return fmt.Errorf("insert batch: wrote %d of %d rows", n, len(payloads))
		}

		entry := newAuditEntry(ctx, p, ActionBatchIngest)
		entry.BatchID = res.BatchID
		entry.RowsAffected = n
		if err := tx.AppendAudit(ctx, entry); err != nil {
			return fmt.Errorf("audit batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.rejectBatch(ctx, &res, fmt.Errorf("commit batch %s: %w", res.BatchID, err))
	}

	res.Phase = PhaseCommitted
	res.RecordsCreated = int64(len(payloads))
	s.observer.IngestFinished(PhaseCommitted, res.RowsRead, 0)
	s.observer.RecordsMutated(ActionBatchIngest, res.RecordsCreated)

	logger.Info("csv batch committed",
		"owner_id", p.ID,
		"records_created", res.RecordsCreated,
		"bytes", res.BytesRead,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// rejectBatch records a failed batch and returns err unchanged.
func (s *Service) rejectBatch(ctx context.Context, res *IngestResult, err error) (IngestResult, error) {
	reached := res.Phase
	res.Phase = PhaseRejected

	violations := 0
	var verr *ValidationError
	if errors.As(err, &verr) {
		violations = verr.Total
	}
	s.observer.IngestFinished(PhaseRejected, res.RowsRead, violations)

	logger := logging.WithFields(ctx, "batch_id", res.BatchID)
	if KindOf(err) == KindInternal {
		logger.Error("csv batch rolled back", "reached", reached, "error", err)
	} else {
		logger.Warn("csv batch rejected", "reached", reached, "kind", KindOf(err).String(), "violations", violations)
	}
	return *res, err
}

// parseBatch reads the header and every non-blank data row.
func parseBatch(r io.Reader) ([]batchRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, invalidCSV(err)
	}

	idx := MakeHeaderIndex(header)
	if missing := idx.MissingColumns(RequiredColumns); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	var rows []batchRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalidCSV(err)
		}
		if isEmptyRow(record) {
			continue
		}
		rows = append(rows, batchRow{row: len(rows) + 2, input: rowInput(idx, record)})
	}

	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	return rows, nil
}

func invalidCSV(err error) error {
	return &BadRequestError{Param: "file", Message: "invalid csv: " + err.Error()}
}

// validateBatch validates every row. Violations are reported up to the
// configured cap, and Total always counts all of them.
func (s *Service) validateBatch(rows []batchRow) ([]RecordPayload, error) {
	limit := s.opts.MaxReportedErrors
	payloads := make([]RecordPayload, 0, len(rows))

	var (
		reported []Violation
		total    int
	)
	for _, row := range rows {
		p, vs := s.validator.Validate(row.row, row.input)
		if len(vs) == 0 {
			payloads = append(payloads, p)
			continue
		}
		total += len(vs)
		if room := limit - len(reported); room > 0 {
			reported = append(reported, vs[:min(room, len(vs))]...)
		}
	}

	if total > 0 {
		return nil, &ValidationError{Violations: reported, Total: total}
	}
	return payloads, nil
}
