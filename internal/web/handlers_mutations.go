package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

// maxJSONBody caps create and update request bodies.
const maxJSONBody = 1 << 20

// readJSONBody reads a capped request body.
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, err
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

// handleCreateRecord stores one record owned by the caller.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	body, err := readJSONBody(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var in core.RecordInput
	if err := json.Unmarshal(body, &in); err != nil {
		s.respondError(w, r, &core.BadRequestError{Param: "body", Message: "must be a JSON object of record fields"})
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	rec, err := s.service.Create(ctx, p, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rec)
}

// handleUpdateRecord applies the body as a JSON merge patch. PUT and PATCH
// share this handler; omitted fields keep their current values.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	body, err := readJSONBody(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	rec, err := s.service.Update(ctx, p, id, body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.Delete(ctx, p, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Record deleted successfully"})
}

// handleDeleteOwnedRecords removes every record the caller owns.
func (s *Server) handleDeleteOwnedRecords(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	n, err := s.service.DeleteOwnedRecords(ctx, p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message":         fmt.Sprintf("Deleted %d records", n),
		"records_deleted": n,
	})
}
