package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/JonMunkholm/agrorecords/internal/core"
	"github.com/JonMunkholm/agrorecords/internal/logging"
)

// multipartMemory is how much of an upload is buffered in memory before
// the multipart reader spills to a temporary file.
const multipartMemory = 8 << 20

// handleUpload ingests a CSV file as one all-or-nothing batch owned by the
// caller.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.respondError(w, r, mbe)
			return
		}
		s.respondError(w, r, &core.BadRequestError{Param: "file", Message: "file too large or invalid form"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &core.BadRequestError{Param: "file", Message: "no file provided"})
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		s.respondError(w, r, &core.BadRequestError{Param: "file", Message: "must be a .csv file"})
		return
	}

	// Sniff the content; a renamed spreadsheet or binary is rejected before
	// any row is parsed. Empty files fall through to the ingest error.
	contentType := "text/plain"
	if header.Size > 0 {
		mtype, err := mimetype.DetectReader(file)
		if err != nil {
			s.respondError(w, r, &core.BadRequestError{Param: "file", Message: "could not be read"})
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			s.respondError(w, r, fmt.Errorf("rewind upload: %w", err))
			return
		}
		if !isTextual(mtype) {
			s.respondError(w, r, &core.BadRequestError{Param: "file", Message: "content is " + mtype.String() + ", expected CSV text"})
			return
		}
		contentType = mtype.String()
	}

	logger := logging.FromContext(r.Context())
	logger.Info("csv upload received",
		"filename", header.Filename,
		"size", header.Size,
		"content_type", contentType,
	)

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.Ingest(ctx, p, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"message":         "CSV uploaded successfully",
		"records_created": result.RecordsCreated,
		"batch_id":        result.BatchID,
	})
}

// isTextual accepts any text/* detection, which covers text/csv and the
// text/plain that mimetype reports for single-column or header-only files.
func isTextual(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("text/csv") {
			return true
		}
	}
	return false
}

// handleUploadStatus reports the CSV batches in flight.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.IngestStatus())
}
