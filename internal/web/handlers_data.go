package web

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/agrorecords/internal/core"
	"github.com/JonMunkholm/agrorecords/internal/logging"
)

// handleListRecords returns one page of the records visible to the caller.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var params listParams
	if err := s.decodeQuery(r, &params); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.List(r.Context(), p, params.request())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if result.SortFallback {
		w.Header().Set(sortFallbackHeader, string(core.DefaultSortKey))
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
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

	rec, err := s.service.Get(r.Context(), p, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// handleDownloadTemplate serves an empty CSV with the required header row.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="farm_records_template.csv"`)

	if err := core.WriteTemplate(w); err != nil {
		logging.FromContext(r.Context()).Error("template write failed", "error", err)
	}
}

// handleExportRecords exports the caller's filtered and sorted records as
// CSV, XLSX or GeoJSON. The file is built in memory first so a failure can
// still be reported as a JSON error.
func (s *Server) handleExportRecords(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var params listParams
	if err := s.decodeQuery(r, &params); err != nil {
		s.respondError(w, r, err)
		return
	}
	format, err := core.ParseExportFormat(params.Format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	records, err := s.service.Export(r.Context(), p, params.request())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := core.WriteExport(&buf, format, records); err != nil {
		s.respondError(w, r, fmt.Errorf("write %s export: %w", format, err))
		return
	}

	filename := fmt.Sprintf("farm_records_%s.%s", time.Now().Format("20060102_150405"), format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("export write interrupted", "error", err, "records", len(records))
	}
}

// Dashboard

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	summary, err := s.service.Summary(r.Context(), p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleTopCrops(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var params limitParams
	if err := s.decodeQuery(r, &params); err != nil {
		s.respondError(w, r, err)
		return
	}

	crops, err := s.service.TopCrops(r.Context(), p, params.Limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, crops)
}

func (s *Server) handleVillageStats(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var params limitParams
	if err := s.decodeQuery(r, &params); err != nil {
		s.respondError(w, r, err)
		return
	}

	villages, err := s.service.VillageStats(r.Context(), p, params.Limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, villages)
}
