package web

import (
	"net/http"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

// handleAuditLog returns a page of the audit trail, optionally filtered by
// action and actor.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var params auditParams
	if err := s.decodeQuery(r, &params); err != nil {
		s.respondError(w, r, err)
		return
	}

	page, err := s.service.AuditLog(r.Context(), p, core.AuditFilter{
		Action:  core.AuditAction(params.Action),
		ActorID: params.ActorID,
		Limit:   params.Limit,
		Offset:  params.Offset,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}
