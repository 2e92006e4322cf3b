package web

// This file contains shared request decoding used across handlers.

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/form"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

// sortFallbackHeader is set on list responses when an unknown sort key was
// replaced by the default ordering.
const sortFallbackHeader = "X-Sort-Fallback"

// listParams are the query parameters shared by the list and export routes.
type listParams struct {
	CropType    string   `form:"crop_type"`
	VillageName string   `form:"village_name"`
	MinArea     *float64 `form:"min_area"`
	MaxArea     *float64 `form:"max_area"`
	MinYield    *float64 `form:"min_yield"`
	MaxYield    *float64 `form:"max_yield"`
	SortBy      string   `form:"sort_by"`
	SortOrder   string   `form:"sort_order"`
	Page        int      `form:"page"`
	PageSize    int      `form:"page_size"`
	Format      string   `form:"format"`
}

func (p listParams) request() core.ListRequest {
	return core.ListRequest{
		Filter: core.FilterSpec{
			CropType:    p.CropType,
			VillageName: p.VillageName,
			MinArea:     p.MinArea,
			MaxArea:     p.MaxArea,
			MinYield:    p.MinYield,
			MaxYield:    p.MaxYield,
		},
		SortBy:    p.SortBy,
		SortOrder: p.SortOrder,
		Page:      p.Page,
		PageSize:  p.PageSize,
	}
}

type limitParams struct {
	Limit int `form:"limit"`
}

type auditParams struct {
	Action  string `form:"action"`
	ActorID int64  `form:"actor_id"`
	Limit   int    `form:"limit"`
	Offset  int    `form:"offset"`
}

// decodeQuery decodes the URL query into dst. A value that does not parse
// is reported as a bad request naming the first offending parameter.
func (s *Server) decodeQuery(r *http.Request, dst any) error {
	err := s.decoder.Decode(dst, r.URL.Query())
	if err == nil {
		return nil
	}

	var derrs form.DecodeErrors
	if errors.As(err, &derrs) && len(derrs) > 0 {
		params := make([]string, 0, len(derrs))
		for name := range derrs {
			params = append(params, name)
		}
		sort.Strings(params)
		return &core.BadRequestError{Param: params[0], Message: "has an invalid value"}
	}
	return &core.BadRequestError{Message: "malformed query string"}
}

// parseID reads the {id} route parameter.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.BadRequestError{Param: "id", Message: "must be a positive integer"}
	}
	return id, nil
}
