package core

// query.go turns untrusted list parameters into an immutable query shape.
//
// Callers hand in a ListRequest built from raw query parameters. NewListQuery
// validates it against the sort whitelist and pagination bounds and returns a
// ListQuery. Storage adapters only ever see Predicate, SortSpec and integer
// limits; column names come from the SortKey whitelist, never from the caller.

import (
	"math"
	"strings"
)

// SortKey is a whitelisted sortable attribute.
type SortKey string

const (
	SortByID          SortKey = "id"
	SortByFarmerName  SortKey = "farmer_name"
	SortByVillageName SortKey = "village_name"
	SortByCropType    SortKey = "crop_type"
	SortByAreaAcres   SortKey = "area_acres"
	SortByYieldKg     SortKey = "yield_kg"
	SortByCreatedAt   SortKey = "created_at"
	SortByUpdatedAt   SortKey = "updated_at"
)

// DefaultSortKey is used when no key, or an unknown key, is requested.
const DefaultSortKey = SortByID

var sortKeys = map[SortKey]bool{
	SortByID:          true,
	SortByFarmerName:  true,
	SortByVillageName: true,
	SortByCropType:    true,
	SortByAreaAcres:   true,
	SortByYieldKg:     true,
	SortByCreatedAt:   true,
	SortByUpdatedAt:   true,
}

// Valid reports whether k is on the whitelist.
func (k SortKey) Valid() bool { return sortKeys[k] }

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec is a validated single-key ordering. Storage adapters append
// "id ASC" as a tiebreaker so pagination is stable.
type SortSpec struct {
	Key       SortKey
	Direction SortDirection
}

// DefaultSort orders by ascending id.
var DefaultSort = SortSpec{Key: DefaultSortKey, Direction: SortAsc}

// FilterSpec holds the optional, AND-combined list filters.
// Empty strings and nil bounds impose no constraint. Bounds are inclusive.
type FilterSpec struct {
	CropType    string
	VillageName string
	MinArea     *float64
	MaxArea     *float64
	MinYield    *float64
	MaxYield    *float64
}

// Validate rejects non-finite bounds.
func (f FilterSpec) Validate() error {
	bounds := []struct {
		name string
		v    *float64
	}{
		{"min_area", f.MinArea},
		{"max_area", f.MaxArea},
		{"min_yield", f.MinYield},
		{"max_yield", f.MaxYield},
	}
	for _, b := range bounds {
		if b.v != nil && (math.IsNaN(*b.v) || math.IsInf(*b.v, 0)) {
			return badRequest(b.name, "must be a finite number")
		}
	}
	return nil
}

// Match reports whether r satisfies every filter.
func (f FilterSpec) Match(r Record) bool {
	if f.CropType != "" && r.CropType != f.CropType {
		return false
	}
	if f.VillageName != "" && r.VillageName != f.VillageName {
		return false
	}
	if f.MinArea != nil && r.AreaAcres < *f.MinArea {
		return false
	}
	if f.MaxArea != nil && r.AreaAcres > *f.MaxArea {
		return false
	}
	if f.MinYield != nil && r.YieldKg < *f.MinYield {
		return false
	}
	if f.MaxYield != nil && r.YieldKg > *f.MaxYield {
		return false
	}
	return true
}

// Predicate is the storage-facing selection: scope first, then an optional
// id, then filters.
type Predicate struct {
	Scope  Scope
	ID     int64 // 0 means any id
	Filter FilterSpec
}

// Match reports whether r satisfies the predicate.
func (p Predicate) Match(r Record) bool {
	if !p.Scope.Contains(r) {
		return false
	}
	if p.ID != 0 && r.ID != p.ID {
		return false
	}
	return p.Filter.Match(r)
}

// Query is a complete storage read. Limit 0 means no limit.
type Query struct {
	Where  Predicate
	Sort   SortSpec
	Limit  int
	Offset int
}

// ListRequest is the raw, caller-supplied shape of a list call.
type ListRequest struct {
	Filter    FilterSpec
	SortBy    string
	SortOrder string
	Page      int // 0 means first page
	PageSize  int // 0 means the configured default
}

// QueryOptions bounds list requests.
type QueryOptions struct {
	DefaultPageSize int
	MaxPageSize     int
	// StrictSort rejects unknown sort keys and directions instead of
	// falling back to the default.
	StrictSort bool
}

// DefaultQueryOptions mirrors the public API defaults.
var DefaultQueryOptions = QueryOptions{DefaultPageSize: 10, MaxPageSize: 100}

// ListQuery is the validated, immutable form of a ListRequest.
type ListQuery struct {
	Filter   FilterSpec
	Sort     SortSpec
	Page     int
	PageSize int

	// SortFallback is set when an unknown sort key was replaced by the default.
	SortFallback bool
	// RequestedSort is the raw key that was replaced, if any.
	RequestedSort string
}

// Offset returns the number of rows skipped before this page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// NewListQuery validates req against opts.
func NewListQuery(req ListRequest, opts QueryOptions) (ListQuery, error) {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultQueryOptions.DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = DefaultQueryOptions.MaxPageSize
	}

	if err := req.Filter.Validate(); err != nil {
		return ListQuery{}, err
	}

	q := ListQuery{
		Filter:   req.Filter,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	switch {
	case q.Page == 0:
		q.Page = 1
	case q.Page < 0:
		return ListQuery{}, badRequest("page", "must be at least 1")
	}

	switch {
	case q.PageSize == 0:
		q.PageSize = opts.DefaultPageSize
	case q.PageSize < 0 || q.PageSize > opts.MaxPageSize:
		return ListQuery{}, badRequest("page_size", "must be between 1 and %d", opts.MaxPageSize)
	}

	if q.Page-1 > math.MaxInt/q.PageSize {
		return ListQuery{}, badRequest("page", "is too large")
	}

	sort, fellBack, err := ParseSort(req.SortBy, req.SortOrder, opts.StrictSort)
	if err != nil {
		return ListQuery{}, err
	}
	q.Sort = sort
	if fellBack {
		q.SortFallback = true
		q.RequestedSort = req.SortBy
	}

	return q, nil
}

// ParseSort validates a sort key and direction.
//
// An empty key selects the default. An unknown key falls back to the default
// (fellBack=true) unless strict is set, in which case it is a BadRequest.
// Directions other than asc/desc are treated as asc unless strict is set.
func ParseSort(key, order string, strict bool) (spec SortSpec, fellBack bool, err error) {
	spec = DefaultSort

	k := SortKey(strings.ToLower(strings.TrimSpace(key)))
	switch {
	case k == "":
	case k.Valid():
		spec.Key = k
	case strict:
		return SortSpec{}, false, badRequest("sort_by", "must be one of: %s", strings.Join(SortKeyNames(), ", "))
	default:
		fellBack = true
	}

	switch SortDirection(strings.ToLower(strings.TrimSpace(order))) {
	case SortDesc:
		spec.Direction = SortDesc
	case SortAsc, "":
		spec.Direction = SortAsc
	default:
		if strict {
			return SortSpec{}, false, badRequest("sort_order", "must be asc or desc")
		}
	}

	return spec, fellBack, nil
}

// SortKeyNames lists the whitelist in display order.
func SortKeyNames() []string {
	return []string{
		string(SortByID),
		string(SortByFarmerName),
		string(SortByVillageName),
		string(SortByCropType),
		string(SortByAreaAcres),
		string(SortByYieldKg),
		string(SortByCreatedAt),
		string(SortByUpdatedAt),
	}
}

// TotalPages is ceil(total/pageSize), or 0 when there is nothing to show.
func TotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// ListResult is one page of records.
type ListResult struct {
	Data       []Record `json:"data"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`

	SortFallback bool `json:"-"`
}
