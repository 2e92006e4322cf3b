package database

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

// WhereBuilder assembles a parameterized WHERE clause. Column names passed
// to it must be constants; values always travel as bind arguments.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "column = $n". Empty strings and nil values are skipped.
func (wb *WhereBuilder) Add(column string, value any) {
	switch v := value.(type) {
	case nil:
		return
	case string:
		if v == "" {
			return
		}
	}
	wb.addOp(column, "=", value)
}

// AddRange appends inclusive bounds. A nil bound is skipped.
func (wb *WhereBuilder) AddRange(column string, lo, hi *float64) {
	if lo != nil {
		wb.addOp(column, ">=", *lo)
	}
	if hi != nil {
		wb.addOp(column, "<=", *hi)
	}
}

// AddRaw appends a condition with no arguments.
func (wb *WhereBuilder) AddRaw(condition string) {
	wb.conditions = append(wb.conditions, condition)
}

func (wb *WhereBuilder) addOp(column, op string, value any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s %s $%d", column, op, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// NextArgIndex returns the placeholder number the next argument will use,
// so callers can append LIMIT/OFFSET parameters.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns " WHERE a AND b ..." and its arguments, or "" and nil when
// there are no conditions.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// wherePredicate translates a core.Predicate. The zero scope becomes FALSE
// so a missing scope never widens a query.
func wherePredicate(p core.Predicate) *WhereBuilder {
	wb := NewWhereBuilder()

	if !p.Scope.Unrestricted() {
		if owner, ok := p.Scope.OwnerID(); ok {
			wb.Add("user_id", owner)
		} else {
			wb.AddRaw("FALSE")
		}
	}
	if p.ID != 0 {
		wb.Add("id", p.ID)
	}

	f := p.Filter
	wb.Add("crop_type", f.CropType)
	wb.Add("village_name", f.VillageName)
	wb.AddRange("area_acres", f.MinArea, f.MaxArea)
	wb.AddRange("yield_kg", f.MinYield, f.MaxYield)
	return wb
}

// sortColumns maps whitelisted sort keys to columns.
var sortColumns = map[core.SortKey]string{
	core.SortByID:          "id",
	core.SortByFarmerName:  "farmer_name",
	core.SortByVillageName: "village_name",
	core.SortByCropType:    "crop_type",
	core.SortByAreaAcres:   "area_acres",
	core.SortByYieldKg:     "yield_kg",
	core.SortByCreatedAt:   "created_at",
	core.SortByUpdatedAt:   "updated_at",
}

// orderBy renders ORDER BY for s with an id tiebreak. Keys outside the
// whitelist order by id.
func orderBy(s core.SortSpec) string {
	col, ok := sortColumns[s.Key]
	if !ok {
		col = "id"
	}
	dir := "ASC"
	if s.Direction == core.SortDesc {
		dir = "DESC"
	}
	if col == "id" {
		return fmt.Sprintf(" ORDER BY %s %s", quoteIdentifier(col), dir)
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s ASC", quoteIdentifier(col), dir, quoteIdentifier("id"))
}

// quoteIdentifier quotes a SQL identifier, escaping embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
