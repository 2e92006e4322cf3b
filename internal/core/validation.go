package core

// validation.go is the single source of truth for "is this a legal record
// payload". It is used by create, update and every row of a CSV batch.
//
// Validation happens in two passes:
//  1. Text fields are trimmed and numeric fields parsed. A number that does
//     not parse, or is not finite, is reported as its own violation.
//  2. The parsed payload is checked against its struct tags. Fields that
//     failed to parse are not range-checked.
//
// Every violation is collected; nothing short-circuits.

import (
	"cmp"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RecordValidator validates record payloads.
type RecordValidator struct {
	validate *validator.Validate
}

// NewRecordValidator creates a validator that reports json field names.
func NewRecordValidator() *RecordValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RecordValidator{validate: v}
}

// Validate checks in and returns the normalized payload, or the violations
// found. row is attached to every violation (0 for single-record writes).
func (v *RecordValidator) Validate(row int, in RecordInput) (RecordPayload, []Violation) {
	var violations []Violation

	p := RecordPayload{
		FarmerName:  strings.TrimSpace(in.FarmerName),
		VillageName: strings.TrimSpace(in.VillageName),
		CropType:    strings.TrimSpace(in.CropType),
	}

	unparsed := make(map[string]bool)
	numbers := []struct {
		field string
		raw   string
		dst   *float64
	}{
		{"area_acres", in.AreaAcres, &p.AreaAcres},
		{"yield_kg", in.YieldKg, &p.YieldKg},
		{"latitude", in.Latitude, &p.Latitude},
		{"longitude", in.Longitude, &p.Longitude},
	}
	for _, n := range numbers {
		raw := strings.TrimSpace(n.raw)
		f, msg := parseNumber(raw)
		if msg != "" {
			unparsed[n.field] = true
			violations = append(violations, Violation{Row: row, Field: n.field, Value: raw, Message: msg})
			continue
		}
		*n.dst = f
	}

	if err := v.validate.Struct(p); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			violations = append(violations, Violation{Row: row, Message: err.Error()})
		}
		for _, fe := range verrs {
			if unparsed[fe.Field()] {
				continue
			}
			violations = append(violations, Violation{
				Row:     row,
				Field:   fe.Field(),
				Value:   valueText(fe.Value()),
				Message: violationMessage(fe),
			})
		}
	}

	if len(violations) > 0 {
		sortViolations(violations)
		return RecordPayload{}, violations
	}
	return p, nil
}

// parseNumber parses a finite float. The second result is a violation
// message, empty on success.
func parseNumber(raw string) (float64, string) {
	if raw == "" {
		return 0, "is required"
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, "must be a number"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "must be a finite number"
	}
	return f, ""
}

// violationMessage renders a validator failure in the service's wording.
func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		if fe.Param() == "0" {
			return "must be positive"
		}
		return "must be greater than " + fe.Param()
	case "gte", "lte":
		switch fe.Field() {
		case "latitude":
			return "must be between -90 and 90"
		case "longitude":
			return "must be between -180 and 180"
		}
		return "is out of range"
	default:
		return "is invalid"
	}
}

func valueText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return formatFloat(val)
	default:
		return ""
	}
}

// fieldOrder is the canonical order violations are reported in.
var fieldOrder = map[string]int{
	"farmer_name":  0,
	"village_name": 1,
	"crop_type":    2,
	"area_acres":   3,
	"yield_kg":     4,
	"latitude":     5,
	"longitude":    6,
}

// sortViolations orders violations by field position, keeping insertion
// order for ties.
func sortViolations(vs []Violation) {
	slices.SortStableFunc(vs, func(a, b Violation) int {
		return cmp.Compare(fieldOrder[a.Field], fieldOrder[b.Field])
	})
}
