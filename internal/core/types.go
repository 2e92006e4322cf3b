package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role is the closed set of caller roles.
type Role string

const (
	RoleFarmer  Role = "farmer"
	RoleOfficer Role = "officer"
)

// ParseRole converts a role string (case-insensitive) into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleFarmer:
		return RoleFarmer, nil
	case RoleOfficer:
		return RoleOfficer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleOfficer:
		return true
	default:
		return false
	}
}

// Principal is an authenticated caller. It is immutable for the life of a request.
type Principal struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// RecordPayload is the validated, user-editable part of a Record.
// Struct tags drive RecordValidator.
type RecordPayload struct {
	FarmerName  string  `json:"farmer_name" validate:"required,max=100"`
	VillageName string  `json:"village_name" validate:"required,max=100"`
	CropType    string  `json:"crop_type" validate:"required,max=50"`
	AreaAcres   float64 `json:"area_acres" validate:"gt=0"`
	YieldKg     float64 `json:"yield_kg" validate:"gt=0"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Record is one persisted agricultural data entry.
type Record struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"user_id"`
	RecordPayload
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordInput is an unvalidated record payload as received from a caller
// or a CSV row. Every field is kept as text so that parse failures can be
// reported separately from range failures.
type RecordInput struct {
	FarmerName  string `json:"farmer_name"`
	VillageName string `json:"village_name"`
	CropType    string `json:"crop_type"`
	AreaAcres   string `json:"area_acres"`
	YieldKg     string `json:"yield_kg"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
}

// UnmarshalJSON accepts JSON strings, numbers and null for every field.
// Objects and arrays are rejected.
func (in *RecordInput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := map[string]*string{
		"farmer_name":  &in.FarmerName,
		"village_name": &in.VillageName,
		"crop_type":    &in.CropType,
		"area_acres":   &in.AreaAcres,
		"yield_kg":     &in.YieldKg,
		"latitude":     &in.Latitude,
		"longitude":    &in.Longitude,
	}
	for name, dst := range fields {
		msg, ok := raw[name]
		if !ok {
			continue
		}
		s, err := scalarText(msg)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = s
	}
	return nil
}

// scalarText renders a JSON scalar as text.
func scalarText(msg json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(msg))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("expected a scalar value")
	default:
		return trimmed, nil
	}
}

// Input converts a stored payload back into its textual form.
func (p RecordPayload) Input() RecordInput {
	return RecordInput{
		FarmerName:  p.FarmerName,
		VillageName: p.VillageName,
		CropType:    p.CropType,
		AreaAcres:   formatFloat(p.AreaAcres),
		YieldKg:     formatFloat(p.YieldKg),
		Latitude:    formatFloat(p.Latitude),
		Longitude:   formatFloat(p.Longitude),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RequiredColumns are the CSV columns every upload must carry, in template order.
var RequiredColumns = []string{
	"farmer_name",
	"village_name",
	"crop_type",
	"area_acres",
	"yield_kg",
	"latitude",
	"longitude",
}

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// Summary holds dashboard totals for a scope.
type Summary struct {
	TotalFarmers  int64   `json:"total_farmers"`
	TotalArea     float64 `json:"total_area"`
	AverageYield  float64 `json:"average_yield"`
	TotalVillages int64   `json:"total_villages"`
	TotalCrops    int64   `json:"total_crops"`
}

// CropSummary aggregates records sharing a crop type.
type CropSummary struct {
	CropType     string  `json:"crop_type"`
	Count        int64   `json:"count"`
	TotalArea    float64 `json:"total_area"`
	AverageYield float64 `json:"average_yield"`
}

// VillageSummary aggregates records sharing a village.
type VillageSummary struct {
	VillageName string  `json:"village_name"`
	FarmerCount int64   `json:"farmer_count"`
	TotalArea   float64 `json:"total_area"`
}
