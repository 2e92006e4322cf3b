package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() RecordInput {
	return RecordInput{
		FarmerName:  "A",
		VillageName: "V1",
		CropType:    "Rice",
		AreaAcres:   "2.5",
		YieldKg:     "500",
		Latitude:    "10",
		Longitude:   "20",
	}
}

func TestRecordValidator_Valid(t *testing.T) {
	v := NewRecordValidator()

	in := validInput()
	in.FarmerName = "  Asha  "
	in.Latitude = " -90 "
	in.Longitude = "180"

	p, violations := v.Validate(0, in)
	require.Empty(t, violations)
	assert.Equal(t, RecordPayload{
		FarmerName:  "Asha",
		VillageName: "V1",
		CropType:    "Rice",
		AreaAcres:   2.5,
		YieldKg:     500,
		Latitude:    -90,
		Longitude:   180,
	}, p)
}

func TestRecordValidator_Violations(t *testing.T) {
	v := NewRecordValidator()

	tests := []struct {
		name   string
		mutate func(*RecordInput)
		want   []string
	}{
		{
			name:   "blank name after trim",
			mutate: func(in *RecordInput) { in.FarmerName = "   " },
			want:   []string{"farmer_name is required"},
		},
		{
			name:   "crop too long",
			mutate: func(in *RecordInput) { in.CropType = strings.Repeat("x", 51) },
			want:   []string{"crop_type must be at most 50 characters"},
		},
		{
			name:   "zero area",
			mutate: func(in *RecordInput) { in.AreaAcres = "0" },
			want:   []string{"area_acres must be positive"},
		},
		{
			name:   "latitude out of range",
			mutate: func(in *RecordInput) { in.Latitude = "90.0001" },
			want:   []string{"latitude must be between -90 and 90"},
		},
		{
			name:   "unparseable number skips range check",
			mutate: func(in *RecordInput) { in.YieldKg = "lots" },
			want:   []string{"yield_kg must be a number"},
		},
		{
			name:   "non-finite number",
			mutate: func(in *RecordInput) { in.Longitude = "NaN" },
			want:   []string{"longitude must be a finite number"},
		},
		{
			name: "every violation reported in field order",
			mutate: func(in *RecordInput) {
				in.Longitude = "200"
				in.FarmerName = ""
				in.YieldKg = "-1"
				in.AreaAcres = ""
			},
			want: []string{
				"farmer_name is required",
				"area_acres is required",
				"yield_kg must be positive",
				"longitude must be between -180 and 180",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, violations := v.Validate(0, in)
			got := make([]string, len(violations))
			for i, vi := range violations {
				got[i] = vi.String()
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordValidator_KeepsLiteralText(t *testing.T) {
	v := NewRecordValidator()

	in := validInput()
	in.FarmerName = "'Ravi'"
	in.VillageName = "=Kota"
	in.CropType = `"Rice"`
	p, violations := v.Validate(0, in)
	require.Empty(t, violations)
	assert.Equal(t, "'Ravi'", p.FarmerName)
	assert.Equal(t, "=Kota", p.VillageName)
	assert.Equal(t, `"Rice"`, p.CropType)

	in = validInput()
	in.AreaAcres = "=2"
	in.YieldKg = "'500'"
	_, violations = v.Validate(0, in)
	require.Len(t, violations, 2)
	assert.Equal(t, Violation{Field: "area_acres", Value: "=2", Message: "must be a number"}, violations[0])
	assert.Equal(t, Violation{Field: "yield_kg", Value: "'500'", Message: "must be a number"}, violations[1])
}

func TestRecordValidator_LengthCountsRunes(t *testing.T) {
	v := NewRecordValidator()
	in := validInput()
	in.VillageName = strings.Repeat("é", 100)

	_, violations := v.Validate(0, in)
	assert.Empty(t, violations)
}

func TestRecordValidator_RowTag(t *testing.T) {
	v := NewRecordValidator()
	in := validInput()
	in.AreaAcres = "-3"

	_, violations := v.Validate(4, in)
	require.Len(t, violations, 1)
	assert.Equal(t, "Row 4: area_acres must be positive", violations[0].String())
	assert.Equal(t, "-3", violations[0].Value)
}

func TestRecordInput_UnmarshalJSON(t *testing.T) {
	var in RecordInput
	require.NoError(t, in.UnmarshalJSON([]byte(`{"farmer_name":"A","area_acres":2.5,"yield_kg":"500","latitude":null}`)))
	assert.Equal(t, "A", in.FarmerName)
	assert.Equal(t, "2.5", in.AreaAcres)
	assert.Equal(t, "500", in.YieldKg)
	assert.Equal(t, "", in.Latitude)

	assert.Error(t, in.UnmarshalJSON([]byte(`{"crop_type":{"name":"Rice"}}`)))
}
