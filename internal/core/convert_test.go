package core

import (
	"reflect"
	"testing"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple string unchanged", "Rice", "Rice"},
		{"empty string", "", ""},
		{"surrounded by whitespace", "  Rice  ", "Rice"},

		// Excel formula prefix handling
		{"Excel formula with quotes", `="Rice"`, "Rice"},
		{"Excel formula number as text", `="12.5"`, "12.5"},
		{"bare equals sign", "=2.5", "2.5"},

		// Quote handling
		{"double quotes removed", `"Kolar"`, "Kolar"},
		{"single quotes removed", "'Kolar'", "Kolar"},
		{"mixed quotes removed", `"Kolar'`, "Kolar"},
		{"leading single quote (Excel text prefix)", "'500", "500"},

		{"whitespace and quotes", `  "Rice"  `, "Rice"},
		{"excel formula with whitespace", `  ="77.25"  `, "77.25"},
		{"only quotes", `""`, ""},
		{"inner spaces kept", "Sona Masuri", "Sona Masuri"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanCell(tt.input)
			if got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMakeHeaderIndex(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		checks map[string]int // key -> expected index
	}{
		{
			name:   "simple headers",
			header: []string{"farmer_name", "village_name", "crop_type"},
			checks: map[string]int{"farmer_name": 0, "village_name": 1, "crop_type": 2},
		},
		{
			name:   "case insensitive lookup",
			header: []string{"FARMER_NAME", "Village_Name", "cRoP_tYpE"},
			checks: map[string]int{"farmer_name": 0, "village_name": 1, "crop_type": 2},
		},
		{
			name:   "headers with quotes and whitespace",
			header: []string{`"farmer_name"`, "  yield_kg ", `="latitude"`},
			checks: map[string]int{"farmer_name": 0, "yield_kg": 1, "latitude": 2},
		},
		{
			name:   "duplicate header keeps first",
			header: []string{"area_acres", "notes", "AREA_ACRES"},
			checks: map[string]int{"area_acres": 0, "notes": 1},
		},
		{
			name:   "empty header",
			header: []string{},
			checks: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := MakeHeaderIndex(tt.header)
			if len(idx) != len(tt.checks) {
				t.Errorf("MakeHeaderIndex(%v) has %d keys, want %d", tt.header, len(idx), len(tt.checks))
			}
			for key, wantPos := range tt.checks {
				gotPos, ok := idx[key]
				if !ok {
					t.Errorf("MakeHeaderIndex(%v)[%q] not found, want index %d", tt.header, key, wantPos)
					continue
				}
				if gotPos != wantPos {
					t.Errorf("MakeHeaderIndex(%v)[%q] = %d, want %d", tt.header, key, gotPos, wantPos)
				}
			}
		})
	}
}

func TestHeaderIndex_MissingColumns(t *testing.T) {
	idx := MakeHeaderIndex([]string{"Crop_Type", "farmer_name", "extra", "latitude"})

	got := idx.MissingColumns(RequiredColumns)
	want := []string{"village_name", "area_acres", "yield_kg", "longitude"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingColumns() = %v, want %v", got, want)
	}

	if missing := MakeHeaderIndex(RequiredColumns).MissingColumns(RequiredColumns); missing != nil {
		t.Errorf("MissingColumns() on the template header = %v, want none", missing)
	}
}

func TestRowInput(t *testing.T) {
	idx := MakeHeaderIndex([]string{"longitude", "latitude", "notes", "yield_kg", "area_acres", "crop_type", "village_name", "farmer_name"})

	got := rowInput(idx, []string{" 77.25", `="12.5"`, "ignored", "500", "2", "Rice", "Kolar", "Asha "})
	want := RecordInput{
		FarmerName:  "Asha",
		VillageName: "Kolar",
		CropType:    "Rice",
		AreaAcres:   "2",
		YieldKg:     "500",
		Latitude:    "12.5",
		Longitude:   "77.25",
	}
	if got != want {
		t.Errorf("rowInput() = %+v, want %+v", got, want)
	}

	// Short rows leave trailing fields blank for the validator to report.
	short := rowInput(idx, []string{"77.25", "12.5"})
	if short.FarmerName != "" || short.Longitude != "77.25" {
		t.Errorf("rowInput(short) = %+v", short)
	}
}

func TestIsEmptyRow(t *testing.T) {
	tests := map[string]struct {
		row  []string
		want bool
	}{
		"nil":         {nil, true},
		"blank cells": {[]string{"", "  ", "\t"}, true},
		"one value":   {[]string{"", "Rice", ""}, false},
	}
	for name, tt := range tests {
		if got := isEmptyRow(tt.row); got != tt.want {
			t.Errorf("%s: isEmptyRow(%q) = %v, want %v", name, tt.row, got, tt.want)
		}
	}
}
