package core

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

// ============================================================================
// Cell Cleaning Benchmarks
// ============================================================================

// BenchmarkCleanCell benchmarks cell cleaning, which runs on every cell of
// every uploaded row.
func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"Rice",
		"  Kolar  ",
		`="12.5"`,
		`"Sona Masuri"`,
		"'500",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			_ = CleanCell(tc)
		}
	}
}

func BenchmarkMakeHeaderIndex(b *testing.B) {
	header := []string{"Farmer_Name", "village_name", "CROP_TYPE", "area_acres", "yield_kg", "latitude", "longitude", "notes"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = MakeHeaderIndex(header)
	}
}

// ============================================================================
// Validation Benchmarks
// ============================================================================

func BenchmarkRecordValidator(b *testing.B) {
	v := NewRecordValidator()
	in := RecordInput{
		FarmerName:  "Asha",
		VillageName: "Kolar",
		CropType:    "Rice",
		AreaAcres:   "2.5",
		YieldKg:     "500",
		Latitude:    "12.5",
		Longitude:   "77.25",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = v.Validate(2, in)
	}
}

// BenchmarkRecordValidator_Invalid measures the slower path that builds
// violation messages.
func BenchmarkRecordValidator_Invalid(b *testing.B) {
	v := NewRecordValidator()
	in := RecordInput{FarmerName: "", AreaAcres: "abc", YieldKg: "-1", Latitude: "120", Longitude: "x"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = v.Validate(2, in)
	}
}

// ============================================================================
// CSV Parsing Benchmarks
// ============================================================================

func benchmarkCSV(rows int) []byte {
	var buf bytes.Buffer
	buf.WriteString("\xef\xbb\xbffarmer_name,village_name,crop_type,area_acres,yield_kg,latitude,longitude\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&buf, "Farmer %d,Village %d,Rice,%d.5,%d,12.5,77.25\n", i, i%40, i%20+1, 100+i)
	}
	return buf.Bytes()
}

func BenchmarkParseBatch(b *testing.B) {
	data := benchmarkCSV(1000)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := parseBatch(WrapForIngest(bytes.NewReader(data))); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseBatch_Large(b *testing.B) {
	data := benchmarkCSV(50000)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := parseBatch(WrapForIngest(bytes.NewReader(data))); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Stream Wrapper Benchmarks
// ============================================================================

func BenchmarkWrapForIngest(b *testing.B) {
	data := []byte(strings.Repeat("Asha,Kolar,Rice,2.5,500,12.5,77.25\n", 10000))

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := io.Copy(io.Discard, WrapForIngest(bytes.NewReader(data))); err != nil {
			b.Fatal(err)
		}
	}
}
