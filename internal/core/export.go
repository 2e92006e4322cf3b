package core

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xuri/excelize/v2"
)

// ExportFormat selects the encoding of an export.
type ExportFormat string

const (
	FormatCSV     ExportFormat = "csv"
	FormatXLSX    ExportFormat = "xlsx"
	FormatGeoJSON ExportFormat = "geojson"
)

// ParseExportFormat validates a format name. Empty selects CSV.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatGeoJSON:
		return f, nil
	default:
		return "", badRequest("format", "must be one of: csv, xlsx, geojson")
	}
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatGeoJSON:
		return "application/geo+json"
	default:
		return "text/csv"
	}
}

// Extension returns the file extension of the format, without the dot.
func (f ExportFormat) Extension() string {
	if f == "" {
		return string(FormatCSV)
	}
	return string(f)
}

// exportColumns is the header of CSV and XLSX exports. The first seven match
// RequiredColumns so an export can be re-uploaded.
var exportColumns = append(append([]string{}, RequiredColumns...), "id", "user_id", "created_at", "updated_at")

// csvSafe prefixes text a spreadsheet would evaluate as a formula with a
// single quote. CleanCell strips the quote again when the file is uploaded.
func csvSafe(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func exportRow(r Record) []string {
	return []string{
		csvSafe(r.FarmerName),
		csvSafe(r.VillageName),
		csvSafe(r.CropType),
		formatFloat(r.AreaAcres),
		formatFloat(r.YieldKg),
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
		strconv.FormatInt(r.ID, 10),
		strconv.FormatInt(r.OwnerID, 10),
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// WriteExport encodes records to w in format f.
func WriteExport(w io.Writer, f ExportFormat, records []Record) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, records)
	case FormatGeoJSON:
		return WriteGeoJSON(w, records)
	default:
		return WriteCSV(w, records)
	}
}

// WriteCSV writes a header row and one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(exportRow(r)); err != nil {
			return fmt.Errorf("write csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTemplate writes the upload template: the required header and no rows.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RequiredColumns); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

const xlsxSheet = "Records"

// WriteXLSX writes a single-sheet workbook. Numeric columns are stored as
// numbers so spreadsheet formulas work on them. Text is stored as typed
// string cells, which are never evaluated, so it is written unchanged.
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.FarmerName,
			r.VillageName,
			r.CropType,
			r.AreaAcres,
			r.YieldKg,
			r.Latitude,
			r.Longitude,
			r.ID,
			r.OwnerID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", r.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// WriteGeoJSON writes a FeatureCollection with one Point feature per record.
// GeoJSON orders coordinates longitude first.
func WriteGeoJSON(w io.Writer, records []Record) error {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		feature := geojson.NewFeature(orb.Point{r.Longitude, r.Latitude})
		feature.ID = r.ID
		feature.Properties["farmer_name"] = r.FarmerName
		feature.Properties["village_name"] = r.VillageName
		feature.Properties["crop_type"] = r.CropType
		feature.Properties["area_acres"] = r.AreaAcres
		feature.Properties["yield_kg"] = r.YieldKg
		feature.Properties["user_id"] = r.OwnerID
		fc.Append(feature)
	}

	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}
