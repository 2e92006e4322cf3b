package core

// convert.go normalizes raw CSV cells and headers.
//
// Spreadsheet exports leave artifacts behind:
//   - surrounding whitespace
//   - Excel formula prefixes (="value")
//   - stray surrounding quotes

import "strings"

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Keys are lowercased for case-insensitive matching. The first occurrence of
// a duplicated header wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// MissingColumns returns the required columns absent from idx, in template order.
func (idx HeaderIndex) MissingColumns(required []string) []string {
	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Cell returns the cleaned value of column col in row, or "" when the row
// is too short.
func (idx HeaderIndex) Cell(row []string, col string) string {
	pos, ok := idx[col]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// CleanCell removes common CSV artifacts from a cell value:
//   - Trims whitespace
//   - Removes Excel formula prefix (="...")
//   - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// isEmptyRow reports whether every cell in row is blank.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// rowInput maps a CSV row onto a RecordInput using idx.
func rowInput(idx HeaderIndex, row []string) RecordInput {
	return RecordInput{
		FarmerName:  idx.Cell(row, "farmer_name"),
		VillageName: idx.Cell(row, "village_name"),
		CropType:    idx.Cell(row, "crop_type"),
		AreaAcres:   idx.Cell(row, "area_acres"),
		YieldKg:     idx.Cell(row, "yield_kg"),
		Latitude:    idx.Cell(row, "latitude"),
		Longitude:   idx.Cell(row, "longitude"),
	}
}
