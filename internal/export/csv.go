package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"pcm-survey/internal/survey/application"
)

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// BuildCSV renders every route into one flat CSV. Routes share the header
// because they come from the same upload.
func BuildCSV(snap *application.Snapshot) ([]byte, error) {
	tables := BuildTables(snap)
	if len(tables) == 0 {
		return nil, fmt.Errorf("export: snapshot has no routes")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := tables[0].Columns
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("export: write csv header: %w", err)
	}
	record := make([]string, len(header))
	for _, table := range tables {
		for _, row := range table.Rows {
			for i, col := range header {
				record[i] = formatCell(row[col])
			}
			if err := w.Write(record); err != nil {
				return nil, fmt.Errorf("export: write csv row: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
