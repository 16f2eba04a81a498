// backend/src/parsers/csv_parser.go
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/username/farmadash/backend/src/models"
)

// Separator used by the pharmacy sales export.
const fieldSeparator = ';'

type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads a ';'-delimited sales export into a RawTable. Header names are
// trimmed of surrounding whitespace. Rows shorter than the header are padded
// with empty cells and extra trailing cells are dropped; per-cell problems are
// left for the normalizer. Structural problems (unreadable input, broken
// quoting) are fatal and returned to the caller.
func (p *CSVParser) Parse(file io.Reader) (*models.RawTable, error) {
	reader := csv.NewReader(file)
	reader.Comma = fieldSeparator
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = strings.TrimSpace(c)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(columns))
		for i := range columns {
			if i < len(record) {
				row[i] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return &models.RawTable{Columns: columns, Rows: rows}, nil
}

// ParseFile opens and parses a sales export from disk. Inability to open the
// file is the one fatal condition of a load and is propagated, not swallowed.
func (p *CSVParser) ParseFile(path string) (*models.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sales file %s: %w", path, err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Write serializes a table's header and raw cells back to the same
// ';'-delimited format, so a filtered table can be exported losslessly.
func (p *CSVParser) Write(w io.Writer, columns []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	writer.Comma = fieldSeparator

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
