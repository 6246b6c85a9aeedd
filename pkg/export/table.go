package export

import "fmt"

// Table is tabular export content. Cells may hold several lines separated by "\n".
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func (t Table) validate(format string) error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	for i, row := range t.Rows {
		if len(row) > len(t.Headers) {
			return fmt.Errorf("%s row %d has %d cells for %d headers", format, i, len(row), len(t.Headers))
		}
	}
	return nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
