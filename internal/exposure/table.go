package exposure

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table is a column-addressable view over one tabular exposure file.
// Cell values stay as strings until Records converts them.
type Table struct {
	columns []string
	rows    [][]string
}

// HasColumn reports whether the table carries the named column.
// Column names are matched case-insensitively.
func (t *Table) HasColumn(name string) bool {
	return t.index(name) >= 0
}

func (t *Table) index(name string) int {
	name = strings.ToUpper(name)
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Records converts the table rows to exposure records. Rows are kept in
// file order. Calibration rows (negative TILEID) are dropped, and the
// OBSTYPE and LASTSTEP science filters apply when those columns exist.
func (t *Table) Records() ([]Record, error) {
	tileIdx := t.index("TILEID")
	nightIdx := t.index("NIGHT")
	expIdx := t.index("EXPID")
	if tileIdx < 0 || nightIdx < 0 || expIdx < 0 {
		return nil, fmt.Errorf("missing required columns (need TILEID, NIGHT, EXPID; have %s)",
			strings.Join(t.columns, ", "))
	}
	obsIdx := t.index("OBSTYPE")
	stepIdx := t.index("LASTSTEP")

	var records []Record
	for i, row := range t.rows {
		if obsIdx >= 0 && !strings.EqualFold(strings.TrimSpace(row[obsIdx]), "science") {
			continue
		}
		if stepIdx >= 0 && !strings.EqualFold(strings.TrimSpace(row[stepIdx]), "all") {
			continue
		}

		tile, err := parseInt64(row[tileIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad TILEID %q", i+1, row[tileIdx])
		}
		if tile < 0 {
			// Calibration exposures carry negative tile ids.
			continue
		}
		night, err := parseInt64(row[nightIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad NIGHT %q", i+1, row[nightIdx])
		}
		exp, err := parseInt64(row[expIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad EXPID %q", i+1, row[expIdx])
		}

		records = append(records, Record{TileID: tile, Night: night, ExpID: exp})
	}
	return records, nil
}

// ReadTable reads one tabular exposure file. The format is chosen by
// extension: FITS binary tables for .fits, ECSV for .ecsv, CSV for .csv
// and whitespace-delimited text for everything else. A .csv file that
// opens with the ECSV magic is read as ECSV.
func ReadTable(path string) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".fits" || ext == ".fit" {
		return readFITS(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	switch ext {
	case ".ecsv":
		return readECSV(br)
	case ".csv":
		if magic, _ := br.Peek(7); string(magic) == "# %ECSV" {
			return readECSV(br)
		}
		return readCSV(br)
	default:
		return readWhitespace(br)
	}
}

func readCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty table")
	}
	return &Table{columns: canonicalNames(rows[0]), rows: rows[1:]}, nil
}

// readECSV reads the Enhanced CSV format: a commented YAML header
// followed by a delimited data section that starts with its own header
// row. The data delimiter defaults to space and may be overridden by a
// "delimiter:" entry in the header.
func readECSV(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	delimiter := " "
	var dataLines []string
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			if !strings.HasPrefix(line, "# %ECSV") {
				return nil, errors.New("missing %ECSV header")
			}
			first = false
			continue
		}
		if strings.HasPrefix(line, "#") {
			meta := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			if rest, ok := strings.CutPrefix(meta, "delimiter:"); ok {
				if strings.Trim(strings.TrimSpace(rest), `"'`) == "," {
					delimiter = ","
				}
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		dataLines = append(dataLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(dataLines) == 0 {
		return nil, errors.New("empty table")
	}

	if delimiter == "," {
		return readCSV(strings.NewReader(strings.Join(dataLines, "\n")))
	}
	return tableFromFields(dataLines)
}

func readWhitespace(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.New("empty table")
	}
	return tableFromFields(lines)
}

// tableFromFields builds a table from whitespace-delimited lines, the
// first of which names the columns.
func tableFromFields(lines []string) (*Table, error) {
	columns := canonicalNames(strings.Fields(lines[0]))
	rows := make([][]string, 0, len(lines)-1)
	for i, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) != len(columns) {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i+1, len(fields), len(columns))
		}
		rows = append(rows, fields)
	}
	return &Table{columns: columns, rows: rows}, nil
}

func canonicalNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToUpper(strings.TrimSpace(n))
	}
	return out
}

func parseInt64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	// Some table writers emit integer columns as floats.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	return int64(f), nil
}
