package exposure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
)

// readFITS reads the first binary table HDU of a FITS file into a Table.
func readFITS(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fits, err := fitsio.Open(f)
	if err != nil {
		return nil, fmt.Errorf("open fits: %w", err)
	}
	defer fits.Close()

	for _, hdu := range fits.HDUs() {
		tbl, ok := hdu.(*fitsio.Table)
		if !ok {
			continue
		}
		return tableFromFITS(tbl)
	}
	return nil, fmt.Errorf("no binary table in %s", filepath.Base(path))
}

func tableFromFITS(tbl *fitsio.Table) (*Table, error) {
	cols := tbl.Cols()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = strings.ToUpper(strings.TrimSpace(c.Name))
	}
	t := &Table{columns: names}

	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, fmt.Errorf("read fits table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m := make(map[string]interface{}, len(cols))
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan fits row: %w", err)
		}
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = fitsCellString(m[c.Name])
		}
		t.rows = append(t.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fits table: %w", err)
	}
	return t, nil
}

// fitsCellString renders one FITS cell the way the text decoders see it.
// FITS string cells are blank-padded, hence the trim.
func fitsCellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	default:
		return fmt.Sprint(x)
	}
}
