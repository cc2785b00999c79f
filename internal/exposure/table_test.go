package exposure

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTable(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	return path
}

func TestReadTable_CSV(t *testing.T) {
	path := writeTable(t, "exposure_table_20201215.csv",
		"TILEID,NIGHT,EXPID,OBSTYPE,LASTSTEP\n"+
			"80605,20201215,67972,science,all\n"+
			"80605,20201215,67973,science,all\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	records, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	want := []Record{
		{TileID: 80605, Night: 20201215, ExpID: 67972},
		{TileID: 80605, Night: 20201215, ExpID: 67973},
	}
	assertRecords(t, records, want)
}

func TestReadTable_Whitespace(t *testing.T) {
	path := writeTable(t, "exposures.txt",
		"# external exposure list\n"+
			"TILEID  NIGHT     EXPID\n"+
			"80605   20201215  67972\n"+
			"\n"+
			"80606   20201215  67980\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	records, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	want := []Record{
		{TileID: 80605, Night: 20201215, ExpID: 67972},
		{TileID: 80606, Night: 20201215, ExpID: 67980},
	}
	assertRecords(t, records, want)
}

func TestReadTable_ECSV(t *testing.T) {
	path := writeTable(t, "exposure_table_20201215.ecsv",
		"# %ECSV 0.9\n"+
			"# ---\n"+
			"# datatype:\n"+
			"# - {name: TILEID, datatype: int64}\n"+
			"# - {name: NIGHT, datatype: int64}\n"+
			"# - {name: EXPID, datatype: int64}\n"+
			"TILEID NIGHT EXPID\n"+
			"80605 20201215 67972\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	records, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	assertRecords(t, records, []Record{{TileID: 80605, Night: 20201215, ExpID: 67972}})
}

func TestReadTable_ECSVCommaDelimiter(t *testing.T) {
	path := writeTable(t, "exposure_table_20201215.ecsv",
		"# %ECSV 0.9\n"+
			"# ---\n"+
			"# delimiter: ','\n"+
			"TILEID,NIGHT,EXPID\n"+
			"80605,20201215,67972\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	records, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	assertRecords(t, records, []Record{{TileID: 80605, Night: 20201215, ExpID: 67972}})
}

func TestReadTable_CSVWithECSVMagic(t *testing.T) {
	// Some table writers keep the .csv extension for ECSV content.
	path := writeTable(t, "exposure_table_20201215.csv",
		"# %ECSV 0.9\n"+
			"# ---\n"+
			"TILEID NIGHT EXPID\n"+
			"80605 20201215 67972\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	records, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	assertRecords(t, records, []Record{{TileID: 80605, Night: 20201215, ExpID: 67972}})
}

func TestRecords_FiltersNonScience(t *testing.T) {
	path := writeTable(t, "exposure_table_20201215.csv",
		"TILEID,NIGHT,EXPID,OBSTYPE,LASTSTEP\n"+
			"-99,20201215,67969,arc,all\n"+
			"-99,20201215,67970,flat,all\n"+
			"80605,20201215,67971,science,ignore\n"+
			"80605,20201215,67972,science,all\n"+
			"80605,20201215,67973,SCIENCE,ALL\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	records, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	want := []Record{
		{TileID: 80605, Night: 20201215, ExpID: 67972},
		{TileID: 80605, Night: 20201215, ExpID: 67973},
	}
	assertRecords(t, records, want)
}

func TestRecords_NoFilterColumns(t *testing.T) {
	// External lists often carry only the identifying columns. All
	// non-negative tiles pass.
	path := writeTable(t, "list.txt",
		"TILEID NIGHT EXPID\n"+
			"-1 20201215 67969\n"+
			"80605 20201215 67972\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	records, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	assertRecords(t, records, []Record{{TileID: 80605, Night: 20201215, ExpID: 67972}})
}

func TestRecords_FloatFormattedIntegers(t *testing.T) {
	path := writeTable(t, "exposure_table_20201215.csv",
		"TILEID,NIGHT,EXPID\n"+
			"80605.0,20201215.0,67972.0\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	records, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	assertRecords(t, records, []Record{{TileID: 80605, Night: 20201215, ExpID: 67972}})
}

func TestRecords_MissingRequiredColumns(t *testing.T) {
	path := writeTable(t, "exposure_table_20201215.csv",
		"TILEID,NIGHT\n"+
			"80605,20201215\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	_, err = tbl.Records()
	if err == nil {
		t.Fatal("expected error for missing EXPID column")
	}
	if !strings.Contains(err.Error(), "EXPID") {
		t.Errorf("error %q should name the required columns", err)
	}
}

func TestRecords_BadCell(t *testing.T) {
	path := writeTable(t, "exposure_table_20201215.csv",
		"TILEID,NIGHT,EXPID\n"+
			"80605,20201215,not-a-number\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	_, err = tbl.Records()
	if err == nil || !strings.Contains(err.Error(), "EXPID") {
		t.Errorf("got %v, want bad EXPID error", err)
	}
}

func TestReadTable_FieldCountMismatch(t *testing.T) {
	path := writeTable(t, "list.txt",
		"TILEID NIGHT EXPID\n"+
			"80605 20201215\n")

	_, err := ReadTable(path)
	if err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestReadTable_Empty(t *testing.T) {
	path := writeTable(t, "empty.csv", "")

	_, err := ReadTable(path)
	if err == nil {
		t.Fatal("expected error for empty table")
	}
}

func TestHasColumn(t *testing.T) {
	path := writeTable(t, "exposure_table_20201215.csv",
		"TILEID,NIGHT,EXPID,ObsType\n"+
			"80605,20201215,67972,science\n")

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	if !tbl.HasColumn("obstype") {
		t.Error("HasColumn should match case-insensitively")
	}
	if tbl.HasColumn("LASTSTEP") {
		t.Error("HasColumn reported a column the table does not have")
	}
}

func assertRecords(t *testing.T, got, want []Record) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
