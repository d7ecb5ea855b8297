package profile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const sampleCSV = `roast_time,temp_bean,temp_air,temp_fire,servo_position
12,80,90,100,10
,,,,
0,200,180,250,20
1,195,181,251,
2,,182,252,21.5

3,190,183,253,22
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_CSV(t *testing.T) {
	p, err := Load(writeFile(t, "setup.csv", sampleCSV), 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Len() != 4 {
		t.Fatalf("Len = %d, want 4", p.Len())
	}
	if v, _ := p.Initial().Value(FieldFireTemp); v != 250 {
		t.Fatalf("initial fire = %v", v)
	}
	r, _ := p.At(1)
	if _, ok := r.Value(FieldServoPosition); ok {
		t.Fatalf("row 1 should have no servo value")
	}
	r, _ = p.At(2)
	if v, _ := r.Value(FieldServoPosition); v != 21.5 {
		t.Fatalf("row 2 servo = %v", v)
	}
	if _, ok := r.Value(FieldBeanTemp); ok {
		t.Fatalf("row 2 should have no bean value")
	}
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup.xlsx")
	x := excelize.NewFile()
	sheet := x.GetSheetName(0)
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	for i, rec := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		vals := make([]interface{}, len(rec))
		for j := range rec {
			vals[j] = rec[j]
		}
		if err := x.SetSheetRow(sheet, cell, &vals); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := x.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = x.Close()

	p, err := Load(path, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Len() != 4 {
		t.Fatalf("Len = %d, want 4", p.Len())
	}
	if got := p.Lookup(3, FieldServoPosition).Elapsed; got != 3 {
		t.Fatalf("Lookup(3, servo) = %d", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(writeFile(t, "setup.txt", sampleCSV), 1); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("want ErrUnsupportedFormat, got %v", err)
	}
	missing := "roast_time,temp_bean\n0,100\n"
	if _, err := Load(writeFile(t, "setup.csv", missing), 1); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("want ErrMissingColumn, got %v", err)
	}
	bad := "roast_time,temp_bean,temp_air,temp_fire,servo_position\n0,abc,1,1,1\n"
	if _, err := Load(writeFile(t, "setup.csv", bad), 1); err == nil {
		t.Fatalf("want parse error")
	}
	noZero := "roast_time,temp_bean,temp_air,temp_fire,servo_position\n5,1,1,1,1\n"
	if _, err := Load(writeFile(t, "setup.csv", noZero), 1); !errors.Is(err, ErrNoInitialRow) {
		t.Fatalf("want ErrNoInitialRow, got %v", err)
	}
}

func TestParseNumber_CommaDecimal(t *testing.T) {
	v, err := parseNumber("12,5")
	if err != nil || v != 12.5 {
		t.Fatalf("parseNumber = %v, %v", v, err)
	}
}
