// Package export writes a finished roast to a spreadsheet.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"coffee_roaster/internal/models"
)

const sheet = "torra"

// Columns is the header row of an exported roast.
var Columns = []string{
	"datetime", "roast_time",
	"temp_bean", "temp_air", "temp_fire", "temp_goal", "temp_cooler", "servo_position",
	"bean_entrance_open", "bean_exit_open", "cooler_exit_open",
	"mixer_on", "cooler_on", "burner_on", "cylinder_on", "roasting",
}

const timeLayout = "2006-01-02 15:04:05"

// XLSX writes torra-<name>.xlsx files into Dir.
type XLSX struct {
	Dir string
}

// FileName is the export file name for a roast.
func FileName(name string) string {
	if name == "" {
		name = "sem-nome"
	}
	return "torra-" + name + ".xlsx"
}

// Export writes one row per tick under a header row and returns the file path.
func (x XLSX) Export(name string, ticks []models.Tick) (string, error) {
	if x.Dir != "" {
		if err := os.MkdirAll(x.Dir, 0o755); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
	}
	path := filepath.Join(x.Dir, FileName(name))

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for i, t := range ticks {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		row := Row(t)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", fmt.Errorf("write tick %d: %w", i, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

// Row flattens a tick in Columns order.
func Row(t models.Tick) []interface{} {
	s := t.Snapshot
	return []interface{}{
		t.Timestamp.Format(timeLayout), s.ElapsedSecs,
		s.BeanTemp, s.AirTemp, s.FireTemp, s.SetpointTemp, s.CoolerTemp, s.ServoPosition,
		s.BeanEntranceOpen, s.BeanExitOpen, s.CoolerExitOpen,
		s.MixerOn, s.CoolerOn, s.BurnerOn, s.CylinderOn, s.Roasting,
	}
}
