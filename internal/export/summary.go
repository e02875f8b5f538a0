// Package export renders summaries as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/service"
)

// ContentType is the media type of the workbook written by WriteSummary.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names, one per summary bucket.
const (
	SheetActive    = "Active"
	SheetCompleted = "Completed"
)

const dateLayout = "2006-01-02"

var columns = []string{"Plot", "Crop", "Status", "Start date", "End date", "Activities", "Cost", "Income", "Net profit"}

// Filename names the export for a date range.
func Filename(start, end time.Time) string {
	return fmt.Sprintf("summary_%s_%s.xlsx", start.UTC().Format(dateLayout), end.UTC().Format(dateLayout))
}

// WriteSummary writes sum as an xlsx workbook with an Active and a Completed
// sheet. Each sheet ends with a totals row carrying the bucket totals.
func WriteSummary(w io.Writer, sum *service.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetActive); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetCompleted); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := writeSheet(f, styles, SheetActive, sum.ActivePlots, sum.ActiveTotals); err != nil {
		return err
	}
	if err := writeSheet(f, styles, SheetCompleted, sum.CompletedPlots, sum.CompletedTotals); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	header int
	money  int
	total  int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4E7D32"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	if s.money, err = f.NewStyle(&excelize.Style{NumFmt: 4}); err != nil {
		return s, fmt.Errorf("money style: %w", err)
	}
	if s.total, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4}); err != nil {
		return s, fmt.Errorf("total style: %w", err)
	}
	return s, nil
}

func writeSheet(f *excelize.File, styles sheetStyles, sheet string, entries []service.SummaryEntry, totals domain.Totals) error {
	if err := f.SetSheetRow(sheet, "A1", &columns); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", styles.header); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}

	row := 2
	for _, e := range entries {
		end := ""
		if e.EndDate != nil {
			end = e.EndDate.UTC().Format(dateLayout)
		}
		values := []interface{}{
			e.Name, e.CropName, string(e.Status),
			e.StartDate.UTC().Format(dateLayout), end,
			e.Stats.ActivityCount, e.Stats.TotalCost, e.Stats.TotalIncome, e.Stats.NetProfit,
		}
		if err := setRow(f, sheet, row, values, styles.money); err != nil {
			return err
		}
		row++
	}

	values := []interface{}{"Total", "", "", "", "", totals.ActivityCount, totals.TotalCost, totals.TotalIncome, totals.NetProfit}
	if err := setRow(f, sheet, row, values, styles.total); err != nil {
		return err
	}

	if err := f.SetColWidth(sheet, "A", "B", 24); err != nil {
		return fmt.Errorf("%s widths: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "C", lastCol, 14); err != nil {
		return fmt.Errorf("%s widths: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// setRow writes values at row and applies moneyStyle to the amount columns.
func setRow(f *excelize.File, sheet string, row int, values []interface{}, moneyStyle int) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	first, _ := excelize.CoordinatesToCellName(7, row)
	last, _ := excelize.CoordinatesToCellName(len(columns), row)
	if err := f.SetCellStyle(sheet, first, last, moneyStyle); err != nil {
		return fmt.Errorf("%s row %d style: %w", sheet, row, err)
	}
	return nil
}
