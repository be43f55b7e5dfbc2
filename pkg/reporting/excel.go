package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// ExcelReporter exports trade history to a spreadsheet.
type ExcelReporter struct{}

func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteTradesXLSX writes the trade records to an Excel workbook at path.
func (r *ExcelReporter) WriteTradesXLSX(records []types.TradeRecord, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const sheet = "Trades"
	fx.SetSheetName(fx.GetSheetName(0), sheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	currencyStyle, err := fx.NewStyle(&excelize.Style{
		NumFmt: 177, // $#,##0.00
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	if err != nil {
		return err
	}

	headers := []string{"ID", "Timestamp", "Symbol", "Instrument", "Slot", "Direction",
		"Action", "Quantity", "Price", "Cost Basis", "P&L", "Reason", "Score", "Confidence"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", endHeader, headerStyle); err != nil {
		return err
	}

	for i, rec := range records {
		row := i + 2
		values := []interface{}{
			rec.ID,
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.Symbol,
			string(rec.Instrument),
			string(rec.Slot),
			rec.Direction.String(),
			string(rec.Action),
			rec.Quantity,
			rec.Price,
			rec.CostBasis,
			rec.PnL,
			rec.Reason,
			rec.Score,
			rec.Confidence,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}

		start, _ := excelize.CoordinatesToCellName(9, row)
		end, _ := excelize.CoordinatesToCellName(11, row)
		if err := fx.SetCellStyle(sheet, start, end, currencyStyle); err != nil {
			return err
		}
	}

	if err := fx.SetColWidth(sheet, "A", "N", 14); err != nil {
		return err
	}

	return fx.SaveAs(path)
}
