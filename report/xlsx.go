package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	insurance "github.com/goliatone/go-insurance"
)

const (
	SheetName = "Claims"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ClaimsHeader is the first row of the export, one column per claim field
var ClaimsHeader = []string{
	"Claim Number",
	"Policy ID",
	"User ID",
	"Status",
	"Claim Amount",
	"Approved Amount",
	"Diagnosis",
	"Provider",
	"Service Date",
	"Reviewed At",
	"Review Notes",
	"Submitted At",
}

var columnWidths = []float64{18, 38, 38, 14, 14, 16, 30, 25, 14, 22, 40, 22}

// XLSXExporter writes claims as a single sheet workbook
type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (XLSXExporter) ContentType() string   { return xlsxContentType }
func (XLSXExporter) FileExtension() string { return ".xlsx" }

func (e XLSXExporter) WriteClaims(ctx context.Context, w io.Writer, claims []*insurance.Claim) error {
	f, err := e.Workbook(ctx, claims)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Workbook builds the workbook in memory. Callers must Close it.
func (XLSXExporter) Workbook(ctx context.Context, claims []*insurance.Claim) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ClaimsHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, claim := range claims {
		if err := ctx.Err(); err != nil {
			f.Close()
			return nil, err
		}

		row := i + 2
		for col, value := range claimRow(claim) {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, err
			}
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	return f, nil
}

func claimRow(c *insurance.Claim) []any {
	var reviewedAt, notes any
	if c.ReviewedAt != nil {
		reviewedAt = c.ReviewedAt.UTC().Format("2006-01-02 15:04:05")
	}
	if c.ReviewNotes != nil {
		notes = *c.ReviewNotes
	}

	return []any{
		c.ClaimNumber,
		c.PolicyID.String(),
		c.UserID.String(),
		string(c.Status),
		c.ClaimAmount,
		c.ApprovedAmount,
		c.Diagnosis,
		c.ProviderName,
		c.ServiceDate,
		reviewedAt,
		notes,
		c.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}
