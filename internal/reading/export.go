package reading

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Export formats accepted by the export endpoint
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

var exportHeader = []string{"Date", "Time", "Meter number", "Reading (kWh)"}

// Export is a rendered download of a user's readings
type Export struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Export renders the readings of userID in the requested format
func (s *Service) Export(ctx context.Context, userID, format string) (*Export, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX && format != FormatPDF {
		return nil, &ValidationError{Message: "unsupported export format"}
	}

	readings, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return BuildExport(readings, format, s.timeSource.Now())
}

// BuildExport renders readings as csv, xlsx or pdf
func BuildExport(readings []*Reading, format string, now time.Time) (*Export, error) {
	filename := fmt.Sprintf("meter_readings_%s.%s", now.Format("2006-01-02"), format)

	var (
		data        []byte
		contentType string
		err         error
	)
	switch format {
	case FormatCSV:
		data, err = BuildCSV(readings)
		contentType = "text/csv; charset=utf-8"
	case FormatXLSX:
		data, err = BuildXLSX(readings)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		data, err = BuildPDF(readings, now)
		contentType = "application/pdf"
	default:
		return nil, &ValidationError{Message: "unsupported export format"}
	}
	if err != nil {
		return nil, fmt.Errorf("building %s export: %w", format, err)
	}

	return &Export{Data: data, ContentType: contentType, Filename: filename}, nil
}

// BuildCSV renders readings as a UTF-8 CSV with a byte order mark so spreadsheet apps detect the encoding
func BuildCSV(readings []*Reading) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")

	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, r := range readings {
		if err := w.Write(exportRow(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders readings into a single-sheet workbook
func BuildXLSX(readings []*Reading) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "readings"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	setRow := func(row int, values ...any) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("writing cell %s: %w", cell, err)
			}
		}
		return nil
	}

	header := make([]any, len(exportHeader))
	for i, title := range exportHeader {
		header[i] = title
	}
	if err := setRow(1, header...); err != nil {
		return nil, err
	}
	for i, r := range readings {
		if err := setRow(i+2,
			r.CreatedAt.Format("2006-01-02"),
			r.CreatedAt.Format("15:04:05"),
			r.MeterNumber,
			r.Value,
		); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders readings as a one-table report
func BuildPDF(readings []*Reading, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Meter Readings")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", now.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", len(readings)))
	pdf.Ln(8)

	widths := []float64{35, 30, 55, 50}
	pdf.SetFont("Arial", "B", 10)
	for i, title := range exportHeader {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, r := range readings {
		row := exportRow(r)
		pdf.CellFormat(widths[0], 6, row[0], "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, row[1], "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 6, row[2], "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, row[3], "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportRow(r *Reading) []string {
	return []string{
		r.CreatedAt.Format("2006-01-02"),
		r.CreatedAt.Format("15:04:05"),
		r.MeterNumber,
		strconv.FormatInt(r.Value, 10),
	}
}
