// Package export writes cleaned frames as CSV, XLSX or JSON.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"github.com/KaramelBytes/tidyloom-cli/internal/utils"
	"github.com/xuri/excelize/v2"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv, xlsx or json in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use csv, xlsx or json)", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Options configures writers.
type Options struct {
	// BOMPrefix adds a UTF-8 BOM to CSV output for Excel.
	BOMPrefix bool
	// Sheet names the XLSX sheet; default "Cleaned".
	Sheet string
}

// Write encodes fr to w.
func Write(w io.Writer, fr *frame.Frame, format Format, opt Options) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, fr, opt)
	case FormatXLSX:
		return WriteXLSX(w, fr, opt)
	case FormatJSON:
		return WriteJSON(w, fr)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteFile encodes fr fully in memory and then replaces path atomically.
func WriteFile(path string, fr *frame.Frame, format Format, opt Options) error {
	var buf bytes.Buffer
	if err := Write(&buf, fr, format, opt); err != nil {
		return err
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

// WriteCSV writes a header line and one record per row. Missing cells are
// empty fields.
func WriteCSV(w io.Writer, fr *frame.Frame, opt Options) error {
	if opt.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(fr.Names()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	rec := make([]string, len(fr.Columns))
	for i := 0; i < fr.Rows(); i++ {
		for j, c := range fr.Columns {
			rec[j] = c.Cells[i].String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes fr to a single-sheet workbook. Numbers and dates keep
// their cell types.
func WriteXLSX(w io.Writer, fr *frame.Frame, opt Options) error {
	sheet := opt.Sheet
	if sheet == "" {
		sheet = "Cleaned"
	}
	wb := excelize.NewFile()
	defer wb.Close()
	if err := wb.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header := make([]any, len(fr.Columns))
	for j, c := range fr.Columns {
		header[j] = c.Name
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	dateStyle, err := wb.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return fmt.Errorf("date style: %w", err)
	}
	row := make([]any, len(fr.Columns))
	for i := 0; i < fr.Rows(); i++ {
		for j, c := range fr.Columns {
			row[j] = cellValue(c.Cells[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	for j, c := range fr.Columns {
		if c.Storage() != frame.Time || fr.Rows() == 0 {
			continue
		}
		top, _ := excelize.CoordinatesToCellName(j+1, 2)
		bottom, _ := excelize.CoordinatesToCellName(j+1, fr.Rows()+1)
		if err := wb.SetCellStyle(sheet, top, bottom, dateStyle); err != nil {
			return fmt.Errorf("style dates: %w", err)
		}
	}
	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cellValue(v frame.Value) any {
	switch v.Kind {
	case frame.Number:
		return v.Num
	case frame.Time:
		return v.Time
	case frame.Text:
		return v.Str
	default:
		return nil
	}
}

// WriteJSON writes an array of row objects with keys in column order.
// Missing cells are null and dates use the export text form.
func WriteJSON(w io.Writer, fr *frame.Frame) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	keys := make([][]byte, len(fr.Columns))
	for j, c := range fr.Columns {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return err
		}
		keys[j] = k
	}
	for i := 0; i < fr.Rows(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  {")
		for j, c := range fr.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[j])
			buf.WriteByte(':')
			if err := writeJSONValue(&buf, c.Cells[i]); err != nil {
				return fmt.Errorf("row %d column %q: %w", i, c.Name, err)
			}
		}
		buf.WriteByte('}')
	}
	if fr.Rows() > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func writeJSONValue(buf *bytes.Buffer, v frame.Value) error {
	var (
		b   []byte
		err error
	)
	switch v.Kind {
	case frame.Missing:
		b = []byte("null")
	case frame.Number:
		b, err = json.Marshal(v.Num)
	default:
		b, err = json.Marshal(v.String())
	}
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
