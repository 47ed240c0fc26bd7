package api

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	historySheetName = "History"
	exportTimeLayout = "02/01/2006 15:04"
)

// historyHeaders are the column titles per template language.
var historyHeaders = map[string][]string{
	"ca": {"Data", "Regla", "Tipus", "Empleat", "Valor", "Unitat", "Intent", "Estat", "Destinataris", "Missatges interns", "Correus enviats", "Correus fallits", "Assumpte"},
	"es": {"Fecha", "Regla", "Tipo", "Empleado", "Valor", "Unidad", "Intento", "Estado", "Destinatarios", "Mensajes internos", "Correos enviados", "Correos fallidos", "Asunto"},
	"en": {"Date", "Rule", "Type", "Employee", "Value", "Unit", "Attempt", "Status", "Recipients", "Internal messages", "Emails sent", "Emails failed", "Subject"},
}

var historyColumnWidths = []float64{18, 28, 16, 28, 10, 10, 9, 10, 36, 18, 16, 16, 48}

func historyRow(h *entities.AlertHistory) []any {
	employee := h.EmployeeName
	if employee == "" {
		employee = h.EmployeeID
	}
	return []any{
		h.FiredAt.Local().Format(exportTimeLayout),
		h.RuleName,
		h.Type,
		employee,
		h.MeasuredValue,
		h.MeasuredUnit,
		h.Attempt,
		h.Status,
		strings.Join(h.Recipients, ", "),
		h.InternalSent,
		h.EmailSent,
		h.EmailFailed,
		h.Subject,
	}
}

// buildHistoryWorkbook renders history rows into an xlsx workbook with a
// styled, frozen header row.
func buildHistoryWorkbook(items []entities.AlertHistory, lang string) ([]byte, error) {
	headers, ok := historyHeaders[lang]
	if !ok {
		headers = historyHeaders["ca"]
	}

	f := excelize.NewFile()
	// WriteTo needs the file open, so it is closed explicitly on every path.
	index, err := f.NewSheet(historySheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(historySheetName, cell, header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(historySheetName, cell, cell, headerStyle); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(historySheetName, name, name, historyColumnWidths[col]); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i := range items {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := historyRow(&items[i])
		if err := f.SetSheetRow(historySheetName, cell, &values); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if err := f.SetPanes(historySheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
