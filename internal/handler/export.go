package handler

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"gowa-gateway/internal/model"
)

var exportHeaders = []string{"No", "Session ID", "Status", "Phone"}

// GET /sessions/export?format=xlsx|csv
func (h *Handler) ExportSessions(c echo.Context) error {
	format := c.QueryParam("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		return ErrorResponse(c, 400, "Invalid format", "INVALID_FORMAT", "Format must be 'xlsx' or 'csv'")
	}

	sessions := h.sessions.List()
	stamp := time.Now().Format("20060102_150405")
	if format == "xlsx" {
		return exportToExcel(c, sessions, stamp)
	}
	return exportToCSV(c, sessions, stamp)
}

func phoneOf(s model.SessionSummary) string {
	if s.Phone == nil {
		return ""
	}
	return *s.Phone
}

func exportToExcel(c echo.Context, sessions []model.SessionSummary, stamp string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sessions"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return ErrorResponse(c, 500, "Failed to create Excel sheet", "EXCEL_ERROR", err.Error())
	}

	for i, header := range exportHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	f.SetCellStyle(sheetName, "A1", "D1", headerStyle)

	for i, s := range sessions {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), s.SessionID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), string(s.Status))
		// nomor disimpan sebagai teks supaya tidak jadi notasi ilmiah
		f.SetCellStr(sheetName, fmt.Sprintf("D%d", row), phoneOf(s))
	}

	f.SetColWidth(sheetName, "A", "A", 5)
	f.SetColWidth(sheetName, "B", "B", 25)
	f.SetColWidth(sheetName, "C", "C", 15)
	f.SetColWidth(sheetName, "D", "D", 18)

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	filename := fmt.Sprintf("sessions_%s.xlsx", stamp)
	c.Response().Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	return f.Write(c.Response().Writer)
}

func exportToCSV(c echo.Context, sessions []model.SessionSummary, stamp string) error {
	c.Response().Header().Set("Content-Type", "text/csv")
	filename := fmt.Sprintf("sessions_%s.csv", stamp)
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(c.Response().Writer)
	defer writer.Flush()

	if err := writer.Write(exportHeaders); err != nil {
		return err
	}
	for i, s := range sessions {
		row := []string{strconv.Itoa(i + 1), s.SessionID, string(s.Status), phoneOf(s)}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}
