package export

import (
	"fmt"
	"io"
	"time"

	"shareit/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Bookings"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout  = "02.01.2006 15:04"
)

var headers = []string{"ID", "Вещь", "Арендатор", "Начало", "Окончание", "Статус"}

// FileName возвращает имя файла выгрузки для состояния и момента времени
func FileName(state models.State, now time.Time) string {
	return fmt.Sprintf("bookings_%s_%s.xlsx", state, now.UTC().Format("2006-01-02"))
}

// WriteBookings пишет список бронирований одним листом в формате XLSX.
// Время выводится в часовом поясе loc (UTC, если nil).
func WriteBookings(w io.Writer, bookings []*models.Booking, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	if err := writeHeader(f); err != nil {
		return err
	}

	for i, b := range bookings {
		row := []interface{}{
			b.ID,
			b.ItemName,
			b.BookerName,
			b.Start.In(loc).Format(timeLayout),
			b.End.In(loc).Format(timeLayout),
			string(b.Status),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 8)
	_ = f.SetColWidth(SheetName, "B", "C", 25)
	_ = f.SetColWidth(SheetName, "D", "F", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing file: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &row); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	lastCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(SheetName, "A1", lastCell, style)
	return nil
}
