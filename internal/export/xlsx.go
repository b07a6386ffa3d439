package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet  = "Bookings"
	occupancySheet = "Occupancy"

	// exportLimit ограничивает число броней в одном файле
	exportLimit = 10000
)

// Source is what the exporter reads from.
type Source interface {
	ListHomestays(ctx context.Context, activeOnly bool) ([]*models.Homestay, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
}

type Exporter struct {
	source Source
	dir    string
	logger *zerolog.Logger
}

func NewExporter(source Source, dir string, logger *zerolog.Logger) *Exporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Exporter{source: source, dir: dir, logger: logger}
}

// Export writes the workbook for [from, to) to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer, from, to models.Date) error {
	homestays, bookings, err := e.load(ctx, from, to)
	if err != nil {
		return err
	}
	return WriteBookingsXLSX(w, from, to, homestays, bookings)
}

// SaveFile writes the workbook into the export directory and returns its path.
func (e *Exporter) SaveFile(ctx context.Context, from, to models.Date) (string, error) {
	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	path := filepath.Join(e.dir, FileName(from, to))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := e.Export(ctx, f, from, to); err != nil {
		return "", err
	}
	e.logger.Info().Str("file_path", path).Msg("Excel file created")
	return path, nil
}

func (e *Exporter) load(ctx context.Context, from, to models.Date) ([]*models.Homestay, []*models.Booking, error) {
	if from.IsZero() || to.IsZero() {
		return nil, nil, domain.Validationf("from and to dates are required")
	}
	if !from.Before(to) {
		return nil, nil, domain.ErrInvalidRange
	}
	if models.DaysBetween(from, to) > models.MaxCalendarDays {
		return nil, nil, domain.Validationf("export range is longer than %d days", models.MaxCalendarDays)
	}

	homestays, err := e.source.ListHomestays(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting homestays: %w", err)
	}
	bookings, err := e.source.ListBookings(ctx, models.BookingFilter{From: from, To: to, Limit: exportLimit})
	if err != nil {
		return nil, nil, fmt.Errorf("error getting bookings: %w", err)
	}
	return homestays, bookings, nil
}

func FileName(from, to models.Date) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from, to)
}

// WriteBookingsXLSX builds a workbook with the booking list and an occupancy
// grid of homestays by nights in [from, to).
func WriteBookingsXLSX(w io.Writer, from, to models.Date, homestays []*models.Homestay, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(occupancySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	if err := writeBookingList(f, bookings); err != nil {
		return err
	}
	if err := writeOccupancy(f, from, to, homestays, bookings); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

var listHeaders = []interface{}{
	"Code", "Homestay ID", "Check-in", "Check-out", "Nights", "Adults", "Children", "Infants",
	"Guest", "Email", "Phone", "Total", "Paid", "Refund due", "Status",
}

func writeBookingList(f *excelize.File, bookings []*models.Booking) error {
	if err := f.SetSheetRow(bookingsSheet, "A1", &listHeaders); err != nil {
		return err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(bookingsSheet, "A1", "O1", headerStyle)

	for i, b := range bookings {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			b.BookingCode, b.HomestayID, b.CheckIn.String(), b.CheckOut.String(), b.Nights,
			b.Adults, b.Children, b.Infants,
			b.GuestName, b.GuestEmail, b.GuestPhone,
			b.TotalAmount, b.AmountPaid, b.RefundDue, b.Status,
		}
		if err := f.SetSheetRow(bookingsSheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 20)
	_ = f.SetColWidth(bookingsSheet, "I", "J", 25)
	return nil
}

// occupies reports whether the booking holds nights on the grid.
func occupies(b *models.Booking) bool {
	return b.Status != models.StatusCancelled
}

func writeOccupancy(f *excelize.File, from, to models.Date, homestays []*models.Homestay, bookings []*models.Booking) error {
	_ = f.SetCellValue(occupancySheet, "A1", fmt.Sprintf("Период: %s - %s", from, to))

	// Заголовки - даты
	var nights []models.Date
	col := 2
	var dateErr error
	models.EachNight(from, to, func(d models.Date) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		if err := f.SetCellValue(occupancySheet, cell, d.Time().Format("02.01")); err != nil && dateErr == nil {
			dateErr = err
		}
		nights = append(nights, d)
		col++
	})
	if dateErr != nil {
		return dateErr
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	bookedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})
	freeStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
	})

	if col > 2 {
		last, _ := excelize.CoordinatesToCellName(col-1, 2)
		_ = f.SetCellStyle(occupancySheet, "B2", last, headerStyle)
		lastTitle, _ := excelize.CoordinatesToCellName(col-1, 1)
		_ = f.MergeCell(occupancySheet, "A1", lastTitle)
	}

	byHomestay := make(map[int64][]*models.Booking)
	for _, b := range bookings {
		if occupies(b) {
			byHomestay[b.HomestayID] = append(byHomestay[b.HomestayID], b)
		}
	}

	for i, h := range homestays {
		row := i + 3
		nameCell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(occupancySheet, nameCell, h.Name)

		for j, d := range nights {
			cell, _ := excelize.CoordinatesToCellName(j+2, row)
			value, style := "", freeStyle
			for _, b := range byHomestay[h.ID] {
				if !d.Before(b.CheckIn) && d.Before(b.CheckOut) {
					value, style = b.BookingCode, bookedStyle
					break
				}
			}
			if value != "" {
				if err := f.SetCellValue(occupancySheet, cell, value); err != nil {
					return err
				}
			}
			_ = f.SetCellStyle(occupancySheet, cell, cell, style)
		}
	}

	_ = f.SetColWidth(occupancySheet, "A", "A", 25)
	return nil
}
