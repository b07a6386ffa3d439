package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	homestays []*models.Homestay
	bookings  []*models.Booking
	filter    models.BookingFilter
	err       error
}

func (f *fakeSource) ListHomestays(ctx context.Context, activeOnly bool) ([]*models.Homestay, error) {
	return f.homestays, f.err
}

func (f *fakeSource) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	f.filter = filter
	return f.bookings, f.err
}

func fixture() *fakeSource {
	return &fakeSource{
		homestays: []*models.Homestay{
			{ID: 1, Name: "Villa Sawah"},
			{ID: 2, Name: "Rumah Kayu"},
		},
		bookings: []*models.Booking{
			{
				ID: 10, BookingCode: "HS-A", HomestayID: 1,
				CheckIn: models.NewDate(2024, time.June, 2), CheckOut: models.NewDate(2024, time.June, 4),
				Nights: 2, GuestCounts: models.GuestCounts{Adults: 2},
				GuestName: "Ivan", TotalAmount: 1000000, Status: models.StatusConfirmed,
			},
			{
				ID: 11, BookingCode: "HS-B", HomestayID: 2,
				CheckIn: models.NewDate(2024, time.June, 1), CheckOut: models.NewDate(2024, time.June, 2),
				Nights: 1, GuestCounts: models.GuestCounts{Adults: 1},
				GuestName: "Olga", Status: models.StatusCancelled,
			},
		},
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriteBookingsXLSX(t *testing.T) {
	src := fixture()
	from := models.NewDate(2024, time.June, 1)
	to := models.NewDate(2024, time.June, 5)

	var buf bytes.Buffer
	require.NoError(t, WriteBookingsXLSX(&buf, from, to, src.homestays, src.bookings))

	f := openWorkbook(t, buf.Bytes())
	assert.ElementsMatch(t, []string{bookingsSheet, occupancySheet}, f.GetSheetList())

	t.Run("BookingList", func(t *testing.T) {
		rows, err := f.GetRows(bookingsSheet)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "Code", rows[0][0])
		assert.Equal(t, "HS-A", rows[1][0])
		assert.Equal(t, "2024-06-02", rows[1][2])
		assert.Equal(t, "cancelled", rows[2][14])
	})

	t.Run("OccupancyGrid", func(t *testing.T) {
		// даты: B=01.06 C=02.06 D=03.06 E=04.06
		header, _ := f.GetCellValue(occupancySheet, "B2")
		assert.Equal(t, "01.06", header)
		last, _ := f.GetCellValue(occupancySheet, "E2")
		assert.Equal(t, "04.06", last)

		name, _ := f.GetCellValue(occupancySheet, "A3")
		assert.Equal(t, "Villa Sawah", name)

		for cell, want := range map[string]string{
			"B3": "", "C3": "HS-A", "D3": "HS-A", "E3": "",
			// отменённая бронь не занимает ночь
			"B4": "",
		} {
			got, err := f.GetCellValue(occupancySheet, cell)
			require.NoError(t, err)
			assert.Equal(t, want, got, cell)
		}
	})
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	from := models.NewDate(2024, time.June, 1)
	to := models.NewDate(2024, time.June, 5)

	t.Run("Export", func(t *testing.T) {
		src := fixture()
		e := NewExporter(src, t.TempDir(), nil)
		var buf bytes.Buffer
		require.NoError(t, e.Export(ctx, &buf, from, to))
		assert.NotZero(t, buf.Len())
		assert.True(t, src.filter.From.Equal(from))
		assert.True(t, src.filter.To.Equal(to))
		assert.Equal(t, exportLimit, src.filter.Limit)
	})

	t.Run("SaveFile", func(t *testing.T) {
		dir := t.TempDir()
		e := NewExporter(fixture(), dir, nil)
		path, err := e.SaveFile(ctx, from, to)
		require.NoError(t, err)
		assert.Contains(t, path, "bookings_2024-06-01_to_2024-06-05.xlsx")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		f := openWorkbook(t, data)
		code, _ := f.GetCellValue(bookingsSheet, "A2")
		assert.Equal(t, "HS-A", code)
	})

	t.Run("InvalidRange", func(t *testing.T) {
		e := NewExporter(fixture(), t.TempDir(), nil)
		var buf bytes.Buffer
		err := e.Export(ctx, &buf, to, from)
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
		err = e.Export(ctx, &buf, models.Date{}, to)
		assert.ErrorIs(t, err, domain.ErrValidation)
		err = e.Export(ctx, &buf, from, from.AddDays(models.MaxCalendarDays+1))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("SourceError", func(t *testing.T) {
		src := fixture()
		src.err = errors.New("db down")
		e := NewExporter(src, t.TempDir(), nil)
		var buf bytes.Buffer
		assert.Error(t, e.Export(ctx, &buf, from, to))
	})
}
