package pricing

import (
	"errors"
	"testing"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func scenarioHomestay() *models.Homestay {
	return &models.Homestay{
		ID:          1,
		Name:        "Villa Kenanga",
		BasePrice:   500000,
		CleaningFee: 100000,
		ServiceFee:  50000,
		TaxRateBps:  1000,
		MaxGuests:   4,
		IsActive:    true,
	}
}

var twoAdults = models.GuestCounts{Adults: 2}

func TestCalculate_ThreeNightScenario(t *testing.T) {
	// 2024-06-01 is a Saturday; without a weekend price every night is base.
	c := NewCalculator(DefaultPolicy())

	p, err := c.Calculate(scenarioHomestay(), models.NewDate(2024, 6, 1), models.NewDate(2024, 6, 4), twoAdults, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, p.Nights)
	assert.Equal(t, int64(1500000), p.BaseAmount)
	assert.Equal(t, int64(100000), p.CleaningFee)
	assert.Equal(t, int64(50000), p.ServiceFee)
	assert.Equal(t, int64(0), p.DiscountAmount)
	assert.Equal(t, models.DiscountNone, p.DiscountKind)
	assert.Equal(t, int64(165000), p.TaxAmount)
	assert.Equal(t, int64(1815000), p.TotalAmount)
	require.Len(t, p.NightlyRates, 3)
	for _, r := range p.NightlyRates {
		assert.Equal(t, models.PriceSourceBase, r.Source)
	}
}

func TestCalculate_InvalidRange(t *testing.T) {
	c := NewCalculator(DefaultPolicy())
	h := scenarioHomestay()

	_, err := c.Calculate(h, models.NewDate(2024, 6, 4), models.NewDate(2024, 6, 4), twoAdults, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidRange))
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = c.Calculate(h, models.NewDate(2024, 6, 4), models.NewDate(2024, 6, 1), twoAdults, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidRange))

	_, err = c.Calculate(h, models.Date{}, models.NewDate(2024, 6, 1), twoAdults, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = c.Calculate(h, models.NewDate(2024, 6, 1), models.NewDate(2024, 6, 2), models.GuestCounts{Adults: -1}, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestCalculate_NightlyRatePrecedence(t *testing.T) {
	c := NewCalculator(DefaultPolicy())
	h := scenarioHomestay()
	h.WeekendPrice = int64Ptr(700000)

	// Thu 2024-06-06 .. Sun 2024-06-09: Thu base, Fri weekend, Sat custom.
	overrides := models.Overrides{
		"2024-06-08": {Date: models.NewDate(2024, 6, 8), IsAvailable: true, CustomPrice: int64Ptr(900000)},
	}
	p, err := c.Calculate(h, models.NewDate(2024, 6, 6), models.NewDate(2024, 6, 9), twoAdults, overrides)
	require.NoError(t, err)

	require.Len(t, p.NightlyRates, 3)
	assert.Equal(t, models.PriceSourceBase, p.NightlyRates[0].Source)
	assert.Equal(t, models.PriceSourceWeekend, p.NightlyRates[1].Source)
	assert.Equal(t, int64(700000), p.NightlyRates[1].Amount)
	assert.Equal(t, models.PriceSourceCustom, p.NightlyRates[2].Source)
	assert.Equal(t, int64(900000), p.NightlyRates[2].Amount)
	assert.Equal(t, int64(2100000), p.BaseAmount)
}

func TestCalculate_ConfiguredWeekend(t *testing.T) {
	c := NewCalculator(Policy{Weekend: []time.Weekday{time.Sunday}})
	h := scenarioHomestay()
	h.WeekendPrice = int64Ptr(600000)

	// Sat 2024-06-01 and Sun 2024-06-02.
	p, err := c.Calculate(h, models.NewDate(2024, 6, 1), models.NewDate(2024, 6, 3), twoAdults, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), p.NightlyRates[0].Amount)
	assert.Equal(t, int64(600000), p.NightlyRates[1].Amount)
}

func TestCalculate_WeeklyDiscount(t *testing.T) {
	c := NewCalculator(DefaultPolicy())
	h := scenarioHomestay()
	h.WeeklyDiscountBps = int64Ptr(1000)

	p, err := c.Calculate(h, models.NewDate(2024, 6, 1), models.NewDate(2024, 6, 11), twoAdults, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, p.Nights)
	assert.Equal(t, int64(5000000), p.BaseAmount)
	assert.Equal(t, models.DiscountWeekly, p.DiscountKind)
	assert.Equal(t, int64(500000), p.DiscountAmount)
	// (5000000 + 150000 - 500000) × 10%
	assert.Equal(t, int64(465000), p.TaxAmount)
	assert.Equal(t, int64(5115000), p.TotalAmount)
}

func TestCalculate_MonthlyBeatsWeekly(t *testing.T) {
	c := NewCalculator(DefaultPolicy())
	h := scenarioHomestay()
	h.WeeklyDiscountBps = int64Ptr(1000)
	h.MonthlyDiscountBps = int64Ptr(2500)

	p, err := c.Calculate(h, models.NewDate(2024, 6, 1), models.NewDate(2024, 6, 29), twoAdults, nil)
	require.NoError(t, err)
	assert.Equal(t, 28, p.Nights)
	assert.Equal(t, models.DiscountMonthly, p.DiscountKind)
	assert.Equal(t, p.BaseAmount/4, p.DiscountAmount)

	// Below the monthly threshold only the weekly tier applies.
	p, err = c.Calculate(h, models.NewDate(2024, 6, 1), models.NewDate(2024, 6, 28), twoAdults, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DiscountWeekly, p.DiscountKind)
	assert.Equal(t, p.BaseAmount/10, p.DiscountAmount)
}

func TestCalculate_MonthlyWithoutRateFallsBackToWeekly(t *testing.T) {
	c := NewCalculator(DefaultPolicy())
	h := scenarioHomestay()
	h.WeeklyDiscountBps = int64Ptr(500)

	p, err := c.Calculate(h, models.NewDate(2024, 6, 1), models.NewDate(2024, 7, 1), twoAdults, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DiscountWeekly, p.DiscountKind)
}

func TestCalculate_Thresholds(t *testing.T) {
	h := scenarioHomestay()
	h.WeeklyDiscountBps = int64Ptr(1000)

	// Global threshold moved to 5 nights.
	c := NewCalculator(Policy{WeeklyThresholdNights: 5, MonthlyThresholdNights: 20})
	p, err := c.Calculate(h, models.NewDate(2024, 6, 1), models.NewDate(2024, 6, 6), twoAdults, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DiscountWeekly, p.DiscountKind)

	// Per-homestay threshold overrides the global one.
	h.WeeklyThresholdNights = intPtr(10)
	p, err = c.Calculate(h, models.NewDate(2024, 6, 1), models.NewDate(2024, 6, 6), twoAdults, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DiscountNone, p.DiscountKind)
	assert.Equal(t, int64(0), p.DiscountAmount)
}

func TestCalculate_HalfUpRounding(t *testing.T) {
	c := NewCalculator(DefaultPolicy())
	h := &models.Homestay{ID: 2, BasePrice: 15, TaxRateBps: 1000, MaxGuests: 1}

	// 15 × 10% = 1.5 → 2
	p, err := c.Calculate(h, models.NewDate(2024, 6, 3), models.NewDate(2024, 6, 4), twoAdults, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.TaxAmount)
	assert.Equal(t, int64(17), p.TotalAmount)

	assert.Equal(t, int64(1), ApplyRate(14, 1000))
	assert.Equal(t, int64(2), ApplyRate(15, 1000))
	assert.Equal(t, int64(0), ApplyRate(-15, 1000))
	assert.Equal(t, int64(0), ApplyRate(15, 0))
}

func TestCalculate_NegativeTotal(t *testing.T) {
	h := scenarioHomestay()
	h.CleaningFee = -10000000
	h.TaxRateBps = 0

	lenient := NewCalculator(DefaultPolicy())
	p, err := lenient.Calculate(h, models.NewDate(2024, 6, 3), models.NewDate(2024, 6, 4), twoAdults, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.TotalAmount)

	strictPolicy := DefaultPolicy()
	strictPolicy.Strict = true
	strict := NewCalculator(strictPolicy)
	assert.Panics(t, func() {
		_, _ = strict.Calculate(h, models.NewDate(2024, 6, 3), models.NewDate(2024, 6, 4), twoAdults, nil)
	})
}

func TestCalculate_TotalInvariantAndDeterminism(t *testing.T) {
	c := NewCalculator(DefaultPolicy())
	h := scenarioHomestay()
	h.WeekendPrice = int64Ptr(650001)
	h.WeeklyDiscountBps = int64Ptr(1234)
	h.MonthlyDiscountBps = int64Ptr(2222)
	h.TaxRateBps = 1100
	overrides := models.Overrides{
		"2024-06-10": {CustomPrice: int64Ptr(333333), IsAvailable: true},
	}

	start := models.NewDate(2024, 6, 1)
	for nights := 1; nights <= 40; nights++ {
		out := start.AddDays(nights)
		p1, err := c.Calculate(h, start, out, twoAdults, overrides)
		require.NoError(t, err)
		p2, err := c.Calculate(h, start, out, twoAdults, overrides)
		require.NoError(t, err)

		assert.Equal(t, p1, p2, "nights=%d", nights)

		expected := p1.BaseAmount + p1.CleaningFee + p1.ServiceFee + p1.TaxAmount - p1.DiscountAmount
		if expected < 0 {
			expected = 0
		}
		assert.Equal(t, expected, p1.TotalAmount, "nights=%d", nights)
		assert.LessOrEqual(t, p1.DiscountAmount, p1.Gross())
		assert.Contains(t, []string{models.DiscountNone, models.DiscountWeekly, models.DiscountMonthly}, p1.DiscountKind)
	}
}
