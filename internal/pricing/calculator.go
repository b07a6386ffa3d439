// Package pricing computes deterministic price breakdowns for a stay.
// All amounts are integers in the smallest currency unit.
package pricing

import (
	"fmt"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"
)

// BasisPoints is the denominator for rates: 10000 bp = 100%.
const BasisPoints = 10000

// Policy holds the installation-wide pricing settings.
type Policy struct {
	Weekend                []time.Weekday
	WeeklyThresholdNights  int
	MonthlyThresholdNights int
	// Strict panics on a negative total instead of clamping it to zero.
	Strict bool
}

// DefaultPolicy prices Friday and Saturday nights at the weekend rate with 7/28 night discount tiers.
func DefaultPolicy() Policy {
	return Policy{
		Weekend:                []time.Weekday{time.Friday, time.Saturday},
		WeeklyThresholdNights:  models.DefaultWeeklyThresholdNights,
		MonthlyThresholdNights: models.DefaultMonthlyThresholdNights,
	}
}

type Calculator struct {
	policy  Policy
	weekend [7]bool
}

func NewCalculator(policy Policy) *Calculator {
	if policy.WeeklyThresholdNights <= 0 {
		policy.WeeklyThresholdNights = models.DefaultWeeklyThresholdNights
	}
	if policy.MonthlyThresholdNights <= 0 {
		policy.MonthlyThresholdNights = models.DefaultMonthlyThresholdNights
	}
	c := &Calculator{policy: policy}
	for _, d := range policy.Weekend {
		c.weekend[d] = true
	}
	return c
}

// Calculate prices the nights [checkIn, checkOut). Guest counts do not change
// the price but must not be negative. It has no side effects.
func (c *Calculator) Calculate(
	h *models.Homestay,
	checkIn, checkOut models.Date,
	guests models.GuestCounts,
	overrides models.Overrides,
) (models.PriceBreakdown, error) {
	if h == nil {
		return models.PriceBreakdown{}, domain.Validationf("homestay is required")
	}
	if checkIn.IsZero() || checkOut.IsZero() {
		return models.PriceBreakdown{}, domain.Validationf("check-in and check-out dates are required")
	}
	nights := models.DaysBetween(checkIn, checkOut)
	if nights <= 0 {
		return models.PriceBreakdown{}, domain.ErrInvalidRange
	}
	if guests.Adults < 0 || guests.Children < 0 || guests.Infants < 0 {
		return models.PriceBreakdown{}, domain.Validationf("guest counts must not be negative")
	}

	p := models.PriceBreakdown{
		Nights:       nights,
		NightlyRates: make([]models.NightlyRate, 0, nights),
		CleaningFee:  h.CleaningFee,
		ServiceFee:   h.ServiceFee,
		DiscountKind: models.DiscountNone,
	}

	models.EachNight(checkIn, checkOut, func(d models.Date) {
		rate := c.NightlyRate(h, d, overrides)
		p.NightlyRates = append(p.NightlyRates, rate)
		p.BaseAmount += rate.Amount
	})

	kind, bps := c.discountTier(h, nights)
	if kind != models.DiscountNone {
		p.DiscountKind = kind
		p.DiscountAmount = ApplyRate(p.BaseAmount, bps)
	}

	taxable := p.BaseAmount + p.CleaningFee + p.ServiceFee - p.DiscountAmount
	if taxable > 0 {
		p.TaxAmount = ApplyRate(taxable, h.TaxRateBps)
	}

	total := p.BaseAmount + p.CleaningFee + p.ServiceFee + p.TaxAmount - p.DiscountAmount
	if total < 0 {
		if c.policy.Strict {
			panic(fmt.Sprintf("pricing: negative total %d for homestay %d [%s, %s)", total, h.ID, checkIn, checkOut))
		}
		total = 0
	}
	p.TotalAmount = total

	return p, nil
}

// NightlyRate resolves the price of the night starting on d:
// override custom price, then weekend price, then base price.
func (c *Calculator) NightlyRate(h *models.Homestay, d models.Date, overrides models.Overrides) models.NightlyRate {
	if o, ok := overrides.Get(d); ok && o.CustomPrice != nil {
		return models.NightlyRate{Date: d, Amount: *o.CustomPrice, Source: models.PriceSourceCustom}
	}
	if h.WeekendPrice != nil && c.weekend[d.Weekday()] {
		return models.NightlyRate{Date: d, Amount: *h.WeekendPrice, Source: models.PriceSourceWeekend}
	}
	return models.NightlyRate{Date: d, Amount: h.BasePrice, Source: models.PriceSourceBase}
}

// discountTier picks at most one discount; monthly wins over weekly.
func (c *Calculator) discountTier(h *models.Homestay, nights int) (string, int64) {
	monthly := c.policy.MonthlyThresholdNights
	if h.MonthlyThresholdNights != nil && *h.MonthlyThresholdNights > 0 {
		monthly = *h.MonthlyThresholdNights
	}
	weekly := c.policy.WeeklyThresholdNights
	if h.WeeklyThresholdNights != nil && *h.WeeklyThresholdNights > 0 {
		weekly = *h.WeeklyThresholdNights
	}

	if h.MonthlyDiscountBps != nil && *h.MonthlyDiscountBps > 0 && nights >= monthly {
		return models.DiscountMonthly, *h.MonthlyDiscountBps
	}
	if h.WeeklyDiscountBps != nil && *h.WeeklyDiscountBps > 0 && nights >= weekly {
		return models.DiscountWeekly, *h.WeeklyDiscountBps
	}
	return models.DiscountNone, 0
}

// ApplyRate returns amount × bps / 10000 rounded half-up to the minor unit.
func ApplyRate(amount, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*bps + BasisPoints/2) / BasisPoints
}
