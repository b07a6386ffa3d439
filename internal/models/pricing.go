package models

const (
	PriceSourceBase    = "base"
	PriceSourceWeekend = "weekend"
	PriceSourceCustom  = "custom"
)

const (
	DiscountNone    = "none"
	DiscountWeekly  = "weekly"
	DiscountMonthly = "monthly"
)

type NightlyRate struct {
	Date   Date   `json:"date"`
	Amount int64  `json:"amount"`
	Source string `json:"source"`
}

// PriceBreakdown is derived data; all amounts are minor currency units.
type PriceBreakdown struct {
	Nights         int           `json:"nights"`
	NightlyRates   []NightlyRate `json:"nightly_rates"`
	BaseAmount     int64         `json:"base_amount"`
	CleaningFee    int64         `json:"cleaning_fee"`
	ServiceFee     int64         `json:"service_fee"`
	TaxAmount      int64         `json:"tax_amount"`
	DiscountAmount int64         `json:"discount_amount"`
	DiscountKind   string        `json:"discount_kind"`
	TotalAmount    int64         `json:"total_amount"`
}

// Gross is every charge before discount.
func (p PriceBreakdown) Gross() int64 {
	return p.BaseAmount + p.CleaningFee + p.ServiceFee + p.TaxAmount
}
