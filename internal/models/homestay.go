package models

import "time"

// Homestay carries the pricing and stay policy of a listing. Money fields are
// in minor currency units, rates in basis points (10000 = 100%).
type Homestay struct {
	ID     int64  `json:"id" yaml:"id"`
	HostID int64  `json:"host_id" yaml:"host_id"`
	Name   string `json:"name" yaml:"name" validate:"required,max=200"`

	BasePrice    int64  `json:"base_price" yaml:"base_price" validate:"gt=0"`
	WeekendPrice *int64 `json:"weekend_price,omitempty" yaml:"weekend_price" validate:"omitempty,gt=0"`

	WeeklyDiscountBps      *int64 `json:"weekly_discount_bps,omitempty" yaml:"weekly_discount_bps" validate:"omitempty,gte=0,lte=10000"`
	MonthlyDiscountBps     *int64 `json:"monthly_discount_bps,omitempty" yaml:"monthly_discount_bps" validate:"omitempty,gte=0,lte=10000"`
	WeeklyThresholdNights  *int   `json:"weekly_threshold_nights,omitempty" yaml:"weekly_threshold_nights" validate:"omitempty,gt=0"`
	MonthlyThresholdNights *int   `json:"monthly_threshold_nights,omitempty" yaml:"monthly_threshold_nights" validate:"omitempty,gt=0"`

	MinNights   int `json:"min_nights" yaml:"min_nights" validate:"gte=0"`
	MaxNights   int `json:"max_nights" yaml:"max_nights" validate:"gte=0"`
	MaxGuests   int `json:"max_guests" yaml:"max_guests" validate:"gte=1"`
	MaxChildren int `json:"max_children" yaml:"max_children" validate:"gte=0"`

	CleaningFee int64 `json:"cleaning_fee" yaml:"cleaning_fee" validate:"gte=0"`
	ServiceFee  int64 `json:"service_fee" yaml:"service_fee" validate:"gte=0"`
	TaxRateBps  int64 `json:"tax_rate_bps" yaml:"tax_rate_bps" validate:"gte=0,lte=10000"`

	FreeCancellationDays int  `json:"free_cancellation_days" yaml:"free_cancellation_days" validate:"gte=0"`
	PrepaymentRequired   bool `json:"prepayment_required" yaml:"prepayment_required"`
	IsActive             bool `json:"is_active" yaml:"is_active"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}
