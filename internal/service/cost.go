package service

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidRentalWindow = errors.New("rental end must be after rental start")

// RentalHours returns the whole hours between start and end, truncated toward zero.
func RentalHours(start, end time.Time) int64 {
	return int64(end.Sub(start) / time.Hour)
}

// ComputeCost sums rate*hours over the per-hour rates of the rented cars.
func ComputeCost(start, end time.Time, rates []float64) (float64, error) {
	if !end.After(start) {
		return 0, ErrInvalidRentalWindow
	}
	hours := decimal.NewFromInt(RentalHours(start, end))

	total := decimal.Zero
	for _, rate := range rates {
		total = total.Add(decimal.NewFromFloat(rate).Mul(hours))
	}
	return total.InexactFloat64(), nil
}
