// Package exchange converts expense amounts into a company's base currency
// from an append-only book of dated rates.
package exchange

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ErrRateNotFound means no forward, prior or reverse rate exists for the
// pair; callers must block the operation rather than default the amount.
var ErrRateNotFound = errors.New("rate-not-found")

// Rate is one dated quote between two currencies.
type Rate struct {
	FromCurrency string
	ToCurrency   string
	Rate         float64
	RateDate     time.Time
}

// Store is the rate book the converter reads from. Implementations never
// mutate recorded rates; new quotes are appended.
type Store interface {
	// ExactRate returns the rate quoted exactly on the given date.
	ExactRate(from, to string, date time.Time) (Rate, bool, error)
	// LatestRate returns the most recent rate quoted on or before asOf.
	LatestRate(from, to string, asOf time.Time) (Rate, bool, error)
}

// Conversion carries the converted amount together with the rate that
// produced it, so callers can record both immutably.
type Conversion struct {
	Amount   float64
	Rate     float64
	RateDate time.Time
}

type Converter struct {
	Rates Store
}

// Convert resolves amount from one currency into another as of a date.
// Lookup order is strict: same-currency identity, exact-date rate, most
// recent prior rate, most recent prior reverse rate inverted. Anything else
// is ErrRateNotFound.
func (cv *Converter) Convert(amount float64, from, to string, asOf time.Time) (Conversion, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		// identity, no rounding drift
		return Conversion{Amount: amount, Rate: 1, RateDate: asOf}, nil
	}

	r, ok, err := cv.Rates.ExactRate(from, to, asOf)
	if err != nil {
		return Conversion{}, err
	}
	if ok {
		return conversion(amount, r.Rate, r.RateDate), nil
	}

	r, ok, err = cv.Rates.LatestRate(from, to, asOf)
	if err != nil {
		return Conversion{}, err
	}
	if ok {
		return conversion(amount, r.Rate, r.RateDate), nil
	}

	r, ok, err = cv.Rates.LatestRate(to, from, asOf)
	if err != nil {
		return Conversion{}, err
	}
	if ok {
		return conversion(amount, 1/r.Rate, r.RateDate), nil
	}

	return Conversion{}, ErrRateNotFound
}

func conversion(amount, rate float64, date time.Time) Conversion {
	rate = Round6(rate)
	return Conversion{
		Amount:   Round2(amount * rate),
		Rate:     rate,
		RateDate: date,
	}
}

// Round2 rounds half-up to currency minor units.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// Round6 keeps rates at six decimal digits.
func Round6(v float64) float64 {
	return math.Floor(v*1e6+0.5) / 1e6
}
