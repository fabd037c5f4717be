package exchange

import (
	"database/sql"
	"time"
)

// PostgresStore reads the currency_rates table. Ties on the same rate_date
// go to the newest row, so appending a corrected quote for a date wins
// without editing history.
type PostgresStore struct {
	Db *sql.DB
}

func (s *PostgresStore) ExactRate(from, to string, date time.Time) (Rate, bool, error) {
	r := Rate{FromCurrency: from, ToCurrency: to, RateDate: date}

	err := s.Db.QueryRow(`
		SELECT rate FROM currency_rates
		WHERE from_currency = $1 AND to_currency = $2 AND rate_date = $3
		ORDER BY created_at DESC
		LIMIT 1`, from, to, date).Scan(&r.Rate)

	if err == sql.ErrNoRows {
		return Rate{}, false, nil
	}

	if err != nil {
		return Rate{}, false, err
	}

	return r, true, nil
}

func (s *PostgresStore) LatestRate(from, to string, asOf time.Time) (Rate, bool, error) {
	r := Rate{FromCurrency: from, ToCurrency: to}

	err := s.Db.QueryRow(`
		SELECT rate, rate_date FROM currency_rates
		WHERE from_currency = $1 AND to_currency = $2 AND rate_date <= $3
		ORDER BY rate_date DESC, created_at DESC
		LIMIT 1`, from, to, asOf).Scan(&r.Rate, &r.RateDate)

	if err == sql.ErrNoRows {
		return Rate{}, false, nil
	}

	if err != nil {
		return Rate{}, false, err
	}

	return r, true, nil
}
