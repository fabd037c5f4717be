package exchange

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gotest.tools/assert"
)

func TestPostgresStoreExactRate(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	store := &PostgresStore{Db: db}
	asOf := date("2024-03-01")

	// hit
	dbMock.ExpectQuery("SELECT rate FROM currency_rates.*").
		WithArgs("EUR", "USD", asOf).
		WillReturnRows(sqlmock.NewRows([]string{"rate"}).AddRow(1.0865))

	r, ok, err := store.ExactRate("EUR", "USD", asOf)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
	assert.Equal(t, 1.0865, r.Rate)
	assert.Equal(t, asOf, r.RateDate)

	// miss maps to not-found, not an error
	dbMock.ExpectQuery("SELECT rate FROM currency_rates.*").
		WillReturnRows(sqlmock.NewRows([]string{"rate"}))

	_, ok, err = store.ExactRate("EUR", "JPY", asOf)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)

	// db failure propagates
	dbMock.ExpectQuery("SELECT rate FROM currency_rates.*").
		WillReturnError(errors.New("err-select"))

	_, _, err = store.ExactRate("EUR", "USD", asOf)
	assert.Error(t, err, "err-select")
}

func TestPostgresStoreLatestRate(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	store := &PostgresStore{Db: db}
	asOf := date("2024-03-01")
	quoted := date("2024-02-20")

	dbMock.ExpectQuery("SELECT rate, rate_date FROM currency_rates.*").
		WithArgs("USD", "EUR", asOf).
		WillReturnRows(sqlmock.NewRows([]string{"rate", "rate_date"}).AddRow(0.9, quoted))

	r, ok, err := store.LatestRate("USD", "EUR", asOf)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
	assert.Equal(t, 0.9, r.Rate)
	assert.Equal(t, quoted, r.RateDate)

	dbMock.ExpectQuery("SELECT rate, rate_date FROM currency_rates.*").
		WillReturnRows(sqlmock.NewRows([]string{"rate", "rate_date"}))

	_, ok, err = store.LatestRate("USD", "CHF", asOf)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)
}

// the converter against the real store wiring, reverse-rate path included
func TestConverterWithPostgresStore(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	cv := &Converter{Rates: &PostgresStore{Db: db}}
	asOf := date("2024-03-01")
	quoted := date("2024-02-15")

	// no exact EUR/USD, no prior EUR/USD, reverse USD/EUR 0.90 wins
	dbMock.ExpectQuery("SELECT rate FROM currency_rates.*").
		WillReturnRows(sqlmock.NewRows([]string{"rate"}))
	dbMock.ExpectQuery("SELECT rate, rate_date FROM currency_rates.*").
		WithArgs("EUR", "USD", asOf).
		WillReturnRows(sqlmock.NewRows([]string{"rate", "rate_date"}))
	dbMock.ExpectQuery("SELECT rate, rate_date FROM currency_rates.*").
		WithArgs("USD", "EUR", asOf).
		WillReturnRows(sqlmock.NewRows([]string{"rate", "rate_date"}).AddRow(0.9, quoted))

	conv, err := cv.Convert(100, "EUR", "USD", asOf)
	assert.Equal(t, nil, err)
	assert.Equal(t, 111.11, conv.Amount)
	assert.Equal(t, quoted, conv.RateDate)

	assert.Equal(t, nil, dbMock.ExpectationsWereMet())
}
