package models

import "time"

type RateList struct {
	Rates []CurrencyRate `json:"rates"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int32          `json:"total"`
}

// CurrencyRate rows are append-only: a new quote for a pair gets a new
// dated row, existing rows are never edited.
type CurrencyRate struct {
	CreatedAt    time.Time `json:"created_at"`
	Id           string    `json:"id"`
	FromCurrency string    `json:"from_currency"`
	ToCurrency   string    `json:"to_currency"`
	Rate         float64   `json:"rate"`
	RateDate     string    `json:"rate_date"`
}

type UpsertRateRequest struct {
	Data []CurrencyRate `json:"data"`
}

type ConversionResponse struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Amount   float64 `json:"amount"`
	Rate     float64 `json:"rate"`
	RateDate string  `json:"rate_date"`
}
