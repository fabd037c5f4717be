package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expensesapi/exchange"
	"expensesapi/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

func (api *API) GetRates(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = 20
	}

	countQ := `SELECT COUNT(1) FROM currency_rates WHERE true`
	selectQ := `SELECT
			id, from_currency, to_currency, rate, rate_date, created_at
		FROM currency_rates
		WHERE true`

	var rateList models.RateList
	var rates []models.CurrencyRate
	var err error

	filterQ, stms := getFilterRate(c.Query("from"), c.Query("to"), c.Query("min_date"), c.Query("max_date"))

	selectQ = selectQ + filterQ
	countQ = countQ + filterQ

	offset := (page - 1) * limit
	pagination := fmt.Sprintf(" LIMIT %d OFFSET %d ", limit, offset)
	orderVal := " ORDER BY rate_date DESC, created_at DESC"

	log.Println(selectQ + orderVal + pagination)

	rows, err := api.Db.Query(selectQ+orderVal+pagination, stms...)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer rows.Close()

	for rows.Next() {
		var rate models.CurrencyRate
		var rateDate time.Time

		err = rows.Scan(&rate.Id, &rate.FromCurrency, &rate.ToCurrency, &rate.Rate, &rateDate, &rate.CreatedAt)
		if err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}

		rate.RateDate = rateDate.Format(dateFormat)

		rates = append(rates, rate)
	}

	rateList.Total, err = api.GetTotal(countQ, stms)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	rateList.Rates = rates
	rateList.Limit = limit
	rateList.Page = page

	c.JSON(http.StatusOK, rateList)
}

// UpsertRates appends dated quotes. There is no update path: a correction
// is a newer row for the same pair and date.
func (api *API) UpsertRates(c *gin.Context) {
	u := ParsePayload(c)
	if u.Role != string(models.Admin) {
		sendError(c, http.StatusForbidden, "forbidden")
		return
	}

	var payload models.UpsertRateRequest

	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	rates := payload.Data
	if len(rates) == 0 {
		sendError(c, http.StatusBadRequest, "missing-rates")
		return
	}

	var errRates []models.RowError
	tx, err := api.Db.Begin()
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer tx.Rollback()

	for i, rate := range rates {
		if err := validateRate(&rate); err != nil {
			errRates = append(errRates, models.RowError{Row: i + 1, Message: err.Error()})
			continue
		}

		if _, err := tx.Exec(`
		INSERT INTO currency_rates
		(id, from_currency, to_currency, rate, rate_date, created_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		`, uuid.Must(uuid.NewV4()).String(), rate.FromCurrency, rate.ToCurrency, rate.Rate, rate.RateDate); err != nil {
			log.Println(err)
			errRates = append(errRates, models.RowError{Row: i + 1, Message: err.Error()})
			continue
		}
	}

	code := http.StatusInternalServerError
	obj := gin.H{"message": "error", "details": errRates}

	if len(errRates) == 0 {
		if err := tx.Commit(); err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}

		code = http.StatusOK
		obj = gin.H{"message": "success", "total": len(rates)}
	}

	c.JSON(code, obj)
}

// ConvertRate previews a conversion without touching any expense.
func (api *API) ConvertRate(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil || amount <= 0 {
		sendError(c, http.StatusBadRequest, "invalid-amount")
		return
	}

	from := strings.ToUpper(c.Query("from"))
	to := strings.ToUpper(c.Query("to"))
	if len(from) != 3 || len(to) != 3 {
		sendError(c, http.StatusBadRequest, "invalid-currency")
		return
	}

	asOf := time.Now().UTC()
	if d := c.Query("date"); d != "" {
		asOf, err = time.Parse(dateFormat, d)
		if err != nil {
			sendError(c, http.StatusBadRequest, "invalid-date(yyyy-mm-dd)")
			return
		}
	}

	conv, err := api.Rates.Convert(amount, from, to, asOf)
	if err != nil {
		if err == exchange.ErrRateNotFound {
			sendError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, models.ConversionResponse{
		From:     from,
		To:       to,
		Amount:   conv.Amount,
		Rate:     conv.Rate,
		RateDate: conv.RateDate.Format(dateFormat),
	})
}

func validateRate(rate *models.CurrencyRate) error {

	rate.FromCurrency = strings.ToUpper(rate.FromCurrency)
	rate.ToCurrency = strings.ToUpper(rate.ToCurrency)

	if len(rate.FromCurrency) != 3 || len(rate.ToCurrency) != 3 {
		return errors.New("invalid-currency")
	}

	if rate.FromCurrency == rate.ToCurrency {
		return errors.New("same-currency-pair")
	}

	if rate.Rate <= 0 {
		return errors.New("rate-must-be-positive")
	}

	if rate.RateDate == "" {
		return errors.New("missing-rate-date")
	}

	if _, err := time.Parse(dateFormat, rate.RateDate); err != nil {
		return errors.New("invalid-date(yyyy-mm-dd)")
	}

	return nil
}

func getFilterRate(from, to, minDate, maxDate string) (filterQ string, stms []interface{}) {
	if len(from) == 3 {
		filterQ += fmt.Sprintf(" AND from_currency = $%d", len(stms)+1)
		stms = append(stms, strings.ToUpper(from))
	}

	if len(to) == 3 {
		filterQ += fmt.Sprintf(" AND to_currency = $%d", len(stms)+1)
		stms = append(stms, strings.ToUpper(to))
	}

	if date, err := time.Parse(dateFormat, minDate); err == nil {
		filterQ += fmt.Sprintf(" AND rate_date >= $%d", len(stms)+1)
		stms = append(stms, date)
	}

	if date, err := time.Parse(dateFormat, maxDate); err == nil {
		filterQ += fmt.Sprintf(" AND rate_date <= $%d", len(stms)+1)
		stms = append(stms, date)
	}

	return
}
