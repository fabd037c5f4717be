package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"expensesapi/exchange"
	"expensesapi/models"
	"expensesapi/resolution"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"gotest.tools/assert"
)

func TestGetExpenses(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	var genericResp GenericResponse

	mockExpenseId := "63eb226a-d612-412b-b8d4-a3e17b7d2226"
	mockUserId := "63eb226a-d612-412b-b8d4-a3e17b7d2227"
	payloadHeader := "{\"user\":{\"id\":\"" + mockUserId + "\", \"company_id\":\"c1\", \"role\":\"EMPLOYEE\"}}"

	// err select (500)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	dbMock.ExpectQuery("SELECT e.id.*").WillReturnError(errors.New("err-select"))

	req, _ := http.NewRequest("GET", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.GetExpenses(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "err-select", genericResp.Message)

	// (200)
	label := []string{
		"id", "company_id", "category_id", "name",
		"user_id", "name", "description", "paid_by", "remarks",
		"expense_date", "currency", "amount",
		"amount_in_base_currency", "exchange_rate", "exchange_rate_date",
		"status", "submitted_at", "created_at", "updated_at",
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	dbMock.ExpectQuery("SELECT e.id.*").
		WillReturnRows(sqlmock.NewRows(label).
			AddRow(mockExpenseId, "c1", "cat1", "Travel",
				mockUserId, "employee", "taxi", "cash", nil,
				time.Now(), "USD", 42.5,
				38.25, 0.9, time.Now(),
				models.ExpensePending, time.Now(), time.Now(), time.Now()))
	dbMock.ExpectQuery("SELECT COUNT.*").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	req, _ = http.NewRequest("GET", "?page=1&limit=10&order_by=date&order=asc", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.GetExpenses(c)

	var list models.ExpenseList
	err = json.NewDecoder(w.Body).Decode(&list)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), list.Total)
	assert.Equal(t, 1, len(list.Expenses))
	assert.Equal(t, 38.25, list.Expenses[0].AmountInBaseCurrency)
	assert.Equal(t, "Travel", list.Expenses[0].CategoryName)
}

func TestUpsertExpenses(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	var genericResp GenericResponse

	mockCategoryId := "63eb226a-d612-412b-b8d4-a3e17b7d2226"
	mockUserId := "63eb226a-d612-412b-b8d4-a3e17b7d2227"
	payloadHeader := "{\"user\":{\"id\":\"" + mockUserId + "\", \"company_id\":\"c1\", \"role\":\"EMPLOYEE\"}}"

	// empty batch (400)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req, _ := http.NewRequest("POST", "", parsePayload(models.UpsertExpenseRequest{}))
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.UpsertExpenses(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing-expenses", genericResp.Message)

	// validation failures reported per row (500)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	dbMock.ExpectBegin()
	dbMock.ExpectRollback()

	batch := models.UpsertExpenseRequest{Data: []models.Expense{
		{CategoryId: mockCategoryId, Description: "taxi", Date: "2026-01-15", Currency: "USD"},
		{Description: "lunch", Date: "2026-01-15", Currency: "USD", Amount: 10},
	}}

	req, _ = http.NewRequest("POST", "", parsePayload(batch))
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.UpsertExpenses(c)

	var rowResp struct {
		Message string            `json:"message"`
		Details []models.RowError `json:"details"`
	}

	err = json.NewDecoder(w.Body).Decode(&rowResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error", rowResp.Message)
	assert.Equal(t, 2, len(rowResp.Details))
	assert.Equal(t, "missing-amount", rowResp.Details[0].Message)
	assert.Equal(t, "missing-category-id", rowResp.Details[1].Message)

	// draft saved (200)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO expenses.*").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	batch = models.UpsertExpenseRequest{Data: []models.Expense{
		{CategoryId: mockCategoryId, Description: "taxi", Date: "2026-01-15", Currency: "usd", Amount: 42.5},
	}}

	req, _ = http.NewRequest("POST", "", parsePayload(batch))
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.UpsertExpenses(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)

	// editing a submitted expense hits the status fence (500 with row detail)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO expenses.*").WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectRollback()

	req, _ = http.NewRequest("POST", "", parsePayload(batch))
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.UpsertExpenses(c)

	err = json.NewDecoder(w.Body).Decode(&rowResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "invalid-transition", rowResp.Details[0].Message)
}

func TestSubmitExpense(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db
	api.Rates = &exchange.Converter{Rates: &exchange.PostgresStore{Db: db}}

	var genericResp GenericResponse

	mockExpenseId := "63eb226a-d612-412b-b8d4-a3e17b7d2226"
	mockCategoryId := "63eb226a-d612-412b-b8d4-a3e17b7d2227"
	mockUserId := "63eb226a-d612-412b-b8d4-a3e17b7d2228"
	mockApproverId := "63eb226a-d612-412b-b8d4-a3e17b7d2229"
	payloadHeader := "{\"user\":{\"id\":\"" + mockUserId + "\", \"company_id\":\"c1\", \"role\":\"EMPLOYEE\"}}"

	expenseLabel := []string{"status", "category_id", "currency", "amount", "expense_date"}
	expenseDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	// expense not found (404)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = []gin.Param{{Key: "id", Value: mockExpenseId}}

	dbMock.ExpectQuery("SELECT base_currency.*").
		WillReturnRows(sqlmock.NewRows([]string{"base_currency"}).AddRow("EUR"))
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT status, category_id.*").WillReturnRows(sqlmock.NewRows(expenseLabel))
	dbMock.ExpectRollback()

	req, _ := http.NewRequest("POST", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.SubmitExpense(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "expense-not-found", genericResp.Message)

	// already submitted (409)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Params = []gin.Param{{Key: "id", Value: mockExpenseId}}

	dbMock.ExpectQuery("SELECT base_currency.*").
		WillReturnRows(sqlmock.NewRows([]string{"base_currency"}).AddRow("EUR"))
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT status, category_id.*").
		WillReturnRows(sqlmock.NewRows(expenseLabel).
			AddRow(models.ExpensePending, mockCategoryId, "USD", 100.0, expenseDate))
	dbMock.ExpectRollback()

	req, _ = http.NewRequest("POST", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.SubmitExpense(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid-transition", genericResp.Message)

	// no rate on record anywhere in the chain blocks the submission (422)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Params = []gin.Param{{Key: "id", Value: mockExpenseId}}

	dbMock.ExpectQuery("SELECT base_currency.*").
		WillReturnRows(sqlmock.NewRows([]string{"base_currency"}).AddRow("EUR"))
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT status, category_id.*").
		WillReturnRows(sqlmock.NewRows(expenseLabel).
			AddRow(models.ExpenseDraft, mockCategoryId, "USD", 100.0, expenseDate))
	dbMock.ExpectQuery("SELECT rate FROM currency_rates.*").
		WillReturnRows(sqlmock.NewRows([]string{"rate"}))
	dbMock.ExpectQuery("SELECT rate, rate_date FROM currency_rates.*").
		WillReturnRows(sqlmock.NewRows([]string{"rate", "rate_date"}))
	dbMock.ExpectQuery("SELECT rate, rate_date FROM currency_rates.*").
		WillReturnRows(sqlmock.NewRows([]string{"rate", "rate_date"}))
	dbMock.ExpectRollback()

	req, _ = http.NewRequest("POST", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.SubmitExpense(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "rate-not-found", genericResp.Message)

	// reverse rate serves the conversion, rules snapshotted (200)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Params = []gin.Param{{Key: "id", Value: mockExpenseId}}

	mockSecondApproverId := "63eb226a-d612-412b-b8d4-a3e17b7d2230"
	ruleLabel := []string{"id", "category_id", "approver_id", "approval_type", "sequential", "order_index"}

	dbMock.ExpectQuery("SELECT base_currency.*").
		WillReturnRows(sqlmock.NewRows([]string{"base_currency"}).AddRow("EUR"))
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT status, category_id.*").
		WillReturnRows(sqlmock.NewRows(expenseLabel).
			AddRow(models.ExpenseDraft, mockCategoryId, "USD", 100.0, expenseDate))
	dbMock.ExpectQuery("SELECT rate FROM currency_rates.*").
		WillReturnRows(sqlmock.NewRows([]string{"rate"}))
	dbMock.ExpectQuery("SELECT rate, rate_date FROM currency_rates.*").
		WillReturnRows(sqlmock.NewRows([]string{"rate", "rate_date"}))
	// only the EUR->USD quote exists, so it is inverted
	dbMock.ExpectQuery("SELECT rate, rate_date FROM currency_rates.*").
		WillReturnRows(sqlmock.NewRows([]string{"rate", "rate_date"}).AddRow(1.25, expenseDate))
	dbMock.ExpectQuery("SELECT r.id, r.category_id.*").
		WillReturnRows(sqlmock.NewRows(ruleLabel).
			AddRow("r1", mockCategoryId, mockApproverId, "COMPULSORY", false, 0).
			AddRow("r2", nil, mockSecondApproverId, "NECESSARY", true, 1))
	dbMock.ExpectExec("INSERT INTO approvals.*").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO approvals.*").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("UPDATE expenses SET.*").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	req, _ = http.NewRequest("POST", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.SubmitExpense(c)

	var submitResp models.SubmitExpenseResponse
	err = json.NewDecoder(w.Body).Decode(&submitResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ExpensePending, submitResp.Status)
	assert.Equal(t, float64(80), submitResp.AmountInBaseCurrency)
	assert.Equal(t, 0.8, submitResp.ExchangeRate)
	assert.Equal(t, 2, submitResp.ApprovalCount)
	assert.Equal(t, "", submitResp.Warning)

	// an approver named by both a category rule and a company-wide rule
	// gets a single approval, carrying the category rule's attributes (200)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Params = []gin.Param{{Key: "id", Value: mockExpenseId}}

	dbMock.ExpectQuery("SELECT base_currency.*").
		WillReturnRows(sqlmock.NewRows([]string{"base_currency"}).AddRow("EUR"))
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT status, category_id.*").
		WillReturnRows(sqlmock.NewRows(expenseLabel).
			AddRow(models.ExpenseDraft, mockCategoryId, "EUR", 100.0, expenseDate))
	dbMock.ExpectQuery("SELECT r.id, r.category_id.*").
		WillReturnRows(sqlmock.NewRows(ruleLabel).
			AddRow("r1", nil, mockApproverId, "NECESSARY", false, 0).
			AddRow("r2", mockCategoryId, mockApproverId, "COMPULSORY", true, 2))
	dbMock.ExpectExec("INSERT INTO approvals.*").
		WithArgs(sqlmock.AnyArg(), mockExpenseId, mockApproverId, "COMPULSORY", true, 2, string(resolution.Pending)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("UPDATE expenses SET.*").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	req, _ = http.NewRequest("POST", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.SubmitExpense(c)

	err = json.NewDecoder(w.Body).Decode(&submitResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, submitResp.ApprovalCount)

	// no matching rules still submits, with a warning (200)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Params = []gin.Param{{Key: "id", Value: mockExpenseId}}

	dbMock.ExpectQuery("SELECT base_currency.*").
		WillReturnRows(sqlmock.NewRows([]string{"base_currency"}).AddRow("EUR"))
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT status, category_id.*").
		WillReturnRows(sqlmock.NewRows(expenseLabel).
			AddRow(models.ExpenseDraft, mockCategoryId, "EUR", 100.0, expenseDate))
	dbMock.ExpectQuery("SELECT r.id, r.category_id.*").
		WillReturnRows(sqlmock.NewRows(ruleLabel))
	dbMock.ExpectExec("UPDATE expenses SET.*").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	req, _ = http.NewRequest("POST", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.SubmitExpense(c)

	err = json.NewDecoder(w.Body).Decode(&submitResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, submitResp.ApprovalCount)
	assert.Equal(t, "no-approval-rules-configured", submitResp.Warning)
	assert.Equal(t, float64(1), submitResp.ExchangeRate)
}

func TestGetExpensesReport(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	mockUserId := "63eb226a-d612-412b-b8d4-a3e17b7d2228"
	payloadHeader := "{\"user\":{\"id\":\"" + mockUserId + "\", \"company_id\":\"c1\", \"role\":\"ADMIN\"}}"

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	dbMock.ExpectQuery("SELECT base_currency.*").
		WillReturnRows(sqlmock.NewRows([]string{"base_currency"}).AddRow("EUR"))
	dbMock.ExpectQuery("SELECT e.status, COUNT.*").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("DRAFT", 2).
			AddRow("PENDING", 3).
			AddRow("APPROVED", 4))
	dbMock.ExpectQuery("SELECT e.category_id, c.name, SUM.*").
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "name", "sum"}).
			AddRow("cat1", "Meals", 120.5).
			AddRow("cat2", "Travel", 300.25))

	req, _ := http.NewRequest("GET", "?min_date=2026-01-01&max_date=2026-02-01", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.GetExpensesReport(c)

	var report models.ExpenseReport
	err = json.NewDecoder(w.Body).Decode(&report)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "EUR", report.BaseCurrency)
	assert.Equal(t, 420.75, report.Total)
	assert.Equal(t, 2, len(report.Reports))
	assert.Equal(t, int32(3), report.CountByState["PENDING"])
}

func TestGetExpenseApprovals(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	mockExpenseId := "63eb226a-d612-412b-b8d4-a3e17b7d2226"
	mockUserId := "63eb226a-d612-412b-b8d4-a3e17b7d2228"
	payloadHeader := "{\"user\":{\"id\":\"" + mockUserId + "\", \"company_id\":\"c1\", \"role\":\"EMPLOYEE\"}}"

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = []gin.Param{{Key: "id", Value: mockExpenseId}}

	dbMock.ExpectQuery("SELECT 1 FROM expenses.*").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	dbMock.ExpectQuery("SELECT a.id, a.expense_id.*").
		WillReturnRows(sqlmock.NewRows(approvalLabel).
			AddRow("a1", mockExpenseId, "u1", "first", "NECESSARY", true, 1, "APPROVED", "ok", time.Now(), time.Now(), time.Now()).
			AddRow("a2", mockExpenseId, "u2", "second", "NECESSARY", true, 2, "PENDING", nil, nil, time.Now(), time.Now()))

	req, _ := http.NewRequest("GET", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.GetExpenseApprovals(c)

	var resp struct {
		Approvals []models.Approval `json:"approvals"`
	}

	err = json.NewDecoder(w.Body).Decode(&resp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, len(resp.Approvals))
	// first slot is decided, the chain has advanced to the second
	assert.Equal(t, false, resp.Approvals[0].Actionable)
	assert.Equal(t, true, resp.Approvals[1].Actionable)
}
