package models

import "time"

type ExpenseList struct {
	Expenses []Expense `json:"expenses"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Total    int32     `json:"total"`
}

type ExpenseFilter struct {
	MinDate   string `json:"min_date"`
	MaxDate   string `json:"max_date"`
	Expense   `json:"expense"`
	MinAmount float64 `json:"min_amount"`
	MaxAmount float64 `json:"max_amount"`
}

type Expense struct {
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
	Id                   string    `json:"id"`
	CompanyId            string    `json:"company_id"`
	UserId               string    `json:"user_id"`
	UserName             string    `json:"user_name"`
	CategoryId           string    `json:"category_id"`
	CategoryName         string    `json:"category_name"`
	Description          string    `json:"description"`
	PaidBy               string    `json:"paid_by"`
	Remarks              string    `json:"remarks"`
	Date                 string    `json:"date"`
	Currency             string    `json:"currency"`
	Amount               float64   `json:"amount"`
	AmountInBaseCurrency float64   `json:"amount_in_base_currency"`
	ExchangeRate         float64   `json:"exchange_rate"`
	ExchangeRateDate     string    `json:"exchange_rate_date"`
	Status               string    `json:"status"`
	SubmittedAt          string    `json:"submitted_at,omitempty"`
}

// Expense lifecycle. DRAFT->PENDING on submit, PENDING->APPROVED|REJECTED
// via the resolution engine, never back.
const (
	ExpenseDraft    = "DRAFT"
	ExpensePending  = "PENDING"
	ExpenseApproved = "APPROVED"
	ExpenseRejected = "REJECTED"
)

type UpsertExpenseRequest struct {
	Data []Expense `json:"data"`
}

type SubmitExpenseResponse struct {
	Message              string  `json:"message"`
	Status               string  `json:"status"`
	AmountInBaseCurrency float64 `json:"amount_in_base_currency"`
	ExchangeRate         float64 `json:"exchange_rate"`
	ExchangeRateDate     string  `json:"exchange_rate_date"`
	ApprovalCount        int     `json:"approval_count"`
	Warning              string  `json:"warning,omitempty"`
}

type ExpenseReport struct {
	BaseCurrency string                `json:"base_currency"`
	Reports      []CategoryTotalReport `json:"reports"`
	Total        float64               `json:"total"`
	CountByState map[string]int32      `json:"count_by_state"`
}

type CategoryTotalReport struct {
	Id    string  `json:"id"`
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}
