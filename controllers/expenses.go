package controllers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expensesapi/exchange"
	"expensesapi/models"
	"expensesapi/resolution"

	"github.com/360EntSecGroup-Skylar/excelize/v2"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

func (api *API) GetExpenses(c *gin.Context) {
	u := ParsePayload(c)
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	order := c.Query("order")
	orderBy := c.Query("order_by")
	asExcel := c.Query("export_as_excel") == "true"

	amount, _ := strconv.ParseFloat(c.Query("amount"), 64)
	minAmount, _ := strconv.ParseFloat(c.Query("min_amount"), 64)
	maxAmount, _ := strconv.ParseFloat(c.Query("max_amount"), 64)

	filter := models.ExpenseFilter{
		Expense: models.Expense{
			CompanyId:  u.CompanyId,
			UserId:     c.Query("user_id"),
			CategoryId: c.Query("category_id"),
			Currency:   c.Query("currency"),
			Status:     strings.ToUpper(c.Query("status")),
			Amount:     amount,
			Date:       c.Query("date"),
		},
		MinDate:   c.Query("min_date"),
		MaxDate:   c.Query("max_date"),
		MinAmount: minAmount,
		MaxAmount: maxAmount,
	}

	if u.Role == string(models.Employee) {
		filter.UserId = u.Id
	}

	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = 20
	}

	if strings.ToUpper(order) != "ASC" && strings.ToUpper(order) != "DESC" {
		order = "DESC"
	}

	mapOrderBy := map[string]string{
		"id":            "e.id",
		"category_id":   "e.category_id",
		"category_name": "c.name",
		"date":          "e.expense_date",
		"currency":      "e.currency",
		"amount":        "e.amount",
		"base_amount":   "e.amount_in_base_currency",
		"status":        "e.status",
		"user_id":       "e.user_id",
		"created_at":    "e.created_at",
		"updated_at":    "e.updated_at",
	}

	if val, ok := mapOrderBy[orderBy]; ok {
		orderBy = val
	} else {
		orderBy = "e.updated_at"
	}

	countQ := `SELECT COUNT(1) FROM expenses e
		JOIN categories c ON e.category_id = c.id
		JOIN users s ON e.user_id = s.id
		WHERE NOT e.deleted`
	selectQ := `SELECT
			e.id, e.company_id, e.category_id, c.name,
			e.user_id, s.name, e.description, e.paid_by, e.remarks,
			e.expense_date, e.currency, e.amount,
			e.amount_in_base_currency, e.exchange_rate, e.exchange_rate_date,
			e.status, e.submitted_at, e.created_at, e.updated_at
		FROM expenses e
		JOIN categories c ON e.category_id = c.id
		JOIN users s ON e.user_id = s.id
		WHERE NOT e.deleted`

	var expenseList models.ExpenseList
	var expenses []models.Expense
	var err error

	filterQ, stms := getFilterExpense(filter)

	selectQ = selectQ + filterQ
	countQ = countQ + filterQ

	offset := (page - 1) * limit
	pagination := fmt.Sprintf(" LIMIT %d OFFSET %d ", limit, offset)
	orderVal := fmt.Sprintf(" ORDER BY %s %s", orderBy, order)

	log.Println(selectQ + orderVal + pagination)

	rows, err := api.Db.Query(selectQ+orderVal+pagination, stms...)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer rows.Close()

	for rows.Next() {
		var expense models.Expense

		var categoryId, categoryName, userId, userName,
			description, paidBy, remarks, currency, status sql.NullString

		var amount, baseAmount, rate sql.NullFloat64

		var date, rateDate, submittedAt sql.NullTime

		err = rows.Scan(&expense.Id, &expense.CompanyId, &categoryId, &categoryName,
			&userId, &userName, &description, &paidBy, &remarks,
			&date, &currency, &amount,
			&baseAmount, &rate, &rateDate,
			&status, &submittedAt, &expense.CreatedAt, &expense.UpdatedAt)
		if err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}

		expense.CategoryId = categoryId.String
		expense.CategoryName = categoryName.String
		expense.UserId = userId.String
		expense.UserName = userName.String
		expense.Description = description.String
		expense.PaidBy = paidBy.String
		expense.Remarks = remarks.String
		expense.Currency = currency.String
		expense.Status = status.String
		expense.Amount = amount.Float64
		expense.AmountInBaseCurrency = baseAmount.Float64
		expense.ExchangeRate = rate.Float64

		if date.Valid {
			expense.Date = date.Time.Format(dateFormat)
		}

		if rateDate.Valid {
			expense.ExchangeRateDate = rateDate.Time.Format(dateFormat)
		}

		if submittedAt.Valid {
			expense.SubmittedAt = submittedAt.Time.Format(time.RFC3339)
		}

		expenses = append(expenses, expense)
	}

	if asExcel {
		handleExcelExpenses(c, expenses)
		return
	}

	expenseList.Total, err = api.GetTotal(countQ, stms)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	expenseList.Expenses = expenses
	expenseList.Limit = limit
	expenseList.Page = page

	c.JSON(http.StatusOK, expenseList)
}

// UpsertExpenses creates or edits drafts. Submitted expenses are immutable
// through this path; the row update is fenced on DRAFT status.
func (api *API) UpsertExpenses(c *gin.Context) {
	u := ParsePayload(c)
	var payload models.UpsertExpenseRequest

	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	expenses := payload.Data
	if len(expenses) == 0 {
		sendError(c, http.StatusBadRequest, "missing-expenses")
		return
	}

	var errExpenses []models.RowError
	tx, err := api.Db.Begin()
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer tx.Rollback()

	employee := u.Role == string(models.Employee)

	for i, expense := range expenses {
		if employee || expense.UserId == "" {
			expense.UserId = u.Id
		}

		expense.CompanyId = u.CompanyId

		if _, err := uuid.FromString(expense.Id); err != nil {
			expense.Id = uuid.Must(uuid.NewV4()).String()
		}

		if err := validateExpense(&expense); err != nil {
			errExpenses = append(errExpenses, models.RowError{Row: i + 1, Message: err.Error()})
			continue
		}

		tag, err := tx.Exec(`
		INSERT INTO expenses
		(id, company_id, user_id, category_id, description, paid_by, remarks, expense_date, currency, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
		category_id = $4, description = $5, paid_by = $6, remarks = $7, expense_date = $8, currency = $9, amount = $10, updated_at = CURRENT_TIMESTAMP, deleted = false
		WHERE expenses.status = $11
		`, expense.Id, expense.CompanyId, expense.UserId, expense.CategoryId, expense.Description,
			expense.PaidBy, expense.Remarks, expense.Date, expense.Currency, expense.Amount, models.ExpenseDraft)
		if err != nil {
			log.Println(err)
			errExpenses = append(errExpenses, models.RowError{Row: i + 1, Message: err.Error()})
			continue
		}

		if t, _ := tag.RowsAffected(); t == 0 {
			errExpenses = append(errExpenses, models.RowError{Row: i + 1, Message: "invalid-transition"})
			continue
		}
	}

	code := http.StatusInternalServerError
	obj := gin.H{"message": "error", "details": errExpenses}

	if len(errExpenses) == 0 {
		if err := tx.Commit(); err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}

		code = http.StatusOK
		obj = gin.H{"message": "success", "total": len(expenses)}
	}

	c.JSON(code, obj)
}

// SubmitExpense moves a draft into the approval workflow: the amount is
// fixed in the company base currency and the active matching rules are
// snapshotted into approval rows, all in one transaction.
func (api *API) SubmitExpense(c *gin.Context) {
	u := ParsePayload(c)
	expenseId := c.Param("id")

	if _, err := uuid.FromString(expenseId); err != nil {
		sendError(c, http.StatusBadRequest, "invalid-id")
		return
	}

	base, err := api.baseCurrency(u.CompanyId)
	if err != nil {
		if err.Error() == "company-not-found" {
			sendError(c, http.StatusNotFound, err.Error())
			return
		}
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	tx, err := api.Db.Begin()
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer tx.Rollback()

	var status, categoryId, currency string
	var amount float64
	var expenseDate time.Time

	err = tx.QueryRow(`
		SELECT status, category_id, currency, amount, expense_date
		FROM expenses
		WHERE id = $1 AND user_id = $2 AND company_id = $3 AND NOT deleted
		FOR UPDATE`, expenseId, u.Id, u.CompanyId).
		Scan(&status, &categoryId, &currency, &amount, &expenseDate)

	if err != nil {
		if err == sql.ErrNoRows {
			sendError(c, http.StatusNotFound, "expense-not-found")
			return
		}
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if status != models.ExpenseDraft {
		sendError(c, http.StatusConflict, "invalid-transition")
		return
	}

	conv, err := api.Rates.Convert(amount, currency, base, expenseDate)
	if err != nil {
		if err == exchange.ErrRateNotFound {
			// a missing rate blocks submission, never a silent default
			sendError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	rows, err := tx.Query(`
		SELECT r.id, r.category_id, r.approver_id, r.approval_type, r.sequential, r.order_index
		FROM approval_rules r
		JOIN users a ON r.approver_id = a.id AND NOT a.deleted
		WHERE r.company_id = $1 AND r.active
		AND (r.category_id = $2 OR r.category_id IS NULL)
		ORDER BY r.order_index`, u.CompanyId, categoryId)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer rows.Close()

	// one approval slot per approver: when both a category rule and a
	// company-wide rule name the same approver, the category rule wins
	var rules []models.ApprovalRule
	seen := map[string]int{}
	for rows.Next() {
		var rule models.ApprovalRule
		var ruleCategoryId sql.NullString
		if err := rows.Scan(&rule.Id, &ruleCategoryId, &rule.ApproverId, &rule.ApprovalType, &rule.Sequential, &rule.OrderIndex); err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}
		rule.CategoryId = ruleCategoryId.String

		if j, ok := seen[rule.ApproverId]; ok {
			if rules[j].CategoryId == "" && rule.CategoryId != "" {
				rules[j] = rule
			}
			continue
		}

		seen[rule.ApproverId] = len(rules)
		rules = append(rules, rule)
	}

	for _, rule := range rules {
		if _, err := tx.Exec(`
		INSERT INTO approvals
		(id, expense_id, approver_id, approval_type, sequential, order_index, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		`, uuid.Must(uuid.NewV4()).String(), expenseId, rule.ApproverId, rule.ApprovalType,
			rule.Sequential, rule.OrderIndex, string(resolution.Pending)); err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if _, err := tx.Exec(`
		UPDATE expenses SET
		status = $2, amount_in_base_currency = $3, exchange_rate = $4, exchange_rate_date = $5,
		submitted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`, expenseId, models.ExpensePending, conv.Amount, conv.Rate, conv.RateDate); err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if err := tx.Commit(); err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	resp := models.SubmitExpenseResponse{
		Message:              "success",
		Status:               models.ExpensePending,
		AmountInBaseCurrency: conv.Amount,
		ExchangeRate:         conv.Rate,
		ExchangeRateDate:     conv.RateDate.Format(dateFormat),
		ApprovalCount:        len(rules),
	}

	if len(rules) == 0 {
		log.Println("no approval rules matched expense", expenseId)
		resp.Warning = "no-approval-rules-configured"
	}

	c.JSON(http.StatusOK, resp)
}

// GetExpenseApprovals lists the frozen approval set of one expense with
// per-approval actionability, for dashboards and reminder logic.
func (api *API) GetExpenseApprovals(c *gin.Context) {
	u := ParsePayload(c)
	expenseId := c.Param("id")

	if _, err := uuid.FromString(expenseId); err != nil {
		sendError(c, http.StatusBadRequest, "invalid-id")
		return
	}

	q := `SELECT 1 FROM expenses WHERE id = $1 AND company_id = $2 AND NOT deleted`
	stms := []interface{}{expenseId, u.CompanyId}
	if u.Role == string(models.Employee) {
		q += " AND user_id = $3"
		stms = append(stms, u.Id)
	}

	var one int
	if err := api.Db.QueryRow(q, stms...).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			sendError(c, http.StatusNotFound, "expense-not-found")
			return
		}
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	approvals, err := api.loadApprovals(api.Db, expenseId)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	markActionable(approvals)

	c.JSON(http.StatusOK, gin.H{"approvals": approvals})
}

func (api *API) GetExpensesReport(c *gin.Context) {
	u := ParsePayload(c)

	base, err := api.baseCurrency(u.CompanyId)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	filterQ := ""
	stms := []interface{}{u.CompanyId}

	if date, err := time.Parse(dateFormat, c.Query("min_date")); err == nil {
		filterQ += fmt.Sprintf(" AND e.expense_date >= $%d", len(stms)+1)
		stms = append(stms, date)
	}

	if date, err := time.Parse(dateFormat, c.Query("max_date")); err == nil {
		filterQ += fmt.Sprintf(" AND e.expense_date <= $%d", len(stms)+1)
		stms = append(stms, date)
	}

	report := models.ExpenseReport{
		BaseCurrency: base,
		CountByState: map[string]int32{},
	}

	rows, err := api.Db.Query(`SELECT e.status, COUNT(1) FROM expenses e
		WHERE NOT e.deleted AND e.company_id = $1`+filterQ+`
		GROUP BY e.status`, stms...)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer rows.Close()

	for rows.Next() {
		var state string
		var count int32
		if err := rows.Scan(&state, &count); err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}
		report.CountByState[state] = count
	}

	rows, err = api.Db.Query(`SELECT e.category_id, c.name, SUM(e.amount_in_base_currency)
		FROM expenses e
		JOIN categories c ON e.category_id = c.id
		WHERE NOT e.deleted AND e.company_id = $1 AND e.status = 'APPROVED'`+filterQ+`
		GROUP BY e.category_id, c.name
		ORDER BY c.name`, stms...)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer rows.Close()

	for rows.Next() {
		var item models.CategoryTotalReport
		if err := rows.Scan(&item.Id, &item.Name, &item.Total); err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}
		report.Reports = append(report.Reports, item)
		report.Total += item.Total
	}

	c.JSON(http.StatusOK, report)
}

func (api *API) DeleteExpenses(c *gin.Context) {
	api.BatchDeletes(c, "expenses")
}

func handleExcelExpenses(c *gin.Context, expenses []models.Expense) {
	if len(expenses) == 0 {
		sendError(c, http.StatusNotFound, "expenses-not-found")
		return
	}

	f := excelize.NewFile()

	sheet := "List Expenses"
	f.NewSheet(sheet)
	// delete default sheet
	f.DeleteSheet("Sheet1")

	err := f.SetColWidth(sheet, "A", "H", 50)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	headerStyle, err := f.NewStyle(s1)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	dataStyle, err := f.NewStyle(s2)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	streamWriter, err := f.NewStreamWriter(sheet)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if err = streamWriter.SetRow("A1", []interface{}{
		excelize.Cell{StyleID: headerStyle, Value: "Description"},
		excelize.Cell{StyleID: headerStyle, Value: "Category"},
		excelize.Cell{StyleID: headerStyle, Value: "Submitter"},
		excelize.Cell{StyleID: headerStyle, Value: "Date"},
		excelize.Cell{StyleID: headerStyle, Value: "Currency"},
		excelize.Cell{StyleID: headerStyle, Value: "Amount"},
		excelize.Cell{StyleID: headerStyle, Value: "Base Amount"},
		excelize.Cell{StyleID: headerStyle, Value: "Status"}}); err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	for n, expense := range expenses {
		amountFormatted := fmt.Sprintf("%s %s", expense.Currency, humanize.Commaf(expense.Amount))
		baseFormatted := humanize.Commaf(expense.AmountInBaseCurrency)

		row := make([]interface{}, 8)
		row[0] = excelize.Cell{StyleID: dataStyle, Value: expense.Description}
		row[1] = excelize.Cell{StyleID: dataStyle, Value: expense.CategoryName}
		row[2] = excelize.Cell{StyleID: dataStyle, Value: expense.UserName}
		row[3] = excelize.Cell{StyleID: dataStyle, Value: expense.Date}
		row[4] = excelize.Cell{StyleID: dataStyle, Value: expense.Currency}
		row[5] = excelize.Cell{StyleID: dataStyle, Value: amountFormatted}
		row[6] = excelize.Cell{StyleID: dataStyle, Value: baseFormatted}
		row[7] = excelize.Cell{StyleID: dataStyle, Value: expense.Status}

		cell, _ := excelize.CoordinatesToCellName(1, n+2)
		if err = streamWriter.SetRow(cell, row); err != nil {
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if err := streamWriter.Flush(); err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	fileName := fmt.Sprintf("report_expenses_%s.xlsx", time.Now().UTC().Format("20060102_150405"))

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment;filename=\""+fileName+"\"")

	if _, err := f.WriteTo(c.Writer); err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

}

func getFilterExpense(filter models.ExpenseFilter) (filterQ string, stms []interface{}) {
	filterQ = fmt.Sprintf(" AND e.company_id = $%d", len(stms)+1)
	stms = append(stms, filter.CompanyId)

	if _, err := uuid.FromString(filter.UserId); err == nil {
		filterQ += fmt.Sprintf(" AND e.user_id = $%d", len(stms)+1)
		stms = append(stms, filter.UserId)
	}

	if _, err := uuid.FromString(filter.CategoryId); err == nil {
		filterQ += fmt.Sprintf(" AND e.category_id = $%d", len(stms)+1)
		stms = append(stms, filter.CategoryId)
	}

	if filter.Currency != "" {
		filterQ += fmt.Sprintf(" AND e.currency = $%d", len(stms)+1)
		stms = append(stms, strings.ToUpper(filter.Currency))
	}

	switch filter.Status {
	case models.ExpenseDraft, models.ExpensePending, models.ExpenseApproved, models.ExpenseRejected:
		filterQ += fmt.Sprintf(" AND e.status = $%d", len(stms)+1)
		stms = append(stms, filter.Status)
	}

	if filter.Amount != 0 {
		filterQ += fmt.Sprintf(" AND e.amount = $%d", len(stms)+1)
		stms = append(stms, filter.Amount)
	}

	if date, err := time.Parse(dateFormat, filter.Date); err == nil {
		filterQ += fmt.Sprintf(" AND e.expense_date = $%d", len(stms)+1)
		stms = append(stms, date)
	}

	if date, err := time.Parse(dateFormat, filter.MinDate); err == nil {
		filterQ += fmt.Sprintf(" AND e.expense_date >= $%d", len(stms)+1)
		stms = append(stms, date)
	}

	if date, err := time.Parse(dateFormat, filter.MaxDate); err == nil {
		filterQ += fmt.Sprintf(" AND e.expense_date <= $%d", len(stms)+1)
		stms = append(stms, date)
	}

	if filter.MinAmount != 0 {
		filterQ += fmt.Sprintf(" AND e.amount >= $%d", len(stms)+1)
		stms = append(stms, filter.MinAmount)
	}

	if filter.MaxAmount != 0 {
		filterQ += fmt.Sprintf(" AND e.amount <= $%d", len(stms)+1)
		stms = append(stms, filter.MaxAmount)
	}

	return
}

func validateExpense(expense *models.Expense) error {

	if expense.CategoryId == "" {
		return errors.New("missing-category-id")
	}

	if expense.Description == "" {
		return errors.New("missing-description")
	}

	if expense.Date == "" {
		return errors.New("missing-date")
	}

	if expense.Currency == "" {
		return errors.New("missing-currency")
	}

	if expense.Amount <= 0 {
		return errors.New("missing-amount")
	}

	if _, err := uuid.FromString(expense.UserId); err != nil {
		return errors.New("invalid-user-id")
	}

	if _, err := uuid.FromString(expense.CategoryId); err != nil {
		return errors.New("invalid-category-id")
	}

	date, err := time.Parse(dateFormat, expense.Date)
	if err != nil {
		return errors.New("invalid-date(yyyy-mm-dd)")
	}

	if date.After(time.Now()) {
		return errors.New("date-shall-be-a-past-date")
	}

	if len(expense.Currency) != 3 {
		return errors.New("invalid-currency")
	}

	expense.Currency = strings.ToUpper(expense.Currency)

	return nil
}
