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

	"expensesapi/models"
	"expensesapi/resolution"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type queryer interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

// GetPendingApprovals is the approver's work queue: pending approvals on
// pending expenses, with sequential slots not yet reached filtered out
// unless include_blocked=true.
func (api *API) GetPendingApprovals(c *gin.Context) {
	u := ParsePayload(c)
	includeBlocked := c.Query("include_blocked") == "true"

	rows, err := api.Db.Query(`
		SELECT a.id, a.expense_id, a.approval_type, a.sequential, a.order_index,
			a.status, a.created_at, a.updated_at,
			e.description, e.status, e.amount_in_base_currency, s.name
		FROM approvals a
		JOIN expenses e ON a.expense_id = e.id AND NOT e.deleted
		JOIN users s ON e.user_id = s.id
		WHERE a.approver_id = $1 AND a.status = $2 AND e.status = $2 AND e.company_id = $3
		ORDER BY e.submitted_at, a.order_index`, u.Id, models.ExpensePending, u.CompanyId)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer rows.Close()

	var queue []models.Approval
	for rows.Next() {
		var approval models.Approval
		err = rows.Scan(&approval.Id, &approval.ExpenseId, &approval.ApprovalType,
			&approval.Sequential, &approval.OrderIndex, &approval.Status,
			&approval.CreatedAt, &approval.UpdatedAt,
			&approval.ExpenseDescription, &approval.ExpenseStatus,
			&approval.AmountInBaseCurrency, &approval.SubmitterName)
		if err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}
		queue = append(queue, approval)
	}

	// actionability needs each expense's full approval set, so resolve it
	// per distinct expense rather than per row
	chains := map[string][]resolution.Approval{}
	approvals := make([]models.Approval, 0, len(queue))
	for _, approval := range queue {
		set, ok := chains[approval.ExpenseId]
		if !ok {
			full, err := api.loadApprovals(api.Db, approval.ExpenseId)
			if err != nil {
				log.Println(err)
				sendError(c, http.StatusInternalServerError, err.Error())
				return
			}
			set = toResolution(full)
			chains[approval.ExpenseId] = set
		}

		approval.Actionable = resolution.Actionable(set, approval.Id)
		if !approval.Actionable && !includeBlocked {
			continue
		}

		approvals = append(approvals, approval)
	}

	c.JSON(http.StatusOK, gin.H{"approvals": approvals, "total": len(approvals)})
}

func (api *API) GetApprovalHistory(c *gin.Context) {
	u := ParsePayload(c)
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = 20
	}

	filterQ := ""
	stms := []interface{}{u.Id, u.CompanyId}

	status := strings.ToUpper(c.Query("status"))
	if status == string(resolution.Approved) || status == string(resolution.Rejected) {
		filterQ += fmt.Sprintf(" AND a.status = $%d", len(stms)+1)
		stms = append(stms, status)
	}

	countQ := `SELECT COUNT(1) FROM approvals a
		JOIN expenses e ON a.expense_id = e.id AND NOT e.deleted
		WHERE a.approver_id = $1 AND a.status <> 'PENDING' AND e.company_id = $2` + filterQ

	rows, err := api.Db.Query(`
		SELECT a.id, a.expense_id, a.approval_type, a.status, a.comments, a.decided_at,
			e.description, e.status, e.amount_in_base_currency, s.name
		FROM approvals a
		JOIN expenses e ON a.expense_id = e.id AND NOT e.deleted
		JOIN users s ON e.user_id = s.id
		WHERE a.approver_id = $1 AND a.status <> 'PENDING' AND e.company_id = $2`+filterQ+
		fmt.Sprintf(" ORDER BY a.decided_at DESC LIMIT %d OFFSET %d", limit, (page-1)*limit), stms...)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer rows.Close()

	var list models.ApprovalList
	for rows.Next() {
		var approval models.Approval
		var comments sql.NullString
		var decidedAt sql.NullTime

		err = rows.Scan(&approval.Id, &approval.ExpenseId, &approval.ApprovalType,
			&approval.Status, &comments, &decidedAt,
			&approval.ExpenseDescription, &approval.ExpenseStatus,
			&approval.AmountInBaseCurrency, &approval.SubmitterName)
		if err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}

		approval.Comments = comments.String
		if decidedAt.Valid {
			approval.DecidedAt = decidedAt.Time.Format(time.RFC3339)
		}

		list.Approvals = append(list.Approvals, approval)
	}

	list.Total, err = api.GetTotal(countQ, stms)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	list.Page = page
	list.Limit = limit

	c.JSON(http.StatusOK, list)
}

func (api *API) ApproveExpense(c *gin.Context) {
	api.decideHandler(c, resolution.Approved)
}

func (api *API) RejectExpense(c *gin.Context) {
	api.decideHandler(c, resolution.Rejected)
}

func (api *API) decideHandler(c *gin.Context, decision resolution.Status) {
	u := ParsePayload(c)
	approvalId := c.Param("id")

	if _, err := uuid.FromString(approvalId); err != nil {
		sendError(c, http.StatusBadRequest, "invalid-id")
		return
	}

	var payload models.DecisionRequest
	// comments are optional for either decision, an empty body is fine
	_ = c.ShouldBindJSON(&payload)

	resp, code, err := api.decide(approvalId, u.Id, u.CompanyId, decision, payload.Comments)
	if err != nil {
		sendError(c, code, err.Error())
		return
	}

	c.JSON(http.StatusOK, resp)
}

// decide applies one approver decision inside its own transaction. The
// expense row is locked first so concurrent decisions on the same expense
// serialize, then the full approval set is re-read and re-resolved under
// the lock.
func (api *API) decide(approvalId, approverId, companyId string, decision resolution.Status, comments string) (models.DecisionResponse, int, error) {
	var resp models.DecisionResponse

	tx, err := api.Db.Begin()
	if err != nil {
		log.Println(err)
		return resp, http.StatusInternalServerError, err
	}

	defer tx.Rollback()

	var expenseId string
	err = tx.QueryRow(`
		SELECT a.expense_id FROM approvals a
		JOIN expenses e ON a.expense_id = e.id AND NOT e.deleted
		WHERE a.id = $1 AND a.approver_id = $2 AND e.company_id = $3`,
		approvalId, approverId, companyId).Scan(&expenseId)
	if err != nil {
		if err == sql.ErrNoRows {
			return resp, http.StatusNotFound, errors.New("approval-not-found")
		}
		log.Println(err)
		return resp, http.StatusInternalServerError, err
	}

	var expenseStatus string
	err = tx.QueryRow(`SELECT status FROM expenses WHERE id = $1 FOR UPDATE`, expenseId).
		Scan(&expenseStatus)
	if err != nil {
		log.Println(err)
		return resp, http.StatusInternalServerError, err
	}

	if expenseStatus != models.ExpensePending {
		return resp, http.StatusConflict, errors.New("invalid-transition")
	}

	approvals, err := api.loadApprovals(tx, expenseId)
	if err != nil {
		log.Println(err)
		return resp, http.StatusInternalServerError, err
	}

	set := toResolution(approvals)
	if !resolution.Actionable(set, approvalId) {
		return resp, http.StatusConflict, errors.New("invalid-transition")
	}

	var commentsVal interface{}
	if comments != "" {
		commentsVal = comments
	}

	if _, err := tx.Exec(`
		UPDATE approvals SET status = $2, comments = $3, decided_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`, approvalId, string(decision), commentsVal); err != nil {
		log.Println(err)
		return resp, http.StatusInternalServerError, err
	}

	for i := range set {
		if set[i].Id == approvalId {
			set[i].Status = decision
		}
	}

	resolved := resolution.Resolve(set)
	if resolution.Terminal(resolved) {
		if _, err := tx.Exec(`
			UPDATE expenses SET status = $2, updated_at = CURRENT_TIMESTAMP
			WHERE id = $1`, expenseId, string(resolved)); err != nil {
			log.Println(err)
			return resp, http.StatusInternalServerError, err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Println(err)
		return resp, http.StatusInternalServerError, err
	}

	resp.Message = "success"
	resp.ApprovalStatus = string(decision)
	resp.ExpenseStatus = string(resolved)

	return resp, http.StatusOK, nil
}

// BulkDecisions applies each decision in its own transaction; one failing
// item never rolls back the others.
func (api *API) BulkDecisions(c *gin.Context) {
	u := ParsePayload(c)
	var payload models.BulkDecisionRequest

	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if len(payload.Data) == 0 {
		sendError(c, http.StatusBadRequest, "missing-decisions")
		return
	}

	var results []models.RowResult
	var failed int

	for i, item := range payload.Data {
		result := models.RowResult{Row: i + 1, Id: item.ApprovalId}

		var decision resolution.Status
		switch strings.ToLower(item.Decision) {
		case "approve":
			decision = resolution.Approved
		case "reject":
			decision = resolution.Rejected
		default:
			result.Status = "error"
			result.Message = "invalid-decision"
			results = append(results, result)
			failed++
			continue
		}

		if _, err := uuid.FromString(item.ApprovalId); err != nil {
			result.Status = "error"
			result.Message = "invalid-id"
			results = append(results, result)
			failed++
			continue
		}

		resp, _, err := api.decide(item.ApprovalId, u.Id, u.CompanyId, decision, item.Comments)
		if err != nil {
			result.Status = "error"
			result.Message = err.Error()
			failed++
		} else {
			result.Status = "success"
			result.Message = resp.ExpenseStatus
		}

		results = append(results, result)
	}

	message := "success"
	if failed > 0 {
		message = "partial"
	}
	if failed == len(payload.Data) {
		message = "error"
	}

	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"total":   len(payload.Data),
		"failed":  failed,
		"details": results,
	})
}

func (api *API) GetApprovalStatistics(c *gin.Context) {
	u := ParsePayload(c)

	rows, err := api.Db.Query(`
		SELECT a.status, COUNT(1) FROM approvals a
		JOIN expenses e ON a.expense_id = e.id AND NOT e.deleted
		WHERE a.approver_id = $1 AND e.company_id = $2
		GROUP BY a.status`, u.Id, u.CompanyId)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer rows.Close()

	var stats models.ApprovalStatistics
	for rows.Next() {
		var status string
		var count int32
		if err := rows.Scan(&status, &count); err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}

		switch status {
		case string(resolution.Pending):
			stats.Pending = count
		case string(resolution.Approved):
			stats.Approved = count
		case string(resolution.Rejected):
			stats.Rejected = count
		}
	}

	stats.TotalProcessed = stats.Approved + stats.Rejected

	c.JSON(http.StatusOK, stats)
}

// loadApprovals reads the full approval set of one expense, approver names
// included. Accepts either the pool or an open transaction so the decision
// path re-reads under its row lock.
func (api *API) loadApprovals(q queryer, expenseId string) ([]models.Approval, error) {
	rows, err := q.Query(`
		SELECT a.id, a.expense_id, a.approver_id, p.name,
			a.approval_type, a.sequential, a.order_index,
			a.status, a.comments, a.decided_at, a.created_at, a.updated_at
		FROM approvals a
		JOIN users p ON a.approver_id = p.id
		WHERE a.expense_id = $1
		ORDER BY a.order_index, a.created_at`, expenseId)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var approvals []models.Approval
	for rows.Next() {
		var approval models.Approval
		var comments sql.NullString
		var decidedAt sql.NullTime

		err = rows.Scan(&approval.Id, &approval.ExpenseId, &approval.ApproverId, &approval.ApproverName,
			&approval.ApprovalType, &approval.Sequential, &approval.OrderIndex,
			&approval.Status, &comments, &decidedAt, &approval.CreatedAt, &approval.UpdatedAt)
		if err != nil {
			return nil, err
		}

		approval.Comments = comments.String
		if decidedAt.Valid {
			approval.DecidedAt = decidedAt.Time.Format(time.RFC3339)
		}

		approvals = append(approvals, approval)
	}

	return approvals, rows.Err()
}

func toResolution(approvals []models.Approval) []resolution.Approval {
	set := make([]resolution.Approval, len(approvals))
	for i, a := range approvals {
		set[i] = resolution.Approval{
			Id:         a.Id,
			ApproverId: a.ApproverId,
			Type:       resolution.Type(a.ApprovalType),
			Sequential: a.Sequential,
			OrderIndex: a.OrderIndex,
			Status:     resolution.Status(a.Status),
		}
	}
	return set
}

func markActionable(approvals []models.Approval) {
	set := toResolution(approvals)
	for i := range approvals {
		approvals[i].Actionable = resolution.Actionable(set, approvals[i].Id)
	}
}
