package controllers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"expensesapi/models"
	"expensesapi/resolution"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/lib/pq"
)

func (api *API) GetRules(c *gin.Context) {
	u := ParsePayload(c)
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	order := c.Query("order")
	orderBy := c.Query("order_by")

	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = 20
	}

	if strings.ToUpper(order) != "ASC" && strings.ToUpper(order) != "DESC" {
		order = "ASC"
	}

	mapOrderBy := map[string]string{
		"id":            "r.id",
		"category_id":   "r.category_id",
		"category_name": "c.name",
		"approver_id":   "r.approver_id",
		"approval_type": "r.approval_type",
		"order_index":   "r.order_index",
		"created_at":    "r.created_at",
		"updated_at":    "r.updated_at",
	}

	if val, ok := mapOrderBy[orderBy]; ok {
		orderBy = val
	} else {
		orderBy = "r.order_index"
	}

	countQ := `SELECT COUNT(1) FROM approval_rules r
		LEFT JOIN categories c ON r.category_id = c.id
		JOIN users a ON r.approver_id = a.id
		WHERE r.company_id = $1`
	selectQ := `SELECT
			r.id, r.company_id, r.category_id, c.name,
			r.approver_id, a.name, r.approval_type, r.sequential,
			r.order_index, r.active, r.created_at, r.updated_at
		FROM approval_rules r
		LEFT JOIN categories c ON r.category_id = c.id
		JOIN users a ON r.approver_id = a.id
		WHERE r.company_id = $1`

	var ruleList models.RuleList
	var rules []models.ApprovalRule
	var err error

	filterQ, stms := getFilterRule(u.CompanyId, c.Query("category_id"), c.Query("approver_id"), c.Query("active"))

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
		var rule models.ApprovalRule
		var categoryId, categoryName, approverName sql.NullString

		err = rows.Scan(&rule.Id, &rule.CompanyId, &categoryId, &categoryName,
			&rule.ApproverId, &approverName, &rule.ApprovalType, &rule.Sequential,
			&rule.OrderIndex, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}

		rule.CategoryId = categoryId.String
		rule.CategoryName = categoryName.String
		rule.ApproverName = approverName.String

		rules = append(rules, rule)
	}

	ruleList.Total, err = api.GetTotal(countQ, stms)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	ruleList.Rules = rules
	ruleList.Limit = limit
	ruleList.Page = page

	c.JSON(http.StatusOK, ruleList)
}

// UpsertRules appends approval-rule configuration. Rule changes only
// affect expenses submitted afterwards; outstanding approval sets were
// snapshotted at submission.
func (api *API) UpsertRules(c *gin.Context) {
	u := ParsePayload(c)
	if u.Role != string(models.Admin) {
		sendError(c, http.StatusForbidden, "forbidden")
		return
	}

	var payload models.UpsertRuleRequest

	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	rules := payload.Data
	if len(rules) == 0 {
		sendError(c, http.StatusBadRequest, "missing-rules")
		return
	}

	var errRules []models.RowError
	tx, err := api.Db.Begin()
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer tx.Rollback()

	for i, rule := range rules {
		rule.CompanyId = u.CompanyId

		if _, err := uuid.FromString(rule.Id); err != nil {
			rule.Id = uuid.Must(uuid.NewV4()).String()
		}

		if err := validateRule(&rule); err != nil {
			errRules = append(errRules, models.RowError{Row: i + 1, Message: err.Error()})
			continue
		}

		var approverOK bool
		if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND company_id = $2 AND NOT deleted)",
			rule.ApproverId, rule.CompanyId).Scan(&approverOK); err != nil {
			log.Println(err)
			errRules = append(errRules, models.RowError{Row: i + 1, Message: err.Error()})
			continue
		}

		if !approverOK {
			errRules = append(errRules, models.RowError{Row: i + 1, Message: "approver-not-found"})
			continue
		}

		var categoryId interface{}
		if rule.CategoryId != "" {
			categoryId = rule.CategoryId
		}

		if _, err := tx.Exec(`
		INSERT INTO approval_rules
		(id, company_id, category_id, approver_id, approval_type, sequential, order_index, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
		category_id = $3, approver_id = $4, approval_type = $5, sequential = $6, order_index = $7,
		active = true, updated_at = CURRENT_TIMESTAMP
		`, rule.Id, rule.CompanyId, categoryId, rule.ApproverId, rule.ApprovalType, rule.Sequential, rule.OrderIndex); err != nil {
			log.Println(err)
			errRules = append(errRules, models.RowError{Row: i + 1, Message: err.Error()})
			continue
		}
	}

	code := http.StatusInternalServerError
	obj := gin.H{"message": "error", "details": errRules}

	if len(errRules) == 0 {
		if err := tx.Commit(); err != nil {
			log.Println(err)
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}

		code = http.StatusOK
		obj = gin.H{"message": "success", "total": len(rules)}
	}

	c.JSON(code, obj)
}

// DeleteRules deactivates rules; rows stay for the audit trail and for
// expenses that snapshotted them.
func (api *API) DeleteRules(c *gin.Context) {
	u := ParsePayload(c)
	if u.Role != string(models.Admin) {
		sendError(c, http.StatusForbidden, "forbidden")
		return
	}

	var req models.BatchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	ids := req.Data
	if len(ids) == 0 {
		sendError(c, http.StatusBadRequest, "missing-data")
		return
	}

	var errInvalid []models.RowError
	for i, id := range ids {
		if _, err := uuid.FromString(id); err != nil {
			errInvalid = append(errInvalid, models.RowError{Row: i, Message: "invalid-id"})
		}
	}

	if len(errInvalid) > 0 {
		c.JSON(http.StatusBadRequest, models.RowResponseError{
			Message: "error",
			Detail:  errInvalid,
		})
		return
	}

	tx, err := api.Db.Begin()
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	defer tx.Rollback()

	tag, err := tx.Exec(`UPDATE approval_rules SET active = false, updated_at = CURRENT_TIMESTAMP
		WHERE id = ANY($1) AND active AND company_id = $2`, pq.Array(ids), u.CompanyId)
	if err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	t, _ := tag.RowsAffected()
	if int(t) != len(ids) {
		sendError(c, http.StatusNotFound, fmt.Sprintf("expected-%d-deactivated-but-got-%d", len(ids), t))
		return
	}

	if err := tx.Commit(); err != nil {
		log.Println(err)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, genericOK)
}

func validateRule(rule *models.ApprovalRule) error {

	if rule.ApproverId == "" {
		return errors.New("missing-approver-id")
	}

	if _, err := uuid.FromString(rule.ApproverId); err != nil {
		return errors.New("invalid-approver-id")
	}

	if rule.CategoryId != "" {
		if _, err := uuid.FromString(rule.CategoryId); err != nil {
			return errors.New("invalid-category-id")
		}
	}

	rule.ApprovalType = strings.ToUpper(rule.ApprovalType)
	if rule.ApprovalType != string(resolution.Compulsory) && rule.ApprovalType != string(resolution.Necessary) {
		return errors.New("invalid-approval-type")
	}

	if rule.OrderIndex < 0 {
		return errors.New("invalid-order-index")
	}

	if rule.Sequential && rule.OrderIndex == 0 {
		return errors.New("missing-order-index")
	}

	return nil
}

func getFilterRule(companyId, categoryId, approverId, active string) (filterQ string, stms []interface{}) {
	stms = append(stms, companyId)

	if _, err := uuid.FromString(categoryId); err == nil {
		filterQ += fmt.Sprintf(" AND r.category_id = $%d", len(stms)+1)
		stms = append(stms, categoryId)
	}

	if _, err := uuid.FromString(approverId); err == nil {
		filterQ += fmt.Sprintf(" AND r.approver_id = $%d", len(stms)+1)
		stms = append(stms, approverId)
	}

	if active == "true" || active == "false" {
		filterQ += fmt.Sprintf(" AND r.active = $%d", len(stms)+1)
		stms = append(stms, active == "true")
	}

	return
}
