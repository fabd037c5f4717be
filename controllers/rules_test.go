package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"expensesapi/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"gotest.tools/assert"
)

func TestGetRules(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	payloadHeader := "{\"user\":{\"id\":\"u1\", \"company_id\":\"c1\", \"role\":\"ADMIN\"}}"

	label := []string{
		"id", "company_id", "category_id", "name",
		"approver_id", "name", "approval_type", "sequential",
		"order_index", "active", "created_at", "updated_at",
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	dbMock.ExpectQuery("SELECT.*FROM approval_rules r.*").
		WillReturnRows(sqlmock.NewRows(label).
			AddRow("r1", "c1", nil, nil, "u2", "manager", "COMPULSORY", false, 0, true, time.Now(), time.Now()).
			AddRow("r2", "c1", "cat1", "Travel", "u3", "lead", "NECESSARY", true, 1, true, time.Now(), time.Now()))
	dbMock.ExpectQuery("SELECT COUNT.*").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	req, _ := http.NewRequest("GET", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", payloadHeader)
	api.GetRules(c)

	var list models.RuleList
	err = json.NewDecoder(w.Body).Decode(&list)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(2), list.Total)
	// NULL category means the rule spans the whole company
	assert.Equal(t, "", list.Rules[0].CategoryId)
	assert.Equal(t, "Travel", list.Rules[1].CategoryName)
}

func TestUpsertRules(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	var genericResp GenericResponse

	mockApproverId := "63eb226a-d612-412b-b8d4-a3e17b7d2229"
	adminHeader := "{\"user\":{\"id\":\"u1\", \"company_id\":\"c1\", \"role\":\"ADMIN\"}}"

	// non-admin (403)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req, _ := http.NewRequest("POST", "", parsePayload(models.UpsertRuleRequest{}))
	c.Request = req
	c.Request.Header.Set("payload", "{\"user\":{\"id\":\"u1\", \"role\":\"MANAGER\"}}")
	api.UpsertRules(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", genericResp.Message)

	// validation and cross-company approver (500 with row details)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT EXISTS.*").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	dbMock.ExpectRollback()

	batch := models.UpsertRuleRequest{Data: []models.ApprovalRule{
		{ApproverId: mockApproverId, ApprovalType: "OPTIONAL"},
		{ApproverId: mockApproverId, ApprovalType: "NECESSARY", Sequential: true},
		{ApproverId: mockApproverId, ApprovalType: "COMPULSORY"},
	}}

	req, _ = http.NewRequest("POST", "", parsePayload(batch))
	c.Request = req
	c.Request.Header.Set("payload", adminHeader)
	api.UpsertRules(c)

	var rowResp struct {
		Message string            `json:"message"`
		Details []models.RowError `json:"details"`
	}

	err = json.NewDecoder(w.Body).Decode(&rowResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 3, len(rowResp.Details))
	assert.Equal(t, "invalid-approval-type", rowResp.Details[0].Message)
	assert.Equal(t, "missing-order-index", rowResp.Details[1].Message)
	assert.Equal(t, "approver-not-found", rowResp.Details[2].Message)

	// (200)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT EXISTS.*").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	dbMock.ExpectExec("INSERT INTO approval_rules.*").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	batch = models.UpsertRuleRequest{Data: []models.ApprovalRule{
		{ApproverId: mockApproverId, ApprovalType: "necessary", Sequential: true, OrderIndex: 2},
	}}

	req, _ = http.NewRequest("POST", "", parsePayload(batch))
	c.Request = req
	c.Request.Header.Set("payload", adminHeader)
	api.UpsertRules(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", genericResp.Message)
}

func TestDeleteRules(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	var genericResp GenericResponse

	mockRuleId := "63eb226a-d612-412b-b8d4-a3e17b7d2226"
	adminHeader := "{\"user\":{\"id\":\"u1\", \"company_id\":\"c1\", \"role\":\"ADMIN\"}}"

	// count mismatch means an id was missing or already inactive (404)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE approval_rules SET active = false.*").
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectRollback()

	req, _ := http.NewRequest("DELETE", "", parsePayload(models.BatchDeleteRequest{Data: []string{mockRuleId}}))
	c.Request = req
	c.Request.Header.Set("payload", adminHeader)
	api.DeleteRules(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "expected-1-deactivated-but-got-0", genericResp.Message)

	// rows stay around for snapshots, only the active flag drops (200)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE approval_rules SET active = false.*").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	req, _ = http.NewRequest("DELETE", "", parsePayload(models.BatchDeleteRequest{Data: []string{mockRuleId}}))
	c.Request = req
	c.Request.Header.Set("payload", adminHeader)
	api.DeleteRules(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", genericResp.Message)
}
