package models

import "time"

type RuleList struct {
	Rules []ApprovalRule `json:"rules"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int32          `json:"total"`
}

// ApprovalRule is configuration: it designates one approver for a category
// (or the whole company when CategoryId is empty). Editing or deactivating
// a rule only affects later submissions; submitted expenses keep the rule
// snapshot they were created with.
type ApprovalRule struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Id           string    `json:"id"`
	CompanyId    string    `json:"company_id"`
	CategoryId   string    `json:"category_id,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	ApproverId   string    `json:"approver_id"`
	ApproverName string    `json:"approver_name"`
	ApprovalType string    `json:"approval_type"`
	Sequential   bool      `json:"sequential"`
	OrderIndex   int       `json:"order_index"`
	Active       bool      `json:"active"`
}

type UpsertRuleRequest struct {
	Data []ApprovalRule `json:"data"`
}
