package models

import "time"

type ApprovalList struct {
	Approvals []Approval `json:"approvals"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
	Total     int32      `json:"total"`
}

// Approval is one approver's slot on a submitted expense. The originating
// rule's approval_type, sequential flag and order_index are copied onto the
// row at submission, so later rule edits never touch outstanding expenses.
type Approval struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Id           string    `json:"id"`
	ExpenseId    string    `json:"expense_id"`
	ApproverId   string    `json:"approver_id"`
	ApproverName string    `json:"approver_name,omitempty"`
	ApprovalType string    `json:"approval_type"`
	Sequential   bool      `json:"sequential"`
	OrderIndex   int       `json:"order_index"`
	Status       string    `json:"status"`
	Comments     string    `json:"comments,omitempty"`
	DecidedAt    string    `json:"decided_at,omitempty"`
	Actionable   bool      `json:"actionable"`

	// joined expense fields for approver queues
	ExpenseDescription   string  `json:"expense_description,omitempty"`
	ExpenseStatus        string  `json:"expense_status,omitempty"`
	AmountInBaseCurrency float64 `json:"amount_in_base_currency,omitempty"`
	SubmitterName        string  `json:"submitter_name,omitempty"`
}

type DecisionRequest struct {
	Comments string `json:"comments"`
}

type DecisionResponse struct {
	Message        string `json:"message"`
	ApprovalStatus string `json:"approval_status"`
	ExpenseStatus  string `json:"expense_status"`
}

type BulkDecision struct {
	ApprovalId string `json:"approval_id"`
	Decision   string `json:"decision"`
	Comments   string `json:"comments"`
}

type BulkDecisionRequest struct {
	Data []BulkDecision `json:"data"`
}

type ApprovalStatistics struct {
	TotalProcessed int32 `json:"total_processed"`
	Pending        int32 `json:"pending"`
	Approved       int32 `json:"approved"`
	Rejected       int32 `json:"rejected"`
}
