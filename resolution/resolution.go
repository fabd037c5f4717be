// Package resolution decides the aggregate state of an expense from its
// frozen set of per-approver decisions. It is pure: callers load the
// approval rows, the package computes, callers persist.
package resolution

// Status of a single approval or of the whole expense.
type Status string

const (
	Pending  Status = "PENDING"
	Approved Status = "APPROVED"
	Rejected Status = "REJECTED"
)

type Type string

const (
	Compulsory Type = "COMPULSORY"
	Necessary  Type = "NECESSARY"
)

// Approval is the engine's view of one approver slot, tagged with the
// attributes snapshotted from its originating rule.
type Approval struct {
	Id         string
	ApproverId string
	Type       Type
	Sequential bool
	OrderIndex int
	Status     Status
}

// necessaryThreshold is the share of necessary approvals that must approve,
// in percent.
const necessaryThreshold = 60

// Resolve recomputes the aggregate expense status after a decision.
//
// A single rejected compulsory approval rejects the expense outright. While
// any compulsory approval is undecided the expense stays pending and the
// necessary group is not consulted. Once the compulsory gate is cleared the
// necessary group is resolved early: approved as soon as the threshold is
// reached (pending rejections cannot take it back), rejected as soon as the
// threshold is mathematically unreachable.
//
// An empty set resolves to pending; that is a configuration gap the caller
// surfaces, never an auto-approve.
func Resolve(approvals []Approval) Status {
	if len(approvals) == 0 {
		return Pending
	}

	var compulsoryPending int
	var necessaryTotal, necessaryApproved, necessaryPending int

	for _, a := range approvals {
		switch a.Type {
		case Compulsory:
			switch a.Status {
			case Rejected:
				return Rejected
			case Pending:
				compulsoryPending++
			}
		case Necessary:
			necessaryTotal++
			switch a.Status {
			case Approved:
				necessaryApproved++
			case Pending:
				necessaryPending++
			}
		}
	}

	if compulsoryPending > 0 {
		return Pending
	}

	if necessaryTotal > 0 {
		// integer arithmetic keeps exactly-60% on the approved side
		if necessaryApproved*100 >= necessaryTotal*necessaryThreshold {
			return Approved
		}
		if (necessaryApproved+necessaryPending)*100 < necessaryTotal*necessaryThreshold {
			return Rejected
		}
		return Pending
	}

	return Approved
}

// ConfigurationGap reports whether the expense has no approvals at all, so
// it would stay pending forever without administrator action.
func ConfigurationGap(approvals []Approval) bool {
	return len(approvals) == 0
}

// Terminal reports whether a status accepts no further decisions.
func Terminal(s Status) bool {
	return s == Approved || s == Rejected
}
