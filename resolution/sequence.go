package resolution

import "sort"

// Chain is the cursor over an expense's sequential approvals, ordered by
// order_index. The cursor sits on the first approval still awaiting a
// decision; everything ordered after it is not yet reachable.
type Chain struct {
	ordered []Approval
	cursor  int
}

// NewChain builds the chain for one expense's approval set. Non-sequential
// approvals are ignored; they are actionable from submission.
func NewChain(approvals []Approval) *Chain {
	var seq []Approval
	for _, a := range approvals {
		if a.Sequential {
			seq = append(seq, a)
		}
	}

	sort.SliceStable(seq, func(i, j int) bool {
		return seq[i].OrderIndex < seq[j].OrderIndex
	})

	c := &Chain{ordered: seq}
	for c.cursor < len(c.ordered) && c.ordered[c.cursor].Status != Pending {
		c.cursor++
	}

	return c
}

// Next returns the lowest-ordered approval still awaiting a decision.
func (c *Chain) Next() (Approval, bool) {
	if c.cursor >= len(c.ordered) {
		return Approval{}, false
	}
	return c.ordered[c.cursor], true
}

// Reachable reports whether the chain has advanced far enough for the given
// approval: every approval with a lower order_index is terminal. Approvals
// sharing an order_index do not block each other.
func (c *Chain) Reachable(id string) bool {
	for _, a := range c.ordered {
		if a.Id != id {
			continue
		}
		next, ok := c.Next()
		if !ok {
			// whole chain terminal, nothing blocks
			return true
		}
		return a.OrderIndex <= next.OrderIndex
	}
	return false
}

// Actionable reports whether the given approval may receive a decision right
// now: it must exist, still be pending, and if sequential be reachable in
// its chain.
func Actionable(approvals []Approval, id string) bool {
	for _, a := range approvals {
		if a.Id != id {
			continue
		}
		if a.Status != Pending {
			return false
		}
		if !a.Sequential {
			return true
		}
		return NewChain(approvals).Reachable(id)
	}
	return false
}
