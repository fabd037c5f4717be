package resolution

import (
	"testing"

	"gotest.tools/assert"
)

func TestChainOrdering(t *testing.T) {
	set := []Approval{
		{Id: "a3", Sequential: true, OrderIndex: 3, Status: Pending},
		{Id: "a1", Sequential: true, OrderIndex: 1, Status: Pending},
		{Id: "a2", Sequential: true, OrderIndex: 2, Status: Pending},
	}

	chain := NewChain(set)
	next, ok := chain.Next()
	assert.Equal(t, true, ok)
	assert.Equal(t, "a1", next.Id)

	// later links are blocked until earlier ones are terminal
	assert.Equal(t, true, Actionable(set, "a1"))
	assert.Equal(t, false, Actionable(set, "a2"))
	assert.Equal(t, false, Actionable(set, "a3"))
}

func TestChainAdvances(t *testing.T) {
	set := []Approval{
		{Id: "a1", Sequential: true, OrderIndex: 1, Status: Approved},
		{Id: "a2", Sequential: true, OrderIndex: 2, Status: Rejected},
		{Id: "a3", Sequential: true, OrderIndex: 3, Status: Pending},
	}

	// rejection is terminal too, chain keeps moving
	chain := NewChain(set)
	next, ok := chain.Next()
	assert.Equal(t, true, ok)
	assert.Equal(t, "a3", next.Id)
	assert.Equal(t, true, Actionable(set, "a3"))
}

func TestChainSharedOrderIndex(t *testing.T) {
	set := []Approval{
		{Id: "a1", Sequential: true, OrderIndex: 1, Status: Approved},
		{Id: "b1", Sequential: true, OrderIndex: 2, Status: Pending},
		{Id: "b2", Sequential: true, OrderIndex: 2, Status: Pending},
		{Id: "c1", Sequential: true, OrderIndex: 3, Status: Pending},
	}

	// equal order indexes do not block each other
	assert.Equal(t, true, Actionable(set, "b1"))
	assert.Equal(t, true, Actionable(set, "b2"))
	assert.Equal(t, false, Actionable(set, "c1"))
}

func TestParallelAlwaysActionable(t *testing.T) {
	set := []Approval{
		{Id: "seq1", Sequential: true, OrderIndex: 1, Status: Pending},
		{Id: "seq2", Sequential: true, OrderIndex: 2, Status: Pending},
		{Id: "par", Sequential: false, Status: Pending},
	}

	// parallel singletons are never gated by the chain
	assert.Equal(t, true, Actionable(set, "par"))
	assert.Equal(t, true, Actionable(set, "seq1"))
	assert.Equal(t, false, Actionable(set, "seq2"))
}

func TestTerminalNotActionable(t *testing.T) {
	set := []Approval{
		{Id: "done", Sequential: false, Status: Approved},
		{Id: "gone", Sequential: false, Status: Rejected},
	}

	assert.Equal(t, false, Actionable(set, "done"))
	assert.Equal(t, false, Actionable(set, "gone"))
	assert.Equal(t, false, Actionable(set, "missing"))
}

func TestChainExhausted(t *testing.T) {
	set := []Approval{
		{Id: "a1", Sequential: true, OrderIndex: 1, Status: Approved},
	}

	chain := NewChain(set)
	_, ok := chain.Next()
	assert.Equal(t, false, ok)
	assert.Equal(t, false, Actionable(set, "a1"))
}
