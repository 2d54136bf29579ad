package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapscan/internal"
)

func TestIncrementDecrementInverse(t *testing.T) {
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		count int
		qty   int
	}{
		{name: "pending", count: 0, qty: 3},
		{name: "partial", count: 1, qty: 3},
		{name: "last unit", count: 2, qty: 3},
		{name: "single", count: 0, qty: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list := internal.NewList(internal.ContextPick)
			list.Items = []internal.LineItem{{ID: "X", Quantity: tc.qty, ScannedCount: tc.count, Weight: 1}}
			before := list.Items[0]

			Increment(list, 0, now)
			Decrement(list, 0)

			assert.Equal(t, before, list.Items[0])
			assert.Empty(t, list.Completed)
		})
	}
}

func TestIncrementTransitions(t *testing.T) {
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	list := internal.NewList(internal.ContextReceive)
	list.Items = []internal.LineItem{{ID: "X", Quantity: 2}}

	tr := Increment(list, 0, now)
	assert.Equal(t, internal.StatePending, tr.Before)
	assert.Equal(t, internal.StatePartial, tr.After)
	assert.Equal(t, 1, tr.Remaining)
	assert.False(t, tr.Completed)

	tr = Increment(list, 0, now)
	assert.True(t, tr.Completed)
	assert.Equal(t, internal.StateComplete, tr.After)
	assert.Equal(t, []string{"X"}, list.Completed)

	later := now.Add(time.Minute)
	tr = Increment(list, 0, later)
	assert.True(t, tr.OverScan)
	assert.False(t, tr.Completed)
	require.NotNil(t, list.Items[0].CompletedAt)
	assert.Equal(t, now, *list.Items[0].CompletedAt, "first completion time is kept")
	assert.Equal(t, []string{"X"}, list.Completed)

	Decrement(list, 0)
	assert.True(t, list.Items[0].Complete, "3 -> 2 of 2 stays complete")
	Decrement(list, 0)
	assert.False(t, list.Items[0].Complete)
	assert.Empty(t, list.Completed)
	Decrement(list, 0)
	Decrement(list, 0)
	assert.Equal(t, 0, list.Items[0].ScannedCount, "never negative")
}

func TestAccumulateAndReduce(t *testing.T) {
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	list := internal.NewList(internal.ContextReturn)
	tmpl := internal.LineItem{ID: "R", Condition: internal.ConditionOpened, Weight: 1}

	idx, created := Accumulate(list, tmpl, 2, now)
	assert.True(t, created)
	assert.Equal(t, 0, idx)
	idx, created = Accumulate(list, tmpl, 0, now)
	assert.False(t, created)
	assert.Equal(t, 3, list.Items[idx].Quantity, "non-positive quantities count as one")

	tmpl.Condition = internal.ConditionDamaged
	_, created = Accumulate(list, tmpl, 1, now)
	assert.True(t, created)
	assert.Len(t, list.Items, 2)

	assert.False(t, Reduce(list, 0, 1))
	assert.True(t, Reduce(list, 0, 2))
	require.Len(t, list.Items, 1)
	assert.Equal(t, internal.ConditionDamaged, list.Items[0].Condition)
}

func TestCompute(t *testing.T) {
	items := []internal.LineItem{
		{ID: "A", Quantity: 3, ScannedCount: 3, Weight: 0.1},
		{ID: "B", Quantity: 2, ScannedCount: 1, Weight: 0.2},
		{ID: "C", Quantity: 1, ScannedCount: 0, Weight: 5},
	}
	s := Compute(items, internal.ContextPick)
	assert.Equal(t, 3, s.TotalItems)
	assert.Equal(t, 1, s.ProcessedItems)
	assert.Equal(t, 6, s.TotalQuantity)
	assert.Equal(t, 4, s.ProcessedQuantity)
	assert.Equal(t, 67, s.Percentage)
	assert.Equal(t, 5.7, s.TotalWeight)
	assert.Equal(t, 0.5, s.ProcessedWeight)

	ret := Compute([]internal.LineItem{{ID: "R", Quantity: 4, Weight: 0.25}}, internal.ContextReturn)
	assert.Equal(t, 4, ret.ProcessedQuantity)
	assert.Equal(t, 1.0, ret.ProcessedWeight)
	assert.Equal(t, 100, ret.Percentage)
}

func TestPercentageBounds(t *testing.T) {
	assert.Equal(t, 0, Compute(nil, internal.ContextPick).Percentage)
	assert.Equal(t, 0, Compute([]internal.LineItem{{ID: "Z", Quantity: 0}}, internal.ContextReceive).Percentage)

	over := Compute([]internal.LineItem{{ID: "O", Quantity: 1, ScannedCount: 5}}, internal.ContextReceive)
	assert.Equal(t, 100, over.Percentage)

	for total := 1; total <= 7; total++ {
		for done := 0; done <= total; done++ {
			p := Compute([]internal.LineItem{{ID: "P", Quantity: total, ScannedCount: done}}, internal.ContextPick).Percentage
			assert.GreaterOrEqual(t, p, 0)
			assert.LessOrEqual(t, p, 100)
		}
	}
}
