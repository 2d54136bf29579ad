package scan

import (
	"time"

	"snapscan/internal"
)

// Transition describes one counter change on a pick or receive line.
type Transition struct {
	Before    internal.ItemState
	After     internal.ItemState
	Remaining int
	// Completed is set when the line entered the complete state on this step.
	Completed bool
	OverScan  bool
}

// Increment registers one unit on list.Items[idx]. Over-scan policy is the
// caller's decision; Increment always counts.
func Increment(list *internal.List, idx int, now time.Time) Transition {
	it := &list.Items[idx]
	tr := Transition{Before: it.State(), OverScan: it.ScannedCount >= it.Quantity}

	it.ScannedCount++
	if it.ScannedCount >= it.Quantity {
		if !it.Complete || it.CompletedAt == nil {
			t := now
			it.CompletedAt = &t
			tr.Completed = !it.Complete
		}
		it.Complete = true
		list.MarkCompleted(it.ID)
	}

	tr.After = it.State()
	tr.Remaining = it.Remaining()
	return tr
}

// Decrement reverses one unit. The count never drops below zero and a line
// falling under its quantity loses its completion mark.
func Decrement(list *internal.List, idx int) Transition {
	it := &list.Items[idx]
	tr := Transition{Before: it.State()}

	if it.ScannedCount > 0 {
		it.ScannedCount--
	}
	if it.ScannedCount < it.Quantity {
		it.Complete = false
		it.CompletedAt = nil
		list.UnmarkCompleted(it.ID)
	}

	tr.After = it.State()
	tr.Remaining = it.Remaining()
	return tr
}

// Accumulate adds qty units of a returned item. Lines are keyed by id and
// condition; a missing line is created from template. It returns the line
// index and whether the line was created.
func Accumulate(list *internal.List, template internal.LineItem, qty int, now time.Time) (int, bool) {
	if qty < 1 {
		qty = 1
	}
	if idx := list.FindReturn(template.ID, template.Condition); idx >= 0 {
		list.Items[idx].Quantity += qty
		return idx, false
	}

	t := now
	line := template
	line.Quantity = qty
	line.ScannedCount = 0
	line.Complete = false
	line.CompletedAt = nil
	line.ReturnedAt = &t
	list.Items = append(list.Items, line)
	return len(list.Items) - 1, true
}

// Reduce takes qty units off a return line and drops the line when nothing
// is left. It reports whether the line was removed.
func Reduce(list *internal.List, idx, qty int) bool {
	it := &list.Items[idx]
	it.Quantity -= qty
	if it.Quantity > 0 {
		return false
	}
	RemoveLine(list, idx)
	return true
}

func RemoveLine(list *internal.List, idx int) internal.LineItem {
	removed := list.Items[idx]
	list.Items = append(list.Items[:idx], list.Items[idx+1:]...)
	if list.Context != internal.ContextReturn && list.Find(removed.ID) < 0 {
		list.UnmarkCompleted(removed.ID)
	}
	return removed
}
