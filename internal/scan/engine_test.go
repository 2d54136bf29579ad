package scan

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapscan/internal"
	"snapscan/internal/store"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type harness struct {
	engine *Engine
	store  *store.Store
	kv     *store.MemoryKV
	events []internal.ScanEvent
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{kv: store.NewMemoryKV()}
	h.store = store.New(h.kv, nil)
	require.NoError(t, h.store.Load())

	seq := 0
	opts.Notifier = NotifierFunc(func(ev internal.ScanEvent) { h.events = append(h.events, ev) })
	opts.Now = func() time.Time { return testNow }
	opts.NewID = func() string {
		seq++
		return fmt.Sprintf("ev-%d", seq)
	}
	h.engine = NewEngine(h.store, opts)
	return h
}

func (h *harness) list(ctx internal.ListContext) *internal.List {
	return h.store.State().Lists[ctx]
}

func (h *harness) lastEvent(t *testing.T) internal.ScanEvent {
	t.Helper()
	require.NotEmpty(t, h.events)
	return h.events[len(h.events)-1]
}

func assertCompletionInvariant(t *testing.T, list *internal.List) {
	t.Helper()
	for _, it := range list.Items {
		assert.Equal(t, it.ScannedCount >= it.Quantity, it.Complete, "line %s", it.ID)
		assert.Equal(t, it.Complete, list.IsCompleted(it.ID), "tracking for %s", it.ID)
		if !it.Complete {
			assert.Nil(t, it.CompletedAt, "line %s", it.ID)
		}
	}
}

func TestPickScenarioA(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "100-AB1", Description: "Widget", Quantity: 3, Weight: 2.0},
	}))

	res, err := h.engine.HandleScan("100-AB1", internal.ContextPick, 1)
	require.NoError(t, err)
	assert.Equal(t, internal.StatePartial, res.Item.State())
	assert.Equal(t, 2, res.Remaining)
	assert.InDelta(t, 2.0, res.Summary.ProcessedWeight, 1e-9)
	assert.Equal(t, internal.FlashGreen, res.Feedback.Flash)
	assert.Equal(t, internal.ToneSuccess, res.Feedback.Tone)

	for i := 0; i < 2; i++ {
		res, err = h.engine.HandleScan("100-AB1", internal.ContextPick, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, internal.StateComplete, res.Item.State())
	assert.True(t, res.Item.Complete)
	require.NotNil(t, res.Item.CompletedAt)
	assert.Equal(t, testNow, *res.Item.CompletedAt)
	assert.InDelta(t, 6.0, res.Summary.ProcessedWeight, 1e-9)
	assert.Equal(t, 100, res.Summary.Percentage)
	assert.Equal(t, []string{"100-AB1"}, h.list(internal.ContextPick).Completed)
	assert.Equal(t, internal.FlashGreen, res.Feedback.Flash, "completion flashes green too")

	raw, err := h.kv.Get("pickedItems")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.JSONEq(t, `["100-AB1"]`, *raw)
}

func TestPickAlreadyCompleteIsRejected(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "100-AB1", Quantity: 1, Weight: 1},
	}))
	_, err := h.engine.HandleScan("100-AB1", internal.ContextPick, 1)
	require.NoError(t, err)

	res, err := h.engine.HandleScan("100-AB1", internal.ContextPick, 1)
	require.Error(t, err)
	assert.True(t, internal.IsKind(err, internal.ErrAlreadyComplete))
	assert.True(t, IsRejection(err))
	assert.Equal(t, internal.LevelWarning, res.Feedback.Level)
	assert.Equal(t, internal.FlashOrange, res.Feedback.Flash)
	assert.Equal(t, 1, h.list(internal.ContextPick).Items[0].ScannedCount)
	assert.Equal(t, string(internal.ErrAlreadyComplete), h.lastEvent(t).Outcome)
}

func TestPickOverScanWhenAllowed(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.UpdateSettings(func(s *internal.Settings) { s.AllowOverPicking = true }))
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "100-AB1", Quantity: 1, Weight: 1},
	}))
	_, err := h.engine.HandleScan("100-AB1", internal.ContextPick, 1)
	require.NoError(t, err)

	res, err := h.engine.HandleScan("100-AB1", internal.ContextPick, 1)
	require.NoError(t, err)
	assert.True(t, res.OverScan)
	assert.Equal(t, 2, res.Item.ScannedCount)
	assert.Equal(t, internal.LevelWarning, res.Feedback.Level)
	assert.Equal(t, 100, res.Summary.Percentage, "percentage is clamped")
	assert.Equal(t, OutcomeOverScan, h.lastEvent(t).Outcome)
	assertCompletionInvariant(t, h.list(internal.ContextPick))
}

func TestPickUnknownItemScenarioC(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.SetMapping(internal.BarcodeMapping{
		"7311234567890": internal.PlainEntry("200-XY9"),
		"7311234567891": internal.PlainEntry("300-QQ1"),
	}))
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "100-AB1", Quantity: 2, Weight: 1},
	}))
	before := *h.list(internal.ContextPick)
	beforeItems := append([]internal.LineItem(nil), before.Items...)

	res, err := h.engine.HandleScan("7311234567890", internal.ContextPick, 1)
	require.Error(t, err)
	assert.True(t, internal.IsKind(err, internal.ErrUnknownItem))
	assert.Equal(t, "200-XY9", res.ItemID)
	assert.Equal(t, internal.LevelError, res.Feedback.Level)
	assert.Equal(t, internal.FlashRed, res.Feedback.Flash)
	assert.Equal(t, internal.ToneError, res.Feedback.Tone)
	assert.NotEmpty(t, res.Suggestions, "near barcodes are suggested")

	after := h.list(internal.ContextPick)
	assert.Equal(t, beforeItems, after.Items)
	assert.Empty(t, after.Completed)
	assert.Nil(t, after.Last)
	assert.Equal(t, string(internal.ErrUnknownItem), h.lastEvent(t).Outcome)
}

func TestReceiveCreatesUnknownScenarioB(t *testing.T) {
	h := newHarness(t, Options{})

	res, err := h.engine.HandleScan("999999", internal.ContextReceive, 1)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, internal.LevelInfo, res.Feedback.Level)

	list := h.list(internal.ContextReceive)
	require.Len(t, list.Items, 1)
	it := list.Items[0]
	assert.Equal(t, "999999", it.ID)
	assert.Equal(t, internal.UnknownItemDescription, it.Description)
	assert.Equal(t, 1, it.Quantity)
	assert.Equal(t, 1, it.ScannedCount)
	assert.True(t, it.Complete)
	assert.InDelta(t, internal.DefaultItemWeight, it.Weight, 1e-9)
	assert.Equal(t, []string{"999999"}, list.Completed)
	assert.Equal(t, OutcomeCreated, h.lastEvent(t).Outcome)
}

func TestReceiveCreateBorrowsFromPickList(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "100-AB1", Description: "Widget", Quantity: 4, Weight: 2.5},
	}))

	res, err := h.engine.HandleScan("100-AB1", internal.ContextReceive, 1)
	require.NoError(t, err)
	assert.Equal(t, "Widget", res.Item.Description)
	assert.InDelta(t, 2.5, res.Item.Weight, 1e-9)
}

func TestReceiveAlreadyComplete(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.ReplaceList(internal.ContextReceive, []internal.LineItem{
		{ID: "LA12345", Quantity: 1, Weight: 3},
	}))
	_, err := h.engine.HandleScan("LA12345", internal.ContextReceive, 1)
	require.NoError(t, err)

	res, err := h.engine.HandleScan("LA12345", internal.ContextReceive, 1)
	require.Error(t, err)
	assert.True(t, internal.IsKind(err, internal.ErrAlreadyComplete))
	assert.Equal(t, internal.LevelError, res.Feedback.Level)
	assert.Equal(t, internal.FlashRed, res.Feedback.Flash)

	require.NoError(t, h.store.UpdateSettings(func(s *internal.Settings) { s.AllowOverScanning = true }))
	res, err = h.engine.HandleScan("LA12345", internal.ContextReceive, 1)
	require.NoError(t, err)
	assert.True(t, res.OverScan)
	assert.Equal(t, internal.LevelWarning, res.Feedback.Level)
	assert.Equal(t, 2, res.Item.ScannedCount)
}

func TestReturnsAccumulateByCondition(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.engine.HandleScan("100-AB1", internal.ContextReturn, 2)
	require.NoError(t, err)
	res, err := h.engine.HandleScan("100-AB1", internal.ContextReturn, 3)
	require.NoError(t, err)
	assert.False(t, res.Created)

	list := h.list(internal.ContextReturn)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 5, list.Items[0].Quantity)
	assert.Equal(t, internal.ConditionUnopened, list.Items[0].Condition)
	require.NotNil(t, list.Items[0].ReturnedAt)

	require.NoError(t, h.engine.SelectCondition(internal.ConditionDamaged))
	res, err = h.engine.HandleScan("100-AB1", internal.ContextReturn, 1)
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.Len(t, list.Items, 2)
	assert.Equal(t, internal.ConditionDamaged, list.Items[1].Condition)
	assert.Equal(t, 6, res.Summary.ProcessedQuantity)
	assert.Equal(t, 100, res.Summary.Percentage)
}

func TestReturnsNormalizeToken(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.SetMapping(internal.BarcodeMapping{
		"7311234567890": internal.DetailedEntry("200-XY9", "Hylleknekt"),
	}))

	res, err := h.engine.HandleScan(" 731-1234-567890 ", internal.ContextReturn, 1)
	require.NoError(t, err)
	assert.Equal(t, "200-XY9", res.ItemID)
	assert.Equal(t, "Hylleknekt", res.Item.Description)

	res, err = h.engine.HandleScan("A-1/2", internal.ContextReturn, 1)
	require.NoError(t, err)
	assert.Equal(t, "A12", res.ItemID)

	// pick and receive keep the token as scanned
	res, err = h.engine.HandleScan("A-1/2", internal.ContextReceive, 1)
	require.NoError(t, err)
	assert.Equal(t, "A-1/2", res.ItemID)
}

func TestUndoPickRestoresLine(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "100-AB1", Quantity: 1, Weight: 2},
	}))
	_, err := h.engine.HandleScan("100-AB1", internal.ContextPick, 1)
	require.NoError(t, err)

	res, err := h.engine.Undo(internal.ContextPick)
	require.NoError(t, err)
	assert.True(t, res.Undone)

	list := h.list(internal.ContextPick)
	assert.Equal(t, 0, list.Items[0].ScannedCount)
	assert.False(t, list.Items[0].Complete)
	assert.Nil(t, list.Items[0].CompletedAt)
	assert.Empty(t, list.Completed)
	assert.Nil(t, list.Last)

	res, err = h.engine.Undo(internal.ContextPick)
	require.NoError(t, err, "nothing to undo is not an error")
	assert.False(t, res.Undone)
	assert.Equal(t, internal.LevelWarning, res.Feedback.Level)
	assert.Equal(t, OutcomeNoop, h.lastEvent(t).Outcome)
}

func TestUndoHistoryDepth(t *testing.T) {
	policies := DefaultPolicies()
	policies[internal.ContextPick] = Policy{UndoDepth: 3}
	h := newHarness(t, Options{Policies: policies})
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "A", Quantity: 2, Weight: 1},
		{ID: "B", Quantity: 2, Weight: 1},
	}))
	for _, tok := range []string{"A", "B", "A"} {
		_, err := h.engine.HandleScan(tok, internal.ContextPick, 1)
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		res, err := h.engine.Undo(internal.ContextPick)
		require.NoError(t, err)
		assert.True(t, res.Undone, "undo %d", i)
	}
	list := h.list(internal.ContextPick)
	assert.Equal(t, 0, list.Items[0].ScannedCount)
	assert.Equal(t, 0, list.Items[1].ScannedCount)
	assert.Nil(t, list.Last)
}

func TestUndoSingleStepByDefault(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "A", Quantity: 5, Weight: 1},
	}))
	for i := 0; i < 2; i++ {
		_, err := h.engine.HandleScan("A", internal.ContextPick, 1)
		require.NoError(t, err)
	}
	_, err := h.engine.Undo(internal.ContextPick)
	require.NoError(t, err)
	res, err := h.engine.Undo(internal.ContextPick)
	require.NoError(t, err)
	assert.False(t, res.Undone)
	assert.Equal(t, 1, h.list(internal.ContextPick).Items[0].ScannedCount)
}

func TestUndoReceiveCreatedLineRemovesIt(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.engine.HandleScan("999999", internal.ContextReceive, 1)
	require.NoError(t, err)

	_, err = h.engine.Undo(internal.ContextReceive)
	require.NoError(t, err)
	list := h.list(internal.ContextReceive)
	assert.Empty(t, list.Items)
	assert.Empty(t, list.Completed)
}

func TestUndoReturnReducesQuantity(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.engine.HandleScan("R1", internal.ContextReturn, 2)
	require.NoError(t, err)
	_, err = h.engine.HandleScan("R1", internal.ContextReturn, 3)
	require.NoError(t, err)

	_, err = h.engine.Undo(internal.ContextReturn)
	require.NoError(t, err)
	list := h.list(internal.ContextReturn)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 2, list.Items[0].Quantity)

	_, err = h.engine.HandleScan("R2", internal.ContextReturn, 1)
	require.NoError(t, err)
	_, err = h.engine.Undo(internal.ContextReturn)
	require.NoError(t, err)
	assert.Len(t, list.Items, 1, "a created return line is dropped at zero")
}

func TestUndoAndClearNeedConfirmation(t *testing.T) {
	answer := false
	h := newHarness(t, Options{Confirmer: ConfirmFunc(func(string, internal.ListContext) bool { return answer })})
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "A", Quantity: 2, Weight: 1},
	}))
	_, err := h.engine.HandleScan("A", internal.ContextPick, 1)
	require.NoError(t, err)

	res, err := h.engine.Undo(internal.ContextPick)
	require.NoError(t, err)
	assert.False(t, res.Undone)
	assert.Equal(t, OutcomeCancelled, h.lastEvent(t).Outcome)
	assert.Equal(t, 1, h.list(internal.ContextPick).Items[0].ScannedCount)

	cleared, err := h.engine.Clear(internal.ContextPick)
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Len(t, h.list(internal.ContextPick).Items, 1)

	answer = true
	cleared, err = h.engine.Clear(internal.ContextPick)
	require.NoError(t, err)
	assert.True(t, cleared)
	list := h.list(internal.ContextPick)
	assert.Empty(t, list.Items)
	assert.Empty(t, list.Completed)
	assert.Nil(t, list.Last)
}

func TestReturnLineEditing(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.engine.HandleScan("R1", internal.ContextReturn, 2)
	require.NoError(t, err)
	require.NoError(t, h.engine.SelectCondition(internal.ConditionOpened))
	_, err = h.engine.HandleScan("R1", internal.ContextReturn, 1)
	require.NoError(t, err)
	_, err = h.engine.HandleScan("R2", internal.ContextReturn, 1)
	require.NoError(t, err)

	merged, err := h.engine.ChangeReturnCondition(1, internal.ConditionUnopened)
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Quantity)

	list := h.list(internal.ContextReturn)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "R1", list.Items[0].ID)
	assert.Equal(t, "R2", list.Items[1].ID)

	changed, err := h.engine.ChangeReturnCondition(1, internal.ConditionDamaged)
	require.NoError(t, err)
	assert.Equal(t, internal.ConditionDamaged, changed.Condition)
	assert.Nil(t, list.Last, "undo pointer to a moved line is dropped")

	removed, err := h.engine.RemoveReturnLine(0)
	require.NoError(t, err)
	assert.Equal(t, "R1", removed.ID)
	assert.Len(t, list.Items, 1)

	_, err = h.engine.RemoveReturnLine(5)
	assert.True(t, internal.IsKind(err, internal.ErrNotFound))
}

func TestStorageFailureKeepsMemoryState(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.ReplaceList(internal.ContextPick, []internal.LineItem{
		{ID: "A", Quantity: 2, Weight: 1},
	}))
	h.kv.FailWrites = errors.New("disk full")

	res, err := h.engine.HandleScan("A", internal.ContextPick, 1)
	require.Error(t, err)
	assert.True(t, internal.IsKind(err, internal.ErrStorageFailure))
	assert.False(t, IsRejection(err))
	assert.Equal(t, internal.LevelWarning, res.Feedback.Level)
	assert.Contains(t, res.Feedback.Message, "(not saved)")
	assert.Equal(t, 1, h.list(internal.ContextPick).Items[0].ScannedCount)
}

func TestEmptyTokenIsRejected(t *testing.T) {
	h := newHarness(t, Options{})
	res, err := h.engine.HandleScan("   ", internal.ContextReceive, 1)
	require.Error(t, err)
	assert.True(t, internal.IsKind(err, internal.ErrUnknownItem))
	assert.Equal(t, internal.LevelWarning, res.Feedback.Level)
	assert.Empty(t, h.list(internal.ContextReceive).Items)
}

func TestInvalidContext(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.engine.HandleScan("A", internal.ListContext("ship"), 1)
	assert.True(t, internal.IsKind(err, internal.ErrInvalidContext))
}

func TestEventsCarryIDs(t *testing.T) {
	h := newHarness(t, Options{})
	_, _ = h.engine.HandleScan("X", internal.ContextReceive, 1)
	_, _ = h.engine.HandleScan("X", internal.ContextReceive, 1)
	require.Len(t, h.events, 2)
	assert.Equal(t, "ev-1", h.events[0].ID)
	assert.Equal(t, "ev-2", h.events[1].ID)
	assert.Equal(t, ActionScan, h.events[1].Action)
	assert.Equal(t, internal.ContextReceive, h.events[1].Context)
}

func TestMonotonicWeightOverRandomScans(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.ReplaceList(internal.ContextReceive, []internal.LineItem{
		{ID: "A", Quantity: 3, Weight: 0.125},
		{ID: "B", Quantity: 2, Weight: 1.7},
		{ID: "C", Quantity: 4, Weight: 2.05},
	}))
	weights := map[string]float64{"A": 0.125, "B": 1.7, "C": 2.05}

	prev := 0.0
	for _, tok := range []string{"C", "A", "B", "C", "A", "C", "B", "A", "C"} {
		res, err := h.engine.HandleScan(tok, internal.ContextReceive, 1)
		require.NoError(t, err)
		assert.InDelta(t, prev+weights[tok], res.Summary.ProcessedWeight, 1e-6, tok)
		prev = res.Summary.ProcessedWeight
		assertCompletionInvariant(t, h.list(internal.ContextReceive))
	}
}
