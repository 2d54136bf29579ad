package scan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"snapscan/internal"
	"snapscan/internal/barcode"
	"snapscan/internal/logging"
	"snapscan/internal/store"
	"snapscan/internal/util"
)

const (
	ActionScan  = "scan"
	ActionUndo  = "undo"
	ActionClear = "clear"

	OutcomeOK        = "ok"
	OutcomeCreated   = "created"
	OutcomeOverScan  = "overscan"
	OutcomeNoop      = "noop"
	OutcomeCancelled = "cancelled"
)

// Notifier receives every processed scan, undo and clear, accepted or not.
type Notifier interface {
	Notify(ev internal.ScanEvent)
}

type NotifierFunc func(ev internal.ScanEvent)

func (f NotifierFunc) Notify(ev internal.ScanEvent) { f(ev) }

// Notifiers fans an event out in order.
type Notifiers []Notifier

func (n Notifiers) Notify(ev internal.ScanEvent) {
	for _, x := range n {
		if x != nil {
			x.Notify(ev)
		}
	}
}

// Confirmer gates destructive actions (undo, clear).
type Confirmer interface {
	Confirm(action string, ctx internal.ListContext) bool
}

type ConfirmFunc func(action string, ctx internal.ListContext) bool

func (f ConfirmFunc) Confirm(action string, ctx internal.ListContext) bool { return f(action, ctx) }

// Policy holds per-context behavior that is not part of the persisted settings.
type Policy struct {
	// NormalizeToken strips non-alphanumerics from the scanned token before lookup.
	NormalizeToken bool
	// UndoDepth is how many scans can be undone in sequence. Values below 2
	// keep single-step undo.
	UndoDepth int
}

func DefaultPolicies() map[internal.ListContext]Policy {
	return map[internal.ListContext]Policy{
		internal.ContextPick:    {UndoDepth: 1},
		internal.ContextReceive: {UndoDepth: 1},
		internal.ContextReturn:  {NormalizeToken: true, UndoDepth: 1},
	}
}

type Options struct {
	Policies         map[internal.ListContext]Policy
	Notifier         Notifier
	Confirmer        Confirmer
	Logger           *logging.Logger
	Now              func() time.Time
	NewID            func() string
	SimilarThreshold float64
	SimilarLimit     int
}

// Engine reconciles scans against the lists held by a store. It is not safe
// for concurrent use; callers feed it from a single loop.
type Engine struct {
	store *store.Store
	opts  Options
	log   *logging.Logger

	resolver        *barcode.Resolver
	resolverVersion int
}

func NewEngine(st *store.Store, opts Options) *Engine {
	if opts.Policies == nil {
		opts.Policies = DefaultPolicies()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.SimilarThreshold <= 0 {
		opts.SimilarThreshold = barcode.DefaultSimilarThreshold
	}
	if opts.SimilarLimit <= 0 {
		opts.SimilarLimit = 5
	}
	return &Engine{
		store: st,
		opts:  opts,
		log:   logging.OrDiscard(opts.Logger).WithComponent("scan"),
	}
}

func (e *Engine) policy(ctx internal.ListContext) Policy {
	return e.opts.Policies[ctx]
}

// Resolver returns a resolver for the current mapping, rebuilt only when the
// mapping has changed since the last call.
func (e *Engine) Resolver() *barcode.Resolver {
	state := e.store.State()
	if e.resolver == nil || e.resolverVersion != state.MappingVersion() {
		e.resolver = barcode.NewResolver(state.Mapping)
		e.resolverVersion = state.MappingVersion()
	}
	return e.resolver
}

func (e *Engine) resolveID(r *barcode.Resolver, token string, pol Policy) string {
	if !pol.NormalizeToken {
		return r.Resolve(token)
	}
	normalized := util.NormalizeToken(token)
	if _, ok := r.Lookup(normalized); ok {
		return r.Resolve(normalized)
	}
	if _, ok := r.Lookup(token); ok {
		return r.Resolve(token)
	}
	if normalized == "" {
		return token
	}
	return normalized
}

// HandleScan registers one scanned token. Rejections come back as a
// *internal.CoreError together with a result carrying the feedback to show.
// A StorageFailure keeps the in-memory change.
func (e *Engine) HandleScan(token string, ctx internal.ListContext, quantity int) (internal.ScanResult, error) {
	token = strings.TrimSpace(token)
	res := internal.ScanResult{Context: ctx, Token: token}

	list, err := e.store.State().List(ctx)
	if err != nil {
		res.Feedback = errorFeedback(err.Error())
		return res, err
	}

	if token == "" {
		err := internal.NewError(internal.ErrUnknownItem, "empty barcode")
		res.Feedback = warningFeedback("Empty barcode ignored")
		res.Summary = Compute(list.Items, ctx)
		e.emit(ActionScan, res, quantity, string(internal.ErrUnknownItem))
		return res, err
	}

	r := e.Resolver()
	res.ItemID = e.resolveID(r, token, e.policy(ctx))
	now := e.opts.Now()

	var (
		rec     internal.ScanRecord
		outcome string
	)
	switch ctx {
	case internal.ContextPick:
		rec, outcome, err = e.scanPick(list, r, &res, now)
	case internal.ContextReceive:
		rec, outcome, err = e.scanReceive(list, r, &res, now)
	case internal.ContextReturn:
		rec, outcome, err = e.scanReturn(list, r, &res, quantity, now)
	}
	res.Summary = Compute(list.Items, ctx)

	if err != nil {
		e.log.Debug("scan rejected", "context", ctx, "token", token, "item", res.ItemID, "kind", internal.KindOf(err))
		e.emit(ActionScan, res, quantity, outcome)
		return res, err
	}

	e.pushLast(list, rec)
	if err := e.store.SaveList(ctx); err != nil {
		e.markUnsaved(&res, err)
		e.emit(ActionScan, res, quantity, outcome)
		return res, err
	}
	e.log.Debug("scan registered", "context", ctx, "token", token, "item", res.ItemID, "outcome", outcome)
	e.emit(ActionScan, res, quantity, outcome)
	return res, nil
}

func (e *Engine) scanPick(list *internal.List, r *barcode.Resolver, res *internal.ScanResult, now time.Time) (internal.ScanRecord, string, error) {
	idx := list.Find(res.ItemID)
	if idx < 0 {
		res.Suggestions = e.suggest(r, res.Token)
		res.Feedback = errorFeedback(fmt.Sprintf("%s is not on the pick list", res.ItemID))
		return internal.ScanRecord{}, string(internal.ErrUnknownItem), internal.NewError(internal.ErrUnknownItem, "%s not in pick list", res.ItemID)
	}

	it := list.Items[idx]
	if it.ScannedCount >= it.Quantity && !e.store.State().Settings.OverScanAllowed(internal.ContextPick) {
		res.Item = it
		res.Feedback = internal.Feedback{
			Level:   internal.LevelWarning,
			Flash:   internal.FlashOrange,
			Tone:    internal.ToneError,
			Message: fmt.Sprintf("%s is already picked (%d/%d)", it.ID, it.ScannedCount, it.Quantity),
		}
		return internal.ScanRecord{}, string(internal.ErrAlreadyComplete), internal.NewError(internal.ErrAlreadyComplete, "%s already picked", it.ID)
	}

	return e.increment(list, idx, res, now, "Picked")
}

func (e *Engine) scanReceive(list *internal.List, r *barcode.Resolver, res *internal.ScanResult, now time.Time) (internal.ScanRecord, string, error) {
	state := e.store.State()
	idx := list.Find(res.ItemID)
	if idx < 0 {
		line := internal.LineItem{
			ID:          res.ItemID,
			Description: e.describe(r, res.ItemID),
			Quantity:    1,
			Weight:      e.weight(r, res.ItemID),
		}
		list.Items = append(list.Items, line)
		idx = len(list.Items) - 1
		Increment(list, idx, now)

		res.Item = list.Items[idx]
		res.Created = true
		res.Remaining = 0
		res.Feedback = internal.Feedback{
			Level:   internal.LevelInfo,
			Flash:   internal.FlashGreen,
			Tone:    internal.ToneSuccess,
			Message: fmt.Sprintf("Added %s (%s) to the receive list", line.ID, line.Description),
		}
		return internal.ScanRecord{ID: line.ID, Timestamp: now, Quantity: 1, Created: true}, OutcomeCreated, nil
	}

	it := list.Items[idx]
	if it.ScannedCount >= it.Quantity && !state.Settings.OverScanAllowed(internal.ContextReceive) {
		res.Item = it
		res.Feedback = errorFeedback(fmt.Sprintf("%s is already received (%d/%d)", it.ID, it.ScannedCount, it.Quantity))
		return internal.ScanRecord{}, string(internal.ErrAlreadyComplete), internal.NewError(internal.ErrAlreadyComplete, "%s already received", it.ID)
	}

	return e.increment(list, idx, res, now, "Received")
}

func (e *Engine) increment(list *internal.List, idx int, res *internal.ScanResult, now time.Time, verb string) (internal.ScanRecord, string, error) {
	tr := Increment(list, idx, now)
	it := list.Items[idx]
	res.Item = it
	res.Remaining = tr.Remaining
	res.OverScan = tr.OverScan

	outcome := OutcomeOK
	switch {
	case tr.OverScan:
		outcome = OutcomeOverScan
		res.Feedback = internal.Feedback{
			Level:   internal.LevelWarning,
			Flash:   internal.FlashOrange,
			Tone:    internal.ToneSuccess,
			Message: fmt.Sprintf("Over-scan: %s %d/%d", it.ID, it.ScannedCount, it.Quantity),
		}
	case tr.After == internal.StateComplete:
		res.Feedback = successFeedback(fmt.Sprintf("%s %s, line complete (%d/%d)", verb, it.ID, it.ScannedCount, it.Quantity))
	default:
		res.Feedback = successFeedback(fmt.Sprintf("%s %s (%d/%d), %d remaining", verb, it.ID, it.ScannedCount, it.Quantity, tr.Remaining))
	}
	return internal.ScanRecord{ID: it.ID, Timestamp: now, Quantity: 1}, outcome, nil
}

func (e *Engine) scanReturn(list *internal.List, r *barcode.Resolver, res *internal.ScanResult, quantity int, now time.Time) (internal.ScanRecord, string, error) {
	if quantity < 1 {
		quantity = 1
	}
	cond := e.store.State().ReturnCondition
	template := internal.LineItem{
		ID:          res.ItemID,
		Description: e.describe(r, res.ItemID),
		Weight:      e.weight(r, res.ItemID),
		Condition:   cond,
	}
	idx, created := Accumulate(list, template, quantity, now)
	it := list.Items[idx]

	res.Item = it
	res.Created = created
	res.Feedback = successFeedback(fmt.Sprintf("Returned %d x %s (%s), line total %d", quantity, it.ID, it.Condition, it.Quantity))

	outcome := OutcomeOK
	if created {
		outcome = OutcomeCreated
	}
	return internal.ScanRecord{ID: it.ID, Timestamp: now, Condition: cond, Quantity: quantity, Created: created}, outcome, nil
}

// describe looks for a description in the pick list, then the barcode mapping.
func (e *Engine) describe(r *barcode.Resolver, id string) string {
	state := e.store.State()
	for _, ctx := range []internal.ListContext{internal.ContextPick, internal.ContextReceive} {
		list := state.Lists[ctx]
		if list == nil {
			continue
		}
		if idx := list.Find(id); idx >= 0 && strings.TrimSpace(list.Items[idx].Description) != "" {
			return list.Items[idx].Description
		}
	}
	if d, ok := r.Describe(id); ok {
		return d
	}
	return internal.UnknownItemDescription
}

func (e *Engine) weight(r *barcode.Resolver, id string) float64 {
	state := e.store.State()
	if w, ok := state.WeightFor(id); ok {
		return w
	}
	if w, ok := r.WeightFor(id); ok {
		return w
	}
	if pick := state.Lists[internal.ContextPick]; pick != nil {
		if idx := pick.Find(id); idx >= 0 && pick.Items[idx].Weight > 0 {
			return pick.Items[idx].Weight
		}
	}
	return state.Settings.FallbackWeight()
}

func (e *Engine) suggest(r *barcode.Resolver, token string) []internal.Suggestion {
	s := r.FindSimilar(token, e.opts.SimilarThreshold)
	if len(s) > e.opts.SimilarLimit {
		s = s[:e.opts.SimilarLimit]
	}
	return s
}

func (e *Engine) pushLast(list *internal.List, rec internal.ScanRecord) {
	r := rec
	list.Last = &r
	depth := e.policy(list.Context).UndoDepth
	if depth < 2 {
		list.History = nil
		return
	}
	list.History = append(list.History, rec)
	if len(list.History) > depth {
		list.History = list.History[len(list.History)-depth:]
	}
}

func (e *Engine) popLast(list *internal.List) {
	if len(list.History) > 0 {
		list.History = list.History[:len(list.History)-1]
	}
	if len(list.History) == 0 {
		list.Last = nil
		return
	}
	top := list.History[len(list.History)-1]
	list.Last = &top
}

// Undo reverses the most recent registered scan in ctx. With nothing to undo
// it is a warning, not an error.
func (e *Engine) Undo(ctx internal.ListContext) (internal.ScanResult, error) {
	res := internal.ScanResult{Context: ctx}
	list, err := e.store.State().List(ctx)
	if err != nil {
		res.Feedback = errorFeedback(err.Error())
		return res, err
	}
	res.Summary = Compute(list.Items, ctx)

	if list.Last == nil {
		res.Feedback = warningFeedback("Nothing to undo")
		e.emit(ActionUndo, res, 0, OutcomeNoop)
		return res, nil
	}
	if !e.confirm(ActionUndo, ctx) {
		res.Feedback = internal.Feedback{Level: internal.LevelInfo, Message: "Undo cancelled"}
		e.emit(ActionUndo, res, 0, OutcomeCancelled)
		return res, nil
	}

	last := *list.Last
	res.ItemID = last.ID
	res.Token = last.ID
	outcome := OutcomeOK

	switch ctx {
	case internal.ContextReturn:
		idx := list.FindReturn(last.ID, last.Condition)
		if idx < 0 {
			outcome = OutcomeNoop
			res.Feedback = warningFeedback(fmt.Sprintf("%s (%s) is no longer on the list", last.ID, last.Condition))
			break
		}
		qty := last.Quantity
		if qty < 1 {
			qty = 1
		}
		res.Item = list.Items[idx]
		if Reduce(list, idx, qty) {
			res.Item.Quantity = 0
			res.Feedback = successFeedback(fmt.Sprintf("Undid return of %s (%s), line removed", last.ID, last.Condition))
		} else {
			res.Item = list.Items[idx]
			res.Feedback = successFeedback(fmt.Sprintf("Undid return of %d x %s (%s)", qty, last.ID, last.Condition))
		}
	default:
		idx := list.Find(last.ID)
		if idx < 0 {
			outcome = OutcomeNoop
			res.Feedback = warningFeedback(fmt.Sprintf("%s is no longer on the list", last.ID))
			break
		}
		tr := Decrement(list, idx)
		res.Item = list.Items[idx]
		res.Remaining = tr.Remaining
		if last.Created && list.Items[idx].ScannedCount == 0 {
			RemoveLine(list, idx)
			res.Feedback = successFeedback(fmt.Sprintf("Undid %s, line removed", last.ID))
		} else {
			it := list.Items[idx]
			res.Feedback = successFeedback(fmt.Sprintf("Undid %s (%d/%d)", it.ID, it.ScannedCount, it.Quantity))
		}
	}

	res.Undone = outcome == OutcomeOK
	e.popLast(list)
	res.Summary = Compute(list.Items, ctx)

	if err := e.store.SaveList(ctx); err != nil {
		e.markUnsaved(&res, err)
		e.emit(ActionUndo, res, 0, outcome)
		return res, err
	}
	e.emit(ActionUndo, res, 0, outcome)
	return res, nil
}

// Clear empties a list after confirmation. It reports whether it did.
func (e *Engine) Clear(ctx internal.ListContext) (bool, error) {
	res := internal.ScanResult{Context: ctx}
	if _, err := e.store.State().List(ctx); err != nil {
		return false, err
	}
	if !e.confirm(ActionClear, ctx) {
		res.Feedback = internal.Feedback{Level: internal.LevelInfo, Message: "Clear cancelled"}
		e.emit(ActionClear, res, 0, OutcomeCancelled)
		return false, nil
	}

	err := e.store.ClearList(ctx)
	res.Feedback = internal.Feedback{Level: internal.LevelInfo, Message: fmt.Sprintf("%s list cleared", ctx.Title())}
	if err != nil {
		e.markUnsaved(&res, err)
	}
	e.emit(ActionClear, res, 0, OutcomeOK)
	return true, err
}

func (e *Engine) SelectCondition(c internal.Condition) error {
	return e.store.SetReturnCondition(c)
}

// RemoveReturnLine drops a return line by position.
func (e *Engine) RemoveReturnLine(index int) (internal.LineItem, error) {
	list, err := e.returnLine(index)
	if err != nil {
		return internal.LineItem{}, err
	}
	removed := RemoveLine(list, index)
	clearLastIf(list, removed.ID, removed.Condition)
	return removed, e.store.SaveList(internal.ContextReturn)
}

// ChangeReturnCondition moves a return line to another condition, merging it
// into an existing line for the same item and condition.
func (e *Engine) ChangeReturnCondition(index int, c internal.Condition) (internal.LineItem, error) {
	list, err := e.returnLine(index)
	if err != nil {
		return internal.LineItem{}, err
	}
	line := list.Items[index]
	if line.Condition == c {
		return line, nil
	}
	clearLastIf(list, line.ID, line.Condition)

	if target := list.FindReturn(line.ID, c); target >= 0 {
		list.Items[target].Quantity += line.Quantity
		merged := list.Items[target]
		RemoveLine(list, index)
		return merged, e.store.SaveList(internal.ContextReturn)
	}

	list.Items[index].Condition = c
	return list.Items[index], e.store.SaveList(internal.ContextReturn)
}

func (e *Engine) returnLine(index int) (*internal.List, error) {
	list, err := e.store.State().List(internal.ContextReturn)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(list.Items) {
		return nil, internal.NewError(internal.ErrNotFound, "no return line at index %d", index)
	}
	return list, nil
}

func clearLastIf(list *internal.List, id string, c internal.Condition) {
	if list.Last != nil && list.Last.ID == id && list.Last.Condition == c {
		list.Last = nil
	}
}

func (e *Engine) Summary(ctx internal.ListContext) (internal.Summary, error) {
	list, err := e.store.State().List(ctx)
	if err != nil {
		return internal.Summary{}, err
	}
	return Compute(list.Items, ctx), nil
}

func (e *Engine) confirm(action string, ctx internal.ListContext) bool {
	if e.opts.Confirmer == nil {
		return true
	}
	return e.opts.Confirmer.Confirm(action, ctx)
}

func (e *Engine) markUnsaved(res *internal.ScanResult, err error) {
	e.log.Warn("state kept in memory only", "context", res.Context, "error", err)
	res.Feedback.Message += " (not saved)"
	if res.Feedback.Level != internal.LevelError {
		res.Feedback.Level = internal.LevelWarning
	}
}

func (e *Engine) emit(action string, res internal.ScanResult, quantity int, outcome string) {
	if e.opts.Notifier == nil {
		return
	}
	if quantity < 1 || res.Context != internal.ContextReturn {
		quantity = 1
	}
	e.opts.Notifier.Notify(internal.ScanEvent{
		ID:        e.opts.NewID(),
		Context:   res.Context,
		Action:    action,
		Token:     res.Token,
		ItemID:    res.ItemID,
		Quantity:  quantity,
		Outcome:   outcome,
		Feedback:  res.Feedback,
		Summary:   res.Summary,
		Timestamp: e.opts.Now(),
	})
}

func successFeedback(msg string) internal.Feedback {
	return internal.Feedback{Level: internal.LevelSuccess, Flash: internal.FlashGreen, Tone: internal.ToneSuccess, Message: msg}
}

func warningFeedback(msg string) internal.Feedback {
	return internal.Feedback{Level: internal.LevelWarning, Flash: internal.FlashOrange, Message: msg}
}

func errorFeedback(msg string) internal.Feedback {
	return internal.Feedback{Level: internal.LevelError, Flash: internal.FlashRed, Tone: internal.ToneError, Message: msg}
}

// IsRejection reports whether err is a scan rejection rather than a storage
// or setup problem.
func IsRejection(err error) bool {
	var ce *internal.CoreError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == internal.ErrUnknownItem || ce.Kind == internal.ErrAlreadyComplete
}
