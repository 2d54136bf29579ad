package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"snapscan/internal"
	"snapscan/internal/logging"
)

// KV is the persistence the store writes through. storage.DB implements it.
type KV interface {
	Get(key string) (*string, error)
	Put(key, value string) error
	Delete(key string) error
}

const (
	KeyBarcodeMapping  = "barcodeMapping"
	KeySettings        = "settings"
	KeyItemWeights     = "itemWeights"
	KeyReturnCondition = "returnCondition"
	KeyPickHistory     = "pickScanHistory"
)

type listKeys struct {
	items     string
	completed string
	last      string
}

var keysByContext = map[internal.ListContext]listKeys{
	internal.ContextPick:    {items: "pickListItems", completed: "pickedItems", last: "lastPickedItem"},
	internal.ContextReceive: {items: "receiveListItems", completed: "receivedItems", last: "lastReceivedItem"},
	internal.ContextReturn:  {items: "returnListItems", last: "lastReturnedItem"},
}

// AllKeys lists every key the store writes.
func AllKeys() []string {
	out := []string{KeyBarcodeMapping, KeySettings, KeyItemWeights, KeyReturnCondition, KeyPickHistory}
	for _, ctx := range internal.Contexts {
		k := keysByContext[ctx]
		out = append(out, k.items, k.last)
		if k.completed != "" {
			out = append(out, k.completed)
		}
	}
	return out
}

type Store struct {
	kv    KV
	state *AppState
	log   *logging.Logger
	now   func() time.Time
}

func New(kv KV, log *logging.Logger) *Store {
	return &Store{kv: kv, state: NewAppState(), log: logging.OrDiscard(log).WithComponent("store"), now: time.Now}
}

func (s *Store) State() *AppState {
	return s.state
}

// Load replaces the in-memory state with what is persisted. Keys holding
// unreadable JSON are logged and left at their defaults.
func (s *Store) Load() error {
	state := NewAppState()

	for _, ctx := range internal.Contexts {
		k := keysByContext[ctx]
		list := state.Lists[ctx]

		var recs []internal.ItemRecord
		if err := s.read(k.items, &recs); err != nil {
			return err
		}
		list.Items = internal.FromRecords(ctx, recs)

		if k.completed != "" {
			if err := s.read(k.completed, &list.Completed); err != nil {
				return err
			}
			if list.Completed == nil {
				list.Completed = []string{}
			}
		}
		if err := s.read(k.last, &list.Last); err != nil {
			return err
		}
	}
	if err := s.read(KeyPickHistory, &state.Lists[internal.ContextPick].History); err != nil {
		return err
	}

	if err := s.read(KeyBarcodeMapping, &state.Mapping); err != nil {
		return err
	}
	if state.Mapping == nil {
		state.Mapping = internal.BarcodeMapping{}
	}
	if err := s.read(KeySettings, &state.Settings); err != nil {
		return err
	}
	if state.Settings.WeightUnit == "" {
		state.Settings.WeightUnit = internal.DefaultWeightUnit
	}
	if state.Settings.DefaultItemWeight <= 0 {
		state.Settings.DefaultItemWeight = internal.DefaultItemWeight
	}
	if err := s.read(KeyItemWeights, &state.ItemWeights); err != nil {
		return err
	}
	if state.ItemWeights == nil {
		state.ItemWeights = map[string]float64{}
	}
	var cond string
	if err := s.read(KeyReturnCondition, &cond); err != nil {
		return err
	}
	if c, err := internal.ParseCondition(cond); err == nil {
		state.ReturnCondition = c
	}

	state.mappingVersion = s.state.mappingVersion + 1
	s.state = state
	return nil
}

func (s *Store) read(key string, into any) error {
	raw, err := s.kv.Get(key)
	if err != nil {
		return internal.WrapError(internal.ErrStorageFailure, err, "read %s", key)
	}
	if raw == nil || *raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(*raw), into); err != nil {
		s.log.Warn("ignoring unreadable stored value", "key", key, "error", err)
	}
	return nil
}

func (s *Store) write(key string, value any) error {
	blob, err := json.Marshal(value)
	if err != nil {
		return internal.WrapError(internal.ErrStorageFailure, err, "encode %s", key)
	}
	if err := s.kv.Put(key, string(blob)); err != nil {
		s.log.Error("write failed, keeping in-memory state", "key", key, "error", err)
		return internal.WrapError(internal.ErrStorageFailure, err, "write %s", key)
	}
	return nil
}

type kvEntry struct {
	key   string
	value any
}

// writeAll attempts every entry and reports the first failure.
func (s *Store) writeAll(entries ...kvEntry) error {
	var first error
	for _, e := range entries {
		if err := s.write(e.key, e.value); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SaveList persists a list's items, completed tracking and undo pointer.
func (s *Store) SaveList(ctx internal.ListContext) error {
	list, err := s.state.List(ctx)
	if err != nil {
		return err
	}
	k := keysByContext[ctx]
	entries := []kvEntry{{k.items, internal.ToRecords(ctx, list.Items)}, {k.last, list.Last}}
	if k.completed != "" {
		entries = append(entries, kvEntry{k.completed, list.Completed})
	}
	if ctx == internal.ContextPick {
		entries = append(entries, kvEntry{KeyPickHistory, list.History})
	}
	return s.writeAll(entries...)
}

// ReplaceList swaps in a fully parsed list. Tracking and undo state are
// reset; lines that arrive already complete are entered as complete.
func (s *Store) ReplaceList(ctx internal.ListContext, items []internal.LineItem) error {
	list, err := s.state.List(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	normalized := make([]internal.LineItem, len(items))
	copy(normalized, items)
	list.Reset(normalized)

	if ctx != internal.ContextReturn {
		for i := range list.Items {
			it := &list.Items[i]
			if it.ScannedCount < 0 {
				it.ScannedCount = 0
			}
			it.Complete = it.ScannedCount >= it.Quantity
			if !it.Complete {
				it.CompletedAt = nil
				continue
			}
			if it.CompletedAt == nil {
				t := now
				it.CompletedAt = &t
			}
			list.MarkCompleted(it.ID)
		}
	}
	return s.SaveList(ctx)
}

func (s *Store) ClearList(ctx internal.ListContext) error {
	list, err := s.state.List(ctx)
	if err != nil {
		return err
	}
	list.Reset([]internal.LineItem{})
	return s.SaveList(ctx)
}

// Wipe drops every persisted key and resets the in-memory state.
func (s *Store) Wipe() error {
	var errs []error
	for _, key := range AllKeys() {
		if err := s.kv.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	version := s.state.mappingVersion
	s.state = NewAppState()
	s.state.mappingVersion = version + 1
	if err := errors.Join(errs...); err != nil {
		return internal.WrapError(internal.ErrStorageFailure, err, "wipe")
	}
	return nil
}

func (s *Store) SetMapping(mapping internal.BarcodeMapping) error {
	if mapping == nil {
		mapping = internal.BarcodeMapping{}
	}
	s.state.Mapping = mapping
	s.state.mappingVersion++
	return s.write(KeyBarcodeMapping, mapping)
}

// MergeMapping overwrites or adds the incoming entries and returns how many
// were applied.
func (s *Store) MergeMapping(incoming internal.BarcodeMapping) (int, error) {
	merged := s.state.Mapping.Clone()
	for code, entry := range incoming {
		merged[code] = entry
	}
	return len(incoming), s.SetMapping(merged)
}

// SetItemWeight records a per-item weight and applies it to every list
// holding that item. It returns the number of lines updated.
func (s *Store) SetItemWeight(id string, weight float64) (int, error) {
	if weight <= 0 {
		return 0, fmt.Errorf("weight must be positive, got %v", weight)
	}
	s.state.ItemWeights[id] = weight

	updated := 0
	var errs []error
	for _, ctx := range internal.Contexts {
		list := s.state.Lists[ctx]
		touched := false
		for i := range list.Items {
			if list.Items[i].ID == id {
				list.Items[i].Weight = weight
				updated++
				touched = true
			}
		}
		if touched {
			if err := s.SaveList(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := s.write(KeyItemWeights, s.state.ItemWeights); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return updated, errs[0]
	}
	return updated, nil
}

func (s *Store) UpdateSettings(fn func(*internal.Settings)) error {
	fn(&s.state.Settings)
	if s.state.Settings.DefaultItemWeight <= 0 {
		s.state.Settings.DefaultItemWeight = internal.DefaultItemWeight
	}
	if s.state.Settings.WeightUnit == "" {
		s.state.Settings.WeightUnit = internal.DefaultWeightUnit
	}
	return s.write(KeySettings, s.state.Settings)
}

func (s *Store) SetReturnCondition(c internal.Condition) error {
	s.state.ReturnCondition = c
	return s.write(KeyReturnCondition, string(c))
}
