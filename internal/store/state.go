package store

import (
	"snapscan/internal"
)

// AppState is everything a scanning session works on. It is owned by a
// Store and handed to the engine explicitly.
type AppState struct {
	Lists           map[internal.ListContext]*internal.List
	Mapping         internal.BarcodeMapping
	Settings        internal.Settings
	ItemWeights     map[string]float64
	ReturnCondition internal.Condition

	mappingVersion int
}

func NewAppState() *AppState {
	lists := map[internal.ListContext]*internal.List{}
	for _, ctx := range internal.Contexts {
		lists[ctx] = internal.NewList(ctx)
	}
	return &AppState{
		Lists:           lists,
		Mapping:         internal.BarcodeMapping{},
		Settings:        internal.DefaultSettings(),
		ItemWeights:     map[string]float64{},
		ReturnCondition: internal.ConditionUnopened,
	}
}

func (s *AppState) List(ctx internal.ListContext) (*internal.List, error) {
	list, ok := s.Lists[ctx]
	if !ok || list == nil {
		return nil, internal.NewError(internal.ErrInvalidContext, "no list for context %q", ctx)
	}
	return list, nil
}

// MappingVersion changes whenever the barcode mapping is replaced or merged.
func (s *AppState) MappingVersion() int {
	return s.mappingVersion
}

// WeightFor returns the override weight for an item id, if any.
func (s *AppState) WeightFor(id string) (float64, bool) {
	w, ok := s.ItemWeights[id]
	if !ok || w <= 0 {
		return 0, false
	}
	return w, true
}
