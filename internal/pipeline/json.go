package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"snapscan/internal"
	"snapscan/internal/barcode"
	"snapscan/internal/util"
)

var (
	idKeys          = []string{"id", "varenr", "varenummer"}
	descriptionKeys = []string{"description", "beskrivelse"}
	quantityKeys    = []string{"quantity", "antall"}
	weightKeys      = []string{"weight", "vekt"}
	barcodeKeys     = []string{"barcode", "gtin", "strekkode"}
)

// ParseJSON reads a list payload: a bare array of items or {items: [...]}.
// Any other object is taken as a barcode mapping.
func ParseJSON(ctx internal.ListContext, blob []byte) (Parsed, error) {
	blob = bytes.TrimSpace(bytes.TrimPrefix(blob, []byte("\ufeff")))
	out := Parsed{Format: FormatJSON}

	var payload any
	if err := json.Unmarshal(blob, &payload); err != nil {
		return out, internal.WrapError(internal.ErrInvalidImportFormat, err, "invalid JSON")
	}

	switch v := payload.(type) {
	case []any:
		out.Strategy = "array"
		out.Items, out.Warnings = itemsFromJSON(ctx, v)
	case map[string]any:
		if arr, ok := v["items"].([]any); ok {
			out.Strategy = "items"
			out.Items, out.Warnings = itemsFromJSON(ctx, arr)
			return out, nil
		}
		mapping, err := barcode.DecodeMapping(blob)
		if err != nil {
			return out, err
		}
		out.Strategy = "mapping"
		out.Mapping = mapping
	default:
		return out, internal.NewError(internal.ErrInvalidImportFormat, "expected a JSON array or object")
	}
	return out, nil
}

// ParseBarcodeJSON reads a barcode mapping import. An object is a mapping;
// an array holds {barcode, id, description} records. Anything else is
// rejected without merging.
func ParseBarcodeJSON(blob []byte) (internal.BarcodeMapping, error) {
	blob = bytes.TrimSpace(bytes.TrimPrefix(blob, []byte("\ufeff")))
	if bytes.HasPrefix(blob, []byte("{")) {
		return barcode.DecodeMapping(blob)
	}
	if !bytes.HasPrefix(blob, []byte("[")) {
		return nil, internal.NewError(internal.ErrMalformedBarcodePayload, "barcode import must be a JSON object or array")
	}

	var rows []map[string]any
	if err := json.Unmarshal(blob, &rows); err != nil {
		return nil, internal.WrapError(internal.ErrMalformedBarcodePayload, err, "barcode array must hold objects")
	}
	mapping := internal.BarcodeMapping{}
	for _, row := range rows {
		code := lookupString(row, barcodeKeys)
		id := lookupString(row, idKeys)
		if code == "" || id == "" {
			continue
		}
		desc := lookupString(row, descriptionKeys)
		if desc == "" {
			mapping[code] = internal.PlainEntry(id)
			continue
		}
		mapping[code] = internal.DetailedEntry(id, desc)
	}
	if len(mapping) == 0 {
		return nil, internal.NewError(internal.ErrMalformedBarcodePayload, "no barcode records found")
	}
	return mapping, nil
}

func itemsFromJSON(ctx internal.ListContext, rows []any) ([]internal.LineItem, []string) {
	var items []internal.LineItem
	var warnings []string
	for i, raw := range rows {
		obj, ok := raw.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("row %d: not an object", i+1))
			continue
		}
		id := lookupString(obj, idKeys)
		if id == "" {
			warnings = append(warnings, fmt.Sprintf("row %d: missing id", i+1))
			continue
		}
		item := internal.LineItem{
			ID:          id,
			Description: util.NormalizeSpaces(lookupString(obj, descriptionKeys)),
			Quantity:    1,
		}
		if n, ok := lookupNumber(obj, quantityKeys); ok && n >= 1 {
			item.Quantity = int(n)
		}
		if w, ok := lookupNumber(obj, weightKeys); ok && w > 0 {
			item.Weight = w
		}

		// Exports carry their own counters; re-importing one resumes the session.
		switch ctx {
		case internal.ContextPick:
			if n, ok := lookupNumber(obj, []string{"pickedCount"}); ok && n > 0 {
				item.ScannedCount = int(n)
			}
			item.CompletedAt = lookupTime(obj, "pickedAt")
		case internal.ContextReceive:
			if n, ok := lookupNumber(obj, []string{"receivedCount"}); ok && n > 0 {
				item.ScannedCount = int(n)
			}
			item.CompletedAt = lookupTime(obj, "receivedAt")
			item.PalletID = lookupString(obj, []string{"palletId"})
		case internal.ContextReturn:
			item.Condition = internal.ConditionUnopened
			if c, err := internal.ParseCondition(lookupString(obj, []string{"condition", "tilstand"})); err == nil {
				item.Condition = c
			}
			item.ReturnedAt = lookupTime(obj, "returnedAt")
		}
		items = append(items, item)
	}
	return items, warnings
}

func lookupValue(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	// keys are matched case-insensitively as a fallback
	for k, v := range obj {
		for _, want := range keys {
			if v != nil && strings.EqualFold(k, want) {
				return v, true
			}
		}
	}
	return nil, false
}

func lookupString(obj map[string]any, keys []string) string {
	v, ok := lookupValue(obj, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func lookupNumber(obj map[string]any, keys []string) (float64, bool) {
	v, ok := lookupValue(obj, keys)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		return util.ParseDecimal(t)
	}
	return 0, false
}

func lookupTime(obj map[string]any, key string) *time.Time {
	s, ok := obj[key].(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
