package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// BarcodeEntry is either a plain item id or a detailed {id, description,
// weight} record. Detailed reports which form was stored so it can be
// written back unchanged.
type BarcodeEntry struct {
	ID          string
	Description string
	Weight      *float64
	Detailed    bool
}

func PlainEntry(id string) BarcodeEntry {
	return BarcodeEntry{ID: id}
}

func DetailedEntry(id, description string) BarcodeEntry {
	return BarcodeEntry{ID: id, Description: description, Detailed: true}
}

type detailedEntryJSON struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
}

func (e *BarcodeEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("empty barcode entry")
	}
	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = PlainEntry(strings.TrimSpace(id))
		return nil
	case '{':
		var d detailedEntryJSON
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		*e = BarcodeEntry{ID: strings.TrimSpace(d.ID), Description: strings.TrimSpace(d.Description), Weight: d.Weight, Detailed: true}
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		// Numeric ids show up in hand-edited files.
		*e = PlainEntry(string(data))
		return nil
	default:
		return fmt.Errorf("barcode entry must be a string or an object, got %s", string(data))
	}
}

func (e BarcodeEntry) MarshalJSON() ([]byte, error) {
	if !e.Detailed {
		return json.Marshal(e.ID)
	}
	return json.Marshal(detailedEntryJSON{ID: e.ID, Description: e.Description, Weight: e.Weight})
}

type BarcodeMapping map[string]BarcodeEntry

func (m BarcodeMapping) Clone() BarcodeMapping {
	out := make(BarcodeMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
