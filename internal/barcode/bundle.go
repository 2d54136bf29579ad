package barcode

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"snapscan/internal"
)

// LoadBundled reads the default mapping from a file path or an http(s) URL.
// An empty source or a missing file yields an empty mapping.
func LoadBundled(ctx context.Context, client *Client, source string) (internal.BarcodeMapping, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return internal.BarcodeMapping{}, nil
	}

	var blob []byte
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		blob, err = client.Fetch(ctx, source)
	} else {
		blob, err = os.ReadFile(source)
		if os.IsNotExist(err) {
			return internal.BarcodeMapping{}, nil
		}
	}
	if err != nil {
		return nil, err
	}

	return DecodeMapping(blob)
}

// DecodeMapping parses a barcode mapping object. Anything but a JSON
// object is a malformed payload.
func DecodeMapping(blob []byte) (internal.BarcodeMapping, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(string(blob), "\ufeff"))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, internal.NewError(internal.ErrMalformedBarcodePayload, "barcode mapping must be a JSON object")
	}
	var mapping internal.BarcodeMapping
	if err := json.Unmarshal([]byte(trimmed), &mapping); err != nil {
		return nil, internal.WrapError(internal.ErrMalformedBarcodePayload, err, "invalid barcode mapping")
	}
	for code, entry := range mapping {
		if strings.TrimSpace(code) == "" || entry.ID == "" {
			delete(mapping, code)
		}
	}
	return mapping, nil
}

// MergeBundled returns user entries plus every bundled key the user mapping
// lacks. User entries always win. The count is the number of bundled keys
// added.
func MergeBundled(user, bundled internal.BarcodeMapping) (internal.BarcodeMapping, int) {
	out := user.Clone()
	added := 0
	for code, entry := range bundled {
		if _, ok := out[code]; ok {
			continue
		}
		out[code] = entry
		added++
	}
	return out, added
}

// Merge applies incoming entries over base, overwriting existing keys.
func Merge(base, incoming internal.BarcodeMapping) (internal.BarcodeMapping, int) {
	out := base.Clone()
	for code, entry := range incoming {
		out[code] = entry
	}
	return out, len(incoming)
}

func EncodeMapping(mapping internal.BarcodeMapping) ([]byte, error) {
	blob, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode barcode mapping: %w", err)
	}
	return blob, nil
}
