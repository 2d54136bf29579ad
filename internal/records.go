package internal

import "time"

// ItemRecord is the JSON shape of a line item as persisted and exported.
// Counter and flag names depend on the list context.
type ItemRecord struct {
	ID            string     `json:"id"`
	Description   string     `json:"description"`
	Quantity      int        `json:"quantity"`
	Weight        float64    `json:"weight"`
	PickedCount   *int       `json:"pickedCount,omitempty"`
	Picked        *bool      `json:"picked,omitempty"`
	PickedAt      *time.Time `json:"pickedAt,omitempty"`
	ReceivedCount *int       `json:"receivedCount,omitempty"`
	Received      *bool      `json:"received,omitempty"`
	ReceivedAt    *time.Time `json:"receivedAt,omitempty"`
	PalletID      string     `json:"palletId,omitempty"`
	Condition     Condition  `json:"condition,omitempty"`
	ReturnedAt    *time.Time `json:"returnedAt,omitempty"`
}

func ToRecord(ctx ListContext, it LineItem) ItemRecord {
	rec := ItemRecord{ID: it.ID, Description: it.Description, Quantity: it.Quantity, Weight: it.Weight}
	count := it.ScannedCount
	complete := it.Complete
	switch ctx {
	case ContextPick:
		rec.PickedCount = &count
		rec.Picked = &complete
		rec.PickedAt = it.CompletedAt
	case ContextReceive:
		rec.ReceivedCount = &count
		rec.Received = &complete
		rec.ReceivedAt = it.CompletedAt
		rec.PalletID = it.PalletID
	case ContextReturn:
		rec.Condition = it.Condition
		rec.ReturnedAt = it.ReturnedAt
	}
	return rec
}

// FromRecord rebuilds a LineItem. The complete flag is derived from the
// counter rather than trusted from storage.
func FromRecord(ctx ListContext, rec ItemRecord) LineItem {
	it := LineItem{ID: rec.ID, Description: rec.Description, Quantity: rec.Quantity, Weight: rec.Weight}
	switch ctx {
	case ContextPick:
		if rec.PickedCount != nil {
			it.ScannedCount = *rec.PickedCount
		}
		it.CompletedAt = rec.PickedAt
	case ContextReceive:
		if rec.ReceivedCount != nil {
			it.ScannedCount = *rec.ReceivedCount
		}
		it.CompletedAt = rec.ReceivedAt
		it.PalletID = rec.PalletID
	case ContextReturn:
		it.Condition = rec.Condition
		if it.Condition == "" {
			it.Condition = ConditionUnopened
		}
		it.ReturnedAt = rec.ReturnedAt
		return it
	}
	if it.ScannedCount < 0 {
		it.ScannedCount = 0
	}
	it.Complete = it.ScannedCount >= it.Quantity
	if !it.Complete {
		it.CompletedAt = nil
	}
	return it
}

func ToRecords(ctx ListContext, items []LineItem) []ItemRecord {
	out := make([]ItemRecord, 0, len(items))
	for _, it := range items {
		out = append(out, ToRecord(ctx, it))
	}
	return out
}

func FromRecords(ctx ListContext, recs []ItemRecord) []LineItem {
	out := make([]LineItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(ctx, rec))
	}
	return out
}
