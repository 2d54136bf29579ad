package internal

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

type ListContext string

const (
	ContextPick    ListContext = "pick"
	ContextReceive ListContext = "receive"
	ContextReturn  ListContext = "return"
)

var Contexts = []ListContext{ContextPick, ContextReceive, ContextReturn}

func ParseContext(value string) (ListContext, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pick", "plukk":
		return ContextPick, nil
	case "receive", "mottak":
		return ContextReceive, nil
	case "return", "returns", "retur":
		return ContextReturn, nil
	default:
		return "", NewError(ErrInvalidContext, "unknown list context %q", value)
	}
}

// Title is used in export headings and filenames.
func (c ListContext) Title() string {
	switch c {
	case ContextPick:
		return "Plukk"
	case ContextReceive:
		return "Mottak"
	case ContextReturn:
		return "Retur"
	default:
		return string(c)
	}
}

type Condition string

const (
	ConditionUnopened Condition = "uåpnet"
	ConditionOpened   Condition = "åpnet"
	ConditionDamaged  Condition = "skadet"
)

func ParseCondition(value string) (Condition, error) {
	v := norm.NFC.String(strings.ToLower(strings.TrimSpace(value)))
	switch v {
	case "", string(ConditionUnopened), "unopened":
		return ConditionUnopened, nil
	case string(ConditionOpened), "opened":
		return ConditionOpened, nil
	case string(ConditionDamaged), "damaged":
		return ConditionDamaged, nil
	default:
		return "", fmt.Errorf("unknown condition %q", value)
	}
}

const (
	UnknownItemDescription = "unknown item"
	UnknownDescription     = "unknown description"

	DefaultWeightUnit = "kg"
	DefaultItemWeight = 1.0
)

type ItemState string

const (
	StatePending  ItemState = "pending"
	StatePartial  ItemState = "partial"
	StateComplete ItemState = "complete"
)

// LineItem is one row of a list. For returns ScannedCount and Complete are
// unused and Quantity accumulates directly.
type LineItem struct {
	ID           string
	Description  string
	Quantity     int
	Weight       float64
	ScannedCount int
	Complete     bool
	CompletedAt  *time.Time
	Condition    Condition
	ReturnedAt   *time.Time
	PalletID     string
}

func (it LineItem) State() ItemState {
	switch {
	case it.ScannedCount >= it.Quantity:
		return StateComplete
	case it.ScannedCount > 0:
		return StatePartial
	default:
		return StatePending
	}
}

func (it LineItem) Remaining() int {
	if r := it.Quantity - it.ScannedCount; r > 0 {
		return r
	}
	return 0
}

// ScanRecord is an undo pointer. Condition and Quantity matter for returns;
// Created marks a line the scan itself added.
type ScanRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Condition Condition `json:"condition,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	Created   bool      `json:"created,omitempty"`
}

type List struct {
	Context   ListContext
	Items     []LineItem
	Completed []string
	Last      *ScanRecord
	History   []ScanRecord
}

func NewList(ctx ListContext) *List {
	return &List{Context: ctx, Items: []LineItem{}, Completed: []string{}}
}

func (l *List) Find(id string) int {
	for i := range l.Items {
		if l.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *List) FindReturn(id string, condition Condition) int {
	for i := range l.Items {
		if l.Items[i].ID == id && l.Items[i].Condition == condition {
			return i
		}
	}
	return -1
}

func (l *List) IsCompleted(id string) bool {
	for _, c := range l.Completed {
		if c == id {
			return true
		}
	}
	return false
}

func (l *List) MarkCompleted(id string) {
	if !l.IsCompleted(id) {
		l.Completed = append(l.Completed, id)
	}
}

func (l *List) UnmarkCompleted(id string) {
	out := l.Completed[:0]
	for _, c := range l.Completed {
		if c != id {
			out = append(out, c)
		}
	}
	l.Completed = out
}

func (l *List) Reset(items []LineItem) {
	l.Items = items
	l.Completed = []string{}
	l.Last = nil
	l.History = nil
}

type Settings struct {
	WeightUnit        string  `json:"weightUnit"`
	DefaultItemWeight float64 `json:"defaultItemWeight"`
	AllowOverScanning bool    `json:"allowOverScanning,omitempty"`
	AllowOverPicking  bool    `json:"allowOverPicking,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{WeightUnit: DefaultWeightUnit, DefaultItemWeight: DefaultItemWeight}
}

// OverScanAllowed reports the over-scan flag for a context. Returns always
// accumulate, so the flag has no meaning there.
func (s Settings) OverScanAllowed(ctx ListContext) bool {
	switch ctx {
	case ContextPick:
		return s.AllowOverPicking
	case ContextReceive:
		return s.AllowOverScanning
	default:
		return true
	}
}

func (s Settings) FallbackWeight() float64 {
	if s.DefaultItemWeight > 0 {
		return s.DefaultItemWeight
	}
	return DefaultItemWeight
}

type Summary struct {
	TotalItems        int     `json:"totalItems"`
	ProcessedItems    int     `json:"processedItems"`
	TotalQuantity     int     `json:"totalQuantity"`
	ProcessedQuantity int     `json:"processedQuantity"`
	Percentage        int     `json:"percentage"`
	TotalWeight       float64 `json:"totalWeight"`
	ProcessedWeight   float64 `json:"processedWeight"`
}

type FeedbackLevel string

const (
	LevelSuccess FeedbackLevel = "success"
	LevelInfo    FeedbackLevel = "info"
	LevelWarning FeedbackLevel = "warning"
	LevelError   FeedbackLevel = "error"
)

type Flash string

const (
	FlashNone   Flash = ""
	FlashGreen  Flash = "green"
	FlashOrange Flash = "orange"
	FlashRed    Flash = "red"
)

type Tone string

const (
	ToneNone    Tone = ""
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

type Feedback struct {
	Level   FeedbackLevel `json:"level"`
	Flash   Flash         `json:"flash,omitempty"`
	Tone    Tone          `json:"tone,omitempty"`
	Message string        `json:"message"`
}

type Suggestion struct {
	Barcode    string  `json:"barcode"`
	ItemID     string  `json:"itemId"`
	Similarity float64 `json:"similarity"`
}

type ScanResult struct {
	Context     ListContext
	Token       string
	ItemID      string
	Item        LineItem
	Remaining   int
	Created     bool
	OverScan    bool
	Undone      bool
	Summary     Summary
	Suggestions []Suggestion
	Feedback    Feedback
}

// ScanEvent is what notifiers see for every processed scan or undo,
// accepted or rejected.
type ScanEvent struct {
	ID        string      `json:"id"`
	Context   ListContext `json:"context"`
	Action    string      `json:"action"`
	Token     string      `json:"token,omitempty"`
	ItemID    string      `json:"itemId,omitempty"`
	Quantity  int         `json:"quantity,omitempty"`
	Outcome   string      `json:"outcome"`
	Feedback  Feedback    `json:"feedback"`
	Summary   Summary     `json:"summary"`
	Timestamp time.Time   `json:"timestamp"`
}

type ImportRun struct {
	TraceID   string
	Context   ListContext
	Source    string
	Format    string
	ItemCount int
	Warnings  []string
}

type ScanLogRow struct {
	ID        int
	EventID   string
	Context   string
	Action    string
	Token     string
	ItemID    string
	Quantity  int
	Outcome   string
	Message   string
	CreatedAt string
}

type SlipRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
	ItemsJSON  string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
