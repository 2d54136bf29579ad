package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"snapscan/internal"
	"snapscan/internal/barcode"
	"snapscan/internal/logging"
	"snapscan/internal/storage"
	"snapscan/internal/store"
)

const (
	SlipStatusFetched  = "fetched"
	SlipStatusParsed   = "parsed"
	SlipStatusSkipped  = "skipped"
	SlipStatusImported = "imported"
)

// ImportService turns documents into lists. A parse that yields nothing
// leaves the active list untouched.
type ImportService struct {
	store        *store.Store
	db           *storage.DB
	log          *logging.Logger
	matchCatalog bool
	newID        func() string
}

func NewImportService(st *store.Store, db *storage.DB, matchCatalog bool, log *logging.Logger) *ImportService {
	return &ImportService{
		store:        st,
		db:           db,
		log:          logging.OrDiscard(log).WithComponent("import"),
		matchCatalog: matchCatalog,
		newID:        uuid.NewString,
	}
}

type ImportResult struct {
	TraceID      string
	Context      internal.ListContext
	Source       string
	Format       string
	Strategy     string
	Items        int
	MappingAdded int
	Warnings     []string
}

func (s *ImportService) ImportFile(ctx context.Context, listCtx internal.ListContext, path string) (ImportResult, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, err
	}
	return s.ImportBytes(ctx, listCtx, filepath.Base(path), blob)
}

// ImportBytes parses content by name and format, then replaces the list.
// A JSON object payload is merged into the barcode mapping instead.
func (s *ImportService) ImportBytes(ctx context.Context, listCtx internal.ListContext, name string, content []byte) (ImportResult, error) {
	if _, err := s.store.State().List(listCtx); err != nil {
		return ImportResult{}, err
	}

	parsed, err := s.parse(ctx, listCtx, name, content)
	if err != nil {
		s.log.Warn("import failed", "source", name, "context", listCtx, "error", err)
		return ImportResult{Context: listCtx, Source: name, Format: parsed.Format}, err
	}

	if parsed.Mapping != nil {
		added, err := s.store.MergeMapping(parsed.Mapping)
		res := ImportResult{TraceID: s.newID(), Context: listCtx, Source: name, Format: parsed.Format, Strategy: parsed.Strategy, MappingAdded: added}
		return res, err
	}
	return s.ImportItems(listCtx, name, parsed)
}

func (s *ImportService) parse(ctx context.Context, listCtx internal.ListContext, name string, content []byte) (Parsed, error) {
	switch DetectFormat(name, content) {
	case FormatJSON:
		return ParseJSON(listCtx, content)
	case FormatPDF:
		return ParsePDF(ctx, content, DefaultStrategies(), s.log)
	case FormatXLSX:
		return ParseXLSX(content)
	case FormatHTML:
		return ParseHTMLTables(string(content)), nil
	case FormatEML:
		slip, err := ExtractSlip(ctx, content, s.log)
		if err != nil {
			return Parsed{Format: FormatEML}, internal.WrapError(internal.ErrInvalidImportFormat, err, "unreadable e-mail")
		}
		return Parsed{Format: FormatEML, Strategy: slip.Strategy, Items: slip.Items, Warnings: slip.Warnings}, nil
	default:
		return ParseCSV(string(content))
	}
}

// ImportItems finishes an import: ids are matched against the catalog when
// enabled, weights and descriptions are resolved, and the list is replaced.
func (s *ImportService) ImportItems(listCtx internal.ListContext, source string, parsed Parsed) (ImportResult, error) {
	res := ImportResult{
		TraceID:  s.newID(),
		Context:  listCtx,
		Source:   source,
		Format:   parsed.Format,
		Strategy: parsed.Strategy,
		Warnings: parsed.Warnings,
	}
	if len(parsed.Items) == 0 {
		return res, internal.NewError(internal.ErrInvalidImportFormat, "0 items found in %s", source)
	}

	raw := parsed.Items
	if parsed.Strategy == (ReceiptStrategy{}).Name() && listCtx != internal.ContextReceive {
		// picked counts on a delivery slip only mean something for receiving
		raw = make([]internal.LineItem, len(parsed.Items))
		copy(raw, parsed.Items)
		for i := range raw {
			raw[i].ScannedCount = 0
		}
	}
	items := s.prepare(listCtx, raw)
	res.Items = len(items)

	if err := s.store.ReplaceList(listCtx, items); err != nil {
		return res, err
	}
	if s.db != nil {
		run := internal.ImportRun{TraceID: res.TraceID, Context: listCtx, Source: source, Format: res.Format, ItemCount: res.Items, Warnings: res.Warnings}
		if err := s.db.InsertImportRun(run); err != nil {
			s.log.Warn("import run not recorded", "trace", res.TraceID, "error", err)
		}
	}
	s.log.Info("list imported", "trace", res.TraceID, "context", listCtx, "source", source, "format", res.Format, "strategy", res.Strategy, "items", res.Items)
	return res, nil
}

func (s *ImportService) prepare(listCtx internal.ListContext, raw []internal.LineItem) []internal.LineItem {
	state := s.store.State()
	r := barcode.NewResolver(state.Mapping)

	items := make([]internal.LineItem, 0, len(raw))
	for _, it := range raw {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" {
			continue
		}
		if s.matchCatalog {
			if id, ok := r.MatchProductID(it.ID); ok {
				it.ID = id
			}
		}
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		if strings.TrimSpace(it.Description) == "" {
			if d, ok := r.Describe(it.ID); ok {
				it.Description = d
			} else {
				it.Description = internal.UnknownDescription
			}
		}
		it.Weight = resolveWeight(state, r, it)

		switch listCtx {
		case internal.ContextReturn:
			if it.Condition == "" {
				it.Condition = internal.ConditionUnopened
			}
			it.ScannedCount = 0
			it.Complete = false
			it.CompletedAt = nil
		default:
			it.Condition = ""
			it.ReturnedAt = nil
			if listCtx == internal.ContextPick {
				it.PalletID = ""
			}
		}
		items = append(items, it)
	}
	return mergeDuplicates(listCtx, items)
}

// resolveWeight prefers a stored override, then the document's own weight,
// then the barcode mapping, then the configured default.
func resolveWeight(state *store.AppState, r *barcode.Resolver, it internal.LineItem) float64 {
	if w, ok := state.WeightFor(it.ID); ok {
		return w
	}
	if it.Weight > 0 {
		return it.Weight
	}
	if w, ok := r.WeightFor(it.ID); ok {
		return w
	}
	return state.Settings.FallbackWeight()
}

// ImportBarcodes merges a barcode file: JSON mapping or records, or a GTIN
// catalog sheet.
func (s *ImportService) ImportBarcodes(name string, content []byte) (int, error) {
	var mapping internal.BarcodeMapping
	var err error
	switch DetectFormat(name, content) {
	case FormatJSON:
		mapping, err = ParseBarcodeJSON(content)
	case FormatCSV, FormatXLSX:
		mapping, err = ParseGTINCatalog(name, content)
	default:
		err = internal.NewError(internal.ErrMalformedBarcodePayload, "unsupported barcode file %s", name)
	}
	if err != nil {
		return 0, err
	}
	return s.store.MergeMapping(mapping)
}

// ImportSlip replaces the receive list with a parsed delivery slip.
func (s *ImportService) ImportSlip(slipID int) (ImportResult, error) {
	if s.db == nil {
		return ImportResult{}, fmt.Errorf("slip import needs a database")
	}
	slip, err := s.db.MustSlipByID(slipID)
	if err != nil {
		return ImportResult{}, err
	}
	if slip.Status != SlipStatusParsed && slip.Status != SlipStatusImported {
		return ImportResult{}, internal.NewError(internal.ErrInvalidImportFormat, "slip %d is %s, not parsed", slipID, slip.Status)
	}

	var recs []internal.ItemRecord
	if err := json.Unmarshal([]byte(slip.ItemsJSON), &recs); err != nil {
		return ImportResult{}, internal.WrapError(internal.ErrInvalidImportFormat, err, "slip %d items", slipID)
	}
	parsed := Parsed{Format: FormatEML, Strategy: "slip", Items: internal.FromRecords(internal.ContextReceive, recs)}

	res, err := s.ImportItems(internal.ContextReceive, fmt.Sprintf("slip:%d %s", slip.ID, slip.Subject), parsed)
	if err != nil {
		return res, err
	}
	if err := s.db.UpdateSlipStatus(slip.ID, SlipStatusImported); err != nil {
		return res, err
	}
	return res, nil
}
