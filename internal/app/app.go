package app

import (
	"context"
	"time"

	"snapscan/internal"
	"snapscan/internal/barcode"
	"snapscan/internal/config"
	"snapscan/internal/logging"
	"snapscan/internal/pipeline"
	"snapscan/internal/scan"
	"snapscan/internal/storage"
	"snapscan/internal/store"
)

// App is the state both binaries start from.
type App struct {
	Config  config.Config
	DB      *storage.DB
	Store   *store.Store
	Bundled internal.BarcodeMapping
	Log     *logging.Logger
}

// Open opens the database, loads persisted state and re-adds bundled
// barcodes missing from the stored mapping. A bundled set that cannot be
// fetched is logged and skipped.
func Open(ctx context.Context, cfg config.Config, log *logging.Logger) (*App, error) {
	log = logging.OrDiscard(log)
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, internal.WrapError(internal.ErrStorageFailure, err, "open %s", cfg.DBPath)
	}
	a := &App{Config: cfg, DB: db, Store: store.New(db, log), Log: log}

	if err := a.Store.Load(); err != nil {
		db.Close()
		return nil, err
	}
	if err := a.seedSettings(); err != nil {
		db.Close()
		return nil, err
	}
	a.seedBundled(ctx)
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// seedSettings writes the configured weight defaults on first start.
func (a *App) seedSettings() error {
	stored, err := a.DB.Get(store.KeySettings)
	if err != nil || stored != nil {
		return err
	}
	return a.Store.UpdateSettings(func(s *internal.Settings) {
		s.WeightUnit = a.Config.WeightUnit
		s.DefaultItemWeight = a.Config.DefaultItemWeight
	})
}

func (a *App) seedBundled(ctx context.Context) {
	client := barcode.NewClient(time.Duration(a.Config.BarcodesTimeoutMs) * time.Millisecond)
	bundled, err := barcode.LoadBundled(ctx, client, a.Config.BarcodesSource)
	if err != nil {
		a.Log.Warn("bundled barcodes unavailable", "source", a.Config.BarcodesSource, "error", err)
		return
	}
	a.Bundled = bundled
	merged, added := barcode.MergeBundled(a.Store.State().Mapping, bundled)
	if added == 0 {
		return
	}
	if err := a.Store.SetMapping(merged); err != nil {
		a.Log.Warn("bundled barcodes not saved", "error", err)
		return
	}
	a.Log.Info("bundled barcodes added", "count", added)
}

// ResetMapping restores the bundled set only.
func (a *App) ResetMapping() error {
	return a.Store.SetMapping(a.Bundled.Clone())
}

// Policies maps the token normalization and undo depth settings onto the
// engine.
func (a *App) Policies() map[internal.ListContext]scan.Policy {
	out := map[internal.ListContext]scan.Policy{}
	for _, ctx := range internal.Contexts {
		p := scan.Policy{NormalizeToken: a.Config.NormalizesTokens(ctx), UndoDepth: 1}
		if ctx == internal.ContextPick && a.Config.PickUndoDepth > 1 {
			p.UndoDepth = a.Config.PickUndoDepth
		}
		out[ctx] = p
	}
	return out
}

// Engine builds a scan engine that records every event in the scan log and
// then in the extra notifiers.
func (a *App) Engine(confirm scan.Confirmer, extra ...scan.Notifier) *scan.Engine {
	notifiers := scan.Notifiers{store.NewScanLog(a.DB, a.Log)}
	notifiers = append(notifiers, extra...)
	return scan.NewEngine(a.Store, scan.Options{
		Policies:         a.Policies(),
		Notifier:         notifiers,
		Confirmer:        confirm,
		Logger:           a.Log,
		SimilarThreshold: a.Config.SimilarThreshold,
		SimilarLimit:     a.Config.SimilarLimit,
	})
}

func (a *App) Importer() *pipeline.ImportService {
	return pipeline.NewImportService(a.Store, a.DB, a.Config.ImportMatchCatalog, a.Log)
}
