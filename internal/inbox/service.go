package inbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"snapscan/internal/config"
	"snapscan/internal/connectors"
	gmailconnector "snapscan/internal/connectors/gmail"
	imapconnector "snapscan/internal/connectors/imap"
	"snapscan/internal/logging"
	"snapscan/internal/pipeline"
	"snapscan/internal/storage"
)

// Service polls a mailbox for delivery slips. Each cycle fetches new mail,
// stores it, and parses what looks like a slip. With auto import on, the
// newest parsed slip replaces the receive list.
type Service struct {
	db       *storage.DB
	cfg      config.Config
	importer *pipeline.ImportService
	log      *logging.Logger

	connect func(ctx context.Context, provider string) (connectors.MailConnector, error)
}

type CycleResult struct {
	Provider string
	Fetched  int
	Stored   int
	Parsed   int
	Skipped  int
	Imported int
}

// NewService builds the poller. importer may be nil when auto import is off.
func NewService(db *storage.DB, cfg config.Config, importer *pipeline.ImportService, log *logging.Logger) *Service {
	s := &Service{db: db, cfg: cfg, importer: importer, log: logging.OrDiscard(log).WithComponent("inbox")}
	s.connect = func(ctx context.Context, provider string) (connectors.MailConnector, error) {
		return MakeConnector(ctx, s.cfg, provider)
	}
	return s
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.InboxIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.log.Error("inbox cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.InboxProvider))
	res := CycleResult{Provider: provider}

	conn, err := s.connect(ctx, provider)
	if err != nil {
		return res, err
	}

	fetch := connectors.NewFetchService(s.db, s.cfg.SlipRawDir, conn, s.log)
	fetched, err := fetch.FetchAndStore(ctx, s.cfg.InboxLabel, s.cfg.InboxFetchMax)
	if err != nil {
		return res, err
	}
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored

	processor := pipeline.NewSlipProcessor(s.db, s.log)
	results, err := processor.ProcessPending(ctx, s.cfg.InboxParseBatch, provider)
	if err != nil {
		return res, err
	}
	newest := 0
	for _, r := range results {
		if r.Status == pipeline.SlipStatusParsed {
			res.Parsed++
			newest = r.SlipID
		} else {
			res.Skipped++
		}
	}

	if s.cfg.InboxAutoImport && s.importer != nil && newest > 0 {
		imported, err := s.importer.ImportSlip(newest)
		if err != nil {
			return res, err
		}
		res.Imported = imported.Items
	}

	s.log.Info("inbox cycle done", "provider", provider, "fetched", res.Fetched, "stored", res.Stored, "parsed", res.Parsed, "skipped", res.Skipped, "imported", res.Imported)
	return res, nil
}

func MakeConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	case "dir":
		return connectors.NewDirConnector(cfg.InboxDir)
	default:
		return nil, fmt.Errorf("unsupported inbox provider: %s", provider)
	}
}
