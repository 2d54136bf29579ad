package connectors

import (
	"context"

	"snapscan/internal/logging"
	"snapscan/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *SlipStore
	log       *logging.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawDir string, connector MailConnector, log *logging.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewSlipStore(db, rawDir),
		log:       logging.OrDiscard(log).WithComponent("fetch"),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{Fetched: len(messages), Stored: stored}, err
		}
		s.log.Debug("slip stored", "slip", row.ID, "provider", row.Provider, "subject", row.Subject, "status", row.Status)
		stored++
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
