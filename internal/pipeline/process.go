package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"snapscan/internal"
	"snapscan/internal/logging"
	"snapscan/internal/storage"
	"snapscan/internal/util"
)

// SlipProcessor parses fetched inbox messages into delivery-slip items.
type SlipProcessor struct {
	db  *storage.DB
	log *logging.Logger
}

func NewSlipProcessor(db *storage.DB, log *logging.Logger) *SlipProcessor {
	return &SlipProcessor{db: db, log: logging.OrDiscard(log).WithComponent("slips")}
}

type ProcessResult struct {
	SlipID   int
	Status   string
	Items    int
	Strategy string
}

// ProcessPending parses fetched slips, oldest first. An empty provider
// processes every provider.
func (p *SlipProcessor) ProcessPending(ctx context.Context, limit int, provider string) ([]ProcessResult, error) {
	pending, err := p.db.ListSlipsByStatus(SlipStatusFetched, limit)
	if err != nil {
		return nil, err
	}
	var out []ProcessResult
	for _, slip := range pending {
		if provider != "" && slip.Provider != provider {
			continue
		}
		res, err := p.ProcessSlip(ctx, slip)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (p *SlipProcessor) ProcessSlip(ctx context.Context, slip internal.SlipRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(slip.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	content, err := ExtractSlip(ctx, raw, p.log)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := DetectSlip(util.FirstNonEmpty(content.Subject, slip.Subject), content.Text, content.HTML, content.AttachmentNames)
	if !detect.IsSlip || len(content.Items) == 0 {
		if err := p.db.UpdateSlipStatus(slip.ID, SlipStatusSkipped); err != nil {
			return ProcessResult{}, err
		}
		p.log.Info("slip skipped", "slip", slip.ID, "score", detect.Score, "items", len(content.Items), "ms", time.Since(start).Milliseconds())
		return ProcessResult{SlipID: slip.ID, Status: SlipStatusSkipped}, nil
	}

	blob, err := json.Marshal(internal.ToRecords(internal.ContextReceive, content.Items))
	if err != nil {
		return ProcessResult{}, err
	}
	if err := p.db.SetSlipItems(slip.ID, string(blob), SlipStatusParsed); err != nil {
		return ProcessResult{}, err
	}
	p.log.Info("slip parsed", "slip", slip.ID, "strategy", content.Strategy, "items", len(content.Items), "ms", time.Since(start).Milliseconds())
	return ProcessResult{SlipID: slip.ID, Status: SlipStatusParsed, Items: len(content.Items), Strategy: content.Strategy}, nil
}
