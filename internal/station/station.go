package station

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"snapscan/internal"
	"snapscan/internal/logging"
	"snapscan/internal/scan"
)

const (
	SourceKeyboard = "keyboard"
	SourceCamera   = "camera"
)

// Request is one decoded barcode waiting for the scan loop. An empty
// Context means the station's active context.
type Request struct {
	Token    string
	Context  internal.ListContext
	Quantity int
	Source   string
}

// Scanner is the part of the scan engine the station drives.
type Scanner interface {
	HandleScan(token string, ctx internal.ListContext, quantity int) (internal.ScanResult, error)
}

// Station owns the only goroutine that touches the scanner. Readers feed it
// through Submit.
type Station struct {
	scanner  Scanner
	context  internal.ListContext
	dedupe   *Dedupe
	requests chan Request
	log      *logging.Logger
}

// New builds a station. Camera requests for the same code are dropped
// inside window; keyboard scanners repeat codes on purpose and are not.
func New(scanner Scanner, ctx internal.ListContext, window time.Duration, log *logging.Logger) *Station {
	return &Station{
		scanner:  scanner,
		context:  ctx,
		dedupe:   NewDedupe(window),
		requests: make(chan Request, 64),
		log:      logging.OrDiscard(log).WithComponent("station"),
	}
}

func (s *Station) Context() internal.ListContext { return s.context }

// Submit queues a request. It blocks while the queue is full and gives up
// when ctx ends.
func (s *Station) Submit(ctx context.Context, req Request) bool {
	select {
	case s.requests <- req:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run processes queued requests one at a time until ctx ends.
func (s *Station) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.requests:
			s.handle(req)
		}
	}
}

func (s *Station) handle(req Request) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return
	}
	listCtx := req.Context
	if listCtx == "" {
		listCtx = s.context
	}
	if req.Source == SourceCamera && !s.dedupe.Allow(string(listCtx)+"|"+token) {
		s.log.Debug("duplicate camera scan dropped", "context", listCtx, "token", token)
		return
	}
	qty := req.Quantity
	if qty < 1 {
		qty = 1
	}

	res, err := s.scanner.HandleScan(token, listCtx, qty)
	switch {
	case err == nil:
		s.log.Info("scan", "context", listCtx, "token", token, "item", res.ItemID, "source", req.Source, "processed", res.Summary.ProcessedItems, "total", res.Summary.TotalItems)
	case scan.IsRejection(err):
		s.log.Info("scan rejected", "context", listCtx, "token", token, "source", req.Source, "error", err)
	default:
		s.log.Error("scan failed", "context", listCtx, "token", token, "source", req.Source, "error", err)
	}
}

// ReadLines submits every non-empty line of r as a keyboard scan. HID
// scanners type the code and finish with Enter.
func (s *Station) ReadLines(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !s.Submit(ctx, Request{Token: line, Source: SourceKeyboard}) {
			return ctx.Err()
		}
	}
	return sc.Err()
}
