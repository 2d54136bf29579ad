package store

import (
	"snapscan/internal"
	"snapscan/internal/logging"
)

type EventSink interface {
	InsertScanEvent(ev internal.ScanEvent) error
}

// ScanLog records every scan event. Failures are logged and never reach
// the scanning operator.
type ScanLog struct {
	sink EventSink
	log  *logging.Logger
}

func NewScanLog(sink EventSink, log *logging.Logger) *ScanLog {
	return &ScanLog{sink: sink, log: logging.OrDiscard(log).WithComponent("scanlog")}
}

func (l *ScanLog) Notify(ev internal.ScanEvent) {
	if err := l.sink.InsertScanEvent(ev); err != nil {
		l.log.Warn("scan event not recorded", "event", ev.ID, "error", err)
	}
}
