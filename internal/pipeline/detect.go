package pipeline

import (
	"path/filepath"
	"strings"
)

type DetectResult struct {
	IsSlip bool
	Score  float64
	Reason string
}

var detectKeywords = []string{"følgeseddel", "pakkseddel", "leveranse", "levering", "ordrebekreftelse", "ordrenummer", "varenr", "mottak", "kvik"}

func isSlipAttachment(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".csv", ".txt", ".xlsx", ".xls":
		return true
	}
	return false
}

// DetectSlip scores an inbox message as a delivery slip from keywords in
// subject and body plus list-like attachments or tables.
func DetectSlip(subject, text, html string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	for _, name := range attachmentNames {
		if isSlipAttachment(name) {
			score += 0.25
			break
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	isSlip := score >= 0.45
	reason := "rules_negative"
	if isSlip {
		reason = "rules_positive"
	}

	return DetectResult{IsSlip: isSlip, Score: score, Reason: reason}
}
