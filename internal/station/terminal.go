package station

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"snapscan/internal"
)

// Terminal prints one colored line per scan event. Red lines ring the bell
// when Bell is set.
type Terminal struct {
	mu   sync.Mutex
	out  io.Writer
	Bell bool
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out, Bell: true}
}

func (t *Terminal) Notify(ev internal.ScanEvent) {
	msg := fmt.Sprintf("[%s] %s", ev.Context.Title(), ev.Feedback.Message)
	s := ev.Summary
	progress := fmt.Sprintf("%d/%d varer, %d/%d enheter (%d %%)", s.ProcessedItems, s.TotalItems, s.ProcessedQuantity, s.TotalQuantity, s.Percentage)

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s  %s\n", paint(ev.Feedback).Sprint(msg), color.New(color.Faint).Sprint(progress))
	if t.Bell && ev.Feedback.Tone == internal.ToneError {
		fmt.Fprint(t.out, "\a")
	}
}

func paint(fb internal.Feedback) *color.Color {
	switch {
	case fb.Flash == internal.FlashRed || fb.Level == internal.LevelError:
		return color.New(color.FgRed, color.Bold)
	case fb.Flash == internal.FlashOrange || fb.Level == internal.LevelWarning:
		return color.New(color.FgYellow)
	case fb.Flash == internal.FlashGreen || fb.Level == internal.LevelSuccess:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgCyan)
	}
}
