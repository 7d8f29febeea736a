// Package progress wraps a terminal progress bar for archive
// processing.
package progress

import (
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker is a progress bar over a known number of archive entries.
type Tracker struct {
	bar *progressbar.ProgressBar
}

// New creates a tracker with the given label and total count. A
// non-positive total produces a spinner.
func New(label string, total int) *Tracker {
	if total <= 0 {
		total = -1
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar}
}

// Tick advances the bar by one entry. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.bar.Add(1)
}

// Done finishes and clears the bar.
func (t *Tracker) Done() {
	t.bar.Finish()
	t.bar.Clear()
}
