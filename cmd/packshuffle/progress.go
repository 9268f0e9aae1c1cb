package main

import (
	"io"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/jaki95/pack-shuffler/internal/progress"
)

var stageDescriptions = map[progress.Stage]string{
	progress.StageSelecting:     "[cyan][1/2][reset] Selecting tracks...",
	progress.StageMaterializing: "[cyan][2/2][reset] Writing tracks...",
}

// progressBars renders slot progress events as one bar per stage.
type progressBars struct {
	writer io.Writer
	stage  progress.Stage
	bar    *progressbar.ProgressBar
}

func newProgressBars(w io.Writer) *progressBars {
	if w == nil {
		w = ansi.NewAnsiStdout()
	}
	return &progressBars{writer: w}
}

// attach creates a tracker feeding the bars.
func (p *progressBars) attach() *progress.Tracker {
	tracker := progress.NewTracker()
	tracker.AddListener(p.handle)
	return tracker
}

func (p *progressBars) handle(e progress.Event) {
	switch e.Stage {
	case progress.StageComplete, progress.StageError:
		p.finish()
		return
	}

	if e.SlotDetails == nil {
		return
	}
	if p.bar == nil || p.stage != e.Stage {
		p.finish()
		p.stage = e.Stage
		p.bar = progressbar.NewOptions(
			e.SlotDetails.TotalSlots,
			progressbar.OptionSetWriter(p.writer),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionFullWidth(),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription(stageDescriptions[e.Stage]),
		)
	}
	_ = p.bar.Set(e.SlotDetails.ProcessedSlots)
}

func (p *progressBars) finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	_, _ = io.WriteString(p.writer, "\n")
	p.bar = nil
}
