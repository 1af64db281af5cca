package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"mediaorganizer/internal/stage"
	"mediaorganizer/internal/stageexec"
)

const (
	ansiClearLine   = "\x1b[2K"
	progressNameMax = 40
)

// progressLine redraws one status line per stage as items finish. The last
// line of each stage is kept when the next stage starts.
type progressLine struct {
	mu       sync.Mutex
	w        io.Writer
	colorize bool
	stage    string
	drawn    bool
}

func newProgressLine(w io.Writer, colorize bool) *progressLine {
	return &progressLine{w: w, colorize: colorize}
}

// Update is safe to call from stage workers.
func (p *progressLine) Update(progress stageexec.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stage != progress.Stage {
		p.endLocked()
		p.stage = progress.Stage
	}
	kind := statusInfo
	if progress.Outcome == stageexec.OutcomeFailed {
		kind = statusWarn
	}
	message := fmt.Sprintf("%d/%d %s %s", progress.Index, progress.Total, progress.Outcome, shortName(progress.Path))
	fmt.Fprint(p.w, "\r"+ansiClearLine+renderStatusLine(stage.Label(progress.Stage), kind, message, p.colorize))
	p.drawn = true
}

// Done terminates the current line so later output starts on a fresh one.
func (p *progressLine) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLocked()
}

func (p *progressLine) endLocked() {
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func shortName(path string) string {
	name := []rune(filepath.Base(path))
	if len(name) <= progressNameMax {
		return string(name)
	}
	return "..." + string(name[len(name)-progressNameMax+3:])
}
