package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"instaprofiler/pkg/audit"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	progressWidth = 20
)

// GroupProgress prints one line per audited group member.
type GroupProgress struct {
	mu      sync.Mutex
	w       io.Writer
	start   time.Time
	now     func() time.Time
	handled int
	failed  int
}

// NewGroupProgress creates a progress printer writing to w.
func NewGroupProgress(w io.Writer) *GroupProgress {
	return &GroupProgress{w: w, start: time.Now(), now: time.Now}
}

// Update matches audit.GroupOptions.OnResult.
func (p *GroupProgress) Update(done, total int, res *audit.Result) {
	p.line(done, total, res.Account.Username, res.Status)
}

// UpdateMedia matches audit.MediaGroupOptions.OnResult.
func (p *GroupProgress) UpdateMedia(done, total int, res *audit.MediaResult) {
	p.line(done, total, res.Account.Username, res.Status)
}

func (p *GroupProgress) line(done, total int, name string, st audit.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handled++
	status := string(st)
	if st == audit.StatusFailed {
		p.failed++
		status = Red(status)
	} else {
		status = Green(status)
	}

	if name == "" {
		name = "?"
	}
	fmt.Fprintf(p.w, "%s %-30s %s\n", Bar(done, total), name, status)
}

// Summary prints the elapsed time and the failure count.
func (p *GroupProgress) Summary() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.start).Round(time.Second)
	line := fmt.Sprintf("%d accounts in %s", p.handled, elapsed)
	if p.failed > 0 {
		fmt.Fprintln(p.w, Yellow(fmt.Sprintf("%s, %d failed", line, p.failed)))
		return
	}
	fmt.Fprintln(p.w, Dim(line))
}

// Bar renders a fixed-width progress bar with a done/total counter.
func Bar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * progressWidth / total
	}
	if filled > progressWidth {
		filled = progressWidth
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, progressWidth-filled),
		done, total)
}
