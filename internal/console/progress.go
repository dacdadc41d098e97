package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

const (
	// OverallLabel is the label of the task counting processed entries.
	OverallLabel = "Total progress"

	labelWidth = 20
	barWidth   = 40
	doneMark   = "✓"
)

// Progress tracks an overall counter plus one task per package being installed.
// In interactive mode every task is redrawn in place; otherwise each overall
// advance prints one "[n/total] label" line.
type Progress struct {
	mu sync.Mutex

	out         io.Writer
	interactive bool

	overall *Task
	tasks   []*Task

	bar        progress.Model
	spinner    spinner.Spinner
	frame      int
	rendered   int
	labelStyle lipgloss.Style
	totalStyle lipgloss.Style

	stop chan struct{}
	done chan struct{}
	now  func() time.Time
}

// ProgressOption configures a Progress.
type ProgressOption func(*Progress)

// WithInteractive forces live redraw on or off.
func WithInteractive(interactive bool) ProgressOption {
	return func(p *Progress) {
		p.interactive = interactive
	}
}

// WithoutColor renders the bar and labels without color.
func WithoutColor() ProgressOption {
	return func(p *Progress) {
		p.bar = progress.New(
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
			progress.WithColorProfile(termenv.Ascii),
		)
		p.labelStyle = lipgloss.NewStyle().Width(labelWidth)
		p.totalStyle = p.labelStyle
	}
}

// Task is one row of the progress display.
type Task struct {
	p *Progress

	label     string
	total     int
	completed int
	started   time.Time
	finished  time.Time
}

// NewProgress creates a display for total entries. Live redraw is enabled when out is a terminal.
func NewProgress(out io.Writer, total int, opts ...ProgressOption) *Progress {
	labelStyle := lipgloss.NewStyle().Width(labelWidth)

	p := &Progress{
		out:         out,
		interactive: IsTerminal(out),
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		),
		spinner:    spinner.Dot,
		labelStyle: labelStyle,
		totalStyle: labelStyle.Bold(true).Foreground(lipgloss.Color("2")),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.overall = &Task{p: p, label: OverallLabel, total: total, started: p.now()}
	p.tasks = []*Task{p.overall}

	return p
}

// Start begins periodic redraws so spinners keep moving while an installer runs.
// It is a no-op outside interactive mode.
func (p *Progress) Start() {
	if !p.interactive {
		return
	}

	p.mu.Lock()
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.renderLocked()
	p.mu.Unlock()

	go p.refresh(p.stop, p.done)
}

// Stop halts redraws and leaves the final state on screen.
func (p *Progress) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	if p.interactive {
		p.mu.Lock()
		p.renderLocked()
		p.mu.Unlock()
	}
}

func (p *Progress) refresh(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.spinner.FPS)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.frame++
			p.renderLocked()
			p.mu.Unlock()
		}
	}
}

// AddTask adds a row with the given label and number of steps.
func (p *Progress) AddTask(label string, total int) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	task := &Task{p: p, label: label, total: total, started: p.now()}
	p.tasks = append(p.tasks, task)

	if p.interactive {
		p.renderLocked()
	}

	return task
}

// Step advances the overall counter by one entry.
func (p *Progress) Step(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.overall.advanceLocked(1)

	if p.interactive {
		p.renderLocked()

		return
	}

	_, _ = fmt.Fprintf(p.out, "[%d/%d] %s\n", p.overall.completed, p.overall.total, label)
}

// Completed returns the overall counter.
func (p *Progress) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.overall.completed
}

// Total returns the number of entries the overall counter expects.
func (p *Progress) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.overall.total
}

// Advance moves the task forward by n steps, capped at its total.
func (t *Task) Advance(n int) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()

	t.advanceLocked(n)

	if t.p.interactive {
		t.p.renderLocked()
	}
}

// Completed returns the task's step counter.
func (t *Task) Completed() int {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()

	return t.completed
}

func (t *Task) advanceLocked(n int) {
	t.completed = min(t.completed+n, t.total)

	if t.completed == t.total && t.finished.IsZero() {
		t.finished = t.p.now()
	}
}

func (t *Task) percent() float64 {
	if t.total <= 0 {
		return 1
	}

	return float64(t.completed) / float64(t.total)
}

func (t *Task) elapsed() time.Duration {
	end := t.finished
	if end.IsZero() {
		end = t.p.now()
	}

	return end.Sub(t.started)
}

// renderLocked redraws every row in place. The caller holds p.mu.
func (p *Progress) renderLocked() {
	var b strings.Builder

	if p.rendered > 0 {
		b.WriteString(ansi.CursorUp(p.rendered))
	}

	for _, task := range p.tasks {
		b.WriteString("\r")
		b.WriteString(ansi.EraseEntireLine)
		b.WriteString(p.row(task))
		b.WriteString("\n")
	}

	p.rendered = len(p.tasks)

	_, _ = io.WriteString(p.out, b.String())
}

func (p *Progress) row(task *Task) string {
	mark := doneMark
	if task.finished.IsZero() {
		frames := p.spinner.Frames
		mark = frames[p.frame%len(frames)]
	}

	style := p.labelStyle
	if task == p.overall {
		style = p.totalStyle
	}

	return fmt.Sprintf("%s %s %s %3.0f%% %s",
		mark,
		style.Render(ansi.Truncate(task.label, labelWidth, "…")),
		p.bar.ViewAs(task.percent()),
		task.percent()*100, //nolint:mnd // Percent scale.
		formatElapsed(task.elapsed()))
}

// formatElapsed renders a duration as h:mm:ss.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour

	minutes := d / time.Minute
	d -= minutes * time.Minute

	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, d/time.Second)
}
