package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
)

// TestProgress_Plain prints one counter line per overall step.
func TestProgress_Plain(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	p := NewProgress(&buf, 2)
	p.Step("pkgA")
	p.Step("pkgC")
	p.Step("extra")

	require.Equal(t, "[1/2] pkgA\n[2/2] pkgC\n[2/2] extra\n", buf.String())
	require.Equal(t, 2, p.Completed())
	require.Equal(t, 2, p.Total())
}

// TestProgress_Task caps advances at the task total.
func TestProgress_Task(t *testing.T) {
	t.Parallel()

	p := NewProgress(&bytes.Buffer{}, 1)
	task := p.AddTask("requests", 100)

	for range 11 {
		task.Advance(10)
	}

	require.Equal(t, 100, task.Completed())
	require.InDelta(t, 1.0, task.percent(), 1e-9)
	require.False(t, task.finished.IsZero())
	require.Zero(t, p.Completed())
}

// TestProgress_Interactive redraws every row in place.
func TestProgress_Interactive(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	p := NewProgress(&buf, 1, WithInteractive(true), WithoutColor())
	task := p.AddTask("a-very-long-package-name-indeed", 100)
	task.Advance(100)
	p.Step("a-very-long-package-name-indeed")
	p.Stop()

	out := buf.String()
	require.Contains(t, out, OverallLabel)
	require.Contains(t, out, ansi.CursorUp(2))
	require.Contains(t, out, "100%")
	require.Contains(t, out, doneMark)
	require.NotContains(t, out, "[1/1]")

	last := out[strings.LastIndex(out, ansi.CursorUp(2)):]
	require.Equal(t, 2, strings.Count(last, "\n"))
}

// TestProgress_StartStop keeps spinners moving until stopped.
func TestProgress_StartStop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	p := NewProgress(&buf, 1, WithInteractive(true), WithoutColor())
	p.Start()
	time.Sleep(3 * p.spinner.FPS)
	p.Stop()

	p.mu.Lock()
	frame := p.frame
	p.mu.Unlock()

	require.Positive(t, frame)

	// Stop is idempotent.
	p.Stop()

	// Plain mode never starts the refresher.
	plain := NewProgress(&bytes.Buffer{}, 1)
	plain.Start()
	require.Nil(t, plain.stop)
	plain.Stop()
}

// TestFormatElapsed renders h:mm:ss.
func TestFormatElapsed(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0:00:00", formatElapsed(0))
	require.Equal(t, "0:01:05", formatElapsed(65*time.Second))
	require.Equal(t, "1:02:03", formatElapsed(time.Hour+2*time.Minute+3*time.Second))
}
