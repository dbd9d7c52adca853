// Package terminal renders user-facing status and download progress on stderr.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

const redrawInterval = 100 * time.Millisecond

// Styles used by the console
type Styles struct {
	Status  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles creates styles bound to the renderer of out, so colour is only
// emitted when out is a terminal that supports it.
func NewStyles(out io.Writer) Styles {
	r := lipgloss.NewRenderer(out)
	return Styles{
		Status:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Success: r.NewStyle().Foreground(lipgloss.Color("46")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Console implements ports.StatusReporter and ports.ProgressReporter
type Console struct {
	out         io.Writer
	interactive bool
	styles      Styles
	now         func() time.Time

	label    string
	total    int64
	done     int64
	lastDraw time.Time
}

// NewConsole creates a console on stderr
func NewConsole() *Console {
	return NewConsoleWithWriter(os.Stderr, IsTerminal(os.Stderr))
}

// NewConsoleWithWriter creates a console on out. Interactive consoles redraw a
// single progress line; others print one line when each download ends.
func NewConsoleWithWriter(out io.Writer, interactive bool) *Console {
	return &Console{
		out:         out,
		interactive: interactive,
		styles:      NewStyles(out),
		now:         time.Now,
	}
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (c *Console) Status(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(c.out, c.styles.Status.Render("==> ")+fmt.Sprintf(format, args...))
}

func (c *Console) Success(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(c.out, c.styles.Success.Render("✓ ")+fmt.Sprintf(format, args...))
}

// Error prints a dispatcher failure. Step errors already name what failed.
func (c *Console) Error(prog string, err error) {
	prefix := prog + ": error:"
	if _, ok := domain.FailedStep(err); ok {
		prefix = prog + ":"
	}
	_, _ = fmt.Fprintf(c.out, "%s %v\n", c.styles.Error.Render(prefix), err)
}

// Begin starts a progress line; total is -1 when the size is unknown.
func (c *Console) Begin(label string, total int64) {
	c.label = label
	c.total = total
	c.done = 0
	c.lastDraw = time.Time{}
	if c.interactive {
		c.draw()
	}
}

func (c *Console) Advance(n int64) {
	c.done += n
	if !c.interactive {
		return
	}
	if now := c.now(); now.Sub(c.lastDraw) >= redrawInterval {
		c.draw()
	}
}

func (c *Console) End(err error) {
	if c.interactive {
		c.draw()
		_, _ = fmt.Fprintln(c.out)
	}
	if err != nil {
		return
	}
	if !c.interactive {
		_, _ = fmt.Fprintf(c.out, "    %s %s\n", c.label, c.styles.Muted.Render("("+humanize.Bytes(uint64(c.done))+")"))
	}
}

func (c *Console) draw() {
	c.lastDraw = c.now()
	_, _ = fmt.Fprintf(c.out, "\r    %s %s", c.label, c.styles.Muted.Render(c.progressText()))
}

func (c *Console) progressText() string {
	done := humanize.Bytes(uint64(c.done))
	if c.total <= 0 {
		return done
	}
	pct := c.done * 100 / c.total
	bar := progressBar(pct, 20)
	return fmt.Sprintf("%s %s / %s %3d%%", bar, done, humanize.Bytes(uint64(c.total)), pct)
}

func progressBar(pct int64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct) * width / 100
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

var (
	_ ports.StatusReporter   = (*Console)(nil)
	_ ports.ProgressReporter = (*Console)(nil)
)
