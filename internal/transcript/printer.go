// Package transcript renders the conversation to a terminal.
package transcript

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of the transcript.
type Theme struct {
	Learner lipgloss.Color
	Tutor   lipgloss.Color
	Dim     lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is used by NewPrinter.
var DefaultTheme = Theme{
	Learner: lipgloss.Color("#61afef"),
	Tutor:   lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f87"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Learner lipgloss.Style
	Tutor   lipgloss.Style
	Notice  lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Learner: lipgloss.NewStyle().Bold(true).Foreground(t.Learner),
		Tutor:   lipgloss.NewStyle().Bold(true).Foreground(t.Tutor),
		Notice:  lipgloss.NewStyle().Italic(true).Foreground(t.Dim),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// Printer writes labeled transcript lines. Fragments from the same speaker
// continue the current line; a new speaker starts a new one. Safe for
// concurrent use.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	role   string // speaker of the open line, empty when none
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styles: NewStyles(DefaultTheme)}
}

// Transcript prints a fragment spoken by role ("user" or "model").
func (p *Printer) Transcript(role, text string) {
	if text == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if role != p.role {
		p.endLineLocked()
		fmt.Fprint(p.w, p.label(role)+" ")
		p.role = role
		text = strings.TrimLeft(text, " ")
	}
	fmt.Fprint(p.w, text)
}

// Delta prints a streamed piece of the tutor's reply.
func (p *Printer) Delta(delta string) {
	p.Transcript("model", delta)
}

// EndTurn closes the open line.
func (p *Printer) EndTurn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLineLocked()
}

// Notice prints a status line.
func (p *Printer) Notice(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLineLocked()
	fmt.Fprintln(p.w, p.styles.Notice.Render(fmt.Sprintf(format, args...)))
}

// Error prints err on its own line.
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLineLocked()
	fmt.Fprintln(p.w, p.styles.Error.Render("error:")+" "+err.Error())
}

func (p *Printer) endLineLocked() {
	if p.role != "" {
		fmt.Fprintln(p.w)
		p.role = ""
	}
}

func (p *Printer) label(role string) string {
	if role == "user" {
		return p.styles.Learner.Render("You:")
	}
	return p.styles.Tutor.Render("Tutor:")
}
