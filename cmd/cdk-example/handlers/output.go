package handlers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorGray  = lipgloss.Color("#6b7280")
	colorAmber = lipgloss.Color("#f59e0b")
)

// printer writes human output. Styles are only applied on a terminal.
type printer struct {
	w       io.Writer
	title   lipgloss.Style
	section lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	p := &printer{
		w:       w,
		title:   lipgloss.NewStyle(),
		section: lipgloss.NewStyle(),
		good:    lipgloss.NewStyle(),
		bad:     lipgloss.NewStyle(),
		warn:    lipgloss.NewStyle(),
		dim:     lipgloss.NewStyle(),
	}
	if isTerminal(w) {
		p.title = p.title.Bold(true)
		p.section = p.section.Bold(true).Foreground(colorBlue)
		p.good = p.good.Foreground(colorGreen)
		p.bad = p.bad.Bold(true).Foreground(colorRed)
		p.warn = p.warn.Foreground(colorAmber)
		p.dim = p.dim.Foreground(colorGray)
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

func (p *printer) heading(s string) {
	p.line("")
	p.line(p.section.Render(s))
	p.line(p.dim.Render(strings.Repeat("-", len(s))))
}

// row prints an aligned key/value pair.
func (p *printer) row(key string, value any) {
	p.printf("  %-22s %v\n", key+":", value)
}

// mark returns a pass/fail marker.
func (p *printer) mark(ok bool) string {
	if ok {
		return p.good.Render("✓")
	}
	return p.bad.Render("✗")
}
