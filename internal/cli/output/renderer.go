// Package output renders command results for terminals, pipes and tools.
//
// A Renderer writes styled text when stdout is a terminal, plain markdown
// when it is piped, and JSON on request.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// OutputMode selects how results are written.
type OutputMode string

// Mode is shorthand for OutputMode.
type Mode = OutputMode

const (
	// ModeAuto picks text on a terminal and markdown otherwise.
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Renderer writes command output in one mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   OutputMode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	lr := lipgloss.NewRenderer(out)
	if isTTY {
		lr.SetColorProfile(termenv.NewOutput(out).EnvColorProfile())
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: NewStyles(lr),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto against the terminal state.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Styles returns the styles for text mode.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the diagnostics writer.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Println writes a line.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Header writes a section header.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeText {
		style := r.styles.Header1
		if level > 1 {
			style = r.styles.Header2
		}
		r.Println(style.Render(text))
		return
	}
	r.Println(FormatHeader(level, text))
	r.Println("")
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.status(r.styles.Success, "✓", msg)
}

// Warning writes a warning message.
func (r *Renderer) Warning(msg string) {
	r.status(r.styles.Warning, "!", msg)
}

// Error writes an error message to the diagnostics writer.
func (r *Renderer) Error(msg string) {
	if r.EffectiveMode() == ModeText {
		_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+msg))
		return
	}
	_, _ = fmt.Fprintln(r.errOut, "Error: "+msg)
}

// Muted writes secondary information.
func (r *Renderer) Muted(msg string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Muted.Render(msg))
		return
	}
	r.Println(msg)
}

func (r *Renderer) status(style lipgloss.Style, icon, msg string) {
	if r.EffectiveMode() == ModeText {
		r.Println(style.Render(icon + " " + msg))
		return
	}
	r.Println(msg)
}

// StatusLine writes "name: status" with an optional detail.
// status is one of "success", "warning", "error" or "skipped".
func (r *Renderer) StatusLine(name, status, detail string) {
	if r.EffectiveMode() != ModeText {
		line := fmt.Sprintf("- %s: %s", name, status)
		if detail != "" {
			line += " (" + detail + ")"
		}
		r.Println(line)
		return
	}

	var icon string
	var style lipgloss.Style
	switch status {
	case "success":
		icon, style = "✓", r.styles.Success
	case "warning":
		icon, style = "!", r.styles.Warning
	case "error":
		icon, style = "✗", r.styles.Error
	default:
		icon, style = "-", r.styles.Muted
	}
	line := fmt.Sprintf("  %s %s", style.Render(icon), name)
	if detail != "" {
		line += " " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}
