// Package presenter provides consistent user-facing CLI output: errors,
// warnings, per-file check failures and the reformat summary, with color
// support and a quiet mode. Diagnostic logging stays in pkg/logger; anything
// a user is meant to read goes through here.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// ColorMode controls whether output is colorized.
type ColorMode int

const (
	// ColorAuto lets the color package detect terminal capabilities.
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output.
	ColorAlways
	// ColorNever disables colored output.
	ColorNever
)

// Presenter writes user-facing messages to an output and an error stream.
type Presenter struct {
	output      io.Writer
	errorOutput io.Writer
	quiet       bool
}

// New creates a Presenter on stdout/stderr with color detected from the
// environment.
func New() *Presenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a Presenter with explicit streams and color mode.
func NewWithOptions(output, errorOutput io.Writer, mode ColorMode) *Presenter {
	switch mode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	case ColorAuto:
		// auto-detection is the color package default
	}

	return &Presenter{
		output:      output,
		errorOutput: errorOutput,
	}
}

// detectColorMode resolves color behavior from NO_COLOR and
// DEVOPS_TESTS_COLOR.
func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	switch os.Getenv("DEVOPS_TESTS_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error writes an error with optional context to the error stream.
// Errors are never silenced by quiet mode.
func (p *Presenter) Error(err error, context string) {
	if err == nil {
		return
	}
	c := color.New(color.FgRed, color.Bold)
	if context != "" {
		c.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
	} else {
		c.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
	}
}

// FileError reports a check failure for a single file in the upstream
// hook format.
func (p *Presenter) FileError(path string, err error) {
	if err == nil {
		return
	}
	color.New(color.FgRed).Fprintf(p.errorOutput, "[ERROR] %s: %v\n", path, err)
}

// Success writes a green confirmation line.
func (p *Presenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

// Warning writes a yellow warning line.
func (p *Presenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

// Info writes a plain informational line.
func (p *Presenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section writes a bold underlined section header.
func (p *Presenter) Section(title string) {
	if p.quiet {
		return
	}
	c := color.New(color.Bold)
	c.Fprintf(p.output, "%s\n", title)
	c.Fprintf(p.output, "%s\n", strings.Repeat("-", len(title)))
}

// Reformatted announces a rewritten file.
func (p *Presenter) Reformatted(path string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "\nreformatted %s\n", path)
}

// Summary prints the closing reformat summary when anything was rewritten.
// The phrasing follows the formatter the upstream hooks imitate.
func (p *Presenter) Summary(reformatted, unchanged int) {
	if p.quiet || reformatted == 0 {
		return
	}
	fmt.Fprintf(p.output, "\nAll done! ✨ 🍰 ✨\n")
	fmt.Fprintf(p.output, "%d file%s reformatted, %d file%s left unchanged.\n",
		reformatted, plural(reformatted), unchanged, plural(unchanged))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// Separator writes a faint horizontal rule between blocks of output.
func (p *Presenter) Separator() {
	if p.quiet {
		return
	}
	c := color.New(color.Faint)
	c.Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

// SetQuiet silences everything except errors.
func (p *Presenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet reports whether quiet mode is on.
func (p *Presenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter = New()

// Error writes an error through the default presenter.
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// FileError reports a per-file failure through the default presenter.
func FileError(path string, err error) {
	defaultPresenter.FileError(path, err)
}

// Success writes a confirmation through the default presenter.
func Success(message string) {
	defaultPresenter.Success(message)
}

// Warning writes a warning through the default presenter.
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info writes an informational line through the default presenter.
func Info(message string) {
	defaultPresenter.Info(message)
}

// Section writes a section header through the default presenter.
func Section(title string) {
	defaultPresenter.Section(title)
}

// Reformatted announces a rewritten file through the default presenter.
func Reformatted(path string) {
	defaultPresenter.Reformatted(path)
}

// Summary prints the reformat summary through the default presenter.
func Summary(reformatted, unchanged int) {
	defaultPresenter.Summary(reformatted, unchanged)
}

// Separator writes a horizontal rule through the default presenter.
func Separator() {
	defaultPresenter.Separator()
}

// SetQuiet toggles quiet mode on the default presenter.
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}

// IsQuiet reports the default presenter's quiet mode.
func IsQuiet() bool {
	return defaultPresenter.IsQuiet()
}
