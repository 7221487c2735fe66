package report

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// colorScheme provides color functions for the report elements. Colors are
// disabled for non-TTY writers or on request.
type colorScheme struct {
	Success func(format string, a ...interface{}) string
	Error   func(format string, a ...interface{}) string
	Warning func(format string, a ...interface{}) string
	Header  func(format string, a ...interface{}) string

	Disabled bool
}

func newColorScheme(w io.Writer, noColor bool) *colorScheme {
	if noColor || !isTTY(w) {
		plain := color.New().Sprintf
		return &colorScheme{
			Success:  plain,
			Error:    plain,
			Warning:  plain,
			Header:   plain,
			Disabled: true,
		}
	}

	return &colorScheme{
		Success: color.New(color.FgGreen).Sprintf,
		Error:   color.New(color.FgRed, color.Bold).Sprintf,
		Warning: color.New(color.FgYellow).Sprintf,
		Header:  color.New(color.FgWhite, color.Bold).Sprintf,
	}
}

func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// outcomeColor picks the color matching a summary bucket.
func (cs *colorScheme) outcomeColor(kind string) func(format string, a ...interface{}) string {
	switch kind {
	case "success":
		return cs.Success
	case "failed":
		return cs.Error
	default:
		return cs.Warning
	}
}
