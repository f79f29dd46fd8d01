package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

// Banner is printed by the config init command
const Banner = `
    ┌──────────────────────────────────────────┐
    │  image2chk  ·  image to checkpoint tool  │
    └──────────────────────────────────────────┘
`

// Writers used by the Print helpers. Messages meant for humans go to Err so
// that stdout only carries command output.
var (
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

var colorEnabled atomic.Bool

func init() {
	colorEnabled.Store(true)
}

// SetColor turns ANSI colours on or off
func SetColor(on bool) {
	colorEnabled.Store(on)
}

// ColorEnabled reports whether output is coloured
func ColorEnabled() bool {
	return colorEnabled.Load()
}

// DetectColor reports whether f should receive colours: it must be a
// terminal, and neither noColor nor NO_COLOR may be set.
func DetectColor(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize wraps text with ANSI codes while colours are enabled
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !ColorEnabled() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintBanner prints the banner in cyan
func PrintBanner() {
	fmt.Fprint(Err, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Err, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Err, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Err, Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Err, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Err, Yellow(msg))
	}
}
