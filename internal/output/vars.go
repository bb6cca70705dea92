package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("37"))            // dark green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))            // cyan
	debugStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))           // light grey
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

var StyleSymbols = map[string]string{
	"pass":    "✓",
	"fail":    "✗",
	"warning": "!",
	"info":    "ℹ",
	"arrow":   "→",
	"bullet":  "•",
	"hline":   "━",
}

// Status lines go to stderr so response bodies on stdout stay clean.
var Out io.Writer = os.Stderr

func PrintSuccess(text string) {
	fmt.Fprintln(Out, successStyle.Render(StyleSymbols["pass"]+" "+text))
}
func PrintError(text string) {
	fmt.Fprintln(Out, errorStyle.Render(StyleSymbols["fail"]+" "+text))
}
func PrintWarning(text string) {
	fmt.Fprintln(Out, warningStyle.Render(StyleSymbols["warning"]+" "+text))
}
func PrintInfo(text string) {
	fmt.Fprintln(Out, infoStyle.Render(text))
}
func PrintHeader(text string) {
	fmt.Fprintln(Out, headerStyle.Render(text))
}
