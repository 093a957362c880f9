package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette shared with the plot helpers.
var (
	Primary     = lipgloss.AdaptiveColor{Light: "#005baa", Dark: "#f0e442"}
	MutedColor  = lipgloss.AdaptiveColor{Light: "#6a737d", Dark: "#8b949e"}
	Destructive = lipgloss.Color("#ff2a2a")
	Success     = lipgloss.Color("#25a000")
	Warning     = lipgloss.Color("#f0e442")
	Info        = lipgloss.Color("#005baa")
)

// Styles holds the lipgloss styles used by command output.
type Styles struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Badge   lipgloss.Style
}

// NewStyles creates the command output styles.
func NewStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(MutedColor),

		Bold: lipgloss.NewStyle().
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		Badge: lipgloss.NewStyle().
			Foreground(Primary).
			Padding(0, 1).
			Bold(true),
	}
}

var styles = NewStyles()

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styles.Success.Render("✓")+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styles.Warning.Render("!")+" "+fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styles.Info.Render("i")+" "+fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styles.Error.Render("✗")+" "+fmt.Sprintf(format, args...))
}
