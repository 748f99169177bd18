// Package ui provides terminal rendering helpers shared by the CLI
// commands. Colors degrade to plain text when the terminal does not
// support them or NO_COLOR is set.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
	strikeStyle = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("243"))

	colorEnabled = termenv.EnvColorProfile() != termenv.Ascii
)

func render(s lipgloss.Style, text string) string {
	if !colorEnabled {
		return text
	}
	return s.Render(text)
}

// RenderAccent renders text in the accent color.
func RenderAccent(text string) string { return render(accentStyle, text) }

// RenderPass renders text in the success color.
func RenderPass(text string) string { return render(passStyle, text) }

// RenderWarn renders text in the warning color.
func RenderWarn(text string) string { return render(warnStyle, text) }

// RenderErr renders text in the error color.
func RenderErr(text string) string { return render(errStyle, text) }

// RenderDim renders de-emphasized text.
func RenderDim(text string) string { return render(dimStyle, text) }

// RenderTitle renders a bold title line.
func RenderTitle(text string) string { return render(titleStyle, text) }

// RenderDone renders a completed task title.
func RenderDone(text string) string { return render(strikeStyle, text) }
