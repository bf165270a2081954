// Package ui holds the terminal styles shared by the CLI commands.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// RenderPass styles success output green.
func RenderPass(s string) string { return okStyle.Render(s) }

// RenderFail styles failure output red.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderWarn styles warnings yellow.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderAccent styles identifiers and counts blue.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderDim styles secondary detail grey.
func RenderDim(s string) string { return dimStyle.Render(s) }

// RenderTitle styles section headings.
func RenderTitle(s string) string { return titleStyle.Render(s) }
