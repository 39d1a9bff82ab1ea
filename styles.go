package main

import "github.com/charmbracelet/lipgloss"

const (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorMuted     = lipgloss.Color("#6B7280")
	colorSuccess   = lipgloss.Color("#10B981")
	colorError     = lipgloss.Color("#EF4444")
	colorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for the program name in help text.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	// SubtitleStyle is for secondary headings.
	SubtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)
	SuccessStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	// CmdStyle is for file paths and command names.
	CmdStyle = lipgloss.NewStyle().Foreground(colorHighlight)
)
