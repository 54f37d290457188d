package main

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/mitchellh/go-homedir"
)

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render
	subtle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}).Render
	warning   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#ECFD65"}).Render
)

// expandPath expands ~ and environment variables.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	p, err := homedir.Expand(os.ExpandEnv(path))
	if err != nil {
		return path
	}
	return filepath.Clean(p)
}
