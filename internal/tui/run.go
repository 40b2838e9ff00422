package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the program on the alternate screen and blocks until it exits.
func Run(opts Options) error {
	model := NewModel(opts)
	defer model.Shutdown()
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
