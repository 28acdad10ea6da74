package config

import (
	"os"

	"golang.org/x/term"
)

// isTTYAttached reports whether stdout is an interactive terminal, used
// to default RunInteractiveShell the way spec.md §6 describes ("default:
// attached TTY"). Grounded on golang.org/x/term.IsTerminal, the
// ecosystem-standard way to make this check (seen wired into the pack's
// TUI-facing repos); stdlib has no portable equivalent.
func isTTYAttached() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
