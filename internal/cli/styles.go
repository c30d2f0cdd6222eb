package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/archkit/archkit/pkg/types"
)

// severityStyles maps each Severity to the presentation style used when
// printing a finding to the terminal, following the teacher's two-layer
// semantic/presentation approach (treex/rendering/styles.go): a semantic
// slot (warning, error, ...) resolved to a concrete lipgloss.Style.
type severityStyles struct {
	warning  lipgloss.Style
	error_   lipgloss.Style
	fatality lipgloss.Style
	exempt   lipgloss.Style
}

func newSeverityStyles(enabled bool) severityStyles {
	if !enabled {
		empty := lipgloss.NewStyle()
		return severityStyles{warning: empty, error_: empty, fatality: empty, exempt: empty}
	}
	return severityStyles{
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		error_:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		fatality: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		exempt:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (s severityStyles) forLevel(level types.Severity) lipgloss.Style {
	switch level {
	case types.Warning:
		return s.warning
	case types.Error:
		return s.error_
	case types.Fatality:
		return s.fatality
	case types.Exempt:
		return s.exempt
	default:
		return lipgloss.NewStyle()
	}
}
