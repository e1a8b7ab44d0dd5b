package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gestured/internal/gesture"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured gesture bindings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, bindings, err := loadBindings(confPath)
		if err != nil {
			return err
		}
		cmd.Println(sourceStyle.Render(cfg.Source))
		cmd.Print(renderBindings(bindings))
		return nil
	},
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true)

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

var columnWidths = []int{8, 8, 10}

func cell(style lipgloss.Style, width int, s string) string {
	return style.Width(width).Render(s)
}

// renderBindings formats bindings as a table, one row per binding.
func renderBindings(bindings gesture.Bindings) string {
	if len(bindings) == 0 {
		return dimStyle.Render("no gestures bound") + "\n"
	}

	var b strings.Builder
	b.WriteString(cell(headerStyle, columnWidths[0], "KIND"))
	b.WriteString(cell(headerStyle, columnWidths[1], "FINGERS"))
	b.WriteString(cell(headerStyle, columnWidths[2], "DIRECTION"))
	b.WriteString(headerStyle.Render("ACTION"))
	b.WriteString("\n")

	for _, bind := range bindings {
		b.WriteString(cell(kindStyle, columnWidths[0], bind.Kind.String()))
		b.WriteString(cell(lipgloss.NewStyle(), columnWidths[1], strconv.Itoa(bind.Fingers)))
		b.WriteString(cell(lipgloss.NewStyle(), columnWidths[2], direction(bind)))
		b.WriteString(action(bind))
		b.WriteString("\n")
	}
	return b.String()
}

func direction(b gesture.Binding) string {
	switch b.Kind {
	case gesture.KindSwipe:
		return b.Direction.String()
	case gesture.KindPinch:
		return b.InOut.String()
	case gesture.KindRotate:
		return b.Repeat.String()
	default:
		return "-"
	}
}

func action(b gesture.Binding) string {
	switch b.Kind {
	case gesture.KindHold, gesture.KindRotate:
		return b.Action
	}
	if b.IsDrag() {
		return dimStyle.Render(fmt.Sprintf("drag (acceleration %g, release after %s)", b.Acceleration, b.MouseUpDelay))
	}

	parts := make([]string, 0, 3)
	for _, p := range []struct{ phase, cmd string }{
		{"start", b.Start},
		{"update", b.Update},
		{"end", b.End},
	} {
		if p.cmd != "" {
			parts = append(parts, p.phase+": "+p.cmd)
		}
	}
	if len(parts) == 0 {
		return dimStyle.Render("(none)")
	}
	return strings.Join(parts, "; ")
}
