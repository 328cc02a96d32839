package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kingrea/layoutweave/internal/override"
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")).Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	defaultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")).Padding(0, 1)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	mappingHeader = []string{"SLOT", "TEMPLATE", "MODULE", "SEQUENCE", "SOURCE"}
)

// MappingRows flattens a mapping into display rows sorted by slot.
func MappingRows(mapping override.Mapping) [][]string {
	entries := mapping.Entries()
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		module, sequence, source := entry.Module, strconv.Itoa(entry.Sequence), "override"
		if entry.Default {
			module, sequence, source = "-", "-", "default"
		}
		rows = append(rows, []string{string(entry.Slot), entry.Fragment.Template, module, sequence, source})
	}
	return rows
}

// RenderMapping draws the mapping as a bordered table for terminal output.
func RenderMapping(mapping override.Mapping) string {
	rows := MappingRows(mapping)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(mappingHeader...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && rows[row][4] == "default" {
				return defaultStyle
			}
			return cellStyle
		})
	return t.String()
}

// RenderIgnored lists declarations skipped because of unknown slots.
func RenderIgnored(ignored []*override.UnknownSlotError) string {
	if len(ignored) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(warnStyle.Render(fmt.Sprintf("%d declaration(s) ignored:", len(ignored))))
	for _, unknown := range ignored {
		b.WriteString("\n  ")
		b.WriteString(detailStyle.Render(fmt.Sprintf("%s -> %s", unknown.Module, unknown.Slot)))
	}
	return b.String()
}

// RenderError formats a resolution error, one line per conflict.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	var cfgErr *override.ConfigurationError
	if !errors.As(err, &cfgErr) {
		return errorStyle.Render(err.Error())
	}
	var b strings.Builder
	b.WriteString(errorStyle.Render("Template override conflict"))
	for _, conflict := range cfgErr.Conflicts {
		b.WriteString("\n  ")
		b.WriteString(conflict.String())
	}
	return b.String()
}
