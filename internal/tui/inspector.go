// internal/tui/inspector.go
//
// Inspector is a small Bubble Tea program that shows which fragment won each
// slot. Press r to reload manifests and re-resolve, q to quit.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/layoutweave/internal/override"
)

// Snapshot is one resolution outcome shown by the inspector.
type Snapshot struct {
	Mapping     override.Mapping
	Ignored     []*override.UnknownSlotError
	Fingerprint string
	Installed   []string
	Err         error
}

// SnapshotFunc reloads manifests and resolves them.
type SnapshotFunc func() Snapshot

type snapshotMsg Snapshot

// Inspector is the Bubble Tea model for the mapping inspector.
type Inspector struct {
	load     SnapshotFunc
	table    table.Model
	snapshot Snapshot
	loaded   bool
}

// NewInspector builds the inspector. load is called on start and on every
// reload key press.
func NewInspector(load SnapshotFunc) *Inspector {
	columns := []table.Column{
		{Title: mappingHeader[0], Width: 16},
		{Title: mappingHeader[1], Width: 44},
		{Title: mappingHeader[2], Width: 22},
		{Title: mappingHeader[3], Width: 9},
		{Title: mappingHeader[4], Width: 9},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	return &Inspector{load: load, table: t}
}

// Init implements tea.Model.
func (m *Inspector) Init() tea.Cmd {
	return m.reload()
}

func (m *Inspector) reload() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		if load == nil {
			return snapshotMsg{Err: fmt.Errorf("tui: no snapshot source")}
		}
		return snapshotMsg(load())
	}
}

// Update implements tea.Model.
func (m *Inspector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snapshot = Snapshot(msg)
		m.loaded = true
		rows := MappingRows(m.snapshot.Mapping)
		tableRows := make([]table.Row, len(rows))
		for i, row := range rows {
			tableRows[i] = table.Row(row)
		}
		m.table.SetRows(tableRows)
		return m, nil
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		if h := msg.Height - 10; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.reload()
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Inspector) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("layoutweave: resolved template overrides"))
	b.WriteString("\n")
	if !m.loaded {
		b.WriteString(detailStyle.Render("resolving..."))
		return b.String()
	}
	if len(m.snapshot.Installed) > 0 {
		b.WriteString(detailStyle.Render("installed: " + strings.Join(m.snapshot.Installed, ", ")))
		b.WriteString("\n")
	}
	if m.snapshot.Err != nil {
		b.WriteString("\n")
		b.WriteString(RenderError(m.snapshot.Err))
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
		b.WriteString(m.table.View())
		b.WriteString("\n")
		if m.snapshot.Fingerprint != "" {
			b.WriteString(detailStyle.Render("fingerprint " + m.snapshot.Fingerprint))
			b.WriteString("\n")
		}
	}
	if ignored := RenderIgnored(m.snapshot.Ignored); ignored != "" {
		b.WriteString("\n")
		b.WriteString(ignored)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(detailStyle.Render("r reload • q quit"))
	return b.String()
}
