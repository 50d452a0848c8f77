// Package tui renders the fleet dashboard: a live table of every agent's
// status document, refreshed by polling the shared state directory. The
// dashboard is read-only; all mutation happens in the supervisors.
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/status"
)

const refreshInterval = 2 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	statusColors = map[status.State]lipgloss.Style{
		status.StateCompleted:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		status.StateFailed:         lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		status.StateActive:         lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		status.StateWaitingForAuth: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

// refreshMsg carries freshly read status documents into the update loop.
type refreshMsg struct {
	docs []*status.Document
	err  error
}

// Model is the Bubbletea model for the fleet dashboard.
type Model struct {
	paths    layout.Layout
	table    table.Model
	spinner  spinner.Model
	lastErr  error
	lastSeen time.Time
	quitting bool
}

// NewModel creates a dashboard over the given state root.
func NewModel(paths layout.Layout) Model {
	columns := []table.Column{
		{Title: "Agent", Width: 16},
		{Title: "Status", Width: 16},
		{Title: "Phase", Width: 20},
		{Title: "Cycle", Width: 7},
		{Title: "Pass", Width: 10},
		{Title: "Heartbeat", Width: 10},
		{Title: "Last Tool", Width: 12},
	}

	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	ts.Selected = ts.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	tbl.SetStyles(ts)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	return Model{
		paths:   paths,
		table:   tbl,
		spinner: sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(4, msg.Height-6))

	case refreshMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.lastSeen = time.Now()
			m.table.SetRows(rowsFromDocs(msg.docs))
		}
		return m, tea.Tick(refreshInterval, func(time.Time) tea.Msg {
			return m.readStatuses()
		})

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("farmhand fleet"))
	fmt.Fprintf(&b, "  %s %s\n\n", m.spinner.View(), m.paths.Root())
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(errStyle.Render("read error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString(hintStyle.Render("q quit · r refresh"))
	return b.String()
}

// refresh returns a command that reads status documents immediately.
func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return m.readStatuses()
	}
}

func (m Model) readStatuses() refreshMsg {
	docs, err := readStatusDir(m.paths)
	return refreshMsg{docs: docs, err: err}
}

// readStatusDir loads every parseable status document, sorted by agent.
// Documents that fail to parse are skipped; the publisher may be mid-write
// on another host sharing the directory.
func readStatusDir(paths layout.Layout) ([]*status.Document, error) {
	entries, err := os.ReadDir(paths.StatusDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var docs []*status.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		doc, err := status.ReadDocument(filepath.Join(paths.StatusDir(), entry.Name()))
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Agent < docs[j].Agent })
	return docs, nil
}

// rowsFromDocs converts status documents to table rows.
func rowsFromDocs(docs []*status.Document) []table.Row {
	rows := make([]table.Row, 0, len(docs))
	for _, d := range docs {
		statusCell := string(d.Status)
		if style, ok := statusColors[d.Status]; ok {
			statusCell = style.Render(statusCell)
		}
		rows = append(rows, table.Row{
			d.Agent,
			statusCell,
			d.Phase,
			fmt.Sprintf("%d/%d", d.RestartCycle, d.MaxRestarts),
			fmt.Sprintf("%d%%/%d%%", d.TestPassRate, d.TargetPassRate),
			formatAge(d.Heartbeat),
			d.LastTool,
		})
	}
	return rows
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	age := time.Since(t)
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(age.Hours()))
	}
}
