package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Row is one summarized coverage report.
type Row struct {
	Report       string
	URL          string
	CoveredBytes int64
	TotalBytes   int64
	Percentage   float64
}

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// SummaryModel is a Bubble Tea model listing coverage reports.
type SummaryModel struct {
	rows     []Row
	cursor   int
	width    int
	height   int
	quitting bool
}

// NewSummaryModel creates a summary model.
func NewSummaryModel(rows []Row) SummaryModel {
	return SummaryModel{rows: rows}
}

// Init implements tea.Model.
func (m SummaryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m SummaryModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Coverage Summary"))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(ValueStyle.Render("(no reports)"))
		b.WriteString("\n")
		return b.String()
	}

	var covered, total int64
	lowest := m.rows[0].Percentage
	for _, r := range m.rows {
		covered += r.CoveredBytes
		total += r.TotalBytes
		lowest = min(lowest, r.Percentage)
	}
	var overall float64
	if total > 0 {
		overall = float64(covered) / float64(total) * 100
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Reports", fmt.Sprintf("%d", len(m.rows)), highlightColor),
		renderStatBox("Overall", fmt.Sprintf("%.1f%%", overall), CoverageColor(overall)),
		renderStatBox("Lowest", fmt.Sprintf("%.1f%%", lowest), CoverageColor(lowest)),
	))
	b.WriteString("\n\n")

	for i, r := range m.rows {
		marker := "  "
		report := ValueStyle.Render(r.Report)
		if i == m.cursor {
			marker = "> "
			report = SelectedStyle.Render(r.Report)
		}
		pct := lipgloss.NewStyle().Foreground(CoverageColor(r.Percentage)).
			Render(fmt.Sprintf("%5.1f%%", r.Percentage))
		b.WriteString(fmt.Sprintf("%s%s  %s\n", marker, pct, report))
	}

	sel := m.rows[m.cursor]
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Script:"), ValueStyle.Render(sel.URL)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Bytes:"),
		ValueStyle.Render(fmt.Sprintf("%d / %d", sel.CoveredBytes, sel.TotalBytes))))

	b.WriteString(HelpStyle.Render("↑/↓ select • q quit"))
	return b.String()
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// RunSummaryTUI runs the summary TUI until the user quits.
func RunSummaryTUI(rows []Row) error {
	p := tea.NewProgram(NewSummaryModel(rows), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderSummaryStatic renders the summary view without a terminal program.
func RenderSummaryStatic(rows []Row) string {
	m := NewSummaryModel(rows)
	m.width = 80
	m.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(m.View())
}
