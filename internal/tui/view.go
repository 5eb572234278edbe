package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/atelier-ml/atelier/internal/orchestrator"
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	sections := []string{
		m.styles.Title.Render("Install Stable Diffusion Models"),
		m.styles.Hint.Render("tab switches pages, arrows move, space toggles, i installs, enter applies and exits"),
		m.renderTabs(),
		m.renderPage(),
		m.renderMonitor(),
		m.renderFooter(),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, len(m.pages))
	for idx, page := range m.pages {
		style := m.styles.TabInactive
		if idx == m.state.ActiveTab {
			style = m.styles.TabActive
		}
		tabs = append(tabs, style.Render(page.Title))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderPage() string {
	page := m.currentPage()
	var b strings.Builder

	b.WriteString(m.styles.Prompt.Render(page.Prompt))
	b.WriteString("\n\n")

	for idx, label := range page.Labels {
		b.WriteString(m.checkboxRow(page, idx, page.Checked[idx], label))
		if page.Installed[page.Candidates[idx]] {
			b.WriteString(m.styles.Muted.Render("  (installed)"))
		}
		b.WriteString("\n")
	}
	if len(page.Candidates) == 0 {
		b.WriteString(m.styles.Muted.Render("  (nothing installed yet; add URLs or repo ids below)"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.gutter(page, page.freeTextRow()))
	b.WriteString("Additional URLs or HuggingFace repo ids to install:\n")
	b.WriteString("  " + page.FreeText.View() + "\n")

	if page.HasPurge {
		b.WriteString("\n")
		b.WriteString(m.checkboxRow(page, page.purgeRow(), page.Purge, "Purge unchecked diffusers models from disk"))
		b.WriteString("\n")
	}

	if page.HasScanDir {
		b.WriteString("\n")
		b.WriteString(m.gutter(page, page.scanDirRow()))
		b.WriteString("Directory to scan for models to import:\n")
		b.WriteString("  " + page.ScanDir.View() + "\n")
		b.WriteString(m.checkboxRow(page, page.autoscanRow(), page.Autoscan, "Scan and import from this directory on every startup"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) checkboxRow(page *CategoryPage, row int, checked bool, label string) string {
	mark := "[ ]"
	if checked {
		mark = m.styles.Checked.Render("[x]")
	}

	return fmt.Sprintf("%s%s %s", m.gutter(page, row), mark, label)
}

func (m *Model) gutter(page *CategoryPage, row int) string {
	if page.Cursor == row {
		return m.styles.Cursor.Render("> ")
	}
	return "  "
}

func (m *Model) renderMonitor() string {
	header := m.styles.Muted.Render("Log Messages")
	if state := m.runner.State(); state != orchestrator.StateIdle {
		header += "  " + m.styles.Status.Render(string(state))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, m.styles.Monitor.Render(m.monitor.View()))
}

func (m *Model) renderFooter() string {
	parts := []string{
		"space toggle",
		"i install/remove",
		"enter apply and exit",
		"pgup/pgdn scroll log",
		"q quit",
	}

	return m.styles.Muted.Render(strings.Join(parts, "  ·  "))
}
