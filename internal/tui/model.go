package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/atelier-ml/atelier/internal/catalog"
	"github.com/atelier-ml/atelier/internal/config"
	"github.com/atelier-ml/atelier/internal/logsink"
	"github.com/atelier-ml/atelier/internal/orchestrator"
	"github.com/atelier-ml/atelier/internal/selection"
)

const (
	pollInterval  = 100 * time.Millisecond
	monitorHeight = 15
)

// Runner is the slice of the install orchestrator the form drives: start a
// worker, drain its output every tick, and report whether one is in flight.
type Runner interface {
	Start(req selection.InstallRequest) error
	Poll() []orchestrator.LogEvent
	State() orchestrator.State
	SetDisplayWidth(width int)
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the interactive installer form: one tab per model category, a
// scrolling monitor fed by the worker's log stream, and the keys that turn
// the current selection into an install request.
type Model struct {
	ctx    context.Context
	cfg    *config.Config
	logger *zap.Logger
	styles *Styles
	keys   KeyMap

	catalog   *catalog.Catalog
	repo      InstalledLister
	runner    Runner
	sink      *logsink.Sink
	precision string

	pages []*CategoryPage
	state State

	monitor viewport.Model
	width   int
	height  int
	ready   bool

	quitting  bool
	cancelled bool
	result    *selection.InstallRequest
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, cat *catalog.Catalog, repo InstalledLister, runner Runner, precision string) (*Model, error) {
	pages, err := buildPages(ctx, cat, repo)
	if err != nil {
		return nil, err
	}

	m := &Model{
		ctx:       ctx,
		cfg:       cfg,
		logger:    logger.Named("tui"),
		styles:    NewStyles(),
		keys:      DefaultKeyMap(),
		catalog:   cat,
		repo:      repo,
		runner:    runner,
		sink:      logsink.NewSink(),
		precision: precision,
		pages:     pages,
	}

	if scan := m.scanPage(); scan != nil {
		scan.ScanDir.SetValue(cfg.ScanDirectory)
		scan.Autoscan = cfg.AutoscanOnStartup
	}
	m.currentPage().syncFocus()

	return m, nil
}

// Result reports the request the user chose to apply on exit, if any, and
// whether the session ended with a quit instead of an apply.
func (m *Model) Result() (*selection.InstallRequest, bool) {
	return m.result, m.cancelled
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg)
		return m, nil
	case tickMsg:
		m.pump()
		return m, tickCmd()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) resize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	monitorWidth := msg.Width - 4
	if monitorWidth < 20 {
		monitorWidth = 20
	}

	if !m.ready {
		m.monitor = viewport.New(monitorWidth, monitorHeight)
		m.ready = true
	} else {
		m.monitor.Width = monitorWidth
		m.monitor.Height = monitorHeight
	}

	// Worker output is wrapped at poll time, so the stream follows the
	// terminal from the next chunk onward.
	m.runner.SetDisplayWidth(monitorWidth)

	inputWidth := msg.Width - 8
	if inputWidth < 20 {
		inputWidth = 20
	}
	for _, page := range m.pages {
		page.FreeText.Width = inputWidth
		if page.HasScanDir {
			page.ScanDir.Width = inputWidth
		}
	}

	m.refreshMonitor()
}

// pump drains the orchestrator once. Completion appends the marker line,
// rebuilds every page against the now-updated registry, and then appends a
// blank separator, so the scrollback reads: output, marker, blank.
func (m *Model) pump() {
	events := m.runner.Poll()
	for _, event := range events {
		switch event.Kind {
		case orchestrator.EventCompleted:
			m.sink.Append([]string{logsink.ActionCompleteMarker})
			m.rebuildPages()
			m.sink.Append([]string{""})
		default:
			m.sink.Append(event.Lines)
		}
	}

	if len(events) > 0 {
		m.refreshMonitor()
	}
}

func (m *Model) refreshMonitor() {
	if !m.ready {
		return
	}
	m.monitor.SetContent(strings.Join(m.sink.BufferedLines(), "\n"))
	m.monitor.GotoBottom()
}

// rebuildPages reconstructs the tabs from the registry after a worker run so
// the checkboxes reflect what is actually installed now. The active tab and
// the scan directory settings survive; the sink is left alone so the
// scrollback carries over.
func (m *Model) rebuildPages() {
	pages, err := buildPages(m.ctx, m.catalog, m.repo)
	if err != nil {
		m.logger.Error("Failed to rebuild installer form", zap.Error(err))
		m.sink.Append([]string{fmt.Sprintf("Error refreshing model state: %v", err)})
		return
	}

	if old := m.scanPage(); old != nil {
		for _, page := range pages {
			if page.HasScanDir {
				page.ScanDir.SetValue(old.ScanDir.Value())
				page.Autoscan = old.Autoscan
			}
		}
	}

	m.pages = pages
	if m.state.ActiveTab >= len(pages) {
		m.state.ActiveTab = 0
	}
	m.currentPage().syncFocus()
}

func (m *Model) currentPage() *CategoryPage {
	return m.pages[m.state.ActiveTab]
}

func (m *Model) scanPage() *CategoryPage {
	for _, page := range m.pages {
		if page.HasScanDir {
			return page
		}
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := m.currentPage()

	// A focused text field owns the printable keys. Arrows, tab and the
	// control chords below still navigate; esc blurs back to the page.
	if input := page.focusedInput(); input != nil && input.Focused() {
		switch msg.Type {
		case tea.KeyCtrlC:
			return m.quit()
		case tea.KeyEsc:
			input.Blur()
			return m, nil
		case tea.KeyEnter:
			return m.applyAndExit()
		case tea.KeyUp:
			m.moveCursor(-1)
			return m, nil
		case tea.KeyDown:
			m.moveCursor(1)
			return m, nil
		case tea.KeyTab, tea.KeyCtrlN:
			m.switchTab(1)
			return m, nil
		case tea.KeyShiftTab, tea.KeyCtrlP:
			m.switchTab(-1)
			return m, nil
		default:
			var cmd tea.Cmd
			*input, cmd = input.Update(msg)
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.NextTab):
		m.switchTab(1)
	case key.Matches(msg, m.keys.PrevTab):
		m.switchTab(-1)
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Toggle):
		m.toggleCurrent()
	case key.Matches(msg, m.keys.Execute):
		m.executeInstall()
	case key.Matches(msg, m.keys.Apply):
		return m.applyAndExit()
	case key.Matches(msg, m.keys.ScrollUp):
		m.monitor.LineUp(3)
	case key.Matches(msg, m.keys.ScrollDown):
		m.monitor.LineDown(3)
	}

	return m, nil
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.cancelled = true
	m.quitting = true
	return m, tea.Quit
}

func (m *Model) switchTab(delta int) {
	page := m.currentPage()
	page.FreeText.Blur()
	if page.HasScanDir {
		page.ScanDir.Blur()
	}

	count := len(m.pages)
	m.state.ActiveTab = (m.state.ActiveTab + delta + count) % count
	m.currentPage().syncFocus()
}

func (m *Model) moveCursor(delta int) {
	page := m.currentPage()
	rows := page.rowCount()
	if rows == 0 {
		return
	}

	page.Cursor += delta
	if page.Cursor < 0 {
		page.Cursor = 0
	}
	if page.Cursor >= rows {
		page.Cursor = rows - 1
	}
	page.syncFocus()
}

func (m *Model) toggleCurrent() {
	page := m.currentPage()
	switch page.Cursor {
	case page.purgeRow():
		m.setPurge(!page.Purge)
	case page.autoscanRow():
		page.Autoscan = !page.Autoscan
	default:
		if page.Cursor >= 0 && page.Cursor < len(page.Candidates) {
			page.Checked[page.Cursor] = !page.Checked[page.Cursor]
		}
	}
}

// setPurge mirrors the purge checkbox across every tab that carries one, so
// the two diffusers pages always agree on whether unchecked models get
// deleted from disk.
func (m *Model) setPurge(value bool) {
	for _, page := range m.pages {
		if page.HasPurge {
			page.Purge = value
		}
	}
}

// executeInstall launches a worker for the current selection without leaving
// the form. The selection stays editable while the worker streams into the
// monitor.
func (m *Model) executeInstall() {
	if m.runner.State() != orchestrator.StateIdle {
		m.sink.Append([]string{"An install is already running"})
		m.refreshMonitor()
		return
	}

	req, err := m.buildRequest()
	if err != nil {
		m.sink.Append([]string{fmt.Sprintf("Error: %v", err)})
		m.refreshMonitor()
		return
	}
	if req.IsEmpty() {
		m.sink.Append([]string{"Nothing to install or remove"})
		m.refreshMonitor()
		return
	}

	m.sink.Append([]string{"Processing..."})
	if err := m.runner.Start(req); err != nil {
		m.logger.Error("Failed to start install worker", zap.Error(err))
		m.sink.Append([]string{fmt.Sprintf("Error: %v", err)})
	}
	m.refreshMonitor()
}

// applyAndExit stores the pending request and leaves the form; the caller
// runs the request after the terminal is restored. Blocked while a worker is
// in flight so the same selection cannot be applied twice.
func (m *Model) applyAndExit() (tea.Model, tea.Cmd) {
	if m.runner.State() != orchestrator.StateIdle {
		m.sink.Append([]string{"An install is still running, wait for it to finish"})
		m.refreshMonitor()
		return m, nil
	}

	req, err := m.buildRequest()
	if err != nil {
		m.sink.Append([]string{fmt.Sprintf("Error: %v", err)})
		m.refreshMonitor()
		return m, nil
	}

	if !req.IsEmpty() {
		m.result = &req
	}
	m.quitting = true
	return m, tea.Quit
}

func (m *Model) buildRequest() (selection.InstallRequest, error) {
	states := make(map[selection.ModelCategory]selection.SelectionState, len(m.pages))
	for _, page := range m.pages {
		states[page.Category] = page.Snapshot()
	}

	opts := selection.Options{
		Precision:      m.precision,
		ConfigFilePath: m.cfg.ConfigFile,
	}
	if scan := m.scanPage(); scan != nil {
		opts.ScanDirectory = strings.TrimSpace(scan.ScanDir.Value())
		opts.AutoscanOnStartup = scan.Autoscan
	}

	return selection.BuildRequest(states, opts)
}
