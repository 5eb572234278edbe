package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelier-ml/atelier/internal/config"
	"github.com/atelier-ml/atelier/internal/logsink"
	"github.com/atelier-ml/atelier/internal/orchestrator"
	"github.com/atelier-ml/atelier/internal/selection"
)

type fakeRunner struct {
	state    orchestrator.State
	queued   []orchestrator.LogEvent
	started  []selection.InstallRequest
	startErr error
	width    int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{state: orchestrator.StateIdle}
}

func (f *fakeRunner) Start(req selection.InstallRequest) error {
	if f.startErr != nil {
		return f.startErr
	}

	f.started = append(f.started, req)
	f.state = orchestrator.StateRunning

	return nil
}

func (f *fakeRunner) Poll() []orchestrator.LogEvent {
	events := f.queued
	f.queued = nil
	for _, event := range events {
		if event.Kind == orchestrator.EventCompleted {
			f.state = orchestrator.StateIdle
		}
	}

	return events
}

func (f *fakeRunner) State() orchestrator.State { return f.state }

func (f *fakeRunner) SetDisplayWidth(width int) { f.width = width }

func newTestModel(t *testing.T, lister *stubLister, runner *fakeRunner) *Model {
	t.Helper()

	cfg := &config.Config{
		Precision:  config.PrecisionFloat16,
		ConfigFile: filepath.Join(t.TempDir(), "config.yaml"),
	}

	m, err := New(context.Background(), cfg, zap.NewNop(), loadTestCatalog(t), lister, runner, config.PrecisionFloat16)
	require.NoError(t, err)

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	return m
}

func keyRunes(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// installedEverywhere seeds the lister so every pre-checked starter counts as
// installed, making the initial form a no-op selection.
func installedEverywhere(t *testing.T) *stubLister {
	t.Helper()

	cat := loadTestCatalog(t)

	return &stubLister{installed: map[string][]string{
		string(selection.CategoryStarterDiffusers): cat.Recommended(),
	}}
}

func TestWindowSizeConfiguresRunnerWidth(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	newTestModel(t, &stubLister{}, runner)

	assert.Equal(t, 96, runner.width)
}

func TestExecuteStartsWorker(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	m := newTestModel(t, &stubLister{}, runner)

	m.Update(keyRunes('i'))

	require.Len(t, runner.started, 1)
	req := runner.started[0]
	assert.NotEmpty(t, req.Plans[selection.CategoryStarterDiffusers].Install)
	assert.Equal(t, config.PrecisionFloat16, req.Precision)

	lines := m.sink.BufferedLines()
	require.NotEmpty(t, lines)
	assert.Equal(t, "Processing...", lines[len(lines)-1])
}

func TestExecuteWithNothingToDo(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	m := newTestModel(t, installedEverywhere(t), runner)

	m.Update(keyRunes('i'))

	assert.Empty(t, runner.started)
	lines := m.sink.BufferedLines()
	require.NotEmpty(t, lines)
	assert.Equal(t, "Nothing to install or remove", lines[len(lines)-1])
}

func TestExecuteWhileWorkerRunning(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.state = orchestrator.StateRunning
	m := newTestModel(t, &stubLister{}, runner)

	m.Update(keyRunes('i'))

	assert.Empty(t, runner.started)
	lines := m.sink.BufferedLines()
	require.NotEmpty(t, lines)
	assert.Equal(t, "An install is already running", lines[len(lines)-1])
}

func TestTickStreamsWorkerOutput(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	m := newTestModel(t, &stubLister{}, runner)

	runner.queued = []orchestrator.LogEvent{
		{Kind: orchestrator.EventText, Lines: []string{"Installing runwayml/stable-diffusion-v1-5..."}},
		{Kind: orchestrator.EventText, Lines: []string{"Installed runwayml/stable-diffusion-v1-5"}},
	}
	m.Update(tickMsg(time.Now()))

	lines := m.sink.BufferedLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "Installing runwayml/stable-diffusion-v1-5...", lines[0])
	assert.Equal(t, "Installed runwayml/stable-diffusion-v1-5", lines[1])
}

func TestCompletionRebuildsFormAndKeepsScrollback(t *testing.T) {
	t.Parallel()

	lister := &stubLister{installed: map[string][]string{}}
	runner := newFakeRunner()
	m := newTestModel(t, lister, runner)

	scan := m.scanPage()
	require.NotNil(t, scan)
	scan.ScanDir.SetValue("/data/import")
	scan.Autoscan = true
	m.state.ActiveTab = 2

	// The worker finished installing a controlnet model; the registry now
	// reports it.
	installedID := "lllyasviel/control_v11p_sd15_canny"
	lister.installed[string(selection.CategoryControlNet)] = []string{installedID}

	runner.queued = []orchestrator.LogEvent{
		{Kind: orchestrator.EventText, Lines: []string{"Installed " + installedID}},
		{Kind: orchestrator.EventCompleted},
	}
	m.Update(tickMsg(time.Now()))

	lines := m.sink.BufferedLines()
	require.Len(t, lines, 3)
	assert.Equal(t, "Installed "+installedID, lines[0])
	assert.Equal(t, logsink.ActionCompleteMarker, lines[1])
	assert.Equal(t, "", lines[2])

	// Rebuilt pages reflect the new installed state and keep the session's
	// widget values.
	page := pageFor(t, m.pages, selection.CategoryControlNet)
	found := false
	for idx, id := range page.Candidates {
		if id == installedID {
			found = true
			assert.True(t, page.Checked[idx])
		}
	}
	assert.True(t, found)
	assert.Equal(t, 2, m.state.ActiveTab)

	scan = m.scanPage()
	require.NotNil(t, scan)
	assert.Equal(t, "/data/import", scan.ScanDir.Value())
	assert.True(t, scan.Autoscan)
}

func TestPurgeTogglesAcrossDiffusersPages(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &stubLister{}, newFakeRunner())

	starter := pageFor(t, m.pages, selection.CategoryStarterDiffusers)
	additional := pageFor(t, m.pages, selection.CategoryAdditionalDiffusers)

	starter.Cursor = starter.purgeRow()
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	assert.True(t, starter.Purge)
	assert.True(t, additional.Purge)

	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	assert.False(t, starter.Purge)
	assert.False(t, additional.Purge)
}

func TestToggleCandidate(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, installedEverywhere(t), newFakeRunner())

	page := m.currentPage()
	require.NotEmpty(t, page.Candidates)
	page.Cursor = len(page.Candidates) - 1
	wasChecked := page.Checked[page.Cursor]

	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, !wasChecked, page.Checked[page.Cursor])
}

func TestTabSwitchingWraps(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &stubLister{}, newFakeRunner())

	require.Equal(t, 0, m.state.ActiveTab)
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, len(m.pages)-1, m.state.ActiveTab)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.state.ActiveTab)
}

func TestApplyAndExitStoresRequest(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &stubLister{}, newFakeRunner())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)

	req, cancelled := m.Result()
	assert.False(t, cancelled)
	require.NotNil(t, req)
	assert.NotEmpty(t, req.Plans[selection.CategoryStarterDiffusers].Install)
	assert.Equal(t, m.cfg.ConfigFile, req.ConfigFilePath)
}

func TestApplyWithNoChangesExitsEmptyHanded(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, installedEverywhere(t), newFakeRunner())

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	req, cancelled := m.Result()
	assert.False(t, cancelled)
	assert.Nil(t, req)
	assert.True(t, m.quitting)
}

func TestApplyBlockedWhileWorkerRunning(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.state = orchestrator.StateRunning
	m := newTestModel(t, &stubLister{}, runner)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.quitting)
	req, _ := m.Result()
	assert.Nil(t, req)
	lines := m.sink.BufferedLines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "still running")
}

func TestQuitMarksSessionCancelled(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &stubLister{}, newFakeRunner())

	_, cmd := m.Update(keyRunes('q'))
	require.NotNil(t, cmd)

	req, cancelled := m.Result()
	assert.Nil(t, req)
	assert.True(t, cancelled)
}

func TestFocusedTextFieldSwallowsKeys(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &stubLister{}, newFakeRunner())

	page := m.currentPage()
	page.Cursor = page.freeTextRow()
	page.syncFocus()

	// 'q' and 'i' insert into the field instead of quitting or executing.
	m.Update(keyRunes('q'))
	m.Update(keyRunes('i'))
	assert.False(t, m.cancelled)
	assert.Equal(t, "qi", page.FreeText.Value())

	// Esc blurs; the next 'q' quits.
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, page.FreeText.Focused())
	m.Update(keyRunes('q'))
	assert.True(t, m.cancelled)
}

func TestBuildRequestCarriesOptions(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &stubLister{}, newFakeRunner())

	scan := m.scanPage()
	require.NotNil(t, scan)
	scan.ScanDir.SetValue("  /data/models  ")
	scan.Autoscan = true

	req, err := m.buildRequest()
	require.NoError(t, err)
	assert.Equal(t, "/data/models", req.ScanDirectory)
	assert.True(t, req.AutoscanOnStartup)
	assert.Equal(t, config.PrecisionFloat16, req.Precision)
	assert.Equal(t, m.cfg.ConfigFile, req.ConfigFilePath)
}
