package tui

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ml/atelier/internal/catalog"
	"github.com/atelier-ml/atelier/internal/selection"
)

// stubLister serves installed sets from a map keyed by category name.
type stubLister struct {
	installed map[string][]string
	err       error
}

func (s *stubLister) InstalledSet(_ context.Context, category string) (map[string]bool, error) {
	if s.err != nil {
		return nil, s.err
	}

	set := map[string]bool{}
	for _, id := range s.installed[category] {
		set[id] = true
	}

	return set, nil
}

func loadTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.Load("")
	require.NoError(t, err)

	return cat
}

func pageFor(t *testing.T, pages []*CategoryPage, category selection.ModelCategory) *CategoryPage {
	t.Helper()

	for _, page := range pages {
		if page.Category == category {
			return page
		}
	}
	t.Fatalf("no page for category %s", category)

	return nil
}

func TestBuildPagesFreshInstallChecksRecommended(t *testing.T) {
	t.Parallel()

	cat := loadTestCatalog(t)
	pages, err := buildPages(context.Background(), cat, &stubLister{})
	require.NoError(t, err)
	require.Len(t, pages, len(selection.AllCategories))

	recommended := map[string]bool{}
	for _, repo := range cat.Recommended() {
		recommended[repo] = true
	}
	require.NotEmpty(t, recommended)

	starter := pageFor(t, pages, selection.CategoryStarterDiffusers)
	for idx, id := range starter.Candidates {
		assert.Equal(t, recommended[id], starter.Checked[idx], "checkbox state for %s", id)
	}

	for _, page := range pages {
		if page.Category == selection.CategoryStarterDiffusers {
			continue
		}
		for idx := range page.Checked {
			assert.False(t, page.Checked[idx], "%s row %d should start unchecked", page.Category, idx)
		}
	}
}

func TestBuildPagesChecksInstalledNotRecommended(t *testing.T) {
	t.Parallel()

	cat := loadTestCatalog(t)
	starters := cat.Candidates(selection.CategoryStarterDiffusers)
	require.NotEmpty(t, starters)
	installed := starters[len(starters)-1]

	lister := &stubLister{installed: map[string][]string{
		string(selection.CategoryStarterDiffusers): {installed},
	}}
	pages, err := buildPages(context.Background(), cat, lister)
	require.NoError(t, err)

	// With anything installed, only the installed model starts checked.
	starter := pageFor(t, pages, selection.CategoryStarterDiffusers)
	for idx, id := range starter.Candidates {
		assert.Equal(t, id == installed, starter.Checked[idx], "checkbox state for %s", id)
	}
}

func TestBuildPagesAppendsUnknownInstalled(t *testing.T) {
	t.Parallel()

	cat := loadTestCatalog(t)
	lister := &stubLister{installed: map[string][]string{
		string(selection.CategoryControlNet): {"zzz/custom-control", "aaa/custom-control"},
	}}
	pages, err := buildPages(context.Background(), cat, lister)
	require.NoError(t, err)

	page := pageFor(t, pages, selection.CategoryControlNet)
	known := len(cat.Candidates(selection.CategoryControlNet))
	require.Len(t, page.Candidates, known+2)

	// Unknown installed models land after the catalog entries, sorted.
	assert.Equal(t, "aaa/custom-control", page.Candidates[known])
	assert.Equal(t, "zzz/custom-control", page.Candidates[known+1])
	assert.True(t, page.Checked[known])
	assert.True(t, page.Checked[known+1])
}

func TestBuildPagesPropagatesListerError(t *testing.T) {
	t.Parallel()

	cat := loadTestCatalog(t)
	lister := &stubLister{err: errors.New("db locked")}

	_, err := buildPages(context.Background(), cat, lister)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list installed")
}

func TestPageRowLayout(t *testing.T) {
	t.Parallel()

	cat := loadTestCatalog(t)
	pages, err := buildPages(context.Background(), cat, &stubLister{})
	require.NoError(t, err)

	starter := pageFor(t, pages, selection.CategoryStarterDiffusers)
	n := len(starter.Candidates)
	assert.Equal(t, n, starter.freeTextRow())
	assert.Equal(t, n+1, starter.purgeRow())
	assert.Equal(t, -1, starter.scanDirRow())
	assert.Equal(t, n+2, starter.rowCount())

	additional := pageFor(t, pages, selection.CategoryAdditionalDiffusers)
	n = len(additional.Candidates)
	assert.Equal(t, n+1, additional.purgeRow())
	assert.Equal(t, n+2, additional.scanDirRow())
	assert.Equal(t, n+3, additional.autoscanRow())
	assert.Equal(t, n+4, additional.rowCount())

	lora := pageFor(t, pages, selection.CategoryLoRA)
	assert.Equal(t, -1, lora.purgeRow())
	assert.Equal(t, -1, lora.scanDirRow())
	assert.Equal(t, len(lora.Candidates)+1, lora.rowCount())
}

func TestSyncFocusFollowsCursor(t *testing.T) {
	t.Parallel()

	cat := loadTestCatalog(t)
	pages, err := buildPages(context.Background(), cat, &stubLister{})
	require.NoError(t, err)

	page := pageFor(t, pages, selection.CategoryAdditionalDiffusers)

	page.Cursor = 0
	page.syncFocus()
	assert.False(t, page.FreeText.Focused())
	assert.False(t, page.ScanDir.Focused())

	page.Cursor = page.freeTextRow()
	page.syncFocus()
	assert.True(t, page.FreeText.Focused())
	assert.False(t, page.ScanDir.Focused())

	page.Cursor = page.scanDirRow()
	page.syncFocus()
	assert.False(t, page.FreeText.Focused())
	assert.True(t, page.ScanDir.Focused())
}

func TestSnapshotCollectsSelection(t *testing.T) {
	t.Parallel()

	cat := loadTestCatalog(t)
	lister := &stubLister{installed: map[string][]string{
		string(selection.CategoryStarterDiffusers): {cat.Candidates(selection.CategoryStarterDiffusers)[0]},
	}}
	pages, err := buildPages(context.Background(), cat, lister)
	require.NoError(t, err)

	page := pageFor(t, pages, selection.CategoryStarterDiffusers)
	page.Checked[1] = true
	page.FreeText.SetValue("  hf:org/extra https://civitai.com/api/download/models/99  ")
	page.Purge = true

	state := page.Snapshot()
	assert.Equal(t, page.Candidates, state.CandidateOrder)
	assert.Equal(t, []int{0, 1}, state.SelectedIndices)
	assert.Equal(t, []string{"hf:org/extra", "https://civitai.com/api/download/models/99"}, state.FreeText)
	assert.True(t, state.PurgeRequested)
	assert.True(t, state.Installed[page.Candidates[0]])
}
