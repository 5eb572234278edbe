package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/atelier-ml/atelier/internal/catalog"
	"github.com/atelier-ml/atelier/internal/selection"

	"github.com/charmbracelet/bubbles/textinput"
)

const starterLabelWidth = 28

// CategoryPage is the typed widget state for one category tab: the
// candidate checkboxes, the free text box, and the purge / scan widgets the
// diffusers tabs carry. Selection is tracked per page; nothing is shared
// between page instances.
type CategoryPage struct {
	Category selection.ModelCategory
	Title    string
	Prompt   string

	Candidates []string
	Labels     []string
	Checked    []bool
	Installed  map[string]bool

	FreeText textinput.Model

	HasPurge bool
	Purge    bool

	HasScanDir bool
	ScanDir    textinput.Model
	Autoscan   bool

	Cursor int
}

// State is the portion of presentation state that survives a form rebuild
// after an install completes: which tab is active. The scrollback itself
// lives in the log sink and is never reset.
type State struct {
	ActiveTab int
}

var pageTitles = map[selection.ModelCategory]string{
	selection.CategoryStarterDiffusers:    "STARTER MODELS",
	selection.CategoryAdditionalDiffusers: "MORE DIFFUSION MODELS",
	selection.CategoryControlNet:          "CONTROLNET MODELS",
	selection.CategoryLoRA:                "LORA/LYCORIS MODELS",
	selection.CategoryTextualInversion:    "TEXTUAL INVERSION MODELS",
}

var pagePrompts = map[selection.ModelCategory]string{
	selection.CategoryStarterDiffusers:    "Select from a starter set of Stable Diffusion models from HuggingFace.",
	selection.CategoryAdditionalDiffusers: "Select the desired diffusers models to install. Unchecked models will be removed.",
	selection.CategoryControlNet:          "Select the desired ControlNet models to install. Unchecked models will be removed.",
	selection.CategoryLoRA:                "Select the desired LoRA/LyCORIS models to install. Unchecked models will be removed.",
	selection.CategoryTextualInversion:    "Select the desired Textual Inversion embeddings to install. Unchecked models will be removed.",
}

// InstalledLister is the slice of the model registry the form needs to seed
// checkbox state.
type InstalledLister interface {
	InstalledSet(ctx context.Context, category string) (map[string]bool, error)
}

// buildPages constructs one page per category from the catalog candidates
// and the installed state. Installed models start checked; on a fresh
// install the recommended starters start checked as well.
func buildPages(ctx context.Context, cat *catalog.Catalog, repo InstalledLister) ([]*CategoryPage, error) {
	pages := make([]*CategoryPage, 0, len(selection.AllCategories))

	for _, category := range selection.AllCategories {
		installed, err := repo.InstalledSet(ctx, string(category))
		if err != nil {
			return nil, fmt.Errorf("failed to list installed %s models: %w", category, err)
		}

		page := newCategoryPage(category, cat, installed)
		pages = append(pages, page)
	}

	return pages, nil
}

func newCategoryPage(category selection.ModelCategory, cat *catalog.Catalog, installed map[string]bool) *CategoryPage {
	candidates := candidateOrder(cat.Candidates(category), installed)

	page := &CategoryPage{
		Category:   category,
		Title:      pageTitles[category],
		Prompt:     pagePrompts[category],
		Candidates: candidates,
		Labels:     candidateLabels(category, cat, candidates),
		Checked:    make([]bool, len(candidates)),
		Installed:  installed,
		HasPurge:   category == selection.CategoryStarterDiffusers || category == selection.CategoryAdditionalDiffusers,
		HasScanDir: category == selection.CategoryAdditionalDiffusers,
	}

	for idx, id := range candidates {
		if installed[id] {
			page.Checked[idx] = true
		}
	}

	// A first-time user gets the recommended starters pre-checked; once
	// anything is installed the recommendations stop being pushed.
	if category == selection.CategoryStarterDiffusers && len(installed) == 0 {
		recommended := map[string]bool{}
		for _, repo := range cat.Recommended() {
			recommended[repo] = true
		}
		for idx, id := range candidates {
			if recommended[id] {
				page.Checked[idx] = true
			}
		}
	}

	page.FreeText = textinput.New()
	page.FreeText.Placeholder = "Additional URLs or HuggingFace repo ids (space separated)"
	page.FreeText.Prompt = "> "

	if page.HasScanDir {
		page.ScanDir = textinput.New()
		page.ScanDir.Placeholder = "Directory to scan for models to automatically import"
		page.ScanDir.Prompt = "> "
	}

	return page
}

// candidateOrder keeps the catalog's display order and appends installed
// identifiers the catalog does not know about, sorted.
func candidateOrder(catalogIDs []string, installed map[string]bool) []string {
	seen := map[string]bool{}
	order := make([]string, 0, len(catalogIDs)+len(installed))

	for _, id := range catalogIDs {
		order = append(order, id)
		seen[id] = true
	}

	var extras []string
	for id := range installed {
		if !seen[id] {
			extras = append(extras, id)
		}
	}
	sort.Strings(extras)

	return append(order, extras...)
}

func candidateLabels(category selection.ModelCategory, cat *catalog.Catalog, candidates []string) []string {
	labels := make([]string, len(candidates))

	if category != selection.CategoryStarterDiffusers {
		copy(labels, candidates)
		return labels
	}

	byRepo := map[string]catalog.StarterModel{}
	for _, starter := range cat.Starters() {
		byRepo[starter.Repo] = starter
	}

	for idx, id := range candidates {
		starter, ok := byRepo[id]
		if !ok {
			labels[idx] = id
			continue
		}
		labels[idx] = fmt.Sprintf("%-*s %s", starterLabelWidth, starter.Name, starter.Description)
	}

	return labels
}

// rowCount returns the number of focusable rows on the page.
func (p *CategoryPage) rowCount() int {
	rows := len(p.Candidates) + 1 // candidates plus the free text box
	if p.HasPurge {
		rows++
	}
	if p.HasScanDir {
		rows += 2
	}

	return rows
}

func (p *CategoryPage) freeTextRow() int { return len(p.Candidates) }

func (p *CategoryPage) purgeRow() int {
	if !p.HasPurge {
		return -1
	}
	return len(p.Candidates) + 1
}

func (p *CategoryPage) scanDirRow() int {
	if !p.HasScanDir {
		return -1
	}
	return len(p.Candidates) + 2
}

func (p *CategoryPage) autoscanRow() int {
	if !p.HasScanDir {
		return -1
	}
	return len(p.Candidates) + 3
}

// focusedInput returns the text input under the cursor, if any.
func (p *CategoryPage) focusedInput() *textinput.Model {
	switch p.Cursor {
	case p.freeTextRow():
		return &p.FreeText
	case p.scanDirRow():
		return &p.ScanDir
	default:
		return nil
	}
}

// syncFocus moves textinput focus to match the cursor position.
func (p *CategoryPage) syncFocus() {
	p.FreeText.Blur()
	if p.HasScanDir {
		p.ScanDir.Blur()
	}

	if input := p.focusedInput(); input != nil {
		input.Focus()
	}
}

// Snapshot captures the page as the selection snapshot handed to the
// reconciler.
func (p *CategoryPage) Snapshot() selection.SelectionState {
	var indices []int
	for idx, checked := range p.Checked {
		if checked {
			indices = append(indices, idx)
		}
	}

	return selection.SelectionState{
		Installed:       p.Installed,
		SelectedIndices: indices,
		CandidateOrder:  p.Candidates,
		FreeText:        strings.Fields(p.FreeText.Value()),
		PurgeRequested:  p.HasPurge && p.Purge,
	}
}
