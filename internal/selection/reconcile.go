package selection

import (
	"sort"
	"strings"
)

// Reconcile diffs one category's selection snapshot against its installed
// state and produces the minimal install/remove plan.
//
// Starter diffusers are additive-only: unchecking a starter never schedules a
// removal. Every other category treats an unchecked, previously-installed
// identifier as a removal. Free-text identifiers are appended to the install
// list verbatim, without an installed-state lookup; deciding whether a typed
// identifier is already satisfied is the installer's job.
//
// Output is deterministic for identical input: checkbox-derived entries are
// sorted lexicographically, free-text entries follow in input order, and the
// remove list is sorted. Out-of-range selection indices are ignored here;
// Validate rejects them before a request is ever built.
func Reconcile(cat ModelCategory, state SelectionState) InstallPlan {
	selected := make(map[string]bool, len(state.SelectedIndices))
	for _, idx := range state.SelectedIndices {
		if idx < 0 || idx >= len(state.CandidateOrder) {
			continue
		}
		selected[state.CandidateOrder[idx]] = true
	}

	installSet := make(map[string]bool)
	for id := range selected {
		if !state.Installed[id] {
			installSet[id] = true
		}
	}

	install := make([]string, 0, len(installSet))
	for id := range installSet {
		install = append(install, id)
	}
	sort.Strings(install)

	for _, id := range filterFreeText(cat, state.FreeText) {
		if installSet[id] {
			continue
		}
		installSet[id] = true
		install = append(install, id)
	}

	var remove []string
	if cat != CategoryStarterDiffusers {
		for id := range state.Installed {
			if selected[id] || installSet[id] {
				continue
			}
			remove = append(remove, id)
		}
		sort.Strings(remove)
	}

	if len(install) == 0 {
		install = nil
	}

	return InstallPlan{Install: install, Remove: remove}
}

// filterFreeText drops free-text entries a category can never resolve.
// ControlNet identifiers must name a repo, so bare words without a slash are
// discarded; all other categories take the text as typed.
func filterFreeText(cat ModelCategory, freeText []string) []string {
	if cat != CategoryControlNet {
		return freeText
	}

	filtered := make([]string, 0, len(freeText))
	for _, id := range freeText {
		if strings.Contains(id, "/") {
			filtered = append(filtered, id)
		}
	}

	return filtered
}
