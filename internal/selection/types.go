package selection

import "fmt"

type ModelCategory string

const (
	CategoryStarterDiffusers    ModelCategory = "starter_diffusers"
	CategoryAdditionalDiffusers ModelCategory = "additional_diffusers"
	CategoryControlNet          ModelCategory = "controlnet"
	CategoryLoRA                ModelCategory = "lora"
	CategoryTextualInversion    ModelCategory = "textual_inversion"
)

// AllCategories is the closed set of model categories in display order.
var AllCategories = []ModelCategory{
	CategoryStarterDiffusers,
	CategoryAdditionalDiffusers,
	CategoryControlNet,
	CategoryLoRA,
	CategoryTextualInversion,
}

// SelectionState is one category's snapshot taken from the UI when the user
// triggers an install: what is already on disk, which candidates are checked,
// and any identifiers typed into the free-text box.
type SelectionState struct {
	// Installed maps identifiers currently present on disk. The value is
	// unused beyond presence.
	Installed map[string]bool

	// SelectedIndices are positions into CandidateOrder the user has checked.
	SelectedIndices []int

	// CandidateOrder is the stable display order of selectable identifiers.
	CandidateOrder []string

	// FreeText holds additional identifiers (URLs or repo references) typed
	// by the user, already split on whitespace.
	FreeText []string

	// PurgeRequested marks that unchecked, previously-installed models should
	// be deleted from storage rather than merely dropped from future plans.
	PurgeRequested bool
}

// Validate rejects selection indices that fall outside the candidate list.
func (s SelectionState) Validate() error {
	for _, idx := range s.SelectedIndices {
		if idx < 0 || idx >= len(s.CandidateOrder) {
			return fmt.Errorf("selected index %d out of range (%d candidates)", idx, len(s.CandidateOrder))
		}
	}

	return nil
}

// InstallPlan is the reconciled outcome for one category. Install and Remove
// are disjoint; identifiers that are installed and still selected appear in
// neither.
type InstallPlan struct {
	Install []string `msgpack:"install"`
	Remove  []string `msgpack:"remove"`
}

// IsEmpty reports whether the plan carries no work.
func (p InstallPlan) IsEmpty() bool {
	return len(p.Install) == 0 && len(p.Remove) == 0
}

// Options are the global knobs merged into an InstallRequest alongside the
// per-category plans.
type Options struct {
	ScanDirectory     string
	AutoscanOnStartup bool
	Precision         string
	ConfigFilePath    string
}

// InstallRequest is the full unit of work handed to the installer. It is
// built once per execute action and immutable afterwards; the worker process
// receives a by-value copy over its stdin.
type InstallRequest struct {
	Plans             map[ModelCategory]InstallPlan `msgpack:"plans"`
	PurgeDeleted      bool                          `msgpack:"purge_deleted"`
	ScanDirectory     string                        `msgpack:"scan_directory"`
	AutoscanOnStartup bool                          `msgpack:"autoscan_on_startup"`
	Precision         string                        `msgpack:"precision"`
	ConfigFilePath    string                        `msgpack:"config_file_path"`
}

// IsEmpty reports whether the request would perform no installs, removals,
// or directory scans.
func (r InstallRequest) IsEmpty() bool {
	for _, plan := range r.Plans {
		if !plan.IsEmpty() {
			return false
		}
	}

	return r.ScanDirectory == ""
}
