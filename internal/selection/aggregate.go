package selection

import "fmt"

// Aggregate merges per-category plans and global options into one
// InstallRequest. The purge flag is the logical OR of every category's purge
// checkbox; only the diffusers-family categories expose one in the UI, and
// categories without a checkbox contribute false.
func Aggregate(plans map[ModelCategory]InstallPlan, purgeFlags map[ModelCategory]bool, opts Options) InstallRequest {
	merged := make(map[ModelCategory]InstallPlan, len(plans))
	for cat, plan := range plans {
		merged[cat] = plan
	}

	purge := false
	for _, flag := range purgeFlags {
		purge = purge || flag
	}

	return InstallRequest{
		Plans:             merged,
		PurgeDeleted:      purge,
		ScanDirectory:     opts.ScanDirectory,
		AutoscanOnStartup: opts.AutoscanOnStartup,
		Precision:         opts.Precision,
		ConfigFilePath:    opts.ConfigFilePath,
	}
}

// BuildRequest validates every category snapshot, reconciles each into a
// plan, and aggregates the result. This is the one entry point the UI calls
// on execute; a validation failure here means no worker is ever spawned.
func BuildRequest(states map[ModelCategory]SelectionState, opts Options) (InstallRequest, error) {
	plans := make(map[ModelCategory]InstallPlan, len(states))
	purgeFlags := make(map[ModelCategory]bool, len(states))

	for cat, state := range states {
		if err := state.Validate(); err != nil {
			return InstallRequest{}, fmt.Errorf("invalid selection for %s: %w", cat, err)
		}

		plans[cat] = Reconcile(cat, state)
		purgeFlags[cat] = state.PurgeRequested
	}

	return Aggregate(plans, purgeFlags, opts), nil
}
