package catalog

import (
	"fmt"
	"os"

	"github.com/atelier-ml/atelier/internal/selection"

	"gopkg.in/yaml.v3"
)

// StarterModel is one entry in the curated starter list. Repo is the
// identifier handed to the installer; Name and Description are for display.
type StarterModel struct {
	Name        string `yaml:"name"`
	Repo        string `yaml:"repo"`
	Description string `yaml:"description"`
	Recommended bool   `yaml:"recommended"`
	Default     bool   `yaml:"default"`
}

// Catalog lists the selectable candidates per category, in display order.
type Catalog struct {
	StarterDiffusers    []StarterModel `yaml:"starter_diffusers"`
	AdditionalDiffusers []string       `yaml:"additional_diffusers"`
	ControlNet          []string       `yaml:"controlnet"`
	LoRA                []string       `yaml:"lora"`
	TextualInversion    []string       `yaml:"textual_inversion"`
}

// Load reads the catalog from path, falling back to the built-in catalog
// when no file exists. A present-but-broken file is an error, not a silent
// fallback.
func Load(path string) (*Catalog, error) {
	data := []byte(defaultCatalog)

	if path != "" {
		fileData, err := os.ReadFile(path)
		if err == nil {
			data = fileData
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read catalog file: %w", err)
		}
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Catalog) validate() error {
	for _, starter := range c.StarterDiffusers {
		if starter.Repo == "" {
			return fmt.Errorf("starter entry %q has no repo", starter.Name)
		}
	}

	defaults := 0
	for _, starter := range c.StarterDiffusers {
		if starter.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("catalog declares %d default models, want at most one", defaults)
	}

	return nil
}

// WriteDefault materializes the built-in catalog at path so it can be
// edited. An existing file is left alone unless overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat catalog file: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(defaultCatalog), 0o644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}

	return nil
}

func (c *Catalog) Starters() []StarterModel {
	return c.StarterDiffusers
}

// Candidates returns the category's identifiers in catalog order.
func (c *Catalog) Candidates(cat selection.ModelCategory) []string {
	switch cat {
	case selection.CategoryStarterDiffusers:
		repos := make([]string, 0, len(c.StarterDiffusers))
		for _, starter := range c.StarterDiffusers {
			repos = append(repos, starter.Repo)
		}
		return repos
	case selection.CategoryAdditionalDiffusers:
		return c.AdditionalDiffusers
	case selection.CategoryControlNet:
		return c.ControlNet
	case selection.CategoryLoRA:
		return c.LoRA
	case selection.CategoryTextualInversion:
		return c.TextualInversion
	default:
		return nil
	}
}

// Recommended returns the starter repos flagged for the --yes install path.
func (c *Catalog) Recommended() []string {
	var repos []string
	for _, starter := range c.StarterDiffusers {
		if starter.Recommended {
			repos = append(repos, starter.Repo)
		}
	}

	return repos
}

// DefaultModel returns the single starter flagged as the default install.
func (c *Catalog) DefaultModel() (string, bool) {
	for _, starter := range c.StarterDiffusers {
		if starter.Default {
			return starter.Repo, true
		}
	}

	return "", false
}
