package installer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/atelier-ml/atelier/internal/config"
	"github.com/atelier-ml/atelier/internal/registry"
	"github.com/atelier-ml/atelier/internal/selection"

	"github.com/cozy-creator/hf-hub/hub"
	"github.com/spf13/viper"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type OptionFunc func(*Installer)

// WithProgressOutput redirects download progress bars. The install worker
// passes io.Discard so bar redraws do not pollute the log channel.
func WithProgressOutput(w io.Writer) OptionFunc {
	return func(i *Installer) { i.progressOut = w }
}

func WithHubClient(client *hub.Client) OptionFunc {
	return func(i *Installer) { i.hubClient = client }
}

// Installer executes install requests against the model registry and the
// models directory.
type Installer struct {
	cfg         *config.Config
	logger      *zap.Logger
	db          *bun.DB
	models      registry.IModelRepository
	hubClient   *hub.Client
	progressOut io.Writer
}

func NewInstaller(cfg *config.Config, logger *zap.Logger, opts ...OptionFunc) (*Installer, error) {
	db, err := registry.NewDB(context.Background(), cfg.DBFile, cfg.Environment == "dev")
	if err != nil {
		return nil, fmt.Errorf("failed to open model registry: %w", err)
	}

	inst := &Installer{
		cfg:         cfg,
		logger:      logger.Named("installer"),
		db:          db,
		models:      registry.NewModelRepository(db),
		progressOut: os.Stdout,
	}

	for _, opt := range opts {
		opt(inst)
	}

	if inst.hubClient == nil {
		// The hub client reads HF_TOKEN from the environment, so a token
		// configured in config.yaml or .env still reaches gated repos.
		if cfg.HFToken != "" {
			os.Setenv("HF_TOKEN", cfg.HFToken)
		}

		client := hub.DefaultClient()
		client.CacheDir = cfg.ModelsDir
		inst.hubClient = client
	}

	return inst, nil
}

func (i *Installer) Close() error {
	return i.db.Close()
}

// Models exposes the registry repository backing this installer.
func (i *Installer) Models() registry.IModelRepository {
	return i.models
}

// Apply executes the request: per category removals first, then installs,
// then the scan directory import and option persistence. A failing item is
// reported and skipped so one broken download cannot abort the rest.
func (i *Installer) Apply(ctx context.Context, req selection.InstallRequest) error {
	var failed int

	for _, cat := range selection.AllCategories {
		plan, ok := req.Plans[cat]
		if !ok || plan.IsEmpty() {
			continue
		}

		for _, name := range plan.Remove {
			if err := i.Remove(ctx, cat, name, req.PurgeDeleted); err != nil {
				failed++
				i.logger.Error("Failed to remove model",
					zap.String("category", string(cat)),
					zap.String("name", name),
					zap.Error(err),
				)
				fmt.Println("Error removing model:", err)
			}
		}

		for _, name := range plan.Install {
			if err := i.Install(ctx, cat, name); err != nil {
				failed++
				i.logger.Error("Failed to install model",
					zap.String("category", string(cat)),
					zap.String("name", name),
					zap.Error(err),
				)
				fmt.Println("Error installing model:", err)
			}
		}
	}

	if req.ScanDirectory != "" {
		if err := i.ScanDirectory(ctx, req.ScanDirectory); err != nil {
			failed++
			i.logger.Error("Scan directory import failed", zap.Error(err))
			fmt.Println("Error importing from scan directory:", err)
		}
	}

	if err := i.persistOptions(req); err != nil {
		return fmt.Errorf("failed to persist install options: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d install operations failed", failed)
	}

	return nil
}

// Install resolves the identifier, fetches the artifact and records it in
// the registry under the identifier the selection screens display.
func (i *Installer) Install(ctx context.Context, cat selection.ModelCategory, identifier string) error {
	source, err := ParseModelSource(identifier)
	if err != nil {
		return fmt.Errorf("failed to parse model source: %w", err)
	}

	fmt.Printf("Installing %s...\n", identifier)
	i.logger.Info("Installing model",
		zap.String("category", string(cat)),
		zap.String("source", identifier),
	)

	art, err := i.installFromSource(ctx, cat, source)
	if err != nil {
		return err
	}

	model := &registry.InstalledModel{
		Name:      identifier,
		Category:  string(cat),
		Source:    source.Original,
		Path:      art.Path,
		Digest:    art.Digest,
		SizeBytes: art.Size,
	}
	if _, err := i.models.Upsert(ctx, model); err != nil {
		return fmt.Errorf("failed to record installed model: %w", err)
	}

	fmt.Printf("Installed %s\n", identifier)
	return nil
}

// Remove deregisters the model. With purge, the recorded artifact path is
// deleted from disk as well. A model missing from the registry is not an
// error.
func (i *Installer) Remove(ctx context.Context, cat selection.ModelCategory, name string, purge bool) error {
	model, err := i.models.GetByName(ctx, string(cat), name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			i.logger.Warn("Model not in registry, nothing to remove",
				zap.String("category", string(cat)),
				zap.String("name", name),
			)
			return nil
		}
		return fmt.Errorf("failed to look up model: %w", err)
	}

	if err := i.models.DeleteByName(ctx, string(cat), name); err != nil {
		return fmt.Errorf("failed to deregister model: %w", err)
	}

	if purge && model.Path != "" {
		fmt.Printf("Deleting %s from disk\n", model.Path)
		if err := os.RemoveAll(model.Path); err != nil {
			return fmt.Errorf("failed to delete model files: %w", err)
		}
	}

	fmt.Printf("Removed %s\n", name)
	return nil
}

func (i *Installer) installFromSource(ctx context.Context, cat selection.ModelCategory, source *ModelSource) (*artifact, error) {
	switch source.Type {
	case SourceHuggingFace:
		return i.installHuggingFace(cat, source.Location)
	case SourceCivitai:
		return i.installCivitai(ctx, cat, source.Location)
	case SourceDirect:
		return i.installDirect(ctx, cat, source.Location)
	case SourceFile:
		return i.installFile(source.Location)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", source.Type)
	}
}

// persistOptions writes precision and the autoscan directory back into the
// config file so the next launch picks them up. Without a config file path
// the options only live for this request.
func (i *Installer) persistOptions(req selection.InstallRequest) error {
	if req.ConfigFilePath == "" {
		return nil
	}

	changed := false
	if req.Precision != "" && req.Precision != i.cfg.Precision {
		viper.Set("precision", req.Precision)
		changed = true
	}
	if req.AutoscanOnStartup && req.ScanDirectory != "" {
		viper.Set("scan_directory", req.ScanDirectory)
		viper.Set("autoscan_on_startup", true)
		changed = true
	}

	if !changed {
		return nil
	}

	if err := viper.WriteConfigAs(req.ConfigFilePath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	i.logger.Info("Updated config file", zap.String("path", req.ConfigFilePath))
	return nil
}
