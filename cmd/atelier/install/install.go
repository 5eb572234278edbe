package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atelier-ml/atelier/internal/catalog"
	"github.com/atelier-ml/atelier/internal/config"
	"github.com/atelier-ml/atelier/internal/installer"
	"github.com/atelier-ml/atelier/internal/orchestrator"
	"github.com/atelier-ml/atelier/internal/registry"
	"github.com/atelier-ml/atelier/internal/selection"
	"github.com/atelier-ml/atelier/internal/tui"
	"github.com/atelier-ml/atelier/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var Cmd = &cobra.Command{
	Use:   "install",
	Short: "Install and remove Stable Diffusion models",
	Long:  "Opens an interactive form for curating the installed model set, or installs the recommended models directly with --yes",
	RunE:  runInstall,
}

func init() {
	flags := Cmd.Flags()

	flags.BoolP("yes", "y", false, "Install the recommended models without prompting")
	flags.Bool("default-only", false, "With --yes, install only the default model")
	flags.Bool("full-precision", false, "Use float32 precision for installed models")
	flags.String("scan-dir", "", "Directory to scan for model files to import")

	bindEnvs()
}

func bindEnvs() {
	// Example: HF_TOKEN (does NOT use the ATELIER_ prefix)
	viper.BindEnv("hf_token", "HF_TOKEN")
}

func runInstall(cmd *cobra.Command, _ []string) error {
	cfg := config.GetConfig()

	log, err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	yes, _ := cmd.Flags().GetBool("yes")
	defaultOnly, _ := cmd.Flags().GetBool("default-only")
	fullPrecision, _ := cmd.Flags().GetBool("full-precision")
	scanDir, _ := cmd.Flags().GetString("scan-dir")

	precision := cfg.Precision
	if fullPrecision {
		precision = config.PrecisionFloat32
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The autoscan checkbox persists a directory for exactly this moment:
	// pick up models dropped there since the last run.
	if cfg.AutoscanOnStartup && cfg.ScanDirectory != "" {
		if err := startupScan(ctx, cfg, log); err != nil {
			log.Warn("Startup scan failed", zap.Error(err))
		}
	}

	if yes {
		return runPreselected(ctx, cfg, log, cat, defaultOnly, precision, scanDir)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the install form needs an interactive terminal; use --yes for unattended installs")
	}

	if scanDir != "" {
		cfg.ScanDirectory = scanDir
	}

	return runInteractive(ctx, cfg, log, cat, precision)
}

func startupScan(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	inst, err := installer.NewInstaller(cfg, log)
	if err != nil {
		return err
	}
	defer inst.Close()

	return inst.ScanDirectory(ctx, cfg.ScanDirectory)
}

// runPreselected installs the recommended starter set, or just the default
// model with --default-only, without bringing up the form.
func runPreselected(ctx context.Context, cfg *config.Config, log *zap.Logger, cat *catalog.Catalog, defaultOnly bool, precision, scanDir string) error {
	chosen := cat.Recommended()
	if defaultOnly {
		repo, ok := cat.DefaultModel()
		if !ok {
			return fmt.Errorf("the catalog declares no default model")
		}
		chosen = []string{repo}
	}

	inst, err := installer.NewInstaller(cfg, log)
	if err != nil {
		return err
	}
	defer inst.Close()

	installed, err := inst.Models().InstalledSet(ctx, string(selection.CategoryStarterDiffusers))
	if err != nil {
		return fmt.Errorf("failed to list installed models: %w", err)
	}

	var toInstall []string
	for _, repo := range chosen {
		if !installed[repo] {
			toInstall = append(toInstall, repo)
		}
	}

	req := selection.InstallRequest{
		Plans: map[selection.ModelCategory]selection.InstallPlan{
			selection.CategoryStarterDiffusers: {Install: toInstall},
		},
		ScanDirectory:  scanDir,
		Precision:      precision,
		ConfigFilePath: cfg.ConfigFile,
	}
	if req.IsEmpty() {
		fmt.Println("All requested models are already installed")
		return nil
	}

	return inst.Apply(ctx, req)
}

// runInteractive drives the full-screen form. Installs triggered from inside
// the form run in a worker process; a selection applied on exit runs here,
// after the terminal has been restored.
func runInteractive(ctx context.Context, cfg *config.Config, log *zap.Logger, cat *catalog.Catalog, precision string) error {
	db, err := registry.NewDB(ctx, cfg.DBFile, false)
	if err != nil {
		return err
	}

	orch := orchestrator.NewOrchestrator(log)

	req, cancelled, err := tui.Run(ctx, cfg, log, cat, registry.NewModelRepository(db), orch, precision)

	// Release the registry handle before the in-process run opens its own.
	if closeErr := db.Close(); closeErr != nil {
		log.Warn("Failed to close registry", zap.Error(closeErr))
	}

	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("Goodbye! Come back soon.")
			return nil
		}
		return err
	}

	if cancelled {
		fmt.Println("Goodbye! Come back soon.")
		return nil
	}

	if req == nil {
		return nil
	}

	inst, err := installer.NewInstaller(cfg, log)
	if err != nil {
		return err
	}
	defer inst.Close()

	if err := inst.Apply(ctx, *req); err != nil {
		if ctx.Err() != nil {
			fmt.Println("Goodbye! Come back soon.")
			return nil
		}
		return err
	}

	return nil
}
