package installer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/atelier-ml/atelier/internal/registry"
	"github.com/atelier-ml/atelier/internal/selection"
	"github.com/atelier-ml/atelier/internal/utils/pathutil"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

type scannedModel struct {
	path   string
	digest string
	size   int64
	err    error
}

// ScanDirectory walks dir for model files, hashes them in parallel and
// upserts them into the registry. Files are registered in place, nothing
// is copied into the models directory.
func (i *Installer) ScanDirectory(ctx context.Context, dir string) error {
	dir, err := pathutil.ExpandPath(dir)
	if err != nil {
		return fmt.Errorf("failed to expand scan directory: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("scan directory is not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan path %s is not a directory", dir)
	}

	fmt.Printf("Scanning %s for models...\n", dir)
	i.logger.Info("Scanning directory for models", zap.String("dir", dir))

	var candidates []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isModelFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() < minModelFileSize {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk scan directory: %w", err)
	}

	if len(candidates) == 0 {
		fmt.Println("No model files found")
		return nil
	}

	// Hashing dominates the import, spread it over the cores. Each worker
	// writes its own slot so no locking is needed.
	wp := workerpool.New(runtime.NumCPU())
	results := make([]scannedModel, len(candidates))

	for idx, path := range candidates {
		wp.Submit(func() {
			res := scannedModel{path: path}
			res.digest, res.err = fileDigest(path)
			if info, err := os.Stat(path); err == nil {
				res.size = info.Size()
			}
			results[idx] = res
		})
	}
	wp.StopWait()

	imported := 0
	for _, res := range results {
		if res.err != nil {
			i.logger.Warn("Skipping unreadable model file",
				zap.String("path", res.path),
				zap.Error(res.err),
			)
			continue
		}

		name := strings.TrimSuffix(filepath.Base(res.path), filepath.Ext(res.path))
		model := &registry.InstalledModel{
			Name:      name,
			Category:  string(selection.CategoryAdditionalDiffusers),
			Source:    "file:" + res.path,
			Path:      res.path,
			Digest:    res.digest,
			SizeBytes: res.size,
		}
		if _, err := i.models.Upsert(ctx, model); err != nil {
			return fmt.Errorf("failed to register scanned model %s: %w", name, err)
		}

		fmt.Printf("Imported %s\n", res.path)
		imported++
	}

	fmt.Printf("Imported %d of %d model files from %s\n", imported, len(candidates), dir)
	return nil
}
