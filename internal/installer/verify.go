package installer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/atelier-ml/atelier/internal/utils/hashutil"
)

// minModelFileSize rejects truncated downloads and stray text files.
const minModelFileSize = 1024 * 1024

var validModelExts = map[string]bool{
	".safetensors": true,
	".ckpt":        true,
	".pt":          true,
	".bin":         true,
}

func isModelFile(path string) bool {
	return validModelExts[strings.ToLower(filepath.Ext(path))]
}

func verifyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file does not exist: %w", err)
	}
	if info.Size() < minModelFileSize {
		return fmt.Errorf("file too small: %d bytes", info.Size())
	}

	if !isModelFile(path) {
		return fmt.Errorf("invalid file extension: %s", filepath.Ext(path))
	}

	// Read the first and last chunk to catch files that stat fine but
	// cannot actually be read back.
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, minModelFileSize)
	if _, err := f.Read(buf); err != nil {
		return fmt.Errorf("failed to read file start: %w", err)
	}
	if _, err := f.Seek(-minModelFileSize, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek file end: %w", err)
	}
	if _, err := f.Read(buf); err != nil {
		return fmt.Errorf("failed to read file end: %w", err)
	}

	return nil
}

func fileDigest(path string) (string, error) {
	digest, err := hashutil.Blake3File(path)
	if err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return digest, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}

// repoFolderName converts "org/repo" to the hub cache layout
// "models--org--repo".
func repoFolderName(repoID, repoType string) string {
	repoParts := strings.Split(repoID, "/")
	parts := append([]string{repoType + "s"}, repoParts...)
	return strings.Join(parts, "--")
}
