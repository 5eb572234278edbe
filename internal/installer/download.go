package installer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/atelier-ml/atelier/internal/selection"
	"github.com/atelier-ml/atelier/internal/utils/pathutil"

	"github.com/cozy-creator/hf-hub/hub"
	"github.com/cozy-creator/hf-hub/hub/pipeline"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"
)

// artifact describes what an install produced: where it lives, and for
// single file models the digest and size recorded into the registry.
type artifact struct {
	Path   string
	Digest string
	Size   int64
}

func (i *Installer) installHuggingFace(cat selection.ModelCategory, repoID string) (*artifact, error) {
	i.logger.Info("Downloading from HuggingFace", zap.String("repo_id", repoID))

	switch cat {
	case selection.CategoryStarterDiffusers, selection.CategoryAdditionalDiffusers:
		downloader := pipeline.NewDiffusionPipelineDownloader(i.hubClient)
		if _, err := downloader.Download(repoID, "", nil, nil); err != nil {
			return nil, fmt.Errorf("failed to download pipeline from HuggingFace: %w", err)
		}
	default:
		// ControlNet, LoRA and embedding repos are not diffusion
		// pipelines, a snapshot fetch is enough.
		params := hub.DownloadParams{Repo: &hub.Repo{Id: repoID}}
		if _, err := i.hubClient.Download(&params); err != nil {
			return nil, fmt.Errorf("failed to download repo from HuggingFace: %w", err)
		}
	}

	path := filepath.Join(i.hubClient.CacheDir, repoFolderName(repoID, "model"))
	size, err := dirSize(path)
	if err != nil {
		i.logger.Debug("Could not measure repo size", zap.Error(err))
	}

	return &artifact{Path: path, Size: size}, nil
}

func (i *Installer) installCivitai(ctx context.Context, cat selection.ModelCategory, urlStr string) (*artifact, error) {
	i.logger.Info("Downloading from Civitai", zap.String("url", urlStr))

	if !strings.Contains(urlStr, "civitai.com/api/download/models/") {
		return nil, fmt.Errorf("invalid Civitai URL format. Expected format: https://civitai.com/api/download/models/<model_number>")
	}

	filename, err := i.civitaiFilename(ctx, urlStr)
	if err != nil {
		i.logger.Warn("Could not resolve Civitai filename", zap.Error(err))
	}
	if filename == "" {
		filename = filenameFromURL(urlStr) + ".safetensors"
		i.logger.Warn("Falling back to model number as filename",
			zap.String("fallback_name", filename),
		)
	}

	return i.downloadToCategory(ctx, cat, urlStr, filename)
}

func (i *Installer) installDirect(ctx context.Context, cat selection.ModelCategory, urlStr string) (*artifact, error) {
	i.logger.Info("Downloading from direct URL", zap.String("url", urlStr))

	filename := filenameFromURL(urlStr)
	if filename == "" {
		return nil, fmt.Errorf("cannot derive a filename from %s", urlStr)
	}

	return i.downloadToCategory(ctx, cat, urlStr, filename)
}

func (i *Installer) installFile(location string) (*artifact, error) {
	path, err := pathutil.ExpandPath(location)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path: %w", err)
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	return i.registerFile(path)
}

// downloadToCategory fetches the URL into models_dir/<category>/<filename>.
func (i *Installer) downloadToCategory(ctx context.Context, cat selection.ModelCategory, urlStr, filename string) (*artifact, error) {
	destDir := filepath.Join(i.cfg.ModelsDir, string(cat))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	destPath := filepath.Join(destDir, filename)
	if err := i.downloadWithProgress(ctx, urlStr, destPath); err != nil {
		return nil, err
	}

	return i.registerFile(destPath)
}

// registerFile validates a single file artifact and computes the registry
// metadata for it. The file stays where it is.
func (i *Installer) registerFile(path string) (*artifact, error) {
	if err := verifyFile(path); err != nil {
		return nil, fmt.Errorf("failed to verify file: %w", err)
	}

	digest, err := fileDigest(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &artifact{Path: path, Digest: digest, Size: info.Size()}, nil
}

func (i *Installer) downloadWithProgress(ctx context.Context, urlStr, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{
		Timeout: 0, // no total timeout, model files are large
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 60 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   60 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       60 * time.Second,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	progress := mpb.New(
		mpb.WithOutput(i.progressOut),
		mpb.WithWidth(60),
		mpb.WithRefreshRate(180*time.Millisecond),
	)
	bar := progress.AddBar(resp.ContentLength,
		mpb.PrependDecorators(
			decor.Name(filepath.Base(destPath), decor.WC{W: 40, C: decor.DidentRight}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.EwmaETA(decor.ET_STYLE_GO, 90),
			decor.Name(" ] "),
			decor.EwmaSpeed(decor.UnitKiB, "% .2f", 60),
		),
	)

	reader := bar.ProxyReader(resp.Body)
	defer reader.Close()

	written, err := io.Copy(f, reader)
	if err != nil {
		return fmt.Errorf("download interrupted: %w", err)
	}
	progress.Wait()

	if resp.ContentLength > 0 && written != resp.ContentLength {
		return fmt.Errorf("download size mismatch: expected %d, got %d", resp.ContentLength, written)
	}

	if err := verifyFile(tmpPath); err != nil {
		return fmt.Errorf("failed to verify file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}

	return nil
}

// civitaiFilename asks Civitai where the download redirects to and pulls
// the filename out of the content disposition, falling back to the
// redirect path.
func (i *Installer) civitaiFilename(ctx context.Context, urlStr string) (string, error) {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusMovedPermanently && resp.StatusCode != http.StatusTemporaryRedirect {
		return "", fmt.Errorf("expected redirect response, got status %d", resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("no redirect location found")
	}

	redirectURL, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect location: %w", err)
	}

	if contentDisp := redirectURL.Query().Get("response-content-disposition"); contentDisp != "" {
		re := regexp.MustCompile(`filename="([^"]+)`)
		if matches := re.FindStringSubmatch(contentDisp); len(matches) > 1 {
			return matches[1], nil
		}
	}

	if path := redirectURL.Path; path != "" {
		return filepath.Base(path), nil
	}

	return "", nil
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	name := filepath.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}

	return name
}
