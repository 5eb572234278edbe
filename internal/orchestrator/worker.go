package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/atelier-ml/atelier/internal/config"
	"github.com/atelier-ml/atelier/internal/installer"
	"github.com/atelier-ml/atelier/internal/wire"
	"github.com/atelier-ml/atelier/pkg/logger"

	"github.com/gofrs/flock"
)

const installLockFile = ".install.lock"

// RunWorker is the body of the hidden worker subcommand. It decodes the
// InstallRequest from stdin, redirects the process's own stdout and stderr
// into log frames on the worker channel, runs the installer synchronously,
// and writes the completion frame before exiting. That holds on every exit
// path, including a panic inside the installer.
func RunWorker(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	req, err := wire.ReadRequest(in)
	if err != nil {
		// Even a malformed request honors the channel discipline: report,
		// then complete.
		fw := newFrameWriter(out)
		fw.writeLog(fmt.Sprintf("invalid install request: %v", err))
		fw.writeDone()
		return err
	}

	return runWithChannel(out, func() error {
		log, err := logger.InitLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()

		lock := flock.New(filepath.Join(cfg.AtelierHome, installLockFile))
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire install lock: %w", err)
		}
		if !locked {
			fmt.Println("Another install is in progress, waiting...")
			if err := lock.Lock(); err != nil {
				return fmt.Errorf("failed to acquire install lock: %w", err)
			}
		}
		defer lock.Unlock()

		inst, err := installer.NewInstaller(cfg, log, installer.WithProgressOutput(io.Discard))
		if err != nil {
			return err
		}
		defer inst.Close()

		return inst.Apply(ctx, req)
	})
}

// runWithChannel runs fn with os.Stdout and os.Stderr redirected into log
// frames on out, then writes the completion frame once the redirected
// streams have drained. The deferred teardown also fires on panic, so the
// completion frame is never skipped.
func runWithChannel(out io.Writer, fn func() error) error {
	fw := newFrameWriter(out)

	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		fw.writeDone()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderrReader, stderrWriter, err := os.Pipe()
	if err != nil {
		stdoutReader.Close()
		stdoutWriter.Close()
		fw.writeDone()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	origStdout, origStderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = stdoutWriter, stderrWriter

	var wg sync.WaitGroup
	wg.Add(2)
	go copyLines(&wg, fw, stdoutReader)
	go copyLines(&wg, fw, stderrReader)

	defer func() {
		os.Stdout, os.Stderr = origStdout, origStderr
		stdoutWriter.Close()
		stderrWriter.Close()
		wg.Wait()
		fw.writeDone()
	}()

	return fn()
}

func copyLines(wg *sync.WaitGroup, fw *frameWriter, reader io.ReadCloser) {
	defer wg.Done()
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fw.writeLog(scanner.Text())
	}
}

// frameWriter serializes frame writes from the two redirected streams. Write
// errors are dropped: a failed write means the controller end is gone, and
// the install keeps running headless.
type frameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{w: w}
}

func (fw *frameWriter) writeLog(text string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	_ = wire.WriteFrame(fw.w, wire.Frame{Type: wire.FrameLog, Text: text})
}

func (fw *frameWriter) writeDone() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	_ = wire.WriteFrame(fw.w, wire.Frame{Type: wire.FrameDone})
}
