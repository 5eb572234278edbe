package installer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModelFile(t *testing.T, path string, size int) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o644))
}

func TestVerifyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	valid := filepath.Join(dir, "model.safetensors")
	writeModelFile(t, valid, 2*minModelFileSize)
	assert.NoError(t, verifyFile(valid))

	ckpt := filepath.Join(dir, "legacy.CKPT")
	writeModelFile(t, ckpt, 2*minModelFileSize)
	assert.NoError(t, verifyFile(ckpt))
}

func TestVerifyFileRejectsMissing(t *testing.T) {
	t.Parallel()

	err := verifyFile(filepath.Join(t.TempDir(), "nope.safetensors"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestVerifyFileRejectsSmall(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tiny.safetensors")
	writeModelFile(t, path, 512)

	err := verifyFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too small")
}

func TestVerifyFileRejectsExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	writeModelFile(t, path, 2*minModelFileSize)

	err := verifyFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file extension")
}

func TestFileDigest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a := filepath.Join(dir, "a.safetensors")
	b := filepath.Join(dir, "b.safetensors")
	writeModelFile(t, a, 2*minModelFileSize)
	writeModelFile(t, b, 2*minModelFileSize)

	digestA, err := fileDigest(a)
	require.NoError(t, err)
	digestB, err := fileDigest(b)
	require.NoError(t, err)

	// Same content hashes the same regardless of the file name.
	assert.Equal(t, digestA, digestB)
	assert.Len(t, digestA, 64)

	require.NoError(t, os.WriteFile(b, bytes.Repeat([]byte{0xCD}, 2*minModelFileSize), 0o644))
	digestB, err = fileDigest(b)
	require.NoError(t, err)
	assert.NotEqual(t, digestA, digestB)
}

func TestDirSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeModelFile(t, filepath.Join(dir, "one.bin"), minModelFileSize)
	writeModelFile(t, filepath.Join(dir, "sub", "two.bin"), minModelFileSize)

	size, err := dirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(2*minModelFileSize), size)
}

func TestRepoFolderName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "models--runwayml--stable-diffusion-v1-5", repoFolderName("runwayml/stable-diffusion-v1-5", "model"))
}
