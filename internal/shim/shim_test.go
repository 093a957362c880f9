package shim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestInstallWritesShimAndChecksum(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "server.go"), "package server\n\nfunc Run() {}\n")

	res, err := Install(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "server", res.Package)
	assert.False(t, res.Overwrote)
	assert.Equal(t, filepath.Join(dir, DefaultFileName), res.Path)

	src, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(src), "package server\n")
	assert.Contains(t, string(src), `import _ "pathscrub/auto"`)
	assert.Contains(t, string(src), `"defer auto.HandlePanic()"`)

	sum, err := os.ReadFile(res.SumPath)
	require.NoError(t, err)
	assert.Equal(t, res.Checksum, strings.TrimSpace(string(sum)))
	assert.Len(t, res.Checksum, 64)

	assert.NoError(t, Verify(Options{Dir: dir}))
}

func TestInstallRefusesExistingShim(t *testing.T) {
	dir := t.TempDir()
	_, err := Install(Options{Dir: dir})
	require.NoError(t, err)

	_, err = Install(Options{Dir: dir})
	assert.ErrorIs(t, err, ErrShimExists)

	res, err := Install(Options{Dir: dir, Force: true})
	require.NoError(t, err)
	assert.True(t, res.Overwrote)
}

func TestInstallExplicitPackageAndImport(t *testing.T) {
	dir := t.TempDir()
	res, err := Install(Options{Dir: dir, Package: "tool", ImportPath: "example.com/x/auto", FileName: "a.go"})
	require.NoError(t, err)

	src, err := os.ReadFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "package tool\n")
	assert.Contains(t, string(src), `import _ "example.com/x/auto"`)
	assert.Equal(t, "tool", res.Package)
}

func TestDetectPackage(t *testing.T) {
	dir := t.TempDir()
	pkg, err := DetectPackage(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "main", pkg)

	writeFile(t, filepath.Join(dir, "a_test.go"), "package lib_test\n")
	writeFile(t, filepath.Join(dir, "broken.go"), "this is not go")
	writeFile(t, filepath.Join(dir, "lib.go"), "// Package lib.\npackage lib\n")
	pkg, err = DetectPackage(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "lib", pkg)

	_, err = DetectPackage(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}

func TestVerifyDetectsModification(t *testing.T) {
	dir := t.TempDir()
	res, err := Install(Options{Dir: dir})
	require.NoError(t, err)

	f, err := os.OpenFile(res.Path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("// edited\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.ErrorIs(t, Verify(Options{Dir: dir}), ErrChecksumMismatch)
	assert.ErrorIs(t, Uninstall(Options{Dir: dir}), ErrChecksumMismatch)
	assert.FileExists(t, res.Path)
	assert.FileExists(t, res.SumPath)
}

func TestVerifyMissingFiles(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorIs(t, Verify(Options{Dir: dir}), ErrNotInstalled)
	assert.ErrorIs(t, Uninstall(Options{Dir: dir}), ErrNotInstalled)

	res, err := Install(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, os.Remove(res.SumPath))
	assert.ErrorIs(t, Verify(Options{Dir: dir}), ErrChecksumMissing)
	assert.FileExists(t, res.Path)
}

func TestUninstallRemovesBoth(t *testing.T) {
	dir := t.TempDir()
	res, err := Install(Options{Dir: dir})
	require.NoError(t, err)

	require.NoError(t, Uninstall(Options{Dir: dir}))
	assert.NoFileExists(t, res.Path)
	assert.NoFileExists(t, res.SumPath)
}

func TestFileChecksumStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	writeFile(t, path, "hello")
	a, err := FileChecksum(path)
	require.NoError(t, err)
	b, err := FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	writeFile(t, path, "hello!")
	c, err := FileChecksum(path)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = FileChecksum(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestWatcherReportsTampering(t *testing.T) {
	dir := t.TempDir()
	res, err := Install(Options{Dir: dir})
	require.NoError(t, err)

	statuses := make(chan Status, 16)
	w, err := NewWatcher(Options{Dir: dir}, func(s Status) { statuses <- s })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx))

	writeFile(t, res.Path, "package main\n")

	select {
	case s := <-statuses:
		assert.False(t, s.OK())
		assert.ErrorIs(t, s.Err, ErrChecksumMismatch)
		assert.Equal(t, res.Path, s.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no status after modifying the shim")
	}

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(Options{Dir: dir}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not exit after cancel")
	}
	require.NoError(t, w.Stop())
}

func TestWatcherStartFailsOnMissingDir(t *testing.T) {
	w, err := NewWatcher(Options{Dir: filepath.Join(t.TempDir(), "missing")}, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}
