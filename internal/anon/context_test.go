package anon

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pathscrub/internal/origin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStream gives each test its own output slot backed by a temp file.
func fakeStream(t *testing.T) (**os.File, *os.File) {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "stderr"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	slot := f
	return &slot, f
}

func readFile(t *testing.T, f *os.File) string {
	t.Helper()
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return string(data)
}

func setupProject(t *testing.T) (root, testFile string) {
	t.Helper()
	t.Setenv(EnvRoot, "")
	root = filepath.Join(t.TempDir(), "project")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "subdir"), 0755))
	testFile = filepath.Join(root, "subdir", "test_file.py")
	require.NoError(t, os.WriteFile(testFile, []byte("print('test')"), 0644))
	return root, testFile
}

func TestWriterAnonymizesAndCaptures(t *testing.T) {
	a := newTestAnonymizer(t, "/project")
	var dst bytes.Buffer
	w := NewWriter(&dst, a)

	n, err := fmt.Fprintf(w, "Error in '%s'\n", "/project/subdir/test_file.py")
	require.NoError(t, err)
	assert.Equal(t, len("Error in '/project/subdir/test_file.py'\n"), n)

	assert.Equal(t, "Error in '[ROOT]/subdir/test_file.py'\n", dst.String())
	assert.Equal(t, dst.String(), w.String())
	assert.Same(t, a, w.Anonymizer())

	w.Reset()
	assert.Empty(t, w.String())
	assert.NoError(t, w.Flush())
}

func TestWriterDiscardCapture(t *testing.T) {
	var dst bytes.Buffer
	w := NewWriter(&dst, newTestAnonymizer(t, "/project"), DiscardCapture())
	_, err := w.Write([]byte("/project/a\n"))
	require.NoError(t, err)
	assert.Equal(t, "[ROOT]/a\n", dst.String())
	assert.Empty(t, w.String())
}

func TestInstallAnonymizesStream(t *testing.T) {
	root, testFile := setupProject(t)
	slot, orig := fakeStream(t)

	ctx, err := Install(Options{Root: root, Target: slot, Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.True(t, ctx.Installed())
	assert.NotSame(t, orig, *slot)
	assert.Equal(t, root, os.Getenv(EnvRoot))

	fmt.Fprintf(*slot, "Error in '%s'\n", testFile)
	require.NoError(t, ctx.Uninstall())

	out := ctx.Stderr().String()
	assert.NotContains(t, out, root)
	assert.Contains(t, out, "[ROOT]")
	assert.Contains(t, out, "test_file.py")
	assert.Equal(t, out, readFile(t, orig))
}

func TestUninstallRestoresOriginal(t *testing.T) {
	root, _ := setupProject(t)
	slot, orig := fakeStream(t)

	ctx, err := Install(Options{Root: root, Target: slot, Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.Same(t, orig, ctx.Original())

	require.NoError(t, ctx.Uninstall())
	assert.Same(t, orig, *slot)
	assert.False(t, ctx.Installed())

	require.NoError(t, ctx.Uninstall())
	require.NoError(t, Reset(ctx))
	require.NoError(t, Reset(nil))
	assert.Same(t, orig, *slot)
}

func TestConfigureSameRootIsNoop(t *testing.T) {
	root, _ := setupProject(t)
	slot, orig := fakeStream(t)

	first, err := Configure(nil, Options{Root: root, Target: slot, Logger: zap.NewNop()})
	require.NoError(t, err)
	wrapped := *slot

	second, err := Configure(first, Options{Root: root + "/subdir/..", Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, wrapped, *slot)

	require.NoError(t, second.Uninstall())
	assert.Same(t, orig, *slot)
}

func TestConfigureNewRootReplacesContext(t *testing.T) {
	root, testFile := setupProject(t)
	slot, orig := fakeStream(t)

	first, err := Configure(nil, Options{Root: filepath.Join(root, "subdir"), Target: slot, Logger: zap.NewNop()})
	require.NoError(t, err)

	second, err := Configure(first, Options{Root: root, Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.False(t, first.Installed())
	assert.True(t, second.Installed())
	assert.Same(t, orig, second.Original())
	assert.Equal(t, root, second.Root())

	fmt.Fprintln(*slot, testFile)
	require.NoError(t, second.Uninstall())
	assert.Equal(t, "[ROOT]/subdir/test_file.py\n", second.Stderr().String())
	assert.Same(t, orig, *slot)
}

func TestRootFromEnv(t *testing.T) {
	t.Setenv(EnvRoot, "/srv/app/../app")
	root, err := RootFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/srv/app", root)

	t.Setenv(EnvRoot, "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	root, err = RootFromEnv()
	require.NoError(t, err)
	assert.Equal(t, wd, root)
}

func TestHandlePanicWritesAnonymizedReport(t *testing.T) {
	t.Setenv(EnvRoot, "")
	root, err := os.Getwd()
	require.NoError(t, err)
	slot, orig := fakeStream(t)

	var code int
	ctx, err := Install(Options{
		Root:   root,
		Target: slot,
		Logger: zap.NewNop(),
		Exit:   func(c int) { code = c },
	})
	require.NoError(t, err)

	func() {
		defer ctx.HandlePanic()
		fmt.Fprintln(*slot, "about to fail")
		panic(fmt.Sprintf("failed opening %s", filepath.Join(root, "data", "input.txt")))
	}()

	assert.Equal(t, PanicExitCode, code)
	assert.False(t, ctx.Installed())
	assert.Same(t, orig, *slot)

	out := readFile(t, orig)
	assert.True(t, strings.HasPrefix(out, "about to fail\npanic: failed opening [ROOT]/data/input.txt\n"), out)
	assert.Contains(t, out, "[ROOT]/context_test.go:")
	assert.Contains(t, out, "[EXTERNAL]/")
	assert.NotContains(t, out, root)
}

func TestHandlePanicWithoutPanic(t *testing.T) {
	called := false
	ctx := &Context{exit: func(int) { called = true }}
	func() {
		defer ctx.HandlePanic()
	}()
	assert.False(t, called)
}

func TestStackIsAnonymized(t *testing.T) {
	t.Setenv(EnvRoot, "")
	root, err := os.Getwd()
	require.NoError(t, err)
	slot, _ := fakeStream(t)

	ctx, err := Install(Options{Root: root, Target: slot, Logger: zap.NewNop()})
	require.NoError(t, err)
	defer ctx.Uninstall()

	stack := string(ctx.Stack())
	assert.Contains(t, stack, "[ROOT]/context_test.go:")
	assert.NotContains(t, stack, root)

	all := string(ctx.AllStacks())
	assert.Contains(t, all, "goroutine ")
	assert.NotContains(t, all, root)

	var none *Context
	assert.Contains(t, string(none.Stack()), root)
}

func TestDecorators(t *testing.T) {
	a := newTestAnonymizer(t, "/project")

	format := DecorateString(a, func(err error) string { return "error: " + err.Error() })
	assert.Equal(t, "error: open [ROOT]/x.go", format(fmt.Errorf("open /project/x.go")))

	lines := DecorateLines(a, func(n int) []string {
		return []string{fmt.Sprintf("frame %d at /project/a.go:%d", n, n), "  /opt/lib/b.go:1"}
	})
	assert.Equal(t, []string{"frame 3 at [ROOT]/a.go:3", "  [EXTERNAL]/b.go:1"}, lines(3))
}

type staticResolver struct{ o *origin.Origin }

func (s staticResolver) Name() string { return "static" }
func (s staticResolver) Resolve(p string) (*origin.Origin, error) {
	if p != s.o.ImportPath {
		return nil, origin.ErrNotFound
	}
	return s.o, nil
}

func TestWrapResolvers(t *testing.T) {
	root, _ := setupProject(t)
	slot, _ := fakeStream(t)
	ctx, err := Install(Options{Root: root, Target: slot, Logger: zap.NewNop()})
	require.NoError(t, err)
	defer ctx.Uninstall()

	chain := origin.Chain{
		staticResolver{&origin.Origin{
			ImportPath: "example.com/demo/store",
			Dir:        filepath.Join(root, "store"),
			Files:      []string{filepath.Join(root, "store", "store.go")},
		}},
		staticResolver{&origin.Origin{
			ImportPath: "strings",
			Dir:        "/usr/local/go/src/strings",
			Files:      []string{"/usr/local/go/src/strings/builder.go"},
		}},
	}
	wrapped := ctx.WrapResolvers(chain)
	require.Len(t, wrapped, 2)
	assert.Equal(t, "static", wrapped[0].Name())

	o, err := wrapped.Resolve("example.com/demo/store")
	require.NoError(t, err)
	assert.Equal(t, "[ROOT]/store", o.Dir)
	assert.Equal(t, []string{"[ROOT]/store/store.go"}, o.Files)

	o, err = wrapped.Resolve("strings")
	require.NoError(t, err)
	assert.Equal(t, "[EXTERNAL]/strings", o.Dir)
	assert.Equal(t, []string{"[EXTERNAL]/builder.go"}, o.Files)
	assert.Equal(t, "/usr/local/go/src/strings", chain[1].(staticResolver).o.Dir)

	_, err = wrapped.Resolve("missing")
	assert.ErrorIs(t, err, origin.ErrNotFound)
}

func TestDebugOnNilContext(t *testing.T) {
	var ctx *Context
	assert.Equal(t, "/project/a", ctx.Debug("/project/a"))
	assert.Nil(t, ctx.Stderr())
	assert.Nil(t, ctx.Original())
	assert.Equal(t, "", ctx.Root())
}
