package remap

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hegza/serpent-cli/internal/clierr"
	"github.com/hegza/serpent-cli/internal/target"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const validRemap = `
numpy = "ndarray"

[dependencies]
foo = "1.0"
ndarray = "0.15"
`

func TestParse(t *testing.T) {
	cfg, err := Parse("Remap.toml", []byte(validRemap))
	require.NoError(t, err)

	assert.Equal(t, "Remap.toml", cfg.Path)
	assert.Equal(t, map[string]string{"foo": "1.0", "ndarray": "0.15"}, cfg.Dependencies)
	assert.Equal(t, map[string]string{"numpy": "ndarray"}, cfg.Remaps)
}

func TestParse_InlineDependencies(t *testing.T) {
	cfg, err := Parse("Remap.toml", []byte(`dependencies = { foo = "1.0" }`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"foo": "1.0"}, cfg.Dependencies)
	assert.Empty(t, cfg.Remaps)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantKey      string
		wantExpected string
	}{
		{name: "missing dependencies", content: `numpy = "ndarray"`, wantKey: "dependencies", wantExpected: "table"},
		{name: "dependencies not a table", content: `dependencies = "foo"`, wantKey: "dependencies", wantExpected: "table"},
		{name: "version not a string", content: "[dependencies]\nfoo = 1", wantKey: "dependencies.foo", wantExpected: "string"},
		{name: "detailed dependency table", content: "[dependencies]\nfoo = { version = \"1.0\" }", wantKey: "dependencies.foo", wantExpected: "string"},
		{name: "remap not a string", content: "numpy = [\"a\"]\n[dependencies]\n", wantKey: "numpy", wantExpected: "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("Remap.toml", []byte(tt.content))
			require.Error(t, err)
			assert.True(t, clierr.IsKind(err, clierr.KindConfigContent), "got %v", err)

			var ce *clierr.ContentError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.wantKey, ce.Key)
			assert.Equal(t, tt.wantExpected, ce.Expected)
		})
	}
}

func TestParse_MalformedTOML(t *testing.T) {
	_, err := Parse("Remap.toml", []byte("[dependencies\nfoo = "))
	require.Error(t, err)
	assert.True(t, clierr.IsKind(err, clierr.KindConfigContent))
	assert.Contains(t, err.Error(), "line")
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/mod/Remap.toml", []byte(validRemap), 0o644))

	cfg, err := Load(fs, "/mod/Remap.toml")
	require.NoError(t, err)
	assert.Equal(t, "1.0", cfg.Dependencies["foo"])

	_, err = Load(fs, "/mod/Missing.toml")
	assert.True(t, clierr.IsKind(err, clierr.KindIO))
}

// locateFixture lays out:
//
//	/work/Remap.toml            (parent of the module)
//	/work/pkg/                  (module, optionally with its own Remap.toml)
//	/work/pkg/main.py
//	/explicit/Custom.toml
func locateFixture(t *testing.T, moduleRemap, parentRemap bool) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work/pkg", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/work/pkg/main.py", []byte("x = 1\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/explicit/Custom.toml", []byte(validRemap), 0o644))
	if moduleRemap {
		require.NoError(t, afero.WriteFile(fs, "/work/pkg/Remap.toml", []byte(validRemap), 0o644))
	}
	if parentRemap {
		require.NoError(t, afero.WriteFile(fs, "/work/Remap.toml", []byte(validRemap), 0o644))
	}
	return fs
}

func TestLocate_Order(t *testing.T) {
	module := target.Target{Kind: target.Module, Path: "/work/pkg"}
	file := target.Target{Kind: target.File, Path: "/work/pkg/main.py"}

	tests := []struct {
		name        string
		moduleRemap bool
		parentRemap bool
		opts        LocateOptions
		target      target.Target
		want        string
	}{
		{name: "explicit wins", moduleRemap: true, parentRemap: true, opts: LocateOptions{Explicit: "/explicit/Custom.toml"}, target: module, want: "/explicit/Custom.toml"},
		{name: "module root before parent", moduleRemap: true, parentRemap: true, target: module, want: "/work/pkg/Remap.toml"},
		{name: "module parent as fallback", parentRemap: true, target: module, want: "/work/Remap.toml"},
		{name: "nothing found", target: module, want: ""},
		{name: "no-remap forces none", moduleRemap: true, parentRemap: true, opts: LocateOptions{Disabled: true}, target: module, want: ""},
		{name: "file looks in its directory", moduleRemap: true, target: file, want: "/work/pkg/Remap.toml"},
		{name: "file does not look further up", parentRemap: true, target: file, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := locateFixture(t, tt.moduleRemap, tt.parentRemap)
			opts := tt.opts
			opts.FileName = "Remap.toml"

			got, err := Locate(fs, opts, tt.target, testLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocate_ModuleParentOfRelativeRoot(t *testing.T) {
	dir := t.TempDir()
	pkg := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(filepath.Join(pkg, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Remap.toml"), []byte(validRemap), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(pkg))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	want, err := os.Stat(filepath.Join(dir, "Remap.toml"))
	require.NoError(t, err)

	for _, root := range []string{".", "sub/.."} {
		t.Run(root, func(t *testing.T) {
			got, err := Locate(afero.NewOsFs(), LocateOptions{FileName: "Remap.toml"},
				target.Target{Kind: target.Module, Path: root}, testLogger())
			require.NoError(t, err)
			require.NotEmpty(t, got)

			info, err := os.Stat(got)
			require.NoError(t, err)
			assert.True(t, os.SameFile(want, info), "found %s", got)
		})
	}
}

func TestLocate_ExplicitMissing(t *testing.T) {
	fs := locateFixture(t, true, true)
	_, err := Locate(fs, LocateOptions{Explicit: "/explicit/Nope.toml", FileName: "Remap.toml"},
		target.Target{Kind: target.Module, Path: "/work/pkg"}, testLogger())
	require.Error(t, err)
	assert.True(t, clierr.IsKind(err, clierr.KindNotFound))
}

func TestMergeDependencies(t *testing.T) {
	cfg := &Config{Dependencies: map[string]string{"foo": "1.0", "log": "0.4.17"}}
	merged := cfg.MergeDependencies(map[string]string{"log": "0.4", "serde": "1"})
	assert.Equal(t, map[string]string{"foo": "1.0", "log": "0.4.17", "serde": "1"}, merged)

	var none *Config
	assert.Equal(t, map[string]string{"serde": "1"}, none.MergeDependencies(map[string]string{"serde": "1"}))
}

func TestResolve(t *testing.T) {
	module := target.Target{Kind: target.Module, Path: "/work/pkg"}

	fs := locateFixture(t, false, true)
	cfg, err := Resolve(fs, LocateOptions{FileName: "Remap.toml"}, module, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "/work/Remap.toml", cfg.Path)

	fs = locateFixture(t, false, false)
	cfg, err = Resolve(fs, LocateOptions{FileName: "Remap.toml"}, module, testLogger())
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)
	assert.Empty(t, cfg.Remaps)
}
