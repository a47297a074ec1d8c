package manifest

import (
	"log/slog"
	"os"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hegza/serpent-cli/internal/clierr"
)

var testOptions = Options{
	FileName: "Cargo.toml",
	Authors:  []string{"automatically transpiled by serpent"},
	Edition:  "2018",
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBuild(t *testing.T) {
	spec, err := Build("/out/my_crate", map[string]string{"foo": "1.0"}, "/out/my_crate/src/main.rs", "/out/my_crate/src/lib.rs", testOptions)
	require.NoError(t, err)

	assert.Equal(t, "my_crate", spec.Package.Name)
	assert.Equal(t, "0.1.0", spec.Package.Version)
	assert.Equal(t, []string{"automatically transpiled by serpent"}, spec.Package.Authors)
	assert.Equal(t, "2018", spec.Package.Edition)
	assert.Equal(t, map[string]string{"foo": "1.0"}, spec.Dependencies)
	require.NotNil(t, spec.Lib)
	assert.Equal(t, Target{Name: "lib", Path: "src/lib.rs"}, *spec.Lib)
	assert.Equal(t, []Target{{Name: "main", Path: "src/main.rs"}}, spec.Bin)
}

func TestBuild_TargetsOnlyWhenDetected(t *testing.T) {
	spec, err := Build("/out/plain", nil, "", "", testOptions)
	require.NoError(t, err)
	assert.Nil(t, spec.Lib)
	assert.Empty(t, spec.Bin)

	data, err := spec.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "[lib]")
	assert.NotContains(t, string(data), "[[bin]]")
	assert.Contains(t, string(data), "[package]")
}

func TestBuild_InvalidName(t *testing.T) {
	for _, root := range []string{"/out/1crate", "/out/my crate", "/out/crate!"} {
		_, err := Build(root, nil, "", "", testOptions)
		require.Error(t, err, root)
		assert.True(t, clierr.IsKind(err, clierr.KindManifest), root)
	}
}

func TestBuild_TargetOutsideRoot(t *testing.T) {
	_, err := Build("/out/crate", nil, "/elsewhere/main.rs", "", testOptions)
	assert.True(t, clierr.IsKind(err, clierr.KindManifest))
}

func TestMarshal_RoundTrips(t *testing.T) {
	spec, err := Build("/out/crate", map[string]string{"foo": "1.0", "bar": "0.2"}, "/out/crate/src/main.rs", "", testOptions)
	require.NoError(t, err)

	data, err := spec.Marshal()
	require.NoError(t, err)

	var decoded Spec
	require.NoError(t, toml.Unmarshal(data, &decoded))
	assert.Equal(t, *spec, decoded)

	again, err := spec.Marshal()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestWrite_Policy(t *testing.T) {
	fs := afero.NewMemMapFs()
	root := "/out/crate"
	require.NoError(t, fs.MkdirAll(root, 0o755))

	spec, err := Build(root, map[string]string{"foo": "1.0"}, "", "/out/crate/src/lib.rs", testOptions)
	require.NoError(t, err)

	res, err := Write(fs, root, spec, testOptions, false, testLogger())
	require.NoError(t, err)
	assert.Equal(t, Created, res)
	first, err := afero.ReadFile(fs, "/out/crate/Cargo.toml")
	require.NoError(t, err)

	// Overwrite regenerates byte for byte from the same inputs
	res, err = Write(fs, root, spec, testOptions, true, testLogger())
	require.NoError(t, err)
	assert.Equal(t, Regenerated, res)
	second, err := afero.ReadFile(fs, "/out/crate/Cargo.toml")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Without overwrite an existing manifest is untouched
	custom := []byte("[package]\nname = \"hand-written\"\n")
	require.NoError(t, afero.WriteFile(fs, "/out/crate/Cargo.toml", custom, 0o644))
	res, err = Write(fs, root, spec, testOptions, false, testLogger())
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)
	kept, err := afero.ReadFile(fs, "/out/crate/Cargo.toml")
	require.NoError(t, err)
	assert.Equal(t, custom, kept)
}

func TestWrite_ReadOnlyFs(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/out/crate", 0o755))
	fs := afero.NewReadOnlyFs(base)

	spec, err := Build("/out/crate", nil, "", "", testOptions)
	require.NoError(t, err)

	_, err = Write(fs, "/out/crate", spec, testOptions, true, testLogger())
	require.Error(t, err)
	assert.True(t, clierr.IsKind(err, clierr.KindManifest))
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "regenerated", Regenerated.String())
	assert.Equal(t, "skipped", Skipped.String())
}
