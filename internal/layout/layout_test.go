package layout

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hegza/serpent-cli/internal/clierr"
	"github.com/hegza/serpent-cli/internal/driver"
)

var rustLayout = Options{
	SourceDir:       "src",
	SourceExtension: ".py",
	Extension:       ".rs",
	LibraryEntry:    "lib.rs",
	BinaryEntry:     "main.rs",
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		path string
		from string
		to   string
		want string
	}{
		{name: "top level", path: "pkg/a.py", from: "pkg", to: "out", want: "out/src/a.rs"},
		{name: "nested", path: "pkg/sub/deep/b.py", from: "pkg", to: "out", want: "out/src/sub/deep/b.rs"},
		{name: "absolute roots", path: "/home/u/pkg/c.py", from: "/home/u/pkg", to: "/tmp/crate", want: "/tmp/crate/src/c.rs"},
		{name: "trailing slash on root", path: "pkg/a.py", from: "pkg/", to: "out/", want: "out/src/a.rs"},
		{name: "dotted stem", path: "pkg/a.b.py", from: "pkg", to: "out", want: "out/src/a.b.rs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Translate(tt.path, tt.from, tt.to, rustLayout)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestTranslate_BrokenPrecondition(t *testing.T) {
	for _, tc := range []struct{ path, from string }{
		{"other/a.py", "pkg"},
		{"pkg", "pkg"},
		{"pkg/readme.md", "pkg"},
		{"a.py", "/abs/pkg"},
	} {
		_, err := Translate(tc.path, tc.from, "out", rustLayout)
		require.Error(t, err, tc.path)
		assert.True(t, clierr.IsKind(err, clierr.KindInternal), "%s: %v", tc.path, err)
	}
}

func TestTranslate_PrefixExtensionAndInjectivity(t *testing.T) {
	const from, to = "/src/pkg", "/out/crate"

	var inputs []string
	for _, dir := range []string{"", "a", "a/b", "b", "a_b", "ab"} {
		for _, stem := range []string{"x", "y", "x_y", "xy", "__init__", "mod"} {
			inputs = append(inputs, filepath.Join(from, dir, stem+".py"))
		}
	}

	seen := make(map[string]string, len(inputs))
	for _, p := range inputs {
		got, err := Translate(p, from, to, rustLayout)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(got, to+string(filepath.Separator)), got)
		assert.Equal(t, ".rs", filepath.Ext(got))

		prev, dup := seen[got]
		assert.False(t, dup, fmt.Sprintf("%s and %s both translate to %s", prev, p, got))
		seen[got] = p
	}
}

func TestApplyRole(t *testing.T) {
	translated := filepath.FromSlash("out/src/sub/__init__.rs")

	assert.Equal(t, filepath.FromSlash("out/src/sub/lib.rs"), ApplyRole(translated, driver.LibraryEntry, rustLayout))
	assert.Equal(t, filepath.FromSlash("out/src/sub/main.rs"), ApplyRole(translated, driver.BinaryEntry, rustLayout))
	assert.Equal(t, translated, ApplyRole(translated, driver.Plain, rustLayout))
}

func TestRelativePath(t *testing.T) {
	rel, err := RelativePath("/out/crate", "/out/crate/src/main.rs")
	require.NoError(t, err)
	assert.Equal(t, "src/main.rs", rel)
}
