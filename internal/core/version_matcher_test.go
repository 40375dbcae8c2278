package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755))
	}
}

func coordinate(version string) types.StubCoordinate {
	return types.StubCoordinate{Group: "com.example", Artifact: "beer-api", Version: version, Classifier: "stubs"}
}

func TestFindStubDirectoryLayouts(t *testing.T) {
	layouts := []string{
		"com.example.beer-api/1.0.0.RELEASE",
		"com.example/beer-api/1.0.0.RELEASE",
		"com/example/beer-api/1.0.0.RELEASE",
		"META-INF/com.example/beer-api/1.0.0.RELEASE",
	}
	for _, layout := range layouts {
		t.Run(layout, func(t *testing.T) {
			root := t.TempDir()
			mkdirs(t, root, layout)

			dir, ok, err := FindStubDirectory(t.Context(), root, coordinate("1.0.0.RELEASE"))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(layout)), dir)
		})
	}
}

func TestFindStubDirectorySentinels(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root,
		"com.example/beer-api/1.0.0.RELEASE",
		"com.example/beer-api/1.1.0.BUILD-SNAPSHOT",
		"com.example/beer-api/0.9.0.M1",
		"com.example/beer-api/not-a-version",
	)
	base := filepath.Join(root, "com.example", "beer-api")

	tests := []struct {
		version  string
		expected string
	}{
		{"+", "1.1.0.BUILD-SNAPSHOT"},
		{"", "1.1.0.BUILD-SNAPSHOT"},
		{"latest", "1.1.0.BUILD-SNAPSHOT"},
		{"release", "1.0.0.RELEASE"},
		{"0.9.0.M1", "0.9.0.M1"},
	}
	for _, tt := range tests {
		t.Run("version "+tt.version, func(t *testing.T) {
			dir, ok, err := FindStubDirectory(t.Context(), root, coordinate(tt.version))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, filepath.Join(base, tt.expected), dir)
		})
	}
}

func TestFindStubDirectoryPrefersSnapshotOfSameNumber(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root,
		"com.example.beer-api/1.0.0.RELEASE",
		"com.example.beer-api/1.0.0.BUILD-SNAPSHOT",
	)

	dir, ok, err := FindStubDirectory(t.Context(), root, coordinate("+"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.0.0.BUILD-SNAPSHOT", filepath.Base(dir))
}

func TestFindStubDirectoryExplicitLatestDirectory(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root,
		"com.example/beer-api/latest",
		"com.example/beer-api/2.0.0.RELEASE",
	)

	dir, ok, err := FindStubDirectory(t.Context(), root, coordinate("+"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "latest", filepath.Base(dir))
}

func TestFindStubDirectoryNotFound(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root,
		"com.example/other-api/1.0.0.RELEASE",
		"com.example/beer-api/1.0.0",
		".git/com.example/beer-api/1.0.0.RELEASE",
	)

	_, ok, err := FindStubDirectory(t.Context(), root, coordinate("1.0.0.RELEASE"))
	require.NoError(t, err)
	assert.False(t, ok, ".git is never searched")

	_, ok, err = FindStubDirectory(t.Context(), root, coordinate("+"))
	require.NoError(t, err)
	assert.False(t, ok, "plain numeric directories are not versions")
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, EscapeGlob("a*b?c[d]"))
	assert.Equal(t, "com.example", EscapeGlob("com.example"))
}

func TestIsSentinelVersion(t *testing.T) {
	for _, version := range []string{"", "+", "latest", "LATEST", "release"} {
		assert.True(t, IsSentinelVersion(version), version)
	}
	assert.False(t, IsSentinelVersion("1.0.0.RELEASE"))
}

func TestPickVersion(t *testing.T) {
	names := []string{"1.0.0.RELEASE", "1.1.0.BUILD-SNAPSHOT", "notes", "1.0.0"}
	tests := []struct {
		name      string
		names     []string
		requested string
		want      string
		wantOK    bool
	}{
		{"latest takes the newest version", names, "+", "1.1.0.BUILD-SNAPSHOT", true},
		{"release skips snapshots", names, "release", "1.0.0.RELEASE", true},
		{"latest prefers a snapshot of the same number", []string{"2.0.0.RELEASE", "2.0.0.BUILD-SNAPSHOT", "1.0.0.RELEASE"}, "latest", "2.0.0.BUILD-SNAPSHOT", true},
		{"explicit release entry wins", []string{"9.0.0.RELEASE", "release"}, "release", "release", true},
		{"explicit latest entry wins", []string{"9.0.0.RELEASE", "latest"}, "", "latest", true},
		{"release without releases", []string{"1.0.0.BUILD-SNAPSHOT"}, "release", "", false},
		{"no versions", []string{"notes"}, "+", "", false},
		{"concrete versions pass through", names, "1.0.0.RELEASE", "1.0.0.RELEASE", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickVersion(t.Context(), tt.names, tt.requested)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
