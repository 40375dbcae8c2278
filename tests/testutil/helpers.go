// Package testutil provides shared test helpers used across integration,
// e2e, and unit test packages.
package testutil

import (
	"archive/zip"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// WriteFile writes content to root/rel, creating parent directories, and
// returns the absolute path.
func WriteFile(t *testing.T, root string, rel string, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// MappingJSON renders a minimal WireMock mapping answering GET url with
// status and body.
func MappingJSON(t *testing.T, url string, status int, body string) string {
	t.Helper()
	mapping := map[string]any{
		"request":  map[string]any{"method": "GET", "url": url},
		"response": map[string]any{"status": status, "body": body},
	}
	data, err := json.Marshal(mapping)
	require.NoError(t, err)
	return string(data)
}

// WriteMapping writes a mapping file built by MappingJSON.
func WriteMapping(t *testing.T, root string, rel string, url string, body string) string {
	t.Helper()
	return WriteFile(t, root, rel, MappingJSON(t, url, 200, body))
}

// WriteStubJar packs files (relative path to content) into a zip archive
// at path.
func WriteStubJar(t *testing.T, path string, files map[string]string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	writer := zip.NewWriter(out)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return path
}

// RequireGit skips the test when the git binary is missing. Local
// file transports of go-git delegate to git-upload-pack and
// git-receive-pack.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// InitGitRepo creates a repository in dir on the master branch with one
// commit holding files.
func InitGitRepo(t *testing.T, dir string, files map[string]string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	for rel, content := range files {
		WriteFile(t, dir, rel, content)
	}
	worktree, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, worktree.AddWithOptions(&git.AddOptions{All: true}))
	_, err = worktree.Commit("initial contracts", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@localhost", When: time.Now()},
	})
	require.NoError(t, err)
	return repo
}

// InitBareGitRepo creates a bare repository in dir seeded with files.
func InitBareGitRepo(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	_, err := git.PlainInit(dir, true)
	require.NoError(t, err)
	source := InitGitRepo(t, t.TempDir(), files)
	_, err = source.CreateRemote(&config.RemoteConfig{Name: git.DefaultRemoteName, URLs: []string{dir}})
	require.NoError(t, err)
	require.NoError(t, source.Push(&git.PushOptions{RemoteName: git.DefaultRemoteName}))
}
