package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"run", "resolve", "publish"} {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
	assert.Equal(t, "stubrunner", root.Use)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := newRunCommand()
	flags := []string{
		"stubs", "repository-root", "stubs-mode", "min-port", "max-port",
		"classifier", "fail-on-no-stubs", "delete-stubs-after-test",
		"stubs-per-consumer", "consumer-name", "mappings-output",
		"username", "password", "classpath-root", "property",
		"http-timeout", "http-retries", "http-retry-delay-ms",
		"trigger", "exit-after-start",
	}
	for _, name := range flags {
		flag := cmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
}

func TestResolveCommandFlags(t *testing.T) {
	cmd := newResolveCommand()
	for _, name := range []string{"stubs", "repository-root", "output", "property"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestPublishCommandFlags(t *testing.T) {
	cmd := newPublishCommand()
	for _, name := range []string{"repository-root", "coordinate", "stubs-dir", "classifier", "property"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestStubRunnerFlagsOptions(t *testing.T) {
	opts := &runOptions{}
	cmd := &cobra.Command{Use: "test"}
	opts.register(cmd)
	require.NoError(t, cmd.Flags().Set("repository-root", "stubs:///tmp/repo"))
	require.NoError(t, cmd.Flags().Set("stubs-mode", "local"))
	require.NoError(t, cmd.Flags().Set("min-port", "20000"))
	require.NoError(t, cmd.Flags().Set("max-port", "20010"))
	require.NoError(t, cmd.Flags().Set("property", "git.branch=main"))
	require.NoError(t, cmd.Flags().Set("stubs", "com.example:svc:+:stubs:9876"))

	options := opts.options(cmd)
	assert.Equal(t, "stubs:///tmp/repo", options.RepositoryRoot)
	assert.Equal(t, types.StubsModeLocal, options.StubsMode)
	assert.Equal(t, 20000, options.MinPort)
	assert.Equal(t, 20010, options.MaxPort)
	assert.Equal(t, map[string]string{"git.branch": "main"}, options.Properties)
	assert.True(t, options.DeleteStubsAfterTest)
	assert.Equal(t, []string{"com.example:svc:+:stubs:9876"}, opts.stubs(cmd))
}

func TestCutLast(t *testing.T) {
	notation, label, ok := cutLast("com.example:svc:book_returned", ":")
	assert.True(t, ok)
	assert.Equal(t, "com.example:svc", notation)
	assert.Equal(t, "book_returned", label)

	_, label, ok = cutLast("book_returned", ":")
	assert.False(t, ok)
	assert.Equal(t, "book_returned", label)
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		value    string
		expected string
	}{
		{
			name:     "nil cmd with value returns value",
			cmd:      nil,
			value:    "explicit",
			expected: "explicit",
		},
		{
			name:     "nil cmd empty value returns empty",
			cmd:      nil,
			value:    "",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveString(tt.cmd, tt.value, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveStrings(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		values   []string
		expected []string
	}{
		{
			name:     "nil cmd with values returns values",
			cmd:      nil,
			values:   []string{"a", "b"},
			expected: []string{"a", "b"},
		},
		{
			name:     "nil cmd empty returns nil",
			cmd:      nil,
			values:   nil,
			expected: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStrings(tt.cmd, tt.values, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveBool(t *testing.T) {
	got := resolveBool(nil, true, "test_key", "test-flag")
	assert.True(t, got)

	got = resolveBool(nil, false, "test_key", "test-flag")
	assert.False(t, got)
}

func TestResolveInt(t *testing.T) {
	got := resolveInt(nil, 42, "test_key", "test-flag")
	assert.Equal(t, 42, got)
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")
}

func TestFlagChangedAfterSet(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid version format [1.0]"),
			expected: 2,
		},
		{
			name: "already exists",
			err: errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg("dup"),
			expected: 2,
		},
		{
			name: "no port available",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("could not find available port in range 10000:10001"),
			expected: 4,
		},
		{
			name: "permission denied",
			err: errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg("repository rejected credentials"),
			expected: 3,
		},
		{
			name: "unmatched trigger",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("no contract matched label [foo], available labels are []"),
			expected: 4,
		},
		{
			name: "no stubs found",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("no stubs were found for [com.example:svc:+:stubs]"),
			expected: 5,
		},
		{
			name: "internal error",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("boom"),
			expected: 5,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exitCodeForError(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "errbuilder with msg",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("something broke"),
			expected: "something broke",
		},
		{
			name:     "plain error",
			err:      assert.AnError,
			expected: assert.AnError.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorMessage(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// ---------- Logging and config tests ----------

func TestNewLogger(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "warn")
	logger.Info().Msg("hidden")
	logger.Warn().Str("coordinate", "com.example:svc").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"coordinate":"com.example:svc"`)

	buf.Reset()
	logger = newLogger(&buf, "console", "bogus")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	logger.Info().Msg("plain")
	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestInitConfigExplicitFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	path := filepath.Join(t.TempDir(), "stubrunner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repository_root: stubs:///tmp/stubs\nmin_port: 21000\n"), 0o644))

	require.NoError(t, initConfig(path))
	assert.Equal(t, "stubs:///tmp/stubs", viper.GetString("repository_root"))
	assert.Equal(t, 21000, viper.GetInt("min_port"))

	err := initConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}
