//go:build integration

package integration

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/app"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
	"github.com/spring-cloud/spring-cloud-contract-sub001/tests/testutil"
)

func TestPublishThenRunFromGit(t *testing.T) {
	testutil.RequireGit(t)
	ctx := t.Context()
	remote := t.TempDir()
	testutil.InitBareGitRepo(t, remote, map[string]string{"README.md": "contracts"})
	location := "git://file://" + remote
	service := app.NewService()

	for version, body := range map[string]string{"1.0.0.RELEASE": "first", "1.1.0.BUILD-SNAPSHOT": "snapshot"} {
		stubs := t.TempDir()
		testutil.WriteMapping(t, stubs, "mappings/beer.json", "/beer", body)
		options := types.DefaultStubRunnerOptions()
		options.RepositoryRoot = location
		_, err := service.Publish(ctx, app.PublishRequest{
			Options:    options,
			Coordinate: "com.example:beer-api:" + version,
			StubsDir:   stubs,
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		stub    string
		version string
		body    string
	}{
		{"latest prefers the newest snapshot", "com.example:beer-api:+", "1.1.0.BUILD-SNAPSHOT", "snapshot"},
		{"release sentinel", "com.example:beer-api:release", "1.0.0.RELEASE", "first"},
		{"explicit version", "com.example:beer-api:1.0.0.RELEASE", "1.0.0.RELEASE", "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := types.DefaultStubRunnerOptions()
			options.StubsMode = types.StubsModeRemote
			options.RepositoryRoot = location
			options.MinPort = 22000
			options.MaxPort = 22999

			session, err := service.Run(t.Context(), app.RunRequest{Options: options, Stubs: []string{tt.stub}})
			require.NoError(t, err)
			defer session.Close(t.Context())

			require.Len(t, session.Bundles, 1)
			assert.Equal(t, tt.version, session.Bundles[0].Coordinate.Version)

			url, ok := session.Batch.FindStubURL("com.example", "beer-api")
			require.True(t, ok)
			resp, err := http.Get(url + "/beer")
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(body))
		})
	}
}
