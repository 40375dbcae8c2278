package adapters

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
	"github.com/spring-cloud/spring-cloud-contract-sub001/tests/testutil"
)

func stubsOptions(location string, properties map[string]string) types.StubRunnerOptions {
	options := types.DefaultStubRunnerOptions()
	options.StubsMode = types.StubsModeRemote
	options.RepositoryRoot = location
	if properties != nil {
		options.Properties = properties
	}
	return options
}

func TestStubsDownloaderAdapter_CopiesWholeDirectory(t *testing.T) {
	root := t.TempDir()
	testutil.WriteMapping(t, root, "mappings/beer.json", "/beer", "ok")
	testutil.WriteFile(t, root, "contracts/shouldSendBeer.yml", "label: beer_sent\n")

	adapter := NewStubsDownloaderAdapter(stubsOptions("stubs://file://"+root, nil), testRegistry(t))
	bundle, ok, err := adapter.Fetch(t.Context(), beerAPI("+"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "+", bundle.Coordinate.Version)
	assert.FileExists(t, filepath.Join(bundle.LocalPath, "mappings", "beer.json"))
	assert.FileExists(t, filepath.Join(bundle.LocalPath, "contracts", "shouldSendBeer.yml"))
}

func TestStubsDownloaderAdapter_FindProducer(t *testing.T) {
	root := t.TempDir()
	testutil.WriteMapping(t, root, "com.example/beer-api/1.0.0.RELEASE/mappings/beer.json", "/beer", "v1")
	testutil.WriteMapping(t, root, "com.example/beer-api/1.1.0.RELEASE/mappings/beer.json", "/beer", "v1.1")
	testutil.WriteMapping(t, root, "com.example/fraud/1.0.0.RELEASE/mappings/fraud.json", "/fraud", "no")

	properties := map[string]string{"stubs.find-producer": "true"}
	adapter := NewStubsDownloaderAdapter(stubsOptions("stubs://"+root, properties), testRegistry(t))

	t.Run("latest", func(t *testing.T) {
		bundle, ok, err := adapter.Fetch(t.Context(), beerAPI("+"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "1.1.0.RELEASE", bundle.Coordinate.Version)
		assert.FileExists(t, filepath.Join(bundle.LocalPath, "mappings", "beer.json"))
		assert.NoFileExists(t, filepath.Join(bundle.LocalPath, "mappings", "fraud.json"))
	})

	t.Run("explicit version", func(t *testing.T) {
		bundle, ok, err := adapter.Fetch(t.Context(), beerAPI("1.0.0.RELEASE"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "1.0.0.RELEASE", bundle.Coordinate.Version)
	})

	t.Run("missing version", func(t *testing.T) {
		_, ok, err := adapter.Fetch(t.Context(), beerAPI("2.0.0.RELEASE"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStubsDownloaderAdapter_Accepts(t *testing.T) {
	registry := testRegistry(t)

	_, ok, err := NewStubsDownloaderAdapter(stubsOptions("https://repo.example.com", nil), registry).Fetch(t.Context(), beerAPI("+"))
	require.NoError(t, err)
	assert.False(t, ok)

	classpath := stubsOptions("stubs://"+t.TempDir(), nil)
	classpath.StubsMode = types.StubsModeClasspath
	_, ok, err = NewStubsDownloaderAdapter(classpath, registry).Fetch(t.Context(), beerAPI("+"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStubsLocationPath(t *testing.T) {
	assert.Equal(t, filepath.FromSlash("/tmp/stubs"), StubsLocationPath("stubs:///tmp/stubs"))
	assert.Equal(t, filepath.FromSlash("/tmp/stubs"), StubsLocationPath("stubs://file:///tmp/stubs"))
	assert.True(t, IsStubsLocation(" stubs://x"))
	assert.False(t, IsStubsLocation("git://x"))
}
