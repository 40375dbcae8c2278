package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

type fakeDownloader struct {
	name  string
	found bool
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeDownloader) Name() string { return f.name }

func (f *fakeDownloader) Fetch(_ context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil || !f.found {
		return types.ResolvedBundle{}, false, f.err
	}
	return types.ResolvedBundle{Coordinate: coordinate, LocalPath: "/tmp/" + f.name}, true, nil
}

func TestResolutionChainOrder(t *testing.T) {
	first := &fakeDownloader{name: "classpath"}
	second := &fakeDownloader{name: "git", found: true}
	third := &fakeDownloader{name: "maven", found: true}
	chain := NewResolutionChain("git://example", false, first, nil, second, third)

	bundle, ok, err := chain.Resolve(t.Context(), coordinate("1.0.0.RELEASE"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/tmp/git", bundle.LocalPath)
	assert.EqualValues(t, 1, first.calls.Load())
	assert.EqualValues(t, 1, second.calls.Load())
	assert.EqualValues(t, 0, third.calls.Load(), "later downloaders are not consulted")
}

func TestResolutionChainCachesHits(t *testing.T) {
	downloader := &fakeDownloader{name: "stubs", found: true}
	chain := NewResolutionChain("stubs://file:///tmp", false, downloader)

	for range 3 {
		_, ok, err := chain.Resolve(t.Context(), coordinate("1.0.0.RELEASE"))
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.EqualValues(t, 1, downloader.calls.Load())

	_, _, err := chain.Resolve(t.Context(), coordinate("2.0.0.RELEASE"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, downloader.calls.Load(), "a different version is a different key")
}

func TestResolutionChainDoesNotCacheMisses(t *testing.T) {
	downloader := &fakeDownloader{name: "stubs"}
	chain := NewResolutionChain("", false, downloader)

	for range 2 {
		_, ok, err := chain.Resolve(t.Context(), coordinate("1.0.0.RELEASE"))
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.EqualValues(t, 2, downloader.calls.Load())
}

func TestResolutionChainCollapsesConcurrentRequests(t *testing.T) {
	downloader := &fakeDownloader{name: "maven", found: true, delay: 50 * time.Millisecond}
	chain := NewResolutionChain("https://repo.example", false, downloader)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, ok, err := chain.Resolve(context.Background(), coordinate("+"))
			assert.NoError(t, err)
			assert.True(t, ok)
		})
	}
	wg.Wait()
	assert.EqualValues(t, 1, downloader.calls.Load())
}

func TestResolutionChainFailOnNoStubs(t *testing.T) {
	chain := NewResolutionChain("", true, &fakeDownloader{name: "classpath"})

	_, ok, err := chain.Resolve(t.Context(), coordinate("1.0.0.RELEASE"))
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "com.example:beer-api:1.0.0.RELEASE:stubs")
}

func TestResolutionChainPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	next := &fakeDownloader{name: "maven", found: true}
	chain := NewResolutionChain("", false, &fakeDownloader{name: "git", err: boom}, next)

	_, _, err := chain.Resolve(t.Context(), coordinate("1.0.0.RELEASE"))
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, next.calls.Load())
}
