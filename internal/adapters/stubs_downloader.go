package adapters

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

const (
	stubsScheme             = "stubs://"
	fileScheme              = "file://"
	findProducerProperty    = "stubs.find-producer"
	stubsDownloaderTempName = "stubs-"
)

// StubsDownloaderAdapter serves stubs from an arbitrary directory given
// as stubs://path. With stubs.find-producer the directory is searched for
// the coordinate's group/artifact/version layout; otherwise everything
// below it is used.
type StubsDownloaderAdapter struct {
	Location   string
	Mode       types.StubsMode
	Properties core.PropertyLookup
	resolver   resourceResolver
}

var _ ports.StubDownloaderPort = StubsDownloaderAdapter{}

func NewStubsDownloaderAdapter(options types.StubRunnerOptions, registry ports.TempRegistryPort) StubsDownloaderAdapter {
	return StubsDownloaderAdapter{
		Location:   options.RepositoryRoot,
		Mode:       options.StubsMode,
		Properties: core.NewPropertyLookup(options.Properties),
		resolver: resourceResolver{
			registry:      registry,
			tempPrefix:    stubsDownloaderTempName,
			failOnNoStubs: options.FailOnNoStubs,
			source:        "stubs location",
		},
	}
}

func (a StubsDownloaderAdapter) Name() string {
	return "stubs"
}

func (a StubsDownloaderAdapter) Fetch(ctx context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error) {
	if a.Mode == types.StubsModeClasspath || !IsStubsLocation(a.Location) {
		return types.ResolvedBundle{}, false, nil
	}
	root := StubsLocationPath(a.Location)
	if !a.Properties.Bool(findProducerProperty) {
		log.Ctx(ctx).Info().Str("path", root).Msg("stubs are present under the given path, copying them to a temporary directory")
		return a.resolver.copyMatches(ctx, coordinate, []resourceRoot{{Base: root, Pattern: "**"}})
	}
	dir, found, err := core.FindStubDirectory(ctx, root, coordinate)
	if err != nil {
		return types.ResolvedBundle{}, false, err
	}
	if !found {
		if a.resolver.failOnNoStubs {
			return types.ResolvedBundle{}, false, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("no stubs were found under " + root + " for [" + coordinate.Key() + "]")
		}
		return types.ResolvedBundle{}, false, nil
	}
	resolved := coordinate
	if core.IsSentinelVersion(coordinate.Version) {
		resolved = coordinate.WithVersion(filepath.Base(dir))
	}
	return a.resolver.copyMatches(ctx, resolved, []resourceRoot{{Base: dir, Pattern: "**"}})
}

// IsStubsLocation reports whether location uses the stubs:// scheme.
func IsStubsLocation(location string) bool {
	return strings.HasPrefix(strings.TrimSpace(location), stubsScheme)
}

// StubsLocationPath converts stubs://path and stubs://file://path to a
// local path.
func StubsLocationPath(location string) string {
	path := strings.TrimPrefix(strings.TrimSpace(location), stubsScheme)
	path = strings.TrimPrefix(path, fileScheme)
	return filepath.FromSlash(path)
}
