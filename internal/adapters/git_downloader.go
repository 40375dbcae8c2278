package adapters

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

// GitDownloaderAdapter clones a contract repository once per location and
// looks the coordinate up in the clone.
type GitDownloaderAdapter struct {
	Location   string
	Properties core.PropertyLookup
	registry   ports.TempRegistryPort
	clones     sync.Map
	cloneGroup singleflight.Group
}

var _ ports.StubDownloaderPort = (*GitDownloaderAdapter)(nil)

func NewGitDownloaderAdapter(options types.StubRunnerOptions, registry ports.TempRegistryPort) *GitDownloaderAdapter {
	return &GitDownloaderAdapter{
		Location:   options.RepositoryRoot,
		Properties: core.NewPropertyLookup(options.Properties),
		registry:   registry,
	}
}

func (a *GitDownloaderAdapter) Name() string {
	return "git"
}

func (a *GitDownloaderAdapter) Fetch(ctx context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error) {
	if !IsGitLocation(a.Location) {
		return types.ResolvedBundle{}, false, nil
	}
	settings := newGitSettings(a.Location, a.Properties)
	clone, err := a.cloneOnce(ctx, settings)
	if err != nil {
		return types.ResolvedBundle{}, false, err
	}
	dir, found, err := core.FindStubDirectory(ctx, clone, coordinate)
	if err != nil || !found {
		return types.ResolvedBundle{}, false, err
	}
	resolved := coordinate
	if core.IsSentinelVersion(coordinate.Version) {
		resolved = coordinate.WithVersion(filepath.Base(dir))
	}
	return types.ResolvedBundle{Coordinate: resolved, LocalPath: dir}, true, nil
}

// cloneOnce returns the clone directory of the repository, cloning it on
// first use. Concurrent callers for the same URL share one clone.
func (a *GitDownloaderAdapter) cloneOnce(ctx context.Context, settings gitSettings) (string, error) {
	key := settings.URL + "#" + settings.Branch
	if dir, ok := a.clones.Load(key); ok {
		log.Ctx(ctx).Debug().Str("url", settings.URL).Msg("reusing cached clone")
		return dir.(string), nil
	}
	result, err, _ := a.cloneGroup.Do(key, func() (any, error) {
		if dir, ok := a.clones.Load(key); ok {
			return dir.(string), nil
		}
		dir, err := a.registry.TempDir(gitContractsTempPrefix)
		if err != nil {
			return nil, err
		}
		if _, err := cloneRepository(ctx, settings, dir); err != nil {
			return nil, err
		}
		a.clones.Store(key, dir)
		return dir, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
