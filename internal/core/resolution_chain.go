package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

// ResolutionChain tries downloaders in declared order; the first one that
// finds the bundle wins. Successful resolutions are cached for the
// lifetime of the chain.
type ResolutionChain struct {
	location      string
	failOnNoStubs bool
	downloaders   []ports.StubDownloaderPort
	cache         sync.Map
	requestGroup  singleflight.Group
}

var _ ports.StubResolverPort = (*ResolutionChain)(nil)

type chainResult struct {
	bundle types.ResolvedBundle
	found  bool
}

func NewResolutionChain(location string, failOnNoStubs bool, downloaders ...ports.StubDownloaderPort) *ResolutionChain {
	active := make([]ports.StubDownloaderPort, 0, len(downloaders))
	for _, downloader := range downloaders {
		if downloader != nil {
			active = append(active, downloader)
		}
	}
	return &ResolutionChain{
		location:      location,
		failOnNoStubs: failOnNoStubs,
		downloaders:   active,
	}
}

func (c *ResolutionChain) Resolve(ctx context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error) {
	key := c.cacheKey(coordinate)
	if cached, ok := c.cache.Load(key); ok {
		log.Ctx(ctx).Debug().Str("coordinate", coordinate.String()).Msg("stub bundle resolved from cache")
		return cached.(types.ResolvedBundle), true, nil
	}
	result, err, _ := c.requestGroup.Do(key, func() (any, error) {
		if cached, ok := c.cache.Load(key); ok {
			return chainResult{bundle: cached.(types.ResolvedBundle), found: true}, nil
		}
		bundle, found, err := c.resolveUncached(ctx, coordinate)
		if err != nil {
			return nil, err
		}
		if found {
			c.cache.Store(key, bundle)
		}
		return chainResult{bundle: bundle, found: found}, nil
	})
	if err != nil {
		return types.ResolvedBundle{}, false, err
	}
	resolved := result.(chainResult)
	if !resolved.found && c.failOnNoStubs {
		return types.ResolvedBundle{}, false, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no stubs were found for [%s]", coordinate.String()))
	}
	return resolved.bundle, resolved.found, nil
}

func (c *ResolutionChain) resolveUncached(ctx context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error) {
	for _, downloader := range c.downloaders {
		bundle, found, err := downloader.Fetch(ctx, coordinate)
		if err != nil {
			return types.ResolvedBundle{}, false, err
		}
		if found {
			log.Ctx(ctx).Info().
				Str("downloader", downloader.Name()).
				Str("coordinate", bundle.Coordinate.String()).
				Str("path", bundle.LocalPath).
				Msg("resolved stub bundle")
			return bundle, true, nil
		}
		log.Ctx(ctx).Warn().
			Str("downloader", downloader.Name()).
			Str("coordinate", coordinate.String()).
			Msg("failed to find an entry for stubs, will proceed to the next downloader")
	}
	return types.ResolvedBundle{}, false, nil
}

func (c *ResolutionChain) cacheKey(coordinate types.StubCoordinate) string {
	return c.location + "|" + coordinate.String()
}
