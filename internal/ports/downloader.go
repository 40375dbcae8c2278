package ports

import (
	"context"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

// StubDownloaderPort fetches the bundle of a coordinate from one backend.
// A backend that does not serve the configured location, or has nothing
// for the coordinate, returns found=false with a nil error. Errors are
// reserved for failures that must abort the resolution.
type StubDownloaderPort interface {
	Name() string
	Fetch(ctx context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error)
}

// StubResolverPort resolves a coordinate through an ordered set of
// downloaders.
type StubResolverPort interface {
	Resolve(ctx context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error)
}
