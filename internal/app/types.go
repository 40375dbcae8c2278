package app

import "github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"

type RunRequest struct {
	Options types.StubRunnerOptions
	// Stubs holds raw group:artifact:version:classifier[:port] ids.
	Stubs []string
}

type ResolveRequest struct {
	Options types.StubRunnerOptions
	Stubs   []string
	// OutputDir receives a copy of every bundle below
	// {group}/{artifact}/{version}. Without it the bundles stay in their
	// temporary directories.
	OutputDir string
}

type ResolveResult struct {
	Bundles []types.ResolvedBundle
	Missing []types.StubCoordinate
	Failed  []ResolutionFailure
}

// ResolutionFailure is a coordinate whose backend failed. It does not
// stop the other coordinates of the batch.
type ResolutionFailure struct {
	Coordinate types.StubCoordinate
	Err        error
}

type PublishRequest struct {
	Options    types.StubRunnerOptions
	Coordinate string
	StubsDir   string
}

type PublishResult struct {
	Coordinate types.StubCoordinate
}
