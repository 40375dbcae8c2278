package app

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/adapters"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

type Service struct {
	NewRegistry     func() ports.TempRegistryPort
	NewEngine       ports.HTTPServerStubFactory
	Verifier        ports.MessageVerifierPort
	ContractLoaders []ports.ContractLoaderPort
	NewObjectStore  func(ctx context.Context, properties core.PropertyLookup) (ports.ObjectStorePort, error)

	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
}

func NewService() Service {
	return Service{
		NewRegistry: func() ports.TempRegistryPort {
			return adapters.NewTempRegistryAdapter(adapters.DefaultTempRegistryCapacity)
		},
		NewEngine:       adapters.NewWireMockServerFactory(),
		Verifier:        adapters.NewRecordingMessageVerifierAdapter(),
		ContractLoaders: []ports.ContractLoaderPort{adapters.NewYAMLContractLoaderAdapter()},
		NewObjectStore: func(ctx context.Context, properties core.PropertyLookup) (ports.ObjectStorePort, error) {
			return adapters.NewS3ObjectStoreAdapter(ctx, properties)
		},
	}
}

// Session is a started batch of stub runners together with the temporary
// files backing it. Close stops the runners and purges the files.
type Session struct {
	Batch   *BatchStubRunner
	Running types.RunningStubs
	Bundles []types.ResolvedBundle
	Missing []types.StubCoordinate
	Failed  []ResolutionFailure

	registry    ports.TempRegistryPort
	deleteAfter bool
	closeOnce   sync.Once
}

func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		if err := s.Batch.Close(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("some stub runners failed to stop")
		}
		s.registry.Purge(ctx, s.deleteAfter)
	})
}

// Run resolves every requested coordinate and starts a stub runner for
// each bundle found. Coordinates without stubs are reported in
// Session.Missing unless FailOnNoStubs is set; coordinates whose backend
// failed are reported in Session.Failed.
func (s Service) Run(ctx context.Context, req RunRequest) (*Session, error) {
	options, err := prepareOptions(ctx, req.Options, req.Stubs)
	if err != nil {
		return nil, err
	}
	if len(options.Coordinates) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one stub coordinate is required")
	}
	allocator, err := core.NewPortAllocator(options.MinPort, options.MaxPort)
	if err != nil {
		return nil, err
	}
	registry := s.NewRegistry()
	resolved, err := s.resolveAll(ctx, options, registry)
	if err != nil {
		registry.Purge(ctx, options.DeleteStubsAfterTest)
		return nil, err
	}
	accepts := s.NewEngine().IsAccepted
	repository := adapters.NewStubRepositoryAdapter(options, s.ContractLoaders...)
	runners := make([]*StubRunner, 0, len(resolved.Bundles))
	for _, bundle := range resolved.Bundles {
		stubBundle, err := repository.Load(bundle.LocalPath, accepts)
		if err != nil {
			registry.Purge(ctx, options.DeleteStubsAfterTest)
			return nil, err
		}
		runners = append(runners, NewStubRunner(bundle.Coordinate, stubBundle, options, allocator, s.NewEngine, s.Verifier))
	}
	batch := NewBatchStubRunner(runners...)
	session := &Session{
		Batch:       batch,
		Bundles:     resolved.Bundles,
		Missing:     resolved.Missing,
		Failed:      resolved.Failed,
		registry:    registry,
		deleteAfter: options.DeleteStubsAfterTest,
	}
	running, err := batch.RunAll(ctx)
	if err != nil {
		session.Close(ctx)
		return nil, err
	}
	session.Running = running
	return session, nil
}

// Resolve fetches the bundles of every requested coordinate without
// starting them.
func (s Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	options, err := prepareOptions(ctx, req.Options, req.Stubs)
	if err != nil {
		return ResolveResult{}, err
	}
	registry := s.NewRegistry()
	result, err := s.resolveAll(ctx, options, registry)
	if err != nil {
		registry.Purge(ctx, options.DeleteStubsAfterTest)
		return ResolveResult{}, err
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return result, nil
	}
	for i, bundle := range result.Bundles {
		c := bundle.Coordinate
		target := filepath.Join(outputDir, c.Group, c.Artifact, c.Version)
		if err := adapters.CopyDirectory(bundle.LocalPath, target); err != nil {
			registry.Purge(ctx, options.DeleteStubsAfterTest)
			return ResolveResult{}, err
		}
		result.Bundles[i].LocalPath = target
	}
	registry.Purge(ctx, options.DeleteStubsAfterTest)
	return result, nil
}

// Publish pushes a local stubs directory to the git contract repository.
func (s Service) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	stubsDir := strings.TrimSpace(req.StubsDir)
	if stubsDir == "" {
		return PublishResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("stubs directory is required")
	}
	coordinate := core.ParseCoordinate(req.Coordinate, req.Options.Classifier())
	if !coordinate.IsDefined() {
		return PublishResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid stub coordinate [%s]", req.Coordinate))
	}
	registry := s.NewRegistry()
	defer registry.Purge(ctx, true)
	publisher := adapters.NewGitPublisherAdapter(req.Options.RepositoryRoot, req.Options.Properties, registry)
	if err := publisher.Publish(ctx, coordinate, stubsDir); err != nil {
		return PublishResult{}, err
	}
	return PublishResult{Coordinate: coordinate}, nil
}

// NewResolutionChain wires the downloaders for the repository root of
// options in lookup order.
func (s Service) NewResolutionChain(ctx context.Context, options types.StubRunnerOptions, registry ports.TempRegistryPort) (*core.ResolutionChain, error) {
	downloaders := []ports.StubDownloaderPort{
		adapters.NewClasspathDownloaderAdapter(options, registry),
		adapters.NewStubsDownloaderAdapter(options, registry),
		adapters.NewGitDownloaderAdapter(options, registry),
	}
	if adapters.IsS3Location(options.RepositoryRoot) && s.NewObjectStore != nil {
		store, err := s.NewObjectStore(ctx, core.NewPropertyLookup(options.Properties))
		if err != nil {
			return nil, err
		}
		downloaders = append(downloaders, adapters.NewS3DownloaderAdapter(options, store, registry))
	}
	downloaders = append(downloaders, adapters.NewMavenDownloaderAdapter(options, registry, s.HTTPTimeoutSec, s.HTTPRetries, s.HTTPRetryDelayMs))
	return core.NewResolutionChain(options.RepositoryRoot, options.FailOnNoStubs, downloaders...), nil
}

func (s Service) resolveAll(ctx context.Context, options types.StubRunnerOptions, registry ports.TempRegistryPort) (ResolveResult, error) {
	chain, err := s.NewResolutionChain(ctx, options, registry)
	if err != nil {
		return ResolveResult{}, err
	}
	var result ResolveResult
	for _, coordinate := range options.Coordinates {
		bundle, found, err := chain.Resolve(ctx, coordinate)
		if err != nil {
			if fatalResolveError(ctx, options, err) {
				return ResolveResult{}, err
			}
			failure := ResolutionFailure{
				Coordinate: coordinate,
				Err: errbuilder.New().
					WithCode(errbuilder.CodeOf(err)).
					WithMsg(fmt.Sprintf("failed to resolve stubs for [%s]", coordinate.String())).
					WithCause(err),
			}
			log.Ctx(ctx).Error().Err(err).Str("coordinate", coordinate.String()).Msg("failed to resolve stubs, skipping")
			result.Failed = append(result.Failed, failure)
			continue
		}
		if !found {
			log.Ctx(ctx).Warn().Str("coordinate", coordinate.String()).Msg("no stubs found, skipping")
			result.Missing = append(result.Missing, coordinate)
			continue
		}
		log.Ctx(ctx).Info().
			Str("coordinate", bundle.Coordinate.String()).
			Str("path", bundle.LocalPath).
			Msg("resolved stubs")
		result.Bundles = append(result.Bundles, bundle)
	}
	return result, nil
}

// fatalResolveError reports whether err ends the whole batch rather than
// the one coordinate: a cancelled run, or missing stubs while
// FailOnNoStubs is set.
func fatalResolveError(ctx context.Context, options types.StubRunnerOptions, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return options.FailOnNoStubs && errbuilder.CodeOf(err) == errbuilder.CodeNotFound
}

// prepareOptions applies defaults and merges the raw stub ids into the
// coordinates and explicit ports of options.
func prepareOptions(ctx context.Context, options types.StubRunnerOptions, stubs []string) (types.StubRunnerOptions, error) {
	if options.StubsMode == "" {
		options.StubsMode = types.StubsModeClasspath
		if strings.TrimSpace(options.RepositoryRoot) != "" {
			options.StubsMode = types.StubsModeRemote
		}
	}
	if _, ok := types.ParseStubsMode(string(options.StubsMode)); !ok {
		return options, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown stubs mode [%s], expected classpath, local or remote", options.StubsMode))
	}
	if options.MinPort == 0 && options.MaxPort == 0 {
		options.MinPort = types.DefaultMinPort
		options.MaxPort = types.DefaultMaxPort
	}
	if options.StubsPerConsumer && strings.TrimSpace(options.ConsumerName) == "" {
		return options, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("consumer name is required when stubs per consumer is enabled")
	}
	coordinates, explicitPorts, err := core.ParseStubSpecifications(stubs, options.Classifier())
	if err != nil {
		return options, err
	}
	stubPorts := maps.Clone(options.StubPorts)
	if stubPorts == nil {
		stubPorts = map[string]int{}
	}
	maps.Copy(stubPorts, explicitPorts)
	options.StubPorts = stubPorts
	options.Coordinates = mergeCoordinates(options.Coordinates, coordinates)
	assert.NotEmpty(ctx, string(options.StubsMode), "stubs mode must be set")
	return options, nil
}

func mergeCoordinates(existing []types.StubCoordinate, added []types.StubCoordinate) []types.StubCoordinate {
	merged := make([]types.StubCoordinate, 0, len(existing)+len(added))
	seen := map[string]struct{}{}
	for _, coordinate := range append(append([]types.StubCoordinate{}, existing...), added...) {
		if _, ok := seen[coordinate.Key()]; ok {
			continue
		}
		seen[coordinate.Key()] = struct{}{}
		merged = append(merged, coordinate)
	}
	return merged
}
