package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

type runnerState int

const (
	runnerCreated runnerState = iota
	runnerStarted
	runnerStopped
)

// StubRunner serves a single resolved bundle. It is started once and
// stopped once; repeated calls return the first outcome.
type StubRunner struct {
	Coordinate types.StubCoordinate
	Bundle     types.StubBundle

	options   types.StubRunnerOptions
	allocator core.PortAllocator
	newEngine ports.HTTPServerStubFactory
	verifier  ports.MessageVerifierPort

	mu       sync.Mutex
	state    runnerState
	engine   ports.HTTPServerStubPort
	running  types.RunningStubs
	mappings string
}

func NewStubRunner(
	coordinate types.StubCoordinate,
	bundle types.StubBundle,
	options types.StubRunnerOptions,
	allocator core.PortAllocator,
	newEngine ports.HTTPServerStubFactory,
	verifier ports.MessageVerifierPort,
) *StubRunner {
	return &StubRunner{
		Coordinate: coordinate,
		Bundle:     bundle,
		options:    options,
		allocator:  allocator,
		newEngine:  newEngine,
		verifier:   verifier,
	}
}

// Run starts the engine for the bundle and returns the registry with the
// bound port. Message-only bundles are registered with port -1 and no
// engine is started.
func (r *StubRunner) Run(ctx context.Context) (types.RunningStubs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case runnerStarted:
		return r.running, nil
	case runnerStopped:
		return types.RunningStubs{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("stub runner for [%s] was already stopped", r.Coordinate))
	}
	logger := log.Ctx(ctx).With().Str("coordinate", r.Coordinate.String()).Logger()
	if !r.Bundle.HasHTTPContracts() {
		logger.Info().Int("contracts", len(r.Bundle.Contracts)).Msg("bundle has messaging contracts only, no http server started")
		r.running = types.NewRunningStubs(types.RunningStub{Coordinate: r.Coordinate, Port: -1})
		r.state = runnerStarted
		return r.running, nil
	}
	if r.Bundle.IsEmpty() {
		logger.Warn().Str("path", r.Bundle.Root).Msg("no stubs to register, starting an empty server")
	}
	if r.newEngine == nil {
		return types.RunningStubs{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("no http server stub engine configured")
	}
	engine := r.newEngine()
	port, err := r.start(ctx, engine)
	if err != nil {
		return types.RunningStubs{}, err
	}
	r.engine = engine
	if err := engine.RegisterMappings(ctx, r.Bundle.MappingFiles); err != nil {
		logger.Warn().Err(err).Msg("failed to register stub mappings")
	}
	r.mappings = engine.RegisteredMappings()
	if err := r.writeMappings(port); err != nil {
		logger.Warn().Err(err).Msg("failed to write registered mappings")
	}
	r.running = types.NewRunningStubs(types.RunningStub{Coordinate: r.Coordinate, Port: port})
	r.state = runnerStarted
	logger.Info().Int("port", port).Int("mappings", len(r.Bundle.MappingFiles)).Msg("started stub server")
	return r.running, nil
}

func (r *StubRunner) start(ctx context.Context, engine ports.HTTPServerStubPort) (int, error) {
	if port, ok := r.options.PortFor(r.Coordinate); ok {
		if err := engine.Start(ctx, port); err != nil {
			return 0, err
		}
		return engine.Port(), nil
	}
	if _, err := r.allocator.Allocate(ctx, engine.Start); err != nil {
		return 0, err
	}
	return engine.Port(), nil
}

func (r *StubRunner) writeMappings(port int) error {
	folder := r.options.MappingsOutputFolder
	if folder == "" || r.mappings == "" {
		return nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%d.json", r.Coordinate.Artifact, port)
	return os.WriteFile(filepath.Join(folder, name), []byte(r.mappings), 0o644)
}

// RegisteredMappings returns the diagnostics text of the engine.
func (r *StubRunner) RegisteredMappings() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mappings
}

func (r *StubRunner) RunningStubs() types.RunningStubs {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *StubRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == runnerStopped {
		return nil
	}
	r.state = runnerStopped
	if r.engine == nil {
		return nil
	}
	engine := r.engine
	r.engine = nil
	if err := engine.Stop(ctx); err != nil {
		return err
	}
	log.Ctx(ctx).Debug().Str("coordinate", r.Coordinate.String()).Msg("stopped stub server")
	return nil
}

// FindStubURL returns the URL of the bundle when group and artifact match
// and an HTTP server is running for it.
func (r *StubRunner) FindStubURL(group string, artifact string) (string, bool) {
	notation := artifact
	if group != "" {
		notation = group + ":" + artifact
	}
	return r.findStubURL(notation)
}

func (r *StubRunner) FindStubURLByNotation(notation string) (string, bool, error) {
	if err := core.ValidateNotation(notation); err != nil {
		return "", false, err
	}
	url, ok := r.findStubURL(notation)
	return url, ok, nil
}

func (r *StubRunner) findStubURL(notation string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.running.Entry(notation)
	if !ok || entry.Port <= 0 {
		return "", false
	}
	if r.engine != nil && r.engine.HTTPSPort() > 0 {
		return fmt.Sprintf("https://localhost:%d", r.engine.HTTPSPort()), true
	}
	return fmt.Sprintf("http://localhost:%d", entry.Port), true
}

// Trigger sends the output message of every contract labelled label.
func (r *StubRunner) Trigger(ctx context.Context, label string) (bool, error) {
	triggered := false
	for _, contract := range r.Bundle.Contracts {
		if contract.Label != label || contract.OutputMessage == nil {
			continue
		}
		if err := r.send(ctx, contract); err != nil {
			return triggered, err
		}
		triggered = true
	}
	return triggered, nil
}

// TriggerByNotation triggers label only when the bundle matches notation.
func (r *StubRunner) TriggerByNotation(ctx context.Context, notation string, label string) (bool, error) {
	if err := core.ValidateNotation(notation); err != nil {
		return false, err
	}
	if !r.Coordinate.MatchesNotation(notation) {
		return false, nil
	}
	return r.Trigger(ctx, label)
}

func (r *StubRunner) TriggerAll(ctx context.Context) (bool, error) {
	triggered := false
	for _, contract := range r.Bundle.Contracts {
		if contract.OutputMessage == nil {
			continue
		}
		if err := r.send(ctx, contract); err != nil {
			return triggered, err
		}
		triggered = true
	}
	return triggered, nil
}

// Labels lists the labels of messaging contracts, keyed by coordinate.
func (r *StubRunner) Labels() map[string][]string {
	var labels []string
	for _, contract := range r.Bundle.Contracts {
		if contract.OutputMessage != nil && contract.Label != "" {
			labels = append(labels, contract.Label)
		}
	}
	sort.Strings(labels)
	return map[string][]string{r.Coordinate.String(): labels}
}

func (r *StubRunner) send(ctx context.Context, contract types.ContractDescriptor) error {
	if r.verifier == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("no message verifier configured")
	}
	message := contract.OutputMessage
	payload, err := messagePayload(message.Body)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid output message body of contract [%s]", contract.Name)).
			WithCause(err)
	}
	log.Ctx(ctx).Debug().
		Str("label", contract.Label).
		Str("destination", message.SentTo).
		Msg("triggering contract message")
	return r.verifier.Send(ctx, payload, message.Headers, message.SentTo)
}

func messagePayload(body any) ([]byte, error) {
	switch value := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(value), nil
	case []byte:
		return value, nil
	}
	return json.Marshal(body)
}
