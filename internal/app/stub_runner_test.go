package app

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/adapters"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

type fakeEngine struct {
	mu         sync.Mutex
	port       int
	running    bool
	registered []string
	starts     int
	stops      int
	startErr   error
	stopErr    error
}

func (f *fakeEngine) Start(_ context.Context, port int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.port = port
	f.running = true
	return nil
}

func (f *fakeEngine) Port() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return -1
	}
	return f.port
}

func (f *fakeEngine) HTTPSPort() int { return -1 }

func (f *fakeEngine) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeEngine) RegisterMappings(_ context.Context, files []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, files...)
	return nil
}

func (f *fakeEngine) RegisteredMappings() string { return `{"mappings":[]}` }

func (f *fakeEngine) IsAccepted(file string) bool { return filepath.Ext(file) == ".json" }

func (f *fakeEngine) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
	return f.stopErr
}

func engineFactory(engines *[]*fakeEngine) ports.HTTPServerStubFactory {
	return func() ports.HTTPServerStubPort {
		engine := &fakeEngine{}
		*engines = append(*engines, engine)
		return engine
	}
}

func testAllocator(t *testing.T) core.PortAllocator {
	t.Helper()
	allocator, err := core.NewPortAllocator(20000, 20999)
	require.NoError(t, err)
	return allocator
}

func coordinateOf(artifact string) types.StubCoordinate {
	return types.StubCoordinate{Group: "com.example", Artifact: artifact, Version: "1.0.0.RELEASE", Classifier: "stubs"}
}

func httpBundle() types.StubBundle {
	return types.StubBundle{Root: "/stubs", MappingFiles: []string{"/stubs/mappings/beer.json"}}
}

func messagingBundle() types.StubBundle {
	return types.StubBundle{Root: "/stubs", Contracts: []types.ContractDescriptor{
		{Name: "sent", Label: "beer_sent", OutputMessage: &types.OutputMessage{
			SentTo:  "beer-topic",
			Body:    map[string]any{"name": "IPA"},
			Headers: map[string]string{"contentType": "application/json"},
		}},
		{Name: "raw", Label: "raw_sent", OutputMessage: &types.OutputMessage{SentTo: "raw-topic", Body: "plain text"}},
		{Name: "http", Label: "no_message"},
	}}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestStubRunnerRunAllocatesPort(t *testing.T) {
	var engines []*fakeEngine
	options := types.DefaultStubRunnerOptions()
	options.MappingsOutputFolder = t.TempDir()
	runner := NewStubRunner(coordinateOf("beer-api"), httpBundle(), options, testAllocator(t), engineFactory(&engines), nil)

	running, err := runner.Run(t.Context())
	require.NoError(t, err)
	require.Len(t, engines, 1)
	port, ok := running.Port("beer-api")
	require.True(t, ok)
	assert.GreaterOrEqual(t, port, 20000)
	assert.LessOrEqual(t, port, 20999)
	assert.Equal(t, []string{"/stubs/mappings/beer.json"}, engines[0].registered)
	assert.Equal(t, `{"mappings":[]}`, runner.RegisteredMappings())
	assert.FileExists(t, filepath.Join(options.MappingsOutputFolder, "beer-api_"+strconv.Itoa(port)+".json"))

	again, err := runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, running.NotationToPort(), again.NotationToPort())
	assert.Len(t, engines, 1, "a started runner is not started twice")

	url, ok := runner.FindStubURL("com.example", "beer-api")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:"+strconv.Itoa(port), url)

	require.NoError(t, runner.Stop(t.Context()))
	require.NoError(t, runner.Stop(t.Context()))
	assert.Equal(t, 1, engines[0].stops)

	_, err = runner.Run(t.Context())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestStubRunnerExplicitPort(t *testing.T) {
	var engines []*fakeEngine
	options := types.DefaultStubRunnerOptions()
	options.StubPorts = map[string]int{"com.example:beer-api": 18080}
	runner := NewStubRunner(coordinateOf("beer-api"), httpBundle(), options, testAllocator(t), engineFactory(&engines), nil)

	running, err := runner.Run(t.Context())
	require.NoError(t, err)
	port, _ := running.Port("beer-api")
	assert.Equal(t, 18080, port)
	assert.Equal(t, 1, engines[0].starts)
}

func TestStubRunnerStartFailure(t *testing.T) {
	options := types.DefaultStubRunnerOptions()
	options.StubPorts = map[string]int{"com.example:beer-api": 18080}
	bindErr := errors.New("address already in use")
	factory := func() ports.HTTPServerStubPort { return &fakeEngine{startErr: bindErr} }
	runner := NewStubRunner(coordinateOf("beer-api"), httpBundle(), options, testAllocator(t), factory, nil)

	_, err := runner.Run(t.Context())
	require.ErrorIs(t, err, bindErr)
	assert.Equal(t, 0, runner.RunningStubs().Len())
}

func TestStubRunnerMessageOnly(t *testing.T) {
	var engines []*fakeEngine
	runner := NewStubRunner(coordinateOf("events"), messagingBundle(), types.DefaultStubRunnerOptions(), testAllocator(t), engineFactory(&engines), nil)

	running, err := runner.Run(t.Context())
	require.NoError(t, err)
	assert.Empty(t, engines, "no engine for message-only bundles")
	port, ok := running.Port("events")
	require.True(t, ok)
	assert.Equal(t, -1, port)

	_, ok = runner.FindStubURL("com.example", "events")
	assert.False(t, ok)
	require.NoError(t, runner.Stop(t.Context()))
}

func TestStubRunnerEmptyBundleStartsServer(t *testing.T) {
	var engines []*fakeEngine
	runner := NewStubRunner(coordinateOf("empty"), types.StubBundle{Root: "/empty"}, types.DefaultStubRunnerOptions(), testAllocator(t), engineFactory(&engines), nil)

	running, err := runner.Run(t.Context())
	require.NoError(t, err)
	require.Len(t, engines, 1)
	port, _ := running.Port("empty")
	assert.Positive(t, port)
}

// ---------------------------------------------------------------------------
// Lookup and triggers
// ---------------------------------------------------------------------------

func TestStubRunnerFindStubURLByNotation(t *testing.T) {
	var engines []*fakeEngine
	runner := NewStubRunner(coordinateOf("beer-api"), httpBundle(), types.DefaultStubRunnerOptions(), testAllocator(t), engineFactory(&engines), nil)
	_, err := runner.Run(t.Context())
	require.NoError(t, err)

	_, ok, err := runner.FindStubURLByNotation("com.example:beer-api:1.0.0.RELEASE:stubs")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = runner.FindStubURLByNotation("com.example:beer-api:2.0.0.RELEASE")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = runner.FindStubURLByNotation("a:b:c:d:e")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestStubRunnerTriggers(t *testing.T) {
	verifier := adapters.NewRecordingMessageVerifierAdapter()
	runner := NewStubRunner(coordinateOf("events"), messagingBundle(), types.DefaultStubRunnerOptions(), testAllocator(t), nil, verifier)

	fired, err := runner.Trigger(t.Context(), "beer_sent")
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = runner.Trigger(t.Context(), "no_message")
	require.NoError(t, err)
	assert.False(t, fired, "contracts without output message are not triggered")

	fired, err = runner.TriggerByNotation(t.Context(), "com.example:other", "beer_sent")
	require.NoError(t, err)
	assert.False(t, fired)

	fired, err = runner.TriggerByNotation(t.Context(), "com.example:events", "raw_sent")
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = runner.TriggerAll(t.Context())
	require.NoError(t, err)
	assert.True(t, fired)

	messages := verifier.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "beer-topic", messages[0].Destination)
	assert.JSONEq(t, `{"name":"IPA"}`, string(messages[0].Payload))
	assert.Equal(t, "application/json", messages[0].Headers["contentType"])
	assert.Equal(t, "plain text", string(messages[1].Payload))

	assert.Equal(t, map[string][]string{
		"com.example:events:1.0.0.RELEASE:stubs": {"beer_sent", "raw_sent"},
	}, runner.Labels())
}

func TestStubRunnerTriggerWithoutVerifier(t *testing.T) {
	runner := NewStubRunner(coordinateOf("events"), messagingBundle(), types.DefaultStubRunnerOptions(), testAllocator(t), nil, nil)
	_, err := runner.Trigger(t.Context(), "beer_sent")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestMessagePayload(t *testing.T) {
	payload, err := messagePayload(nil)
	require.NoError(t, err)
	assert.Nil(t, payload)

	payload, err = messagePayload([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(payload))

	payload, err = messagePayload([]any{1, "two"})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,"two"]`, string(payload))

	_, err = messagePayload(map[string]any{"bad": func() {}})
	require.Error(t, err)
}
