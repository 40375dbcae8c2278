package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

// BatchStubRunner drives several stub runners as one unit. Runners are
// started in declared order.
type BatchStubRunner struct {
	runners []*StubRunner

	mu      sync.Mutex
	started bool
	running types.RunningStubs
}

func NewBatchStubRunner(runners ...*StubRunner) *BatchStubRunner {
	return &BatchStubRunner{runners: runners}
}

func (b *BatchStubRunner) Runners() []*StubRunner {
	return b.runners
}

// RunAll starts every runner and merges their registries. A runner that
// fails to start aborts the batch; the ones already started stay running
// until Close.
func (b *BatchStubRunner) RunAll(ctx context.Context) (types.RunningStubs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return b.running, nil
	}
	registries := make([]types.RunningStubs, 0, len(b.runners))
	for _, runner := range b.runners {
		running, err := runner.Run(ctx)
		if err != nil {
			return types.MergeRunningStubs(registries...), err
		}
		registries = append(registries, running)
	}
	b.running = types.MergeRunningStubs(registries...)
	b.started = true
	return b.running, nil
}

// FindStubURL returns the URL of the first runner serving group:artifact.
func (b *BatchStubRunner) FindStubURL(group string, artifact string) (string, bool) {
	for _, runner := range b.runners {
		if url, ok := runner.FindStubURL(group, artifact); ok {
			return url, true
		}
	}
	return "", false
}

func (b *BatchStubRunner) FindStubURLByNotation(notation string) (string, bool, error) {
	for _, runner := range b.runners {
		url, ok, err := runner.FindStubURLByNotation(notation)
		if err != nil {
			return "", false, err
		}
		if ok {
			return url, true, nil
		}
	}
	return "", false, nil
}

func (b *BatchStubRunner) Trigger(ctx context.Context, label string) error {
	return b.trigger(ctx, fmt.Sprintf("label [%s]", label), func(runner *StubRunner) (bool, error) {
		return runner.Trigger(ctx, label)
	})
}

func (b *BatchStubRunner) TriggerByNotation(ctx context.Context, notation string, label string) error {
	return b.trigger(ctx, fmt.Sprintf("label [%s] of [%s]", label, notation), func(runner *StubRunner) (bool, error) {
		return runner.TriggerByNotation(ctx, notation, label)
	})
}

func (b *BatchStubRunner) TriggerAll(ctx context.Context) error {
	return b.trigger(ctx, "any label", func(runner *StubRunner) (bool, error) {
		return runner.TriggerAll(ctx)
	})
}

func (b *BatchStubRunner) trigger(ctx context.Context, what string, fire func(runner *StubRunner) (bool, error)) error {
	triggered := false
	for _, runner := range b.runners {
		fired, err := fire(runner)
		if err != nil {
			return err
		}
		triggered = triggered || fired
	}
	if triggered {
		return nil
	}
	log.Ctx(ctx).Warn().Str("trigger", what).Msg("no contract matched the trigger")
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("no contract matched %s, available labels are [%s]", what, b.describeLabels()))
}

// Labels merges the labels of every runner, keyed by coordinate.
func (b *BatchStubRunner) Labels() map[string][]string {
	merged := map[string][]string{}
	for _, runner := range b.runners {
		maps.Copy(merged, runner.Labels())
	}
	return merged
}

func (b *BatchStubRunner) describeLabels() string {
	labels := b.Labels()
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(labels[key], ",")))
	}
	return strings.Join(parts, "; ")
}

// Close stops every runner concurrently. Individual failures do not stop
// the others; the joined error is returned for logging only.
func (b *BatchStubRunner) Close(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	var group errgroup.Group
	for _, runner := range b.runners {
		group.Go(func() error {
			if err := runner.Stop(ctx); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("coordinate", runner.Coordinate.String()).Msg("failed to stop stub runner")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}
