package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPortAllocatorRejectsInvalidRanges(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
	}{
		{"inverted", 15000, 10000},
		{"zero min", 0, 10000},
		{"negative min", -1, 10000},
		{"max above tcp range", 60000, 65536},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPortAllocator(tt.min, tt.max)
			require.Error(t, err)
			assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
		})
	}

	allocator, err := NewPortAllocator(1, 65535)
	require.NoError(t, err)
	assert.Equal(t, 65535, allocator.Max)
}

func TestPortAllocatorAllocate(t *testing.T) {
	allocator, err := NewPortAllocator(20000, 20002)
	require.NoError(t, err)

	picks := []int{20000, 20001, 20002}
	allocator.pick = func(int, int) int {
		port := picks[0]
		picks = picks[1:]
		return port
	}
	allocator.isFree = func(port int) error {
		if port == 20000 {
			return errors.New("address already in use")
		}
		return nil
	}

	var started []int
	port, err := allocator.Allocate(t.Context(), func(_ context.Context, port int) error {
		started = append(started, port)
		if port == 20001 {
			return errors.New("bind failed")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 20002, port)
	assert.Equal(t, []int{20001, 20002}, started, "taken ports are never started")
}

func TestPortAllocatorExhausted(t *testing.T) {
	allocator, err := NewPortAllocator(20000, 20000)
	require.NoError(t, err)
	allocator.MaxAttempts = 3
	allocator.isFree = func(int) error { return nil }

	calls := 0
	_, err = allocator.Allocate(t.Context(), func(context.Context, int) error {
		calls++
		return errors.New("taken")
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "could not find available port in range 20000:20000")
	assert.Equal(t, 3, calls)
}

func TestPortAllocatorCancelled(t *testing.T) {
	allocator, err := NewPortAllocator(20000, 20010)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = allocator.Allocate(ctx, func(context.Context, int) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestRandomPortStaysInRange(t *testing.T) {
	for range 200 {
		port := randomPort(10000, 10005)
		assert.GreaterOrEqual(t, port, 10000)
		assert.LessOrEqual(t, port, 10005)
	}
}

func TestPortAllocatorConcurrentStartsGetDistinctPorts(t *testing.T) {
	allocator, err := NewPortAllocator(23000, 23999)
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		listeners []net.Listener
		wg        sync.WaitGroup
	)
	t.Cleanup(func() {
		for _, listener := range listeners {
			_ = listener.Close()
		}
	})
	bind := func(_ context.Context, port int) error {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return err
		}
		mu.Lock()
		listeners = append(listeners, listener)
		mu.Unlock()
		return nil
	}

	ports := make([]int, 10)
	errs := make([]error, 10)
	for i := range ports {
		wg.Go(func() {
			ports[i], errs[i] = allocator.Allocate(t.Context(), bind)
		})
	}
	wg.Wait()

	seen := map[int]struct{}{}
	for i, port := range ports {
		require.NoError(t, errs[i])
		assert.GreaterOrEqual(t, port, 23000)
		assert.LessOrEqual(t, port, 23999)
		seen[port] = struct{}{}
	}
	assert.Len(t, seen, len(ports))
}
