package adapters

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
)

const (
	DefaultTempRegistryCapacity = 10000
	defaultDirDeleteAttempts    = 3
	defaultDirDeleteDelay       = 100 * time.Millisecond
)

// TempRegistryAdapter remembers temporary paths in a bounded queue and
// deletes them on Purge. Paths registered once the queue is full are not
// tracked.
type TempRegistryAdapter struct {
	mu          sync.Mutex
	paths       []string
	capacity    int
	attempts    int
	retryDelay  time.Duration
	tempBaseDir string
}

var _ ports.TempRegistryPort = (*TempRegistryAdapter)(nil)

func NewTempRegistryAdapter(capacity int) *TempRegistryAdapter {
	if capacity <= 0 {
		capacity = DefaultTempRegistryCapacity
	}
	return &TempRegistryAdapter{
		capacity:   capacity,
		attempts:   defaultDirDeleteAttempts,
		retryDelay: defaultDirDeleteDelay,
	}
}

func (r *TempRegistryAdapter) Register(path string) {
	if path == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) >= r.capacity {
		return
	}
	r.paths = append(r.paths, path)
}

func (r *TempRegistryAdapter) TempDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp(r.tempBaseDir, prefix)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create temporary directory").
			WithCause(err)
	}
	r.Register(dir)
	return dir, nil
}

// Tracked returns a snapshot of the tracked paths.
func (r *TempRegistryAdapter) Tracked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}

// Purge deletes every tracked path when deleteEnabled is set. Failures
// are logged and never returned.
func (r *TempRegistryAdapter) Purge(ctx context.Context, deleteEnabled bool) {
	if !deleteEnabled {
		log.Ctx(ctx).Debug().Msg("stub deletion disabled, temporary files are kept")
		return
	}
	r.mu.Lock()
	paths := r.paths
	r.paths = nil
	r.mu.Unlock()
	for _, path := range paths {
		r.deleteTree(ctx, path)
	}
}

func (r *TempRegistryAdapter) deleteTree(ctx context.Context, root string) {
	var files []string
	var dirs []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		files = append(files, path)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("path", root).Msg("failed to walk temporary path")
	}
	for _, file := range files {
		if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Ctx(ctx).Warn().Err(err).Str("path", file).Msg("failed to delete temporary file")
		}
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		r.deleteDir(ctx, dirs[i])
	}
}

func (r *TempRegistryAdapter) deleteDir(ctx context.Context, dir string) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		err := os.Remove(dir)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return
		}
		lastErr = err
		time.Sleep(r.retryDelay)
	}
	log.Ctx(ctx).Warn().Err(lastErr).Str("path", dir).Int("attempts", r.attempts).Msg("failed to delete temporary directory")
}
