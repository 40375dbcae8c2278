package ports

import "context"

// TempRegistryPort tracks temporary paths for deletion at shutdown.
type TempRegistryPort interface {
	Register(path string)
	// TempDir creates and registers a fresh temporary directory.
	TempDir(prefix string) (string, error)
	Purge(ctx context.Context, deleteEnabled bool)
}
