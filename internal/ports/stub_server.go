package ports

import "context"

// HTTPServerStubPort is the capability surface of an HTTP stub serving
// engine.
type HTTPServerStubPort interface {
	// Start binds the engine to port. It fails if the port is taken.
	Start(ctx context.Context, port int) error
	// Port returns the HTTP port or -1 when not running.
	Port() int
	// HTTPSPort returns the HTTPS port or -1 when none is exposed.
	HTTPSPort() int
	IsRunning() bool
	RegisterMappings(ctx context.Context, files []string) error
	// RegisteredMappings renders the registered mappings for diagnostics.
	RegisteredMappings() string
	// IsAccepted reports whether the engine can load the given file.
	IsAccepted(file string) bool
	Stop(ctx context.Context) error
}

// HTTPServerStubFactory creates a fresh engine per stub bundle.
type HTTPServerStubFactory func() HTTPServerStubPort
