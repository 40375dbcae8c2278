package adapters

import (
	"context"
	"strings"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

const classpathScheme = "classpath:"

// ClasspathDownloaderAdapter looks up stubs packaged below well-known
// resource directories (META-INF, contracts, mappings) of the configured
// resource roots.
type ClasspathDownloaderAdapter struct {
	Roots    []string
	Location string
	Mode     types.StubsMode
	resolver resourceResolver
}

var _ ports.StubDownloaderPort = ClasspathDownloaderAdapter{}

func NewClasspathDownloaderAdapter(options types.StubRunnerOptions, registry ports.TempRegistryPort) ClasspathDownloaderAdapter {
	return ClasspathDownloaderAdapter{
		Roots:    options.ClasspathRoots,
		Location: options.RepositoryRoot,
		Mode:     options.StubsMode,
		resolver: resourceResolver{
			registry:      registry,
			tempPrefix:    "classpath-stubs",
			failOnNoStubs: options.FailOnNoStubs,
			source:        "classpath",
		},
	}
}

func (a ClasspathDownloaderAdapter) Name() string {
	return "classpath"
}

func (a ClasspathDownloaderAdapter) Fetch(ctx context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error) {
	if !a.accepts() {
		return types.ResolvedBundle{}, false, nil
	}
	return a.resolver.copyMatches(ctx, coordinate, a.roots(coordinate))
}

func (a ClasspathDownloaderAdapter) accepts() bool {
	if a.Mode != "" && a.Mode != types.StubsModeClasspath {
		return false
	}
	location := strings.TrimSpace(a.Location)
	return location == "" || strings.HasPrefix(location, classpathScheme)
}

func (a ClasspathDownloaderAdapter) roots(coordinate types.StubCoordinate) []resourceRoot {
	explicit := strings.Trim(strings.TrimPrefix(strings.TrimSpace(a.Location), classpathScheme), "/")
	var patterns []string
	if explicit != "" {
		patterns = []string{core.EscapeGlob(explicit) + "/**"}
	} else {
		path := "/**/" + core.EscapeGlob(coordinate.Group) + "/" + core.EscapeGlob(coordinate.Artifact) + "/**"
		patterns = []string{"META-INF" + path, "contracts" + path, "mappings" + path}
	}
	roots := make([]resourceRoot, 0, len(a.Roots)*len(patterns))
	for _, base := range a.Roots {
		for _, pattern := range patterns {
			roots = append(roots, resourceRoot{Base: base, Pattern: pattern})
		}
	}
	return roots
}
