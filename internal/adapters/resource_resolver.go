package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

// resourceRoot is a doublestar pattern evaluated relative to Base.
type resourceRoot struct {
	Base    string
	Pattern string
}

// resourceResolver copies every file matched by a set of resource roots
// into a fresh temporary directory.
type resourceResolver struct {
	registry      ports.TempRegistryPort
	tempPrefix    string
	failOnNoStubs bool
	source        string
}

func (r resourceResolver) copyMatches(ctx context.Context, coordinate types.StubCoordinate, roots []resourceRoot) (types.ResolvedBundle, bool, error) {
	type match struct {
		base string
		path string
	}
	var matches []match
	seen := map[string]struct{}{}
	for _, root := range roots {
		info, err := os.Stat(root.Base)
		if err != nil || !info.IsDir() {
			continue
		}
		files, err := doublestar.Glob(os.DirFS(root.Base), root.Pattern, doublestar.WithFilesOnly())
		if err != nil {
			return types.ResolvedBundle{}, false, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid resource pattern %s", root.Pattern)).
				WithCause(err)
		}
		for _, file := range files {
			abs := filepath.Join(root.Base, filepath.FromSlash(file))
			if _, ok := seen[abs]; ok {
				continue
			}
			seen[abs] = struct{}{}
			matches = append(matches, match{base: root.Base, path: abs})
		}
	}
	if len(matches) == 0 {
		if r.failOnNoStubs {
			return types.ResolvedBundle{}, false, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("no stubs were found on %s for [%s]", r.source, coordinate.Key()))
		}
		log.Ctx(ctx).Warn().Str("source", r.source).Str("coordinate", coordinate.String()).Msg("no stubs found")
		return types.ResolvedBundle{}, false, nil
	}
	tmp, err := r.registry.TempDir(r.tempPrefix)
	if err != nil {
		return types.ResolvedBundle{}, false, err
	}
	for _, m := range matches {
		if err := copyMatches(m.base, []string{m.path}, tmp); err != nil {
			return types.ResolvedBundle{}, false, err
		}
	}
	log.Ctx(ctx).Debug().Int("files", len(matches)).Str("path", tmp).Msg("copied stub resources")
	return types.ResolvedBundle{Coordinate: coordinate, LocalPath: tmp}, true, nil
}
