package core

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

const (
	latestDirectory  = "latest"
	releaseDirectory = "release"
)

var errMatchFound = errors.New("match found")

type versionSentinel int

const (
	sentinelNone versionSentinel = iota
	sentinelLatest
	sentinelRelease
)

func sentinelOf(version string) versionSentinel {
	switch strings.ToLower(strings.TrimSpace(version)) {
	case "", types.LatestVersion, latestDirectory:
		return sentinelLatest
	case releaseDirectory:
		return sentinelRelease
	default:
		return sentinelNone
	}
}

// FindStubDirectory walks root looking for the directory holding the
// bundle of coordinate, laid out as {group}.{artifact}/{version} or
// {group}/{artifact}/{version}. Sentinel versions are resolved against
// the sibling version directories.
func FindStubDirectory(ctx context.Context, root string, coordinate types.StubCoordinate) (string, bool, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to resolve stub root").
			WithCause(err)
	}
	sentinel := sentinelOf(coordinate.Version)
	patterns := directoryPatterns(coordinate, sentinel)
	found := ""
	walkErr := filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if entry.Name() == ".git" {
			return filepath.SkipDir
		}
		if !matchesAny(patterns, filepath.ToSlash(path)) {
			return nil
		}
		if sentinel == sentinelNone {
			found = path
			return errMatchFound
		}
		dir, ok, err := pickVersionDirectory(ctx, path, sentinel)
		if err != nil {
			return err
		}
		if ok {
			found = dir
			return errMatchFound
		}
		return filepath.SkipDir
	})
	if walkErr != nil && !errors.Is(walkErr, errMatchFound) {
		return "", false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to walk stub root").
			WithCause(walkErr)
	}
	if found == "" {
		log.Ctx(ctx).Debug().Str("root", absRoot).Str("coordinate", coordinate.String()).Msg("no stub directory matched")
		return "", false, nil
	}
	log.Ctx(ctx).Debug().Str("path", found).Str("coordinate", coordinate.String()).Msg("found stub directory")
	return found, true, nil
}

func directoryPatterns(coordinate types.StubCoordinate, sentinel versionSentinel) []string {
	group := EscapeGlob(coordinate.Group)
	artifact := EscapeGlob(coordinate.Artifact)
	groupPath := EscapeGlob(strings.ReplaceAll(coordinate.Group, ".", "/"))
	suffix := ""
	if sentinel == sentinelNone {
		suffix = "/" + EscapeGlob(coordinate.Version)
	}
	return []string{
		"**/" + group + "." + artifact + suffix,
		"**/" + group + "/" + artifact + suffix,
		"**/" + groupPath + "/" + artifact + suffix,
	}
}

func matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// EscapeGlob escapes doublestar meta characters in a literal path segment.
func EscapeGlob(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// pickVersionDirectory selects the version subdirectory of parent for a
// sentinel.
func pickVersionDirectory(ctx context.Context, parent string, sentinel versionSentinel) (string, bool, error) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", false, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	chosen, ok := pickVersion(ctx, names, sentinel)
	if !ok {
		return "", false, nil
	}
	return filepath.Join(parent, chosen), true, nil
}

// PickVersion selects the entry of names a sentinel version stands for.
// An entry named latest or release matching the sentinel wins; otherwise
// the most mature parseable version, where release skips snapshots and
// latest prefers a snapshot over a release with the same number.
// Concrete versions are returned unchanged.
func PickVersion(ctx context.Context, names []string, version string) (string, bool) {
	sentinel := sentinelOf(version)
	if sentinel == sentinelNone {
		return version, true
	}
	return pickVersion(ctx, names, sentinel)
}

func pickVersion(ctx context.Context, names []string, sentinel versionSentinel) (string, bool) {
	override := releaseDirectory
	if sentinel == sentinelLatest {
		override = latestDirectory
	}
	candidates := make([]types.ResolvedVersion, 0, len(names))
	for _, name := range names {
		if strings.EqualFold(name, override) {
			return name, true
		}
		version, err := ParseVersion(name)
		if err != nil {
			log.Ctx(ctx).Debug().Str("version", name).Msg("skipping entry that is not a version")
			continue
		}
		if sentinel == sentinelRelease && version.IsSnapshot() {
			continue
		}
		candidates = append(candidates, version)
	}
	if len(candidates) == 0 {
		return "", false
	}
	SortByMaturity(candidates)
	chosen := candidates[0]
	if sentinel == sentinelLatest && !chosen.IsSnapshot() {
		for _, candidate := range candidates[1:] {
			if candidate.IsSnapshot() && SameNumeric(candidate, chosen) {
				chosen = candidate
				break
			}
		}
	}
	return chosen.Raw, true
}

// IsReleaseSentinel reports whether version asks for the newest
// non-snapshot version.
func IsReleaseSentinel(version string) bool {
	return sentinelOf(version) == sentinelRelease
}

// IsSentinelVersion reports whether version needs to be resolved
// against the available versions.
func IsSentinelVersion(version string) bool {
	return sentinelOf(version) != sentinelNone
}
