package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	debversion "github.com/knqyf263/go-deb-version"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

const (
	dotDelimiter    = "."
	hyphenDelimiter = "-"
	buildSnapshot   = "BUILD-SNAPSHOT"
)

var (
	snapshotPattern  = regexp.MustCompile(`^.*[.|-](BUILD-)?SNAPSHOT.*$`)
	milestonePattern = regexp.MustCompile(`^.*[.|-]M[0-9]+$`)
	rcPattern        = regexp.MustCompile(`^.*[.|-]RC.*$`)
	releasePattern   = regexp.MustCompile(`^.*[.|-]RELEASE.*$`)
	srPattern        = regexp.MustCompile(`^.*[.|-]SR[0-9]+.*$`)
	numericPattern   = regexp.MustCompile(`^[0-9]+$`)
)

var suffixPatterns = []*regexp.Regexp{snapshotPattern, milestonePattern, rcPattern, releasePattern, srPattern}

// versionCache memoizes parsed numeric parts so sorting sibling version
// directories does not reparse the same string repeatedly.
type versionCache struct {
	mu  sync.Mutex
	deb map[string]debversion.Version
}

var numericVersions = &versionCache{deb: map[string]debversion.Version{}}

// debVersion returns a parsed Debian version, caching the result.
func (c *versionCache) debVersion(value string) (debversion.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if parsed, ok := c.deb[value]; ok {
		return parsed, nil
	}
	parsed, err := debversion.NewVersion(value)
	if err != nil {
		return debversion.Version{}, err
	}
	c.deb[value] = parsed
	return parsed, nil
}

// compare orders two numeric version strings, falling back to a lexical
// comparison for values that do not parse (release train names).
func (c *versionCache) compare(a string, b string) int {
	v1, err1 := c.debVersion(a)
	v2, err2 := c.debVersion(b)
	if err1 != nil || err2 != nil {
		return strings.Compare(a, b)
	}
	return v1.Compare(v2)
}

// ParseVersion decomposes a version string. Accepted forms are
// 1.2.3.SUFFIX, 1.2.3-SUFFIX, Train.SUFFIX and Train-SUFFIX.
func ParseVersion(raw string) (types.ResolvedVersion, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return types.ResolvedVersion{}, invalidVersion(raw)
	}
	version, err := splitVersion(value)
	if err != nil {
		return types.ResolvedVersion{}, err
	}
	if !validSplit(version) {
		return types.ResolvedVersion{}, invalidVersion(raw)
	}
	version.Raw = value
	version.ReleaseType = releaseTypeOf(value)
	return version, nil
}

func splitVersion(value string) (types.ResolvedVersion, error) {
	hyphens := strings.Count(value, hyphenDelimiter)
	isBuildSnapshot := strings.HasSuffix(value, buildSnapshot)
	if (hyphens == 1 && !isBuildSnapshot) || (hyphens > 1 && isBuildSnapshot) {
		idx := strings.Index(value, hyphenDelimiter)
		name := value[:idx]
		suffix := value[idx+1:]
		if !strings.Contains(name, dotDelimiter) {
			if !hasKnownSuffix(value) {
				return types.ResolvedVersion{}, invalidVersion(value)
			}
			return types.ResolvedVersion{Major: name, Delimiter: hyphenDelimiter, Suffix: suffix}, nil
		}
		parts := append(strings.Split(name, dotDelimiter), suffix)
		return fromParts(parts, hyphenDelimiter), nil
	}
	return fromParts(strings.Split(value, dotDelimiter), dotDelimiter), nil
}

func fromParts(parts []string, delimiter string) types.ResolvedVersion {
	version := types.ResolvedVersion{Delimiter: delimiter}
	switch len(parts) {
	case 1:
		version.Major = parts[0]
	case 2:
		version.Major = parts[0]
		version.Suffix = parts[1]
	case 3:
		version.Major = parts[0]
		version.Minor = parts[1]
		version.Suffix = parts[2]
	default:
		version.Major = parts[0]
		version.Minor = parts[1]
		version.Patch = parts[2]
		version.Suffix = parts[3]
	}
	return version
}

func validSplit(v types.ResolvedVersion) bool {
	if v.Suffix == "" {
		return false
	}
	if numericPattern.MatchString(v.Major) && (v.Minor == "" || v.Patch == "") {
		return false
	}
	return v.Delimiter == dotDelimiter || v.Delimiter == hyphenDelimiter
}

func hasKnownSuffix(value string) bool {
	for _, pattern := range suffixPatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

func releaseTypeOf(value string) types.ReleaseType {
	switch {
	case milestonePattern.MatchString(value):
		return types.ReleaseTypeMilestone
	case rcPattern.MatchString(value):
		return types.ReleaseTypeReleaseCandidate
	case releasePattern.MatchString(value):
		return types.ReleaseTypeRelease
	case srPattern.MatchString(value):
		return types.ReleaseTypeServiceRelease
	default:
		return types.ReleaseTypeSnapshot
	}
}

func invalidVersion(raw string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid version format [%s]: expected 1.2.3.A, 1.2.3-A, A.B or A-B", raw))
}

// CompareVersions orders two versions by maturity. The numeric part wins
// when it differs; equal numeric parts are ordered by release type.
func CompareVersions(a types.ResolvedVersion, b types.ResolvedVersion) int {
	if cmp := numericVersions.compare(a.Numeric(), b.Numeric()); cmp != 0 {
		if cmp < 0 {
			return -1
		}
		return 1
	}
	switch {
	case a.ReleaseType < b.ReleaseType:
		return -1
	case a.ReleaseType > b.ReleaseType:
		return 1
	default:
		return 0
	}
}

// IsMoreMature reports whether a is strictly more mature than b.
func IsMoreMature(a types.ResolvedVersion, b types.ResolvedVersion) bool {
	return CompareVersions(a, b) > 0
}

// SameNumeric reports whether two versions only differ by their suffix.
func SameNumeric(a types.ResolvedVersion, b types.ResolvedVersion) bool {
	return a.Major == b.Major && a.Minor == b.Minor && a.Patch == b.Patch
}

// SortByMaturity sorts versions from most to least mature.
func SortByMaturity(versions []types.ResolvedVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		return IsMoreMature(versions[i], versions[j])
	})
}
