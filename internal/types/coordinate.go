package types

import "strings"

const (
	// LatestVersion is the sentinel version resolved to the newest
	// available version at fetch time.
	LatestVersion     = "+"
	DefaultClassifier = "stubs"
	coordinateSep     = ":"
)

// StubCoordinate identifies a stub bundle. Identity is (Group, Artifact);
// Version and Classifier only parameterize resolution.
type StubCoordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
}

// IsDefined reports whether both group and artifact are set.
func (c StubCoordinate) IsDefined() bool {
	return strings.TrimSpace(c.Group) != "" && strings.TrimSpace(c.Artifact) != ""
}

// Key returns the identity of the coordinate.
func (c StubCoordinate) Key() string {
	return c.Group + coordinateSep + c.Artifact
}

// SameIdentity compares coordinates by group and artifact only.
func (c StubCoordinate) SameIdentity(other StubCoordinate) bool {
	return c.Group == other.Group && c.Artifact == other.Artifact
}

// String returns group:artifact:version:classifier, or an empty string
// for an undefined coordinate.
func (c StubCoordinate) String() string {
	if !c.IsDefined() {
		return ""
	}
	return strings.Join([]string{c.Group, c.Artifact, c.Version, c.Classifier}, coordinateSep)
}

func (c StubCoordinate) WithVersion(version string) StubCoordinate {
	c.Version = version
	return c
}

// IsVersionChanging reports whether the coordinate may resolve to a
// different bundle over time.
func (c StubCoordinate) IsVersionChanging() bool {
	return c.Version == LatestVersion || strings.Contains(strings.ToLower(c.Version), "snapshot")
}

// MatchesNotation checks a partial notation: artifact, group:artifact,
// group:artifact:version or group:artifact:version:classifier. The
// latest sentinel matches any version.
func (c StubCoordinate) MatchesNotation(notation string) bool {
	parts := strings.Split(notation, coordinateSep)
	switch len(parts) {
	case 1:
		return c.Artifact == parts[0]
	case 2:
		return c.Group == parts[0] && c.Artifact == parts[1]
	case 3:
		return c.Group == parts[0] && c.Artifact == parts[1] && c.versionMatches(parts[2])
	default:
		return c.Group == parts[0] && c.Artifact == parts[1] && c.versionMatches(parts[2]) &&
			(parts[3] == "" || c.Classifier == parts[3])
	}
}

// GroupAndArtifactMatch checks only the identity part of a notation. A
// single token is treated as the artifact.
func (c StubCoordinate) GroupAndArtifactMatch(notation string) bool {
	parts := strings.Split(notation, coordinateSep)
	if len(parts) == 1 {
		return c.Artifact == parts[0]
	}
	return c.Group == parts[0] && c.Artifact == parts[1]
}

func (c StubCoordinate) versionMatches(version string) bool {
	return version == LatestVersion || c.Version == version
}
