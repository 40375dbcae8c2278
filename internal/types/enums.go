package types

import "strings"

type StubsMode string

const (
	StubsModeClasspath StubsMode = "classpath"
	StubsModeLocal     StubsMode = "local"
	StubsModeRemote    StubsMode = "remote"
)

func ParseStubsMode(value string) (StubsMode, bool) {
	switch mode := StubsMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case StubsModeClasspath, StubsModeLocal, StubsModeRemote:
		return mode, true
	}
	return "", false
}

// ReleaseType orders version suffixes by maturity.
type ReleaseType int

const (
	ReleaseTypeSnapshot ReleaseType = iota
	ReleaseTypeMilestone
	ReleaseTypeReleaseCandidate
	ReleaseTypeRelease
	ReleaseTypeServiceRelease
)

func (r ReleaseType) String() string {
	switch r {
	case ReleaseTypeMilestone:
		return "M"
	case ReleaseTypeReleaseCandidate:
		return "RC"
	case ReleaseTypeRelease:
		return "RELEASE"
	case ReleaseTypeServiceRelease:
		return "SR"
	default:
		return "SNAPSHOT"
	}
}

// IsGA reports whether the release type is generally available.
func (r ReleaseType) IsGA() bool {
	return r == ReleaseTypeRelease || r == ReleaseTypeServiceRelease
}
