package types

// ResolvedVersion is the decomposition of a raw version string such as
// 1.2.3.RELEASE, 1.0.0-BUILD-SNAPSHOT or Hoxton.SR1. Release train names
// only populate Major.
type ResolvedVersion struct {
	Raw         string
	Major       string
	Minor       string
	Patch       string
	Delimiter   string
	Suffix      string
	ReleaseType ReleaseType
}

// IsTrain reports whether the version is a release train name.
func (v ResolvedVersion) IsTrain() bool {
	return v.Minor == "" && v.Patch == ""
}

func (v ResolvedVersion) IsSnapshot() bool {
	return v.ReleaseType == ReleaseTypeSnapshot
}

// Numeric returns the major.minor.patch part, or just the train name.
func (v ResolvedVersion) Numeric() string {
	if v.IsTrain() {
		return v.Major
	}
	return v.Major + "." + v.Minor + "." + v.Patch
}

func (v ResolvedVersion) String() string {
	return v.Raw
}
