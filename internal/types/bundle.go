package types

// ResolvedBundle is a fetched stub bundle unpacked on local disk.
type ResolvedBundle struct {
	Coordinate StubCoordinate
	LocalPath  string
}

// StubBundle is the content of a resolved bundle as seen by a stub runner.
type StubBundle struct {
	Root         string
	MappingFiles []string
	Contracts    []ContractDescriptor
}

// HasHTTPContracts reports whether an HTTP server is needed to serve the
// bundle. Bundles with contracts but none describing a request are
// message-only.
func (b StubBundle) HasHTTPContracts() bool {
	if len(b.Contracts) == 0 {
		return true
	}
	for _, contract := range b.Contracts {
		if contract.Request != nil {
			return true
		}
	}
	return false
}

func (b StubBundle) IsEmpty() bool {
	return len(b.MappingFiles) == 0 && len(b.Contracts) == 0
}

type RunningStub struct {
	Coordinate StubCoordinate
	Port       int
}

// RunningStubs is an insertion ordered registry of coordinate to port.
// Ports below zero mark bundles running without an HTTP server.
type RunningStubs struct {
	entries []RunningStub
}

func NewRunningStubs(entries ...RunningStub) RunningStubs {
	stubs := RunningStubs{}
	for _, entry := range entries {
		stubs.Put(entry.Coordinate, entry.Port)
	}
	return stubs
}

// MergeRunningStubs combines registries; later entries win on identity.
func MergeRunningStubs(all ...RunningStubs) RunningStubs {
	merged := RunningStubs{}
	for _, stubs := range all {
		for _, entry := range stubs.entries {
			merged.Put(entry.Coordinate, entry.Port)
		}
	}
	return merged
}

func (r *RunningStubs) Put(coordinate StubCoordinate, port int) {
	for i := range r.entries {
		if r.entries[i].Coordinate.SameIdentity(coordinate) {
			r.entries[i] = RunningStub{Coordinate: coordinate, Port: port}
			return
		}
	}
	r.entries = append(r.entries, RunningStub{Coordinate: coordinate, Port: port})
}

func (r RunningStubs) Entries() []RunningStub {
	out := make([]RunningStub, len(r.entries))
	copy(out, r.entries)
	return out
}

// Valid returns the entries that are served over HTTP.
func (r RunningStubs) Valid() []RunningStub {
	out := make([]RunningStub, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.Port >= 0 {
			out = append(out, entry)
		}
	}
	return out
}

func (r RunningStubs) Entry(notation string) (RunningStub, bool) {
	for _, entry := range r.entries {
		if entry.Coordinate.MatchesNotation(notation) {
			return entry, true
		}
	}
	return RunningStub{}, false
}

func (r RunningStubs) Port(notation string) (int, bool) {
	entry, ok := r.Entry(notation)
	if !ok {
		return 0, false
	}
	return entry.Port, true
}

func (r RunningStubs) PortFor(group string, artifact string) (int, bool) {
	return r.Port(group + coordinateSep + artifact)
}

func (r RunningStubs) IsPresent(notation string) bool {
	_, ok := r.Entry(notation)
	return ok
}

func (r RunningStubs) ServiceNames() []string {
	seen := map[string]struct{}{}
	names := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		if _, ok := seen[entry.Coordinate.Artifact]; ok {
			continue
		}
		seen[entry.Coordinate.Artifact] = struct{}{}
		names = append(names, entry.Coordinate.Artifact)
	}
	return names
}

// NotationToPort maps the colon notation of every entry to its port.
func (r RunningStubs) NotationToPort() map[string]int {
	out := make(map[string]int, len(r.entries))
	for _, entry := range r.entries {
		out[entry.Coordinate.String()] = entry.Port
	}
	return out
}

func (r RunningStubs) Len() int {
	return len(r.entries)
}
