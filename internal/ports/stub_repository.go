package ports

import "github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"

// StubRepositoryPort reads the mappings and contracts of a bundle
// directory.
type StubRepositoryPort interface {
	Load(root string, accepts func(file string) bool) (types.StubBundle, error)
}

// ContractLoaderPort parses contract descriptor files.
type ContractLoaderPort interface {
	Accepts(path string) bool
	Load(path string) ([]types.ContractDescriptor, error)
}
