package adapters

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

// StubRepositoryAdapter reads the mapping files and contract descriptors
// of an unpacked bundle. With a consumer name set, only files below a
// directory of that name are kept.
type StubRepositoryAdapter struct {
	ConsumerName string
	loaders      []ports.ContractLoaderPort
}

var _ ports.StubRepositoryPort = StubRepositoryAdapter{}

func NewStubRepositoryAdapter(options types.StubRunnerOptions, loaders ...ports.ContractLoaderPort) StubRepositoryAdapter {
	consumer := ""
	if options.StubsPerConsumer {
		consumer = strings.TrimSpace(options.ConsumerName)
	}
	return StubRepositoryAdapter{ConsumerName: consumer, loaders: loaders}
}

func (r StubRepositoryAdapter) Load(root string, accepts func(file string) bool) (types.StubBundle, error) {
	bundle := types.StubBundle{Root: root}
	if strings.TrimSpace(root) == "" {
		return bundle, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("stub bundle root is empty")
	}
	var contractFiles []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !r.belongsToConsumer(root, path) {
			return nil
		}
		if r.loaderFor(path) != nil {
			contractFiles = append(contractFiles, path)
			return nil
		}
		if accepts != nil && accepts(path) {
			bundle.MappingFiles = append(bundle.MappingFiles, path)
		}
		return nil
	})
	if err != nil {
		return bundle, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to scan stub bundle %s", root)).
			WithCause(err)
	}
	sort.Strings(bundle.MappingFiles)
	sort.Strings(contractFiles)
	for _, file := range contractFiles {
		contracts, err := r.loaderFor(file).Load(file)
		if err != nil {
			return bundle, err
		}
		for _, contract := range contracts {
			if contract.Ignored {
				continue
			}
			bundle.Contracts = append(bundle.Contracts, contract)
		}
	}
	return bundle, nil
}

func (r StubRepositoryAdapter) loaderFor(path string) ports.ContractLoaderPort {
	for _, loader := range r.loaders {
		if loader.Accepts(path) {
			return loader
		}
	}
	return nil
}

func (r StubRepositoryAdapter) belongsToConsumer(root string, path string) bool {
	if r.ConsumerName == "" {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, segment := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		if segment == r.ConsumerName {
			return true
		}
	}
	return false
}
