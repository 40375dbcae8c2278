package adapters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

// YAMLContractLoaderAdapter reads contract descriptors from YAML files. A
// file holds a single contract, a list of contracts, a {contracts: [...]}
// document or several documents separated by ---.
type YAMLContractLoaderAdapter struct{}

var _ ports.ContractLoaderPort = YAMLContractLoaderAdapter{}

func NewYAMLContractLoaderAdapter() YAMLContractLoaderAdapter {
	return YAMLContractLoaderAdapter{}
}

func (YAMLContractLoaderAdapter) Accepts(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

func (l YAMLContractLoaderAdapter) Load(path string) ([]types.ContractDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to read contract %s", path)).
			WithCause(err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var contracts []types.ContractDescriptor
	for {
		var node yaml.Node
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("failed to parse contract %s", path)).
				WithCause(err)
		}
		decoded, err := decodeContractNode(&node)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid contract %s", path)).
				WithCause(err)
		}
		contracts = append(contracts, decoded...)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i := range contracts {
		contracts[i].Source = path
		if contracts[i].Name == "" {
			contracts[i].Name = base
			if len(contracts) > 1 {
				contracts[i].Name = fmt.Sprintf("%s_%d", base, i)
			}
		}
	}
	return contracts, nil
}

func decodeContractNode(node *yaml.Node) ([]types.ContractDescriptor, error) {
	root := node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	switch root.Kind {
	case yaml.SequenceNode:
		var contracts []types.ContractDescriptor
		if err := root.Decode(&contracts); err != nil {
			return nil, err
		}
		return contracts, nil
	case yaml.MappingNode:
		var file types.ContractFile
		if err := root.Decode(&file); err != nil {
			return nil, err
		}
		if len(file.Contracts) > 0 {
			return file.Contracts, nil
		}
		var contract types.ContractDescriptor
		if err := root.Decode(&contract); err != nil {
			return nil, err
		}
		return []types.ContractDescriptor{contract}, nil
	case 0:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected yaml node at line %d", root.Line)
}
