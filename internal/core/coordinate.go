package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

const maxNotationParts = 4

// ParseCoordinate parses group:artifact[:version[:classifier]]. Fewer
// than two tokens yield an undefined coordinate.
func ParseCoordinate(text string, defaultClassifier string) types.StubCoordinate {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) < 2 {
		return types.StubCoordinate{}
	}
	coordinate := types.StubCoordinate{
		Group:      parts[0],
		Artifact:   parts[1],
		Version:    types.LatestVersion,
		Classifier: defaultClassifier,
	}
	if len(parts) >= 3 && parts[2] != "" {
		coordinate.Version = parts[2]
	}
	if len(parts) == 4 && parts[3] != "" {
		coordinate.Classifier = parts[3]
	}
	return coordinate
}

// StubSpecification is a coordinate with an optional explicit port taken
// from a trailing numeric token (group:artifact:version:classifier:port).
type StubSpecification struct {
	Coordinate types.StubCoordinate
	Port       int
	HasPort    bool
}

func ParseStubSpecification(text string, defaultClassifier string) StubSpecification {
	notation := strings.TrimSpace(text)
	spec := StubSpecification{}
	if idx := strings.LastIndex(notation, ":"); idx > 0 {
		if port, err := strconv.Atoi(notation[idx+1:]); err == nil {
			spec.Port = port
			spec.HasPort = true
			notation = notation[:idx]
		}
	}
	spec.Coordinate = ParseCoordinate(notation, defaultClassifier)
	return spec
}

// ParseStubSpecifications parses stub ids in order, dropping blanks and
// duplicates by identity. Explicit ports are returned keyed by
// StubCoordinate.Key.
func ParseStubSpecifications(values []string, defaultClassifier string) ([]types.StubCoordinate, map[string]int, error) {
	coordinates := make([]types.StubCoordinate, 0, len(values))
	ports := map[string]int{}
	seen := map[string]struct{}{}
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		spec := ParseStubSpecification(value, defaultClassifier)
		if !spec.Coordinate.IsDefined() {
			return nil, nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid stub notation [%s]: expected groupId:artifactId[:version[:classifier]][:port]", value))
		}
		if spec.HasPort {
			ports[spec.Coordinate.Key()] = spec.Port
		}
		if _, ok := seen[spec.Coordinate.Key()]; ok {
			continue
		}
		seen[spec.Coordinate.Key()] = struct{}{}
		coordinates = append(coordinates, spec.Coordinate)
	}
	return coordinates, ports, nil
}

// ValidateNotation rejects notations with more parts than a coordinate has.
func ValidateNotation(notation string) error {
	if strings.TrimSpace(notation) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("stub notation is empty")
	}
	if len(strings.Split(notation, ":")) > maxNotationParts {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid stub notation [%s]: expected groupId:artifactId:version:classifier", notation))
	}
	return nil
}
