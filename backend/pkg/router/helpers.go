package router

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// validateRouteSpec validates a RouteSpec.
func validateRouteSpec(spec RouteSpec) error {
	if spec.OperationID == "" {
		return errors.New("field OperationID required")
	}

	if spec.Summary == "" {
		return errors.New("field Summary required")
	}

	if spec.Description == "" {
		return errors.New("field Description required")
	}

	if spec.Group == "" {
		return errors.New("field Group required")
	}

	if spec.Handler == nil {
		return errors.New("field Handler required")
	}

	return nil
}

// validateParameters checks that every path parameter is documented and every documented path
// parameter exists and is required.
func validateParameters(spec RouteSpec) error {
	paramsInPath := map[string]struct{}{}
	documentedPathParams := map[string]struct{}{}

	for section := range strings.SplitSeq(spec.fullPath, "/") {
		names, err := extractParamNames(section)
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", spec.fullPath, err)
		}

		for _, name := range names {
			if !isValidParameterName(name) {
				return fmt.Errorf("invalid parameter name %s in path %s", name, spec.fullPath)
			}

			paramsInPath[name] = struct{}{}
		}
	}

	validInValues := []ParameterIn{ParameterInPath, ParameterInQuery, ParameterInHeader}

	for name, paramSpec := range spec.Parameters {
		if name == "" {
			return fmt.Errorf("parameter name required for %s %s", spec.method, spec.fullPath)
		}

		if paramSpec.Description == "" {
			return fmt.Errorf("parameter Description required for %s %s", spec.method, spec.fullPath)
		}

		if !slices.Contains(validInValues, paramSpec.In) {
			return fmt.Errorf("parameter In must be one of %v for %s %s", validInValues, spec.method, spec.fullPath)
		}

		if paramSpec.In == ParameterInPath {
			if _, exists := paramsInPath[name]; !exists {
				return fmt.Errorf("documented path parameter %s not found in path", name)
			}

			if !paramSpec.Required {
				return fmt.Errorf("path parameter %s must be required", name)
			}

			documentedPathParams[name] = struct{}{}
		}
	}

	for name := range paramsInPath {
		if _, exists := documentedPathParams[name]; !exists {
			return fmt.Errorf("path parameter %s not documented", name)
		}
	}

	return nil
}

// extractParamNames returns the chi parameter names in one path section, e.g. "{deviceID}" or
// "{id:[0-9]+}".
func extractParamNames(section string) ([]string, error) {
	var names []string

	for {
		start := strings.IndexByte(section, '{')
		if start == -1 {
			if strings.IndexByte(section, '}') != -1 {
				return nil, errors.New("unmatched '}'")
			}

			return names, nil
		}

		end := strings.IndexByte(section[start:], '}')
		if end == -1 {
			return nil, errors.New("unmatched '{'")
		}

		name, _, _ := strings.Cut(section[start+1:start+end], ":")
		names = append(names, name)
		section = section[start+end+1:]
	}
}

func isValidParameterName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_'):
		default:
			return false
		}
	}

	return true
}
