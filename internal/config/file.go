package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// actionRefs are the "uses:" prefixes recognised as this action.
var actionRefs = []string{
	"BobAnkh/auto-generate-changelog",
	"shinji-kodama/auto-changelog",
}

// workflowFile is the subset of a GitHub Actions workflow that carries the
// inputs of a step.
type workflowFile struct {
	Jobs map[string]struct {
		Steps []struct {
			Uses string                 `yaml:"uses"`
			With map[string]interface{} `yaml:"with"`
		} `yaml:"steps"`
	} `yaml:"jobs"`
}

// LoadFile reads local-mode inputs. Files ending in .json or .jsonc are a
// flat object of inputs; anything else is parsed as a workflow.
//
// Returns a CLIError with ExitConfigError if the file cannot be read or
// does not contain inputs.
func LoadFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("configuration file not found: %s", path), err)
		}
		return nil, model.WrapCLIError(model.ExitConfigError, "failed to read configuration file", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return parseInputsJSONC(path, data)
	default:
		return parseWorkflow(path, data)
	}
}

// parseWorkflow finds the step that uses this action and returns its
// "with:" block. Jobs are searched in name order so that the result does
// not depend on map iteration.
func parseWorkflow(path string, data []byte) (Values, error) {
	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("failed to parse workflow %s", path), err)
	}

	jobNames := make([]string, 0, len(wf.Jobs))
	for name := range wf.Jobs {
		jobNames = append(jobNames, name)
	}
	sort.Strings(jobNames)

	for _, name := range jobNames {
		for _, step := range wf.Jobs[name].Steps {
			if usesAction(step.Uses) {
				return toValues(step.With), nil
			}
		}
	}
	return nil, model.NewCLIError(model.ExitConfigError,
		fmt.Sprintf("no step using %s found in %s", actionRefs[0], path))
}

// parseInputsJSONC reads a flat JSON object of inputs. Comments and
// trailing commas are allowed.
func parseInputsJSONC(path string, data []byte) (Values, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("failed to parse inputs file %s", path), err)
	}
	return toValues(raw), nil
}

func usesAction(uses string) bool {
	for _, ref := range actionRefs {
		if strings.HasPrefix(uses, ref) {
			return true
		}
	}
	return false
}

// toValues stringifies a decoded map. YAML and JSON scalars such as
// booleans and numbers keep their literal form ("true", "-1").
func toValues(raw map[string]interface{}) Values {
	v := make(Values, len(raw))
	for k, val := range raw {
		key := strings.ToUpper(k)
		switch x := val.(type) {
		case nil:
			v[key] = ""
		case string:
			v[key] = x
		case float64:
			// encoding/json decodes every number as float64.
			v[key] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			v[key] = fmt.Sprint(x)
		}
	}
	return v
}
