// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

//go:embed stages.json
var defaultStages []byte

// LoadRegistry reads a registry file from disk.
func LoadRegistry(path string) (*StageRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the registry compiled into the binary.
func Default() (*StageRegistry, error) {
	return Parse(defaultStages)
}

// Parse decodes and validates a registry, returning stages sorted by Order.
func Parse(data []byte) (*StageRegistry, error) {
	var reg StageRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode stage registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	sort.SliceStable(reg.Stages, func(i, j int) bool {
		return reg.Stages[i].Order < reg.Stages[j].Order
	})
	return &reg, nil
}

func (r *StageRegistry) Validate() error {
	if len(r.Stages) == 0 {
		return fmt.Errorf("stage registry has no stages")
	}

	ids := make(map[string]bool, len(r.Stages))
	orders := make(map[int]string, len(r.Stages))
	for i, s := range r.Stages {
		if s.ID == "" || s.TaskType == "" || s.DisplayName == "" {
			return fmt.Errorf("stage %d: id, taskType and displayName are required", i)
		}
		if ids[s.ID] {
			return fmt.Errorf("duplicate stage id %q", s.ID)
		}
		ids[s.ID] = true
		if other, ok := orders[s.Order]; ok {
			return fmt.Errorf("stages %q and %q share order %d", other, s.ID, s.Order)
		}
		orders[s.Order] = s.ID
	}
	return nil
}

// Find returns the stage with the given task type.
func (r *StageRegistry) Find(taskType string) (Stage, bool) {
	for _, s := range r.Stages {
		if s.TaskType == taskType {
			return s, true
		}
	}
	return Stage{}, false
}
