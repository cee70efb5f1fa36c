// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Registry collects the activities a worker manager serves.
type Registry struct {
	mu         sync.RWMutex
	version    string
	updated    time.Time
	activities map[string]Activity
}

func New(version string) *Registry {
	return &Registry{version: version, activities: make(map[string]Activity)}
}

// Add registers a. Task types are unique.
func (r *Registry) Add(a Activity) error {
	if a.TaskType == "" {
		return fmt.Errorf("activity %q has no task type", a.ID)
	}
	if len(a.InputSchema) > 0 && !json.Valid(a.InputSchema) {
		return fmt.Errorf("activity %q: input schema is not valid JSON", a.TaskType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.activities[a.TaskType]; exists {
		return fmt.Errorf("activity %q already registered", a.TaskType)
	}
	if a.ID == "" {
		a.ID = a.TaskType
	}
	if a.ErrorCodes == nil {
		a.ErrorCodes = []string{}
	}
	r.activities[a.TaskType] = a
	r.updated = time.Now().UTC()
	return nil
}

func (r *Registry) Find(taskType string) (Activity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.activities[taskType]
	return a, ok
}

// Snapshot returns the registry with activities sorted by task type.
func (r *Registry) Snapshot() ActivityRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := ActivityRegistry{
		Version:    r.version,
		Activities: make([]Activity, 0, len(r.activities)),
	}
	if !r.updated.IsZero() {
		out.LastUpdated = r.updated.Format(time.RFC3339)
	}
	for _, a := range r.activities {
		out.Activities = append(out.Activities, a)
	}
	sort.Slice(out.Activities, func(i, j int) bool {
		return out.Activities[i].TaskType < out.Activities[j].TaskType
	})
	return out
}

// WriteFile stores a snapshot as indented JSON.
func (r *Registry) WriteFile(path string) error {
	data, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}
