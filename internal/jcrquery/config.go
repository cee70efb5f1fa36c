package jcrquery

import (
	"fmt"
	"strings"
)

// Workspace selects the repository workspace queried through GraphQL.
type Workspace string

const (
	WorkspaceEdit Workspace = "EDIT"
	WorkspaceLive Workspace = "LIVE"
)

// WorkspaceFor maps a host workspace name ("default", "live") to a Workspace.
func WorkspaceFor(name string) Workspace {
	if name == "default" {
		return WorkspaceEdit
	}
	return WorkspaceLive
}

// SortDirection orders query results.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Ref references a node by identifier.
type Ref struct {
	ID string `json:"id"`
}

// ExcludedNode is removed from results together with its translation node.
type ExcludedNode struct {
	ID            string `json:"id"`
	TranslationID string `json:"translationId,omitempty"`
}

// Config describes one query. It is copied by NewBuilder and not changed
// afterwards except through the builder's constraint methods.
type Config struct {
	Workspace     Workspace      `json:"workspace"`
	Type          string         `json:"type"`
	StartNodePath string         `json:"startNodePath"`
	Criteria      string         `json:"criteria"`
	SortDirection SortDirection  `json:"sortDirection"`
	Categories    []Ref          `json:"categories,omitempty"`
	ExcludeNodes  []ExcludedNode `json:"excludeNodes,omitempty"`
	UUID          string         `json:"uuid,omitempty"`
	SubNodeView   string         `json:"subNodeView,omitempty"`
	Language      string         `json:"language"`
	Limit         *int           `json:"limit,omitempty"`
	Offset        *int           `json:"offset,omitempty"`
}

// Validate checks the fields that are interpolated into query text.
// An empty StartNodePath is accepted.
func (c Config) Validate() error {
	switch Workspace(strings.ToUpper(string(c.Workspace))) {
	case WorkspaceEdit, WorkspaceLive:
	default:
		return fmt.Errorf("%w: workspace %q", ErrInvalidConfig, c.Workspace)
	}
	switch SortDirection(strings.ToLower(string(c.SortDirection))) {
	case SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: sort direction %q", ErrInvalidConfig, c.SortDirection)
	}
	if !validIdentifier(c.Type) {
		return fmt.Errorf("%w: node type %q", ErrInvalidConfig, c.Type)
	}
	if !validIdentifier(c.Criteria) {
		return fmt.Errorf("%w: criteria %q", ErrInvalidConfig, c.Criteria)
	}
	if c.Limit != nil && *c.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidConfig)
	}
	if c.Offset != nil && *c.Offset < 0 {
		return fmt.Errorf("%w: negative offset", ErrInvalidConfig)
	}
	return nil
}

func (c Config) clone() Config {
	c.Workspace = Workspace(strings.ToUpper(string(c.Workspace)))
	c.SortDirection = SortDirection(strings.ToLower(string(c.SortDirection)))
	c.Categories = append([]Ref(nil), c.Categories...)
	c.ExcludeNodes = append([]ExcludedNode(nil), c.ExcludeNodes...)
	if c.Limit != nil {
		v := *c.Limit
		c.Limit = &v
	}
	if c.Offset != nil {
		v := *c.Offset
		c.Offset = &v
	}
	return c
}

// Int returns a pointer to v, for Config.Limit and Config.Offset.
func Int(v int) *int { return &v }
