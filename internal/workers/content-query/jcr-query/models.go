package jcrqueryworker

import (
	"cms-query-workers/internal/jcrquery"
)

type Input struct {
	Query       jcrquery.Config       `json:"query"`
	Constraints []jcrquery.Constraint `json:"constraints,omitempty"`
	// ExcludeNodeIDs are left out of the results along with their
	// translation node in the query language.
	ExcludeNodeIDs []string `json:"excludeNodeIds,omitempty"`
	Joiners     map[string]string     `json:"joiners,omitempty"`
	Limit       *int                  `json:"limit,omitempty"`
	Offset      *int                  `json:"offset,omitempty"`
	TimeoutMs   int                   `json:"timeoutMs,omitempty"`
	NoCache     bool                  `json:"noCache,omitempty"`
}

type Output struct {
	Query           string                `json:"jcrQuery"`
	CacheDependency string                `json:"cacheDependency"`
	Nodes           []jcrquery.RenderNode `json:"nodes"`
	NodeCount       int                   `json:"nodeCount"`
	Cached          bool                  `json:"cached"`
}

// InputSchema is the JSON schema job variables are validated against.
const InputSchema = `{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": {
      "type": "object",
      "required": ["workspace", "type", "startNodePath", "criteria", "sortDirection"],
      "properties": {
        "workspace": {"type": "string", "enum": ["EDIT", "LIVE", "edit", "live"]},
        "type": {"type": "string", "minLength": 1},
        "startNodePath": {"type": "string", "minLength": 1},
        "criteria": {"type": "string", "minLength": 1},
        "sortDirection": {"type": "string", "enum": ["asc", "desc", "ASC", "DESC"]},
        "language": {"type": "string"},
        "subNodeView": {"type": "string"},
        "limit": {"type": "integer", "minimum": 0},
        "offset": {"type": "integer", "minimum": 0}
      }
    },
    "constraints": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["prop", "operator"],
        "properties": {
          "prop": {"type": "string", "minLength": 1},
          "operator": {"type": "string"}
        }
      }
    },
    "excludeNodeIds": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "joiners": {"type": "object", "additionalProperties": {"type": "string"}},
    "limit": {"type": "integer", "minimum": 0},
    "offset": {"type": "integer", "minimum": 0},
    "timeoutMs": {"type": "integer", "minimum": 1},
    "noCache": {"type": "boolean"}
  }
}`
