package classifiedsearch

import (
	"cms-query-workers/internal/classifieds"
	"cms-query-workers/internal/jcrquery"
)

type Input struct {
	// SessionID names the request slot; a newer search in the same session
	// supersedes an older one still in flight.
	SessionID     string              `json:"sessionId,omitempty"`
	Workspace     string              `json:"workspace,omitempty"`
	StartNodePath string              `json:"startNodePath,omitempty"`
	UUID          string              `json:"uuid,omitempty"`
	Language      string              `json:"language,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
	Params        map[string][]string `json:"params,omitempty"`
	SavedSearchID string              `json:"savedSearchId,omitempty"`
	SaveAs        string              `json:"saveAs,omitempty"`
	TimeoutMs     int                 `json:"timeoutMs,omitempty"`
}

type Output struct {
	Config          jcrquery.Config        `json:"config"`
	Constraints     []jcrquery.Constraint  `json:"constraints"`
	Selections      classifieds.Selections `json:"selections"`
	Query           string                 `json:"jcrQuery"`
	CacheDependency string                 `json:"cacheDependency"`
	Nodes           []jcrquery.RenderNode  `json:"nodes"`
	NoResults       bool                   `json:"noResults"`
	SavedSearchID   string                 `json:"savedSearchId,omitempty"`
}

// InputSchema is the JSON schema job variables are validated against.
const InputSchema = `{
  "type": "object",
  "properties": {
    "sessionId": {"type": "string"},
    "workspace": {"type": "string", "enum": ["EDIT", "LIVE", "edit", "live", "default"]},
    "startNodePath": {"type": "string"},
    "uuid": {"type": "string"},
    "language": {"type": "string"},
    "limit": {"type": "integer", "minimum": 0},
    "params": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    },
    "savedSearchId": {"type": "string"},
    "saveAs": {"type": "string"},
    "timeoutMs": {"type": "integer", "minimum": 1}
  },
  "anyOf": [
    {"required": ["startNodePath"], "properties": {"startNodePath": {"minLength": 1}}},
    {"required": ["savedSearchId"], "properties": {"savedSearchId": {"minLength": 1}}}
  ]
}`
