package cacheflush

// Input names the changed content. Single and list forms may be mixed.
type Input struct {
	UUID  string   `json:"uuid,omitempty"`
	Path  string   `json:"path,omitempty"`
	UUIDs []string `json:"uuids,omitempty"`
	Paths []string `json:"paths,omitempty"`
}

type Output struct {
	Flushed int      `json:"flushed"`
	UUIDs   []string `json:"uuids"`
	Paths   []string `json:"paths"`
}

const InputSchema = `{
  "type": "object",
  "anyOf": [
    {"required": ["uuid"]},
    {"required": ["path"]},
    {"required": ["uuids"]},
    {"required": ["paths"]}
  ],
  "properties": {
    "uuid": {"type": "string"},
    "path": {"type": "string"},
    "uuids": {"type": "array", "items": {"type": "string"}},
    "paths": {"type": "array", "items": {"type": "string"}}
  }
}`
