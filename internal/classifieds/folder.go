package classifieds

import (
	"strings"

	"cms-query-workers/internal/host"
)

// Folder locates the content folder holding classified ads.
type Folder struct {
	Path string `json:"path,omitempty"`
	UUID string `json:"uuid,omitempty"`
}

func (f Folder) IsZero() bool { return f.Path == "" && f.UUID == "" }

// ResolveFolder accepts a path ("/sites/..."), a node identifier, a host
// node or a map with path/uuid/id keys.
func ResolveFolder(v any) Folder {
	switch x := v.(type) {
	case nil:
		return Folder{}
	case Folder:
		return x
	case host.NodeIdentity:
		return Folder{Path: strings.TrimSpace(x.Path()), UUID: strings.TrimSpace(x.Identifier())}
	case map[string]any:
		f := Folder{}
		f.Path, _ = NonEmptyString(x["path"])
		if id, ok := NonEmptyString(x["uuid"]); ok {
			f.UUID = id
		} else {
			f.UUID, _ = NonEmptyString(x["id"])
		}
		return f
	}

	s, ok := NonEmptyString(v)
	if !ok {
		return Folder{}
	}
	if strings.HasPrefix(s, "/") {
		return Folder{Path: s}
	}
	return Folder{UUID: s}
}
