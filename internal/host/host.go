// Package host describes the contracts the rendering host exposes to the
// query layer: node identity, translation lookup and cache dependencies.
package host

// CacheDependency tells the host cache which stored render outputs must be
// flushed when content changes. Exactly one field is normally set.
type CacheDependency struct {
	FlushOnPathMatchingRegexp string `json:"flushOnPathMatchingRegexp,omitempty"`
	UUID                      string `json:"uuid,omitempty"`
	Path                      string `json:"path,omitempty"`
}

// FlushOnPathMatching returns a dependency on every path matching pattern.
func FlushOnPathMatching(pattern string) CacheDependency {
	return CacheDependency{FlushOnPathMatchingRegexp: pattern}
}

// ForUUID returns a dependency on a single node identifier.
func ForUUID(uuid string) CacheDependency {
	return CacheDependency{UUID: uuid}
}

// ForPath returns a dependency on a single node path.
func ForPath(path string) CacheDependency {
	return CacheDependency{Path: path}
}

// IsZero reports whether no dependency is set.
func (d CacheDependency) IsZero() bool {
	return d.FlushOnPathMatchingRegexp == "" && d.UUID == "" && d.Path == ""
}

// NodeIdentity is implemented by host node wrappers.
type NodeIdentity interface {
	Identifier() string
	Path() string
}

// NodeRef is a NodeIdentity known by identifier and path only.
type NodeRef struct {
	ID       string `json:"id"`
	NodePath string `json:"path,omitempty"`
}

func (n NodeRef) Identifier() string { return n.ID }

func (n NodeRef) Path() string { return n.NodePath }

// TranslationLookup resolves the per-locale translation node of a node.
type TranslationLookup interface {
	TranslationID(nodeID, language string) (string, bool)
}

// TranslationLookupFunc adapts a function to TranslationLookup.
type TranslationLookupFunc func(nodeID, language string) (string, bool)

func (f TranslationLookupFunc) TranslationID(nodeID, language string) (string, bool) {
	return f(nodeID, language)
}

// TranslationMap is an in-memory TranslationLookup keyed by node id then language.
type TranslationMap map[string]map[string]string

func (m TranslationMap) TranslationID(nodeID, language string) (string, bool) {
	id, ok := m[nodeID][language]
	return id, ok && id != ""
}
