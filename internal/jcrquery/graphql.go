package jcrquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// GraphQLResponse is the decoded body of a GraphQL answer.
type GraphQLResponse struct {
	Data   json.RawMessage   `json:"data,omitempty"`
	Errors []json.RawMessage `json:"errors,omitempty"`
}

// GraphQLExecutor sends one GraphQL request. Implementations return
// *TransportError for non-2xx answers and must honour ctx.
type GraphQLExecutor func(ctx context.Context, query string, variables map[string]any) (*GraphQLResponse, error)

// Fragment is an optional named fragment spread into every node.
type Fragment struct {
	Name  string
	Value string
}

// NodesQueryOptions shapes the nodesByQuery document.
type NodesQueryOptions struct {
	Fragment      *Fragment
	RenderEnabled bool
	Limit         int
	Offset        int
}

// NodesQuery returns the GetContentPropertiesQuery document. Limit and
// offset are only emitted when positive.
func NodesQuery(opts NodesQueryOptions) string {
	var sb strings.Builder

	sb.WriteString("query GetContentPropertiesQuery($workspace: Workspace!, $query: String!, ")
	if opts.RenderEnabled {
		sb.WriteString("$view: String!, ")
	}
	sb.WriteString("$language: String!) {\n")
	sb.WriteString("  jcr(workspace: $workspace) {\n")
	sb.WriteString("    nodesByQuery(query: $query")
	if opts.Limit > 0 {
		fmt.Fprintf(&sb, ", limit: %d", opts.Limit)
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&sb, ", offset: %d", opts.Offset)
	}
	sb.WriteString(") {\n")
	sb.WriteString("      nodes {\n")
	sb.WriteString("        workspace\n        uuid\n        path\n        name\n")
	hasFragment := opts.Fragment != nil && opts.Fragment.Value != ""
	if hasFragment {
		fmt.Fprintf(&sb, "        ...%s\n", opts.Fragment.Name)
	}
	if opts.RenderEnabled {
		sb.WriteString("        renderedContent(view: $view, language: $language) { output }\n")
	}
	sb.WriteString("      }\n    }\n  }\n}")
	if hasFragment {
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(opts.Fragment.Value))
	}
	return sb.String()
}

type nodesByQueryData struct {
	JCR struct {
		NodesByQuery struct {
			Nodes []struct {
				UUID            string `json:"uuid"`
				RenderedContent *struct {
					Output *string `json:"output"`
				} `json:"renderedContent"`
			} `json:"nodes"`
		} `json:"nodesByQuery"`
	} `json:"jcr"`
}
