package jcrquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cms-query-workers/internal/host"
)

// TranslationNodesQuery fetches the translation child of each node.
const TranslationNodesQuery = `query TranslationNodes($workspace: Workspace!, $uuids: [String!]!, $relPath: String!) {
  jcr(workspace: $workspace) {
    nodesById(uuids: $uuids) {
      uuid
      translation: descendant(relPath: $relPath) { uuid }
    }
  }
}`

type translationNodesData struct {
	JCR struct {
		NodesByID []struct {
			UUID        string `json:"uuid"`
			Translation *struct {
				UUID string `json:"uuid"`
			} `json:"translation"`
		} `json:"nodesById"`
	} `json:"jcr"`
}

// TranslationLoader resolves j:translation_<language> nodes through GraphQL.
type TranslationLoader struct {
	run     GraphQLExecutor
	timeout time.Duration
}

func NewTranslationLoader(run GraphQLExecutor, timeout time.Duration) *TranslationLoader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TranslationLoader{run: run, timeout: timeout}
}

// Load returns the translation node of every id in language. Ids without a
// translation are absent from the map.
func (l *TranslationLoader) Load(ctx context.Context, workspace Workspace, ids []string, language string) (host.TranslationMap, error) {
	out := host.TranslationMap{}
	if len(ids) == 0 || language == "" {
		return out, nil
	}
	if l == nil || l.run == nil {
		return nil, ErrNoExecutor
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	resp, err := l.run(ctx, TranslationNodesQuery, map[string]any{
		"workspace": string(workspace),
		"uuids":     ids,
		"relPath":   "j:translation_" + language,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: translation lookup after %s", ErrQueryTimeout, l.timeout)
		}
		return nil, err
	}
	if resp == nil {
		return out, nil
	}
	if len(resp.Errors) > 0 {
		return nil, &GraphQLError{Errors: resp.Errors}
	}
	if len(resp.Data) == 0 {
		return out, nil
	}

	var data translationNodesData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode nodesById: %v", ErrDecode, err)
	}
	for _, n := range data.JCR.NodesByID {
		if n.UUID == "" || n.Translation == nil || n.Translation.UUID == "" {
			continue
		}
		out[n.UUID] = map[string]string{language: n.Translation.UUID}
	}
	return out, nil
}
