package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cms-query-workers/internal/jcrquery"
)

// maxResponseBytes caps how much of a GraphQL answer is read.
const maxResponseBytes = 16 << 20

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}

// GraphQLClient posts GraphQL documents as JSON to a single endpoint.
type GraphQLClient struct {
	client   *Client
	endpoint string
	headers  map[string]string
}

func NewGraphQLClient(client *Client, endpoint string, headers map[string]string) *GraphQLClient {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return &GraphQLClient{client: client, endpoint: endpoint, headers: h}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Execute sends one request. A non-2xx status yields *jcrquery.TransportError;
// a 2xx body is decoded as is and payload errors are left to the caller.
func (g *GraphQLClient) Execute(ctx context.Context, query string, variables map[string]any) (*jcrquery.GraphQLResponse, error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &jcrquery.TransportError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	var out jcrquery.GraphQLResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode graphql response: %v", jcrquery.ErrDecode, err)
	}
	return &out, nil
}
