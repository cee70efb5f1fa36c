package jcrquery

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("jcrquery: invalid query configuration")
	ErrInvalidJoiner = errors.New("jcrquery: joiner must be AND or OR")
	ErrNoExecutor    = errors.New("jcrquery: no graphql executor configured")
	ErrQueryTimeout  = errors.New("jcrquery: query timed out")
	ErrSuperseded    = errors.New("jcrquery: superseded by a newer request")
	ErrDecode        = errors.New("jcrquery: unexpected response shape")
)

// InvalidOperatorError is returned by SetConstraints for an operator outside
// the whitelist. It aborts the call.
type InvalidOperatorError struct {
	Operator string
	Prop     string
}

func (e *InvalidOperatorError) Error() string {
	return fmt.Sprintf("jcrquery: unsupported or suspicious operator %q for prop %q", e.Operator, e.Prop)
}

// InvalidPropertyError is returned for property names that cannot be
// embedded in a bracketed identifier.
type InvalidPropertyError struct {
	Prop string
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("jcrquery: invalid property name %q", e.Prop)
}

// TransportError reports a non-2xx answer from the GraphQL endpoint.
type TransportError struct {
	StatusCode int
	Status     string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("graphql http error: %d %s", e.StatusCode, e.Status)
}

// GraphQLError carries the error list of a payload that reported errors.
type GraphQLError struct {
	Errors []json.RawMessage
}

func (e *GraphQLError) Error() string {
	raw, err := json.Marshal(e.Errors)
	if err != nil {
		return "graphql errors"
	}
	return "graphql errors: " + string(raw)
}
