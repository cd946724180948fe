package client

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sonic-data/sonic-go/internal/xerrors"
	"github.com/sonic-data/sonic-go/message"
)

var uninjectedVar = regexp.MustCompile(`\$\{[^}]*\}`)

// SplitKeyValue parses "KEY=VALUE" pairs, failing on entries without '='.
func SplitKeyValue(vars []string) ([][2]string, error) {
	pairs := make([][2]string, 0, len(vars))
	for _, v := range vars {
		key, value, found := strings.Cut(v, "=")
		if !found {
			return nil, xerrors.WithStackTrace(fmt.Errorf(
				"client: cannot split %q: it should follow format 'key=value'", v,
			))
		}
		pairs = append(pairs, [2]string{key, value})
	}

	return pairs, nil
}

// InjectVars substitutes ${VAR} placeholders in template. Every var must
// appear in the template and no placeholder may remain afterwards.
func InjectVars(template string, vars [][2]string) (string, error) {
	q := template
	for _, v := range vars {
		placeholder := "${" + v[0] + "}"
		if !strings.Contains(q, placeholder) {
			return "", xerrors.WithStackTrace(fmt.Errorf("client: %s not found in template", placeholder))
		}
		q = strings.ReplaceAll(q, placeholder, v[1])
	}
	if uninjectedVar.MatchString(q) {
		return "", xerrors.WithStackTrace(fmt.Errorf("client: some variables remain uninjected"))
	}

	return q, nil
}

// BuildQuery resolves alias against the sources map and builds the query
// message. An alias missing from the map passes through as a bare string
// config for the server to resolve.
func BuildQuery(alias string, sources map[string]json.RawMessage, authToken, text string) (*message.Query, error) {
	config, ok := sources[alias]
	if !ok {
		raw, err := json.Marshal(alias)
		if err != nil {
			return nil, xerrors.WithStackTrace(err)
		}
		config = raw
	}

	return &message.Query{
		TraceID: uuid.NewString(),
		Auth:    authToken,
		Text:    text,
		Config:  config,
	}, nil
}
