package expression

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// jq runs a jq query against a value. A single result is returned as-is,
// several results are collected into an array.
func (e *Engine) jq(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, errArgCount
	}

	query, ok := params[1].(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("%w: jq query must be a non-empty string", errArgType)
	}

	code, err := e.jqCode(query)
	if err != nil {
		return nil, err
	}

	input, err := normalizeForJQ(params[0])
	if err != nil {
		return nil, err
	}

	iter := code.Run(input)

	var results []any

	for {
		v, ok := iter.Next()
		if !ok {
			break
		}

		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq evaluation failed for %q: %w", query, err)
		}

		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func (e *Engine) jqCode(query string) (*gojq.Code, error) {
	e.mu.RLock()
	code, ok := e.jqCache[query]
	e.mu.RUnlock()

	if ok {
		return code, nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("jq parse error in %q: %w", query, err)
	}

	code, err = gojq.Compile(parsed, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, fmt.Errorf("jq compile error in %q: %w", query, err)
	}

	e.mu.Lock()
	e.jqCache[query] = code
	e.mu.Unlock()

	return code, nil
}

// normalizeForJQ converts arbitrary Go values into the JSON-shaped values gojq accepts.
func normalizeForJQ(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jq input is not JSON encodable: %w", err)
	}

	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}

	return out, nil
}
