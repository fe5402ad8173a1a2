package expression_test

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dukex/flowsmith/pkg/expression"
	"github.com/dukex/flowsmith/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractExpressions(t *testing.T) {
	text := "Hello {{ $json.name }}, order {{ $json.id }} {{ unterminated"
	seq := expression.ExtractExpressions(text)

	first := slices.Collect(seq)
	second := slices.Collect(seq)

	assert.Equal(t, []string{"{{ $json.name }}", "{{ $json.id }}"}, first)
	assert.Equal(t, first, second, "sequence must be restartable")
	assert.Empty(t, slices.Collect(expression.ExtractExpressions("no spans here")))
}

func TestExtractExpressions_EarlyStop(t *testing.T) {
	count := 0

	for range expression.ExtractExpressions("{{a}}{{b}}{{c}}") {
		count++
		if count == 2 {
			break
		}
	}

	assert.Equal(t, 2, count)
}

func TestExtractExpressions_QuotedDelimiters(t *testing.T) {
	text := `a {{ "}}" }} b {{ 'x}}y' + "{{" }} c {{ it's }}`

	assert.Equal(t,
		[]string{`{{ "}}" }}`, `{{ 'x}}y' + "{{" }}`, `{{ it's }}`},
		slices.Collect(expression.ExtractExpressions(text)))
}

func TestEvaluateExpression_QuotedCloseDelimiter(t *testing.T) {
	workflow := testutil.CreateChainWorkflow("A", "B")
	engine := newEngine(t, workflow, "B")

	value, err := engine.EvaluateExpression(`{{ "}}" }}`)
	require.NoError(t, err)
	assert.Equal(t, "}}", value)

	value, err = engine.EvaluateExpression(`{{ "{{" + "x" }}`)
	require.NoError(t, err)
	assert.Equal(t, "{{x", value)
}

func TestReplaceExpressions(t *testing.T) {
	workflow := testutil.CreateChainWorkflow("A", "B")
	engine := newEngine(t, workflow, "B", expression.WithOutputs(map[string]any{
		"A": map[string]any{"name": "Ada", "count": 3, "tags": []any{"x", "y"}},
	}))

	out := expression.ReplaceExpressions(
		"Hi {{ $json.name }} ({{ $json.count }}) {{ $json.tags }} {{ $node.B.json }} done", engine)

	assert.True(t, strings.HasPrefix(out, `Hi Ada (3) ["x","y"] [ERROR: `), out)
	assert.True(t, strings.HasSuffix(out, "] done"), out)
}

func TestResolveParameters(t *testing.T) {
	workflow := testutil.CreateChainWorkflow("A", "B")
	engine := newEngine(t, workflow, "B", expression.WithOutputs(map[string]any{
		"A": map[string]any{"id": 42, "email": "ada@example.com"},
	}))

	params := map[string]any{
		"id":      "{{ $json.id }}",
		"subject": "Ticket #{{ $json.id }}",
		"upper":   `=toUpperCase($json.email)`,
		"nested":  map[string]any{"to": []any{"{{ $json.email }}", "static"}},
		"count":   5,
	}

	resolved, err := expression.ResolveParameters(params, engine)
	require.NoError(t, err)

	assert.Equal(t, 42, resolved["id"])
	assert.Equal(t, "Ticket #42", resolved["subject"])
	assert.Equal(t, "ADA@EXAMPLE.COM", resolved["upper"])
	assert.Equal(t, map[string]any{"to": []any{"ada@example.com", "static"}}, resolved["nested"])
	assert.Equal(t, 5, resolved["count"])
	assert.Equal(t, "{{ $json.id }}", params["id"], "input must not be modified")

	_, err = expression.ResolveParameters(map[string]any{"bad": "x {{ $node.B.json }}"}, engine)
	require.Error(t, err)
	assert.True(t, errors.Is(err, expression.ErrNodeNotVisible))
}

func TestStringify(t *testing.T) {
	tests := []struct {
		value    any
		expected string
	}{
		{value: nil, expected: ""},
		{value: "text", expected: "text"},
		{value: true, expected: "true"},
		{value: 42, expected: "42"},
		{value: 2.5, expected: "2.5"},
		{value: 1e21, expected: "1000000000000000000000"},
		{value: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), expected: "2025-01-02T03:04:05Z"},
		{value: map[string]any{"a": 1}, expected: `{"a":1}`},
		{value: []any{1, "b"}, expected: `[1,"b"]`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, expression.Stringify(tt.value))
	}
}

func TestMockOutput(t *testing.T) {
	schedule := testutil.CreateTestNode(
		testutil.WithType("cron"),
		testutil.WithParameters(map[string]any{"cron": "0 9 * * *"}),
	)

	out := expression.MockOutput(schedule, fixedNow)
	assert.Equal(t, "2025-06-16T09:00:00Z", out["nextRun"])

	jira := testutil.CreateTestNode(
		testutil.WithType("jira"),
		testutil.WithParameters(map[string]any{"project": "OPS"}),
	)
	assert.Equal(t, "OPS-1", expression.MockOutput(jira, fixedNow)["key"])

	unknown := testutil.CreateTestNode(testutil.WithType("custom"))
	assert.Equal(t, true, expression.MockOutput(unknown, fixedNow)["success"])
}
