package expression_test

import (
	"testing"

	"github.com/dukex/flowsmith/pkg/expression"
	"github.com/dukex/flowsmith/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormulaLibrary(t *testing.T) {
	workflow := testutil.CreateChainWorkflow("A", "B")
	engine := newEngine(t, workflow, "B", expression.WithOutputs(map[string]any{
		"A": map[string]any{
			"name":  "  Ada Lovelace ",
			"items": []any{3, 1, 2},
			"user":  map[string]any{"id": 7, "email": "ada@example.com"},
		},
	}))

	tests := []struct {
		formula  string
		expected any
	}{
		{formula: `=toUpperCase("abc")`, expected: "ABC"},
		{formula: `=toLowerCase("ABC")`, expected: "abc"},
		{formula: `=trim($json.name)`, expected: "Ada Lovelace"},
		{formula: `=substring("workflow", 0, 4)`, expected: "work"},
		{formula: `=substring("workflow", 4)`, expected: "flow"},
		{formula: `=substring("abc", -3, 99)`, expected: "abc"},
		{formula: `=replace("a-b-c", "-", "+")`, expected: "a+b+c"},
		{formula: `=formatDate(now(), "YYYY-MM-DD")`, expected: "2025-06-15"},
		{formula: `=formatDate(today())`, expected: "2025-06-15T00:00:00Z"},
		{formula: `=round(3.14159, 2)`, expected: 3.14},
		{formula: `=round(2.5)`, expected: 3.0},
		{formula: `=floor(2.7)`, expected: 2.0},
		{formula: `=ceil(2.1)`, expected: 3.0},
		{formula: `=abs(-4)`, expected: 4.0},
		{formula: `=min(4, 2, 8)`, expected: 2.0},
		{formula: `=max($json.items)`, expected: 3.0},
		{formula: `=first($json.items)`, expected: 3},
		{formula: `=last($json.items)`, expected: 2},
		{formula: `=length($json.items)`, expected: 3},
		{formula: `=length("héllo")`, expected: 5},
		{formula: `=join($json.items, "|")`, expected: "3|1|2"},
		{formula: `=keys($json.user)`, expected: []any{"email", "id"}},
		{formula: `=values($json.user)`, expected: []any{"ada@example.com", 7}},
		{formula: `=toString(42)`, expected: "42"},
		{formula: `=toNumber("3.5")`, expected: 3.5},
		{formula: `=toBoolean("true")`, expected: true},
		{formula: `=toBoolean(0)`, expected: false},
		{formula: `=toJSON($json.user)`, expected: `{"email":"ada@example.com","id":7}`},
		{formula: `=fromJSON("{\"a\":1}").a`, expected: 1.0},
		{formula: `=isEmpty("")`, expected: true},
		{formula: `=isNotEmpty($json.items)`, expected: true},
		{formula: `=jq($json.user, ".email")`, expected: "ada@example.com"},
		{formula: `=jq($json.items, "map(. * 2)")`, expected: []any{6.0, 2.0, 4.0}},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			value, err := engine.EvaluateExpression(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestFormula_UndefinedIdentifier(t *testing.T) {
	engine := newEngine(t, testutil.CreateChainWorkflow("A"), "A")

	_, err := engine.EvaluateExpression("=missing + 1")
	require.Error(t, err)

	var formulaErr *expression.FormulaError
	require.ErrorAs(t, err, &formulaErr)
	assert.Equal(t, "missing + 1", formulaErr.Formula)
}

func TestFormula_ArgumentErrors(t *testing.T) {
	engine := newEngine(t, testutil.CreateChainWorkflow("A"), "A")

	for _, formula := range []string{`=abs("x")`, `=first(1)`, `=fromJSON("{")`, `=jq(1, "")`, `=trim()`} {
		t.Run(formula, func(t *testing.T) {
			_, err := engine.EvaluateExpression(formula)
			assert.Error(t, err)
		})
	}
}
