// Package expression resolves {{ }} references and = formulas in node parameters
// against the outputs of upstream nodes and ambient values.
package expression

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
	"github.com/itchyny/gojq"
)

// Evaluator evaluates a single raw parameter value.
type Evaluator interface {
	EvaluateExpression(raw string) (any, error)
}

// Engine evaluates expressions for one node of one workflow. The evaluation
// context is built once at construction and never mutated, so an Engine is safe
// for concurrent use.
type Engine struct {
	workflow *models.Workflow
	current  *models.Node

	env      map[string]any
	visible  map[string]struct{}
	known    map[string]struct{}
	now      time.Time
	today    time.Time
	location *time.Location

	options []expr.Option

	mu      sync.RWMutex
	cache   map[string]*vm.Program
	jqCache map[string]*gojq.Code
}

type config struct {
	env         map[string]string
	now         func() time.Time
	executionID string
	mode        string
	outputs     map[string]any
}

// Option configures an Engine.
type Option func(*config)

// WithEnv sets the values exposed as $env. Defaults to the process environment.
func WithEnv(env map[string]string) Option {
	return func(c *config) {
		c.env = env
	}
}

// WithNow sets the clock used for $now, $today and the date functions.
func WithNow(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithExecution sets the values exposed as $execution.
func WithExecution(id, mode string) Option {
	return func(c *config) {
		c.executionID = id
		c.mode = mode
	}
}

// WithOutputs supplies real node outputs keyed by node name.
// Nodes without an entry are given a mock output derived from their type.
func WithOutputs(outputs map[string]any) Option {
	return func(c *config) {
		c.outputs = outputs
	}
}

// NewEngine builds the evaluation context seen by the node identified by current
// (node id or name). Only the transitive upstream nodes of current are visible.
func NewEngine(workflow *models.Workflow, current string, opts ...Option) (*Engine, error) {
	cfg := config{
		now:  time.Now,
		mode: "manual",
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	node := workflow.NodeByID(current)
	if node == nil {
		node = workflow.NodeByName(current)
	}

	if node == nil {
		return nil, fmt.Errorf("%w: %q", ErrCurrentNodeMissing, current)
	}

	if cfg.env == nil {
		cfg.env = environ()
	}

	if cfg.executionID == "" {
		cfg.executionID = uuid.NewString()
	}

	settings := workflow.EffectiveSettings()

	location, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		location = time.UTC
	}

	now := cfg.now().In(location)

	e := &Engine{
		workflow: workflow,
		current:  node,
		visible:  make(map[string]struct{}),
		known:    make(map[string]struct{}, len(workflow.Nodes)),
		now:      now,
		today:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, location),
		location: location,
		cache:    make(map[string]*vm.Program),
		jqCache:  make(map[string]*gojq.Code),
	}

	for _, n := range workflow.Nodes {
		if n != nil {
			e.known[n.Name] = struct{}{}
		}
	}

	e.env = e.buildContext(cfg)
	e.options = append([]expr.Option{expr.Env(e.env)}, e.functionOptions()...)

	return e, nil
}

func (e *Engine) output(cfg config, node *models.Node) any {
	if out, ok := cfg.outputs[node.Name]; ok {
		return out
	}

	return MockOutput(node, e.now)
}

func (e *Engine) buildContext(cfg config) map[string]any {
	nodes := make(map[string]any)

	for id := range e.workflow.Ancestors(e.current.ID) {
		node := e.workflow.NodeByID(id)
		if node == nil {
			continue
		}

		params := node.Parameters
		if params == nil {
			params = map[string]any{}
		}

		e.visible[node.Name] = struct{}{}
		nodes[node.Name] = map[string]any{
			"json":      e.output(cfg, node),
			"parameter": params,
		}
	}

	var current any = map[string]any{}
	if prev := e.previousNode(); prev != nil {
		current = e.output(cfg, prev)
	}

	vars := e.workflow.Variables
	if vars == nil {
		vars = map[string]any{}
	}

	env := make(map[string]any, len(cfg.env))
	for k, v := range cfg.env {
		env[k] = v
	}

	return map[string]any{
		internalPrefix + "node":  nodes,
		internalPrefix + "json":  current,
		internalPrefix + "now":   e.now,
		internalPrefix + "today": e.today,
		internalPrefix + "env":   env,
		internalPrefix + "workflow": map[string]any{
			"id":     e.workflow.ID,
			"name":   e.workflow.Name,
			"active": e.workflow.Active,
		},
		internalPrefix + "execution": map[string]any{
			"id":   cfg.executionID,
			"mode": cfg.mode,
		},
		internalPrefix + "vars": vars,
	}
}

// previousNode returns the direct predecessor that comes last in topological order.
func (e *Engine) previousNode() *models.Node {
	predecessors := e.workflow.DirectPredecessors(e.current.ID)
	if len(predecessors) == 0 {
		return nil
	}

	order, err := e.workflow.TopologicalOrder()
	if err != nil {
		order = e.workflow.Nodes
	}

	position := make(map[string]int, len(order))
	for i, node := range order {
		position[node.ID] = i
	}

	var (
		best    *models.Node
		bestPos = -1
	)

	for _, id := range predecessors {
		if pos, ok := position[id]; ok && pos > bestPos {
			best = e.workflow.NodeByID(id)
			bestPos = pos
		}
	}

	return best
}

// EvaluateExpression evaluates a raw parameter value:
// a value wholly wrapped in {{ }} is a reference expression, a value starting
// with = is a formula, anything else is returned unchanged.
func (e *Engine) EvaluateExpression(raw string) (any, error) {
	if inner, ok := wholeSpan(raw); ok {
		out, err := e.run(inner)
		if err != nil {
			return nil, &ExpressionError{Expression: inner, Err: err}
		}

		return out, nil
	}

	if formula, ok := strings.CutPrefix(raw, "="); ok {
		out, err := e.run(formula)
		if err != nil {
			return nil, &FormulaError{Formula: formula, Err: err}
		}

		return out, nil
	}

	return raw, nil
}

func (e *Engine) run(code string) (any, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyExpression
	}

	program, err := e.compile(code)
	if err != nil {
		return nil, err
	}

	out, err := expr.Run(program, e.env)
	if err != nil {
		return nil, publicError(err)
	}

	return out, nil
}

func (e *Engine) compile(code string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[code]
	e.mu.RUnlock()

	if ok {
		return program, nil
	}

	rewritten, err := rewrite(code)
	if err != nil {
		return nil, err
	}

	guard := &visibilityGuard{visible: e.visible, known: e.known, current: e.current.Name}

	program, err = expr.Compile(rewritten, append(slices.Clone(e.options), expr.Patch(guard))...)
	if guard.err != nil {
		return nil, guard.err
	}

	if err != nil {
		return nil, publicError(err)
	}

	e.mu.Lock()
	e.cache[code] = program
	e.mu.Unlock()

	return program, nil
}

// visibilityGuard rejects $node["name"] lookups of nodes that are not upstream of the current node.
type visibilityGuard struct {
	visible map[string]struct{}
	known   map[string]struct{}
	current string
	err     error
}

func (g *visibilityGuard) Visit(node *ast.Node) {
	if g.err != nil {
		return
	}

	member, ok := (*node).(*ast.MemberNode)
	if !ok {
		return
	}

	ident, ok := member.Node.(*ast.IdentifierNode)
	if !ok || ident.Value != internalPrefix+"node" {
		return
	}

	name, ok := member.Property.(*ast.StringNode)
	if !ok {
		return
	}

	if _, ok := g.visible[name.Value]; ok {
		return
	}

	if _, ok := g.known[name.Value]; !ok {
		g.err = fmt.Errorf("%w: %q", ErrUnknownNode, name.Value)

		return
	}

	g.err = fmt.Errorf("%w: %q is not upstream of %q", ErrNodeNotVisible, name.Value, g.current)
}

// ValidationResult reports whether an expression evaluates cleanly.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateExpression dry-runs raw and reports the first failure, if any.
func (e *Engine) ValidateExpression(raw string) ValidationResult {
	_, isSpan := wholeSpan(raw)
	if isSpan || strings.HasPrefix(raw, "=") {
		if _, err := e.EvaluateExpression(raw); err != nil {
			return ValidationResult{Error: err.Error()}
		}

		return ValidationResult{Valid: true}
	}

	for span := range ExtractExpressions(raw) {
		if _, err := e.EvaluateExpression(span); err != nil {
			return ValidationResult{Error: err.Error()}
		}
	}

	return ValidationResult{Valid: true}
}

// AvailableVariables lists every reference resolvable from the current node.
func (e *Engine) AvailableVariables() []string {
	vars := []string{"$json", "$now", "$today"}

	if current, ok := e.env[internalPrefix+"json"].(map[string]any); ok {
		for _, k := range sortedKeys(current) {
			vars = append(vars, "$json."+k)
		}
	}

	nodes, _ := e.env[internalPrefix+"node"].(map[string]any)
	for _, name := range sortedKeys(nodes) {
		vars = append(vars,
			fmt.Sprintf("$node[%q].json", name),
			fmt.Sprintf("$node[%q].parameter", name),
		)
	}

	vars = append(vars,
		"$workflow.id", "$workflow.name", "$workflow.active",
		"$execution.id", "$execution.mode",
	)

	if env, ok := e.env[internalPrefix+"env"].(map[string]any); ok {
		for _, k := range sortedKeys(env) {
			vars = append(vars, "$env."+k)
		}
	}

	if v, ok := e.env[internalPrefix+"vars"].(map[string]any); ok {
		for _, k := range sortedKeys(v) {
			vars = append(vars, "$vars."+k)
		}
	}

	return vars
}

// AvailableFunctions lists the formula function library sorted by name.
func (e *Engine) AvailableFunctions() []FunctionInfo {
	lib := e.library()
	out := make([]FunctionInfo, 0, len(lib))

	for _, fn := range lib {
		out = append(out, fn.FunctionInfo)
	}

	slices.SortFunc(out, func(a, b FunctionInfo) int {
		return strings.Compare(a.Name, b.Name)
	})

	return out
}

func environ() map[string]string {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	return env
}

var _ Evaluator = (*Engine)(nil)
