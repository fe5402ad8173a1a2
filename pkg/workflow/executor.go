// Package workflow runs stored workflow definitions node by node.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/dukex/flowsmith/pkg/errorhandler"
	"github.com/dukex/flowsmith/pkg/eventbus"
	"github.com/dukex/flowsmith/pkg/events"
	"github.com/dukex/flowsmith/pkg/expression"
	"github.com/dukex/flowsmith/pkg/log"
	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/otelhelper"
	"github.com/dukex/flowsmith/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WorkflowStore supplies definitions to the executor and receives run outcomes.
type WorkflowStore interface {
	Load(ctx context.Context, id string) (*models.Workflow, error)
	RecordExecution(ctx context.Context, id string, success bool, at time.Time) (*models.Workflow, error)
}

// RunOptions parameterize one run.
type RunOptions struct {
	// ExecutionID defaults to a fresh uuid.
	ExecutionID string
	// Mode is exposed to expressions as $execution.mode. Defaults to "manual".
	Mode string
	// Input replaces the output of trigger nodes.
	Input map[string]any
	// Strategy overrides the workflow's errorHandling for this run only.
	// It is the one way to run with errorhandler.StrategySkip.
	Strategy errorhandler.Strategy
}

// ErrInvalidStrategy is returned when RunOptions.Strategy is not a known strategy.
var ErrInvalidStrategy = errors.New("invalid error handling strategy")

// Executor walks a workflow in topological order, resolves each node's
// parameters, runs its connector and routes failures through the error handler.
type Executor struct {
	store     WorkflowStore
	registry  *registry.Registry
	handler   *errorhandler.Handler
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	env       map[string]string
}

type Option func(*Executor)

func WithPublisher(p eventbus.EventPublisher) Option {
	return func(e *Executor) { e.publisher = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) { e.tracer = tracer }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithEnv sets the values exposed as $env. Defaults to the process environment.
func WithEnv(env map[string]string) Option {
	return func(e *Executor) { e.env = env }
}

func NewExecutor(store WorkflowStore, reg *registry.Registry, handler *errorhandler.Handler, opts ...Option) *Executor {
	e := &Executor{
		store:    store,
		registry: reg,
		handler:  handler,
		logger:   log.WithModule("executor"),
		tracer:   otelhelper.Tracer(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs the workflow. The returned error is the terminal failure of the
// run, if any; the result is returned whenever the workflow could be loaded.
func (e *Executor) Execute(ctx context.Context, workflowID string, opts RunOptions) (*ExecutionResult, error) {
	if opts.ExecutionID == "" {
		opts.ExecutionID = uuid.NewString()
	}

	if opts.Mode == "" {
		opts.Mode = "manual"
	}

	switch opts.Strategy {
	case "", errorhandler.StrategyStop, errorhandler.StrategyContinue,
		errorhandler.StrategyRetry, errorhandler.StrategySkip:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, opts.Strategy)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.ExecutionIDKey, opts.ExecutionID))
	defer span.End()

	logger := e.logger.With("workflow_id", workflowID, "execution_id", opts.ExecutionID)
	ctx = errorhandler.WithWorkflowID(ctx, workflowID)

	w, err := e.store.Load(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	order, err := w.TopologicalOrder()
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("workflow %s cannot be ordered: %w", workflowID, err)
	}

	settings := w.EffectiveSettings()
	cfg := handlerConfig(e.handler.Config(), settings)
	if opts.Strategy != "" {
		cfg.Strategy = opts.Strategy
	}

	result := &ExecutionResult{
		ExecutionID: opts.ExecutionID,
		WorkflowID:  w.ID,
		Status:      ExecutionSuccess,
		Nodes:       make([]NodeResult, 0, len(order)),
		Outputs:     make(map[string]any, len(order)),
		StartedAt:   e.now().UTC(),
	}

	logger.InfoContext(ctx, "starting execution", "nodes", len(order), "strategy", cfg.Strategy)

	for _, node := range order {
		if err := ctx.Err(); err != nil {
			result.Status = ExecutionCancelled
			result.Err = err

			break
		}

		if node.Disabled {
			logger.DebugContext(ctx, "node is disabled, skipping", "node_id", node.ID, "node_name", node.Name)
			result.Nodes = append(result.Nodes, NodeResult{
				NodeID:   node.ID,
				NodeName: node.Name,
				NodeType: node.Type,
				Status:   NodeStatusDisabled,
			})
			result.Outputs[node.Name] = map[string]any{}

			continue
		}

		nodeResult := e.runNode(ctx, w, node, result.Outputs, opts, settings, cfg)
		result.Nodes = append(result.Nodes, nodeResult)

		switch {
		case nodeResult.Status == NodeStatusSuccess:
			result.Outputs[node.Name] = nodeResult.Output
		case nodeResult.Status == NodeStatusCancelled:
			result.Status = ExecutionCancelled
			result.Err = context.Cause(ctx)
		case nodeResult.Continued:
			result.Outputs[node.Name] = map[string]any{"error": nodeResult.Error.Message}
		default:
			result.Status = ExecutionFailed
			result.Err = nodeResult.Error
		}

		if result.Status != ExecutionSuccess {
			break
		}
	}

	result.FinishedAt = e.now().UTC()

	e.finish(ctx, w, result, logger)

	if result.Err != nil {
		otelhelper.SetError(span, result.Err)
	}

	return result, result.Err
}

// runNode runs node until it succeeds, the policy gives up or ctx is cancelled.
func (e *Executor) runNode(ctx context.Context, w *models.Workflow, node *models.Node, outputs map[string]any,
	opts RunOptions, settings models.WorkflowSettings, cfg errorhandler.Config,
) NodeResult {
	started := e.now()
	res := NodeResult{NodeID: node.ID, NodeName: node.Name, NodeType: node.Type}

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt

		out, err := e.attempt(ctx, w, node, outputs, opts, settings, attempt)
		if err == nil {
			res.Status = NodeStatusSuccess
			res.Output = out
			res.Error = nil

			break
		}

		if ctx.Err() != nil {
			res.Status = NodeStatusCancelled

			break
		}

		decision := e.handler.HandleWithConfig(ctx, cfg, err, errorhandler.ErrorContext{
			NodeID:        node.ID,
			NodeName:      node.Name,
			ExecutionID:   opts.ExecutionID,
			AttemptNumber: attempt,
		})
		res.Error = decision.Error

		if decision.ShouldRetry {
			if errorhandler.WaitForRetry(ctx, decision.Delay) != nil {
				e.logger.InfoContext(ctx, "run cancelled, dropping pending retry",
					"node_name", node.Name,
					"execution_id", opts.ExecutionID,
					"attempt", attempt+1)

				res.Status = NodeStatusCancelled

				break
			}

			continue
		}

		res.Status = NodeStatusFailed
		res.Continued = decision.ShouldContinue

		break
	}

	res.Duration = e.now().Sub(started)

	return res
}

// attempt resolves the node's parameters and runs its connector once, bounded
// by the workflow timeout when it is positive.
func (e *Executor) attempt(ctx context.Context, w *models.Workflow, node *models.Node, outputs map[string]any,
	opts RunOptions, settings models.WorkflowSettings, attempt int,
) (any, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeNameKey, node.Name),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
		attribute.Int(otelhelper.AttemptKey, attempt))
	defer span.End()

	out, err := e.run(ctx, w, node, outputs, opts, settings)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return out, err
}

func (e *Executor) run(ctx context.Context, w *models.Workflow, node *models.Node, outputs map[string]any,
	opts RunOptions, settings models.WorkflowSettings,
) (any, error) {
	if node.IsTrigger() && opts.Input != nil {
		return maps.Clone(opts.Input), nil
	}

	engineOpts := []expression.Option{
		expression.WithOutputs(outputs),
		expression.WithExecution(opts.ExecutionID, opts.Mode),
		expression.WithNow(e.now),
	}

	if e.env != nil {
		engineOpts = append(engineOpts, expression.WithEnv(e.env))
	}

	engine, err := expression.NewEngine(w, node.ID, engineOpts...)
	if err != nil {
		return nil, validationFailure(err)
	}

	params, err := expression.ResolveParameters(node.Parameters, engine)
	if err != nil {
		return nil, validationFailure(err)
	}

	connector, err := e.registry.CreateConnector(ctx, node.Type, node.ID, params)
	if err != nil {
		return nil, validationFailure(err)
	}

	timeout := time.Duration(settings.Timeout) * time.Millisecond

	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)

	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	attemptCtx = log.NewContext(attemptCtx, e.logger.With(
		"execution_id", opts.ExecutionID,
		"node_id", node.ID,
		"node_name", node.Name))

	type outcome struct {
		out any
		err error
	}

	done := make(chan outcome, 1)

	go func() {
		out, err := connector.Run(attemptCtx)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, timeoutFailure(timeout, o.err)
		}

		return o.out, o.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, timeoutFailure(timeout, attemptCtx.Err())
	}
}

func validationFailure(err error) error {
	return errorhandler.NewWorkflowError(errorhandler.ErrorTypeValidation,
		"parameter validation failed: "+err.Error(), err)
}

func timeoutFailure(timeout time.Duration, cause error) error {
	return errorhandler.NewWorkflowError(errorhandler.ErrorTypeTimeout,
		fmt.Sprintf("node timed out after %s", timeout), cause)
}

// handlerConfig overrides the handler policy with the workflow settings. The
// workflow always carries an errorHandling value once saved, so the strategy
// configured on the handler only shapes the fields the settings lack.
func handlerConfig(base errorhandler.Config, settings models.WorkflowSettings) errorhandler.Config {
	cfg := base

	switch settings.ErrorHandling {
	case models.ErrorHandlingContinue:
		cfg.Strategy = errorhandler.StrategyContinue
	case models.ErrorHandlingRetry:
		cfg.Strategy = errorhandler.StrategyRetry
	case models.ErrorHandlingStop:
		cfg.Strategy = errorhandler.StrategyStop
	}

	cfg.RetryAttempts = settings.RetryAttempts
	cfg.RetryDelay = time.Duration(settings.RetryDelay) * time.Millisecond
	cfg.SaveDataOnError = settings.SaveDataOnError

	return cfg
}

// finish records the run statistics and publishes execution.finished. Both
// happen even when the run was cancelled.
func (e *Executor) finish(ctx context.Context, w *models.Workflow, result *ExecutionResult, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)

	if _, err := e.store.RecordExecution(ctx, w.ID, result.Status == ExecutionSuccess, result.FinishedAt); err != nil {
		logger.ErrorContext(ctx, "failed to record execution", "error", err)
	}

	logger.InfoContext(ctx, "execution finished",
		"status", result.Status,
		"duration", result.Duration(),
		"nodes", len(result.Nodes))

	if e.publisher == nil {
		return
	}

	event := events.ExecutionFinished{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFinishedEvent, w.ID),
		ExecutionID: result.ExecutionID,
		Status:      string(result.Status),
		Duration:    result.Duration(),
		NodeCount:   len(result.Nodes),
	}

	if result.Err != nil {
		event.Error = result.Err.Error()
	}

	if err := e.publisher.Publish(ctx, w.ID, event); err != nil {
		logger.ErrorContext(ctx, "failed to publish execution event", "error", err)
	}
}
