package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowsmith/pkg/cmd"
	"github.com/dukex/flowsmith/pkg/eventbus"
	"github.com/dukex/flowsmith/pkg/log"
	"github.com/dukex/flowsmith/pkg/otelhelper"
	"github.com/dukex/flowsmith/pkg/persistence"
	"github.com/dukex/flowsmith/pkg/services"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

// app holds the process-wide dependencies shared by every subcommand.
type app struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	bus         eventbus.EventBus
	tracer      trace.Tracer
	manager     *services.Manager
	shutdown    []func(context.Context) error
}

func newApp(ctx context.Context, command *cli.Command) (*app, error) {
	log.Setup(command.String("log-level"), command.String("log-format"))

	a := &app{
		logger: log.WithModule("flowsmith"),
		tracer: otelhelper.Tracer(),
	}

	if command.Bool("tracing") {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, "flowsmith")
		if err != nil {
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}

		a.tracer = tracer
		a.shutdown = append(a.shutdown, shutdown)
	}

	p, err := cmd.NewPersistence(ctx, a.logger, command.String("database-url"))
	if err != nil {
		a.close(ctx)

		return nil, err
	}

	a.persistence = p
	a.shutdown = append(a.shutdown, p.Close)

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), a.logger)
	if err != nil {
		a.close(ctx)

		return nil, err
	}

	opts := []services.ManagerOption{
		services.WithLogger(log.WithModule("manager")),
		services.WithTracer(a.tracer),
	}

	if bus != nil {
		a.bus = bus
		a.shutdown = append(a.shutdown, func(context.Context) error { return bus.Close() })
		opts = append(opts, services.WithPublisher(bus))
	}

	a.manager = services.NewManager(p, opts...)

	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) {
	var errs []error

	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.ErrorContext(ctx, "failed to shut down cleanly", "error", err)
	}
}

// withApp builds the app for the duration of one subcommand.
func withApp(fn func(ctx context.Context, command *cli.Command, a *app) error) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		a, err := newApp(ctx, command)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		return fn(ctx, command, a)
	}
}
