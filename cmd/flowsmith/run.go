package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"time"

	"github.com/dukex/flowsmith/pkg/cmd"
	"github.com/dukex/flowsmith/pkg/errorhandler"
	"github.com/dukex/flowsmith/pkg/log"
	"github.com/dukex/flowsmith/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v3"
)

func newRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a workflow with the built-in connectors",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Usage: "JSON object handed to the trigger node"},
			&cli.StringFlag{Name: "execution-id", Usage: "Execution id (generated when omitted)"},
			&cli.StringFlag{Name: "mode", Usage: "Execution mode exposed as $execution.mode", Value: "manual"},
			&cli.StringFlag{
				Name:  "on-error",
				Usage: "Override the workflow error handling for this run (stop, continue, retry, skip)",
			},
			&cli.BoolFlag{
				Name:  "mock-unknown",
				Usage: "Run node types without a connector as their preview mock",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address while running",
				Sources: cli.EnvVars("METRICS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "slack-webhook-url",
				Usage:   "Slack incoming webhook for failure notifications",
				Sources: cli.EnvVars("SLACK_WEBHOOK_URL"),
			},
			&cli.StringFlag{
				Name:    "error-webhook-url",
				Usage:   "URL receiving failure notifications as JSON",
				Sources: cli.EnvVars("ERROR_WEBHOOK_URL"),
			},
			&cli.StringFlag{Name: "smtp-addr", Usage: "SMTP server host:port", Sources: cli.EnvVars("SMTP_ADDR")},
			&cli.StringFlag{Name: "smtp-from", Usage: "Sender of failure emails", Sources: cli.EnvVars("SMTP_FROM")},
			&cli.StringSliceFlag{Name: "smtp-to", Usage: "Recipients of failure emails", Sources: cli.EnvVars("SMTP_TO")},
			&cli.StringFlag{Name: "smtp-username", Sources: cli.EnvVars("SMTP_USERNAME")},
			&cli.StringFlag{Name: "smtp-password", Sources: cli.EnvVars("SMTP_PASSWORD")},
		},
		Action: withApp(runWorkflow),
	}
}

func runWorkflow(ctx context.Context, command *cli.Command, a *app) error {
	if err := requireArgs(command, 1); err != nil {
		return err
	}

	var input map[string]any
	if raw := command.String("input"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			return fmt.Errorf("failed to decode --input: %w", err)
		}
	}

	reg, err := cmd.NewRegistry(log.WithModule("registry"), command.Bool("mock-unknown"))
	if err != nil {
		return err
	}

	metrics := errorhandler.Metrics(errorhandler.Noop{})

	if addr := command.String("metrics-addr"); addr != "" {
		promRegistry := prometheus.NewRegistry()
		metrics = errorhandler.NewProm("flowsmith", promRegistry)

		stop := serveMetrics(ctx, a, addr, promRegistry)
		defer stop()
	}

	handler, err := newErrorHandler(command, a, metrics)
	if err != nil {
		return err
	}
	defer handler.Close()

	opts := []workflow.Option{
		workflow.WithLogger(log.WithModule("executor")),
		workflow.WithTracer(a.tracer),
	}

	if a.bus != nil {
		opts = append(opts, workflow.WithPublisher(a.bus))
	}

	executor := workflow.NewExecutor(a.manager, reg, handler, opts...)

	result, runErr := executor.Execute(ctx, command.Args().First(), workflow.RunOptions{
		ExecutionID: command.String("execution-id"),
		Mode:        command.String("mode"),
		Input:       input,
		Strategy:    errorhandler.Strategy(command.String("on-error")),
	})
	if result == nil {
		return runErr
	}

	if err := printJSON(stdout(command), result); err != nil {
		return err
	}

	return runErr
}

// newErrorHandler registers a notifier per configured channel. Notifications
// are off when no channel is configured.
func newErrorHandler(command *cli.Command, a *app, metrics errorhandler.Metrics) (*errorhandler.Handler, error) {
	cfg := errorhandler.DefaultConfig()
	cfg.ErrorNotificationChannels = nil

	opts := []errorhandler.Option{
		errorhandler.WithLogger(log.WithModule("errorhandler")),
		errorhandler.WithMetrics(metrics),
	}

	addChannel := func(channel string, n errorhandler.Notifier) {
		cfg.ErrorNotificationChannels = append(cfg.ErrorNotificationChannels, channel)
		opts = append(opts, errorhandler.WithNotifier(channel, n))
	}

	client := &http.Client{Timeout: errorhandler.DefaultNotificationTimeout}

	if url := command.String("slack-webhook-url"); url != "" {
		addChannel(errorhandler.ChannelSlack, errorhandler.NewSlackNotifier(url, client))
	}

	if url := command.String("error-webhook-url"); url != "" {
		addChannel(errorhandler.ChannelWebhook, errorhandler.NewWebhookNotifier(url, client, nil))
	}

	if addr := command.String("smtp-addr"); addr != "" {
		to := command.StringSlice("smtp-to")
		if len(to) == 0 || command.String("smtp-from") == "" {
			return nil, errors.New("--smtp-addr requires --smtp-from and --smtp-to")
		}

		var auth smtp.Auth
		if user := command.String("smtp-username"); user != "" {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}

			auth = smtp.PlainAuth("", user, command.String("smtp-password"), host)
		}

		addChannel(errorhandler.ChannelEmail, errorhandler.NewEmailNotifier(addr, command.String("smtp-from"), to, auth))
	}

	if a.bus != nil {
		addChannel(errorhandler.ChannelEventBus, errorhandler.NewEventBusNotifier(a.bus))
	}

	cfg.NotifyOnError = len(cfg.ErrorNotificationChannels) > 0

	return errorhandler.New(cfg, opts...)
}

func serveMetrics(ctx context.Context, a *app, addr string, gatherer prometheus.Gatherer) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.ErrorContext(ctx, "metrics server failed", "error", err)
		}
	}()

	a.logger.InfoContext(ctx, "serving metrics", "addr", addr)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}
}
