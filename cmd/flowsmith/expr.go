package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/flowsmith/pkg/expression"
	cli "github.com/urfave/cli/v3"
)

var errInvalidExpression = errors.New("expression is invalid")

var previewFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "outputs",
		Usage: "JSON file mapping node names to sample outputs (mock outputs are used otherwise)",
	},
}

func newExprCommand() *cli.Command {
	return &cli.Command{
		Name:  "expr",
		Usage: "Preview expressions against a stored workflow node",
		Commands: []*cli.Command{
			{
				Name:      "eval",
				Usage:     "Evaluate an expression as the given node would see it",
				ArgsUsage: "<workflow-id> <node> <expression>",
				Flags:     previewFlags,
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 3); err != nil {
						return err
					}

					engine, err := previewEngine(ctx, command, a)
					if err != nil {
						return err
					}

					value, err := engine.EvaluateExpression(command.Args().Get(2))
					if err != nil {
						return err
					}

					return printJSON(stdout(command), value)
				}),
			},
			{
				Name:      "validate",
				Usage:     "Check that every expression in a text resolves",
				ArgsUsage: "<workflow-id> <node> <text>",
				Flags:     previewFlags,
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 3); err != nil {
						return err
					}

					engine, err := previewEngine(ctx, command, a)
					if err != nil {
						return err
					}

					result := engine.ValidateExpression(command.Args().Get(2))
					if err := printJSON(stdout(command), result); err != nil {
						return err
					}

					if !result.Valid {
						return errInvalidExpression
					}

					return nil
				}),
			},
			{
				Name:      "vars",
				Usage:     "List the variables and functions visible from a node",
				ArgsUsage: "<workflow-id> <node>",
				Flags:     previewFlags,
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 2); err != nil {
						return err
					}

					engine, err := previewEngine(ctx, command, a)
					if err != nil {
						return err
					}

					return printJSON(stdout(command), map[string]any{
						"variables": engine.AvailableVariables(),
						"functions": engine.AvailableFunctions(),
					})
				}),
			},
		},
	}
}

func previewEngine(ctx context.Context, command *cli.Command, a *app) (*expression.Engine, error) {
	w, err := a.manager.Load(ctx, command.Args().Get(0))
	if err != nil {
		return nil, err
	}

	opts := []expression.Option{expression.WithExecution("preview", "manual")}

	if path := command.String("outputs"); path != "" {
		data, err := readInput(command, path)
		if err != nil {
			return nil, err
		}

		var outputs map[string]any
		if err := json.Unmarshal(data, &outputs); err != nil {
			return nil, fmt.Errorf("failed to decode sample outputs: %w", err)
		}

		opts = append(opts, expression.WithOutputs(outputs))
	}

	return expression.NewEngine(w, command.Args().Get(1), opts...)
}
