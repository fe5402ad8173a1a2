package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func newWorkflowCommand() *cli.Command {
	return &cli.Command{
		Name:    "workflow",
		Aliases: []string{"wf"},
		Usage:   "Manage stored workflows",
		Commands: []*cli.Command{
			newWorkflowListCommand(),
			{
				Name:      "get",
				Usage:     "Print a workflow as JSON",
				ArgsUsage: "<workflow-id>",
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 1); err != nil {
						return err
					}

					w, err := a.manager.Load(ctx, command.Args().First())
					if err != nil {
						return err
					}

					return printJSON(stdout(command), w)
				}),
			},
			{
				Name:      "save",
				Usage:     "Create or update a workflow from a JSON document",
				ArgsUsage: "<file|->",
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 1); err != nil {
						return err
					}

					data, err := readInput(command, command.Args().First())
					if err != nil {
						return err
					}

					var w models.Workflow
					if err := json.Unmarshal(data, &w); err != nil {
						return fmt.Errorf("failed to decode workflow: %w", err)
					}

					saved, err := a.manager.Save(ctx, &w)
					if err != nil {
						return err
					}

					_, err = fmt.Fprintln(stdout(command), saved.ID)

					return err
				}),
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a workflow",
				ArgsUsage: "<workflow-id>",
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 1); err != nil {
						return err
					}

					id := command.Args().First()

					deleted, err := a.manager.Delete(ctx, id)
					if err != nil {
						return err
					}

					if !deleted {
						return fmt.Errorf("%w: %s", services.ErrWorkflowNotFound, id)
					}

					_, err = fmt.Fprintln(stdout(command), "deleted", id)

					return err
				}),
			},
			{
				Name:      "duplicate",
				Aliases:   []string{"cp"},
				Usage:     "Copy a workflow with fresh identifiers",
				ArgsUsage: "<workflow-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Name of the copy (default \"<name> (Copy)\")"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 1); err != nil {
						return err
					}

					copied, err := a.manager.Duplicate(ctx, command.Args().First(), command.String("name"))
					if err != nil {
						return err
					}

					_, err = fmt.Fprintln(stdout(command), copied.ID)

					return err
				}),
			},
			{
				Name:      "export",
				Usage:     "Export a workflow as JSON or YAML",
				ArgsUsage: "<workflow-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json or yaml", Value: "json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to file instead of stdout"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 1); err != nil {
						return err
					}

					format, err := services.ParseFormat(command.String("format"))
					if err != nil {
						return err
					}

					data, err := a.manager.Export(ctx, command.Args().First(), format)
					if err != nil {
						return err
					}

					if path := command.String("output"); path != "" {
						return os.WriteFile(path, data, 0o600)
					}

					_, err = stdout(command).Write(data)

					return err
				}),
			},
			{
				Name:      "import",
				Usage:     "Import a workflow exported as JSON or YAML",
				ArgsUsage: "<file|->",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json or yaml (guessed from the extension when omitted)"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 1); err != nil {
						return err
					}

					path := command.Args().First()

					format, err := formatFor(command.String("format"), path)
					if err != nil {
						return err
					}

					data, err := readInput(command, path)
					if err != nil {
						return err
					}

					imported, err := a.manager.Import(ctx, data, format)
					if err != nil {
						return err
					}

					_, err = fmt.Fprintln(stdout(command), imported.ID)

					return err
				}),
			},
		},
	}
}

func newWorkflowListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List workflows, most recently updated first",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "tag", Usage: "Only workflows carrying any of these tags"},
			&cli.StringFlag{Name: "category", Usage: "Only workflows in this category"},
			&cli.StringFlag{Name: "created-by", Usage: "Only workflows created by this user"},
			&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Case-insensitive match on name, description or tags"},
			&cli.BoolFlag{Name: "active", Usage: "Only active workflows"},
			&cli.BoolFlag{Name: "inactive", Usage: "Only inactive workflows"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
		},
		Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
			filter := services.ListFilter{
				Tags:      command.StringSlice("tag"),
				Category:  command.String("category"),
				CreatedBy: command.String("created-by"),
				Search:    command.String("search"),
			}

			switch {
			case command.Bool("active") && command.Bool("inactive"):
				return fmt.Errorf("--active and --inactive are mutually exclusive")
			case command.Bool("active"):
				active := true
				filter.Active = &active
			case command.Bool("inactive"):
				active := false
				filter.Active = &active
			}

			workflows, err := a.manager.List(ctx, filter)
			if err != nil {
				return err
			}

			if command.Bool("json") {
				return printJSON(stdout(command), workflows)
			}

			tw := tabwriter.NewWriter(stdout(command), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tNODES\tTAGS\tUPDATED")

			for _, w := range workflows {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\t%s\n",
					w.ID, w.Name, w.Active, w.Metadata.NodeCount,
					strings.Join(w.Tags, ","), w.UpdatedAt.Format(time.RFC3339))
			}

			return tw.Flush()
		}),
	}
}
