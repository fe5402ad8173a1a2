package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func newTemplateCommand() *cli.Command {
	return &cli.Command{
		Name:    "template",
		Aliases: []string{"tpl"},
		Usage:   "Save workflows as reusable templates and instantiate them",
		Commands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Capture a workflow as a template",
				ArgsUsage: "<workflow-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Template name (default: workflow name)"},
					&cli.StringFlag{Name: "description", Usage: "Template description"},
					&cli.StringFlag{Name: "category", Usage: "Template category"},
					&cli.StringSliceFlag{Name: "tag", Usage: "Template tags (default: workflow tags)"},
					&cli.StringFlag{Name: "difficulty", Usage: "beginner, intermediate or advanced"},
					&cli.StringFlag{Name: "preview", Usage: "Preview image URL"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 1); err != nil {
						return err
					}

					overrides := services.TemplateOverrides{
						Name:        command.String("name"),
						Description: command.String("description"),
						Category:    command.String("category"),
						Difficulty:  models.Difficulty(command.String("difficulty")),
						Preview:     command.String("preview"),
					}

					if tags := command.StringSlice("tag"); len(tags) > 0 {
						overrides.Tags = tags
					}

					tmpl, err := a.manager.SaveAsTemplate(ctx, command.Args().First(), overrides)
					if err != nil {
						return err
					}

					_, err = fmt.Fprintln(stdout(command), tmpl.ID)

					return err
				}),
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List templates, most used first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Usage: "Only templates in this category"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					templates, err := a.manager.ListTemplates(ctx, command.String("category"))
					if err != nil {
						return err
					}

					if command.Bool("json") {
						return printJSON(stdout(command), templates)
					}

					tw := tabwriter.NewWriter(stdout(command), 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tDIFFICULTY\tUSAGE")

					for _, t := range templates {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", t.ID, t.Name, t.Category, t.Difficulty, t.UsageCount)
					}

					return tw.Flush()
				}),
			},
			{
				Name:      "instantiate",
				Aliases:   []string{"use"},
				Usage:     "Create a new workflow from a template",
				ArgsUsage: "<template-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Workflow name (default: template name)"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if err := requireArgs(command, 1); err != nil {
						return err
					}

					w, err := a.manager.InstantiateTemplate(ctx, command.Args().First(), command.String("name"))
					if err != nil {
						return err
					}

					_, err = fmt.Fprintln(stdout(command), w.ID)

					return err
				}),
			},
		},
	}
}
