package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dukex/flowsmith/pkg/events"
	cli "github.com/urfave/cli/v3"
)

var errNoEventBus = errors.New("no event bus configured, set --event-bus")

func newEventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Inspect the event stream",
		Commands: []*cli.Command{
			{
				Name:  "watch",
				Usage: "Print every event as a JSON line until interrupted",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "type", Usage: "Only these event types"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if a.bus == nil {
						return errNoEventBus
					}

					types := events.EventTypes
					if selected := command.StringSlice("type"); len(selected) > 0 {
						types = nil
						for _, t := range selected {
							types = append(types, events.EventType(t))
						}
					}

					printer := &linePrinter{w: stdout(command)}

					for _, eventType := range types {
						if err := a.bus.Handle(eventType, printer.handle); err != nil {
							return err
						}
					}

					if err := a.bus.Subscribe(ctx); err != nil {
						return fmt.Errorf("failed to subscribe: %w", err)
					}

					a.logger.InfoContext(ctx, "watching events", "types", types)

					<-ctx.Done()

					return nil
				}),
			},
		},
	}
}

// linePrinter writes events as JSON lines; handlers may run concurrently.
type linePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *linePrinter) handle(_ context.Context, event any) error {
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, err = fmt.Fprintln(p.w, string(line))

	return err
}
