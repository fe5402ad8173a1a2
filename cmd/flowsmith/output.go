package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/flowsmith/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func stdout(command *cli.Command) io.Writer {
	if w := command.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// readInput reads path, or standard input when path is "-".
func readInput(command *cli.Command, path string) ([]byte, error) {
	if path == "-" {
		r := command.Root().Reader
		if r == nil {
			r = os.Stdin
		}

		return io.ReadAll(r)
	}

	return os.ReadFile(path)
}

// formatFor returns the explicit format, or guesses it from the file extension.
func formatFor(explicit, path string) (services.Format, error) {
	if explicit != "" {
		return services.ParseFormat(explicit)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return services.FormatYAML, nil
	default:
		return services.FormatJSON, nil
	}
}

func requireArgs(command *cli.Command, n int) error {
	if command.Args().Len() < n {
		return fmt.Errorf("%s: expected %d argument(s): %s", command.FullName(), n, command.ArgsUsage)
	}

	return nil
}
