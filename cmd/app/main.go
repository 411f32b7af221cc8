package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/deckhand/internal"
	pkgconfig "github.com/starford/deckhand/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cmd.Bool("no-server") {
		cfg.Server.Enabled = false
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithDecks(cmd.StringSlice("deck")...),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func resolve(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("resolve: at least one definition path is required")
	}
	logger := internal.NewLogger(os.Stderr, slog.LevelWarn)
	out, err := internal.Resolve(ctx, logger, paths...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithDecks(cmd.StringSlice("deck")...),
	)
}

func main() {
	cmd := &cli.Command{
		Name:   "deckhand",
		Usage:  "Resolve card deck definitions with inheritance and keep them in sync with the filesystem",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringSliceFlag{
				Name:    "deck",
				Aliases: []string{"d"},
				Usage:   "Deck definition to track (repeatable, added to config decks)",
			},
			&cli.BoolFlag{
				Name:    "no-server",
				Aliases: []string{"1"},
				Usage:   "Resolve and render every deck once, then exit",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "Print the resolved model of each definition as JSON",
				ArgsUsage: "PATH...",
				Action:    resolve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve deck tools over MCP on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
