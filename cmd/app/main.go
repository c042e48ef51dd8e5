package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/regnet/internal"
	pkgconfig "github.com/starford/regnet/pkg/config"
)

// loadConfig reads the config file named by the --config flag.
func loadConfig(cmd *cli.Command) (*internal.Config, string, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, configPath, nil
}

func runPipeline(ctx context.Context, cmd *cli.Command) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunPipeline(ctx, internal.WithConfig(cfg), internal.WithConfigPath(path)); err != nil {
		return fmt.Errorf("run error: %w", err)
	}
	return nil
}

func rebuildModules(ctx context.Context, cmd *cli.Command) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithConfigPath(path),
		internal.WithRunID(cmd.Int("run")),
	}
	if err := internal.RebuildModules(ctx, opts...); err != nil {
		return fmt.Errorf("modules error: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithConfigPath(path)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithConfigPath(path)); err != nil {
		return fmt.Errorf("mcp error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "regnet",
		Usage: "Infer gene regulatory networks from paired single-cell expression and accessibility",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the full pipeline on the configured inputs and store the result",
				Action: runPipeline,
			},
			{
				Name:  "modules",
				Usage: "Rebuild modules of a stored run with the configured thresholds",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "run",
						Usage: "Run ID (default: latest run)",
					},
				},
				Action: rebuildModules,
			},
			{
				Name:   "serve",
				Usage:  "Serve the REST API, live events and config hot reload",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve stored runs to MCP clients over stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
