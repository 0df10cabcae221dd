package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultsnap/internal"
	pkgconfig "github.com/starford/vaultsnap/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func inspect(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Inspect(ctx, os.Stdout, cmd.String("note"), cmd.String("ext"), internal.WithConfig(cfg))
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func importLegacy(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: %s import-legacy <config.txt>", cmd.Root().Name)
	}
	return internal.ImportLegacy(os.Stdout, cmd.Args().First())
}

func main() {
	cmd := &cli.Command{
		Name:   "vaultsnap",
		Usage:  "Watch a screenshots folder and file new images into the note you are writing",
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
		},
		Commands: []*cli.Command{
			{
				Name:   "inspect",
				Usage:  "Show what the next image would do to a note",
				Action: inspect,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "note", Aliases: []string{"n"}, Usage: "Vault-relative note path (default: latest note)"},
					&cli.StringFlag{Name: "ext", Usage: "Extension of the hypothetical image", Value: ".png"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "import-legacy",
				Usage:     "Convert an old config.txt to YAML on stdout",
				ArgsUsage: "<config.txt>",
				Action:    importLegacy,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
