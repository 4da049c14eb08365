package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mchmarny/xray/pkg/config"
	"github.com/urfave/cli/v3"
)

const (
	forceFlag = "force"

	redacted = "<redacted>"
)

func newConfigCmd() *cli.Command {
	return &cli.Command{
		Name:            "config",
		HideHelpCommand: true,
		Usage:           "Manage the config file",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the default config file",
				Action: cmdConfigInit,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  forceFlag,
						Usage: "Overwrite an existing config file",
					},
				},
			},
			{
				Name:   "show",
				Usage:  "Print the resolved configuration",
				Action: cmdConfigShow,
			},
		},
	}
}

func cmdConfigInit(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	_, err := os.Stat(cfg.ConfigPath)
	if err == nil && !cmd.Bool(forceFlag) {
		return fmt.Errorf("config file %s already exists, use --%s to overwrite", cfg.ConfigPath, forceFlag)
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}

	if err := config.Save(cfg.ConfigPath, config.Default()); err != nil {
		return err
	}

	slog.Info("config written", "path", cfg.ConfigPath)
	return nil
}

type resolvedJudge struct {
	BaseURL     string  `json:"baseURL" yaml:"baseURL"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Timeout     string  `json:"timeout" yaml:"timeout"`
	APIKey      string  `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
}

type resolvedConfig struct {
	Path     string        `json:"path" yaml:"path"`
	Profile  string        `json:"profile" yaml:"profile"`
	Profiles []string      `json:"profiles" yaml:"profiles"`
	Rules    int           `json:"rulesVersion" yaml:"rulesVersion"`
	Density  bool          `json:"density" yaml:"density"`
	Strict   bool          `json:"strict" yaml:"strict"`
	Workers  int           `json:"workers,omitempty" yaml:"workers,omitempty"`
	Judge    resolvedJudge `json:"judge" yaml:"judge"`
}

func cmdConfigShow(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	rc := resolvedConfig{
		Path:     cfg.ConfigPath,
		Profile:  cfg.Profile,
		Profiles: cfg.Profiles.Names(),
		Rules:    cfg.Rules.Version(),
		Density:  cfg.Density,
		Strict:   cfg.Strict,
		Workers:  cfg.Workers,
		Judge: resolvedJudge{
			BaseURL:     cfg.Judge.BaseURL,
			Model:       cfg.Judge.Model,
			Temperature: cfg.Judge.Temperature,
			Timeout:     cfg.Judge.Timeout.String(),
		},
	}
	if cfg.Judge.APIKey != "" {
		rc.Judge.APIKey = redacted
	}

	format := cfg.Format
	if format == formatText {
		format = formatYAML
	}
	return encode(cmd.Root().Writer, format, rc)
}
