package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/xray/pkg/auth"
	"github.com/mchmarny/xray/pkg/config"
	"github.com/mchmarny/xray/pkg/judge"
	"github.com/mchmarny/xray/pkg/logging"
	"github.com/mchmarny/xray/pkg/profile"
	"github.com/mchmarny/xray/pkg/render"
	"github.com/mchmarny/xray/pkg/rule"
	"github.com/mchmarny/xray/pkg/score"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "xray"
	appConfigKey = "app-config"

	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

const (
	debugFlag   = "debug"
	formatFlag  = "format"
	configFlag  = "config"
	profileFlag = "profile"
	rulesFlag   = "rules"
	densityFlag = "density"
	strictFlag  = "strict"
	apiKeyFlag  = "api-key"
	baseURLFlag = "base-url"
	modelFlag   = "model"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// rootFlags are created per app so that repeated runs start from defaults.
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  debugFlag,
			Usage: "Prints verbose logs (optional, default: false)",
		},
		&cli.StringFlag{
			Name:  formatFlag,
			Usage: "Output format [text, json, yaml]",
			Value: formatText,
		},
		&cli.StringFlag{
			Name:  configFlag,
			Usage: "Path to the config file (default: ~/.xray/config.yaml)",
		},
		&cli.StringFlag{
			Name:  profileFlag,
			Usage: "Weight profile used for the composite score (default: balanced)",
		},
		&cli.StringFlag{
			Name:  rulesFlag,
			Usage: "Path to an alternate rule table",
		},
		&cli.BoolFlag{
			Name:  densityFlag,
			Usage: "Discount matches in very short sentences",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  strictFlag,
			Usage: "Refine scores with an external judge",
		},
		&cli.StringFlag{
			Name:    apiKeyFlag,
			Usage:   "Judge API key (default: stored key, see auth)",
			Sources: cli.EnvVars("OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    baseURLFlag,
			Usage:   "Judge chat-completions base URL",
			Sources: cli.EnvVars("OPENAI_BASE_URL"),
		},
		&cli.StringFlag{
			Name:    modelFlag,
			Usage:   "Judge model",
			Sources: cli.EnvVars("OPENAI_MODEL"),
		},
	}
}

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Debug      bool
	Format     string
	Color      bool
	HomeDir    string
	ConfigPath string
	Config     *config.Config
	Rules      *rule.Set
	Profiles   *profile.Set
	Profile    string
	Density    bool
	Strict     bool
	Workers    int
	Judge      judge.Config
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Score AI agent instruction documents for quality",
		Metadata:              map[string]any{},
		Flags:                 rootFlags(),
		Commands: []*cli.Command{
			newScoreCmd(),
			newFleetCmd(),
			newSelfTestCmd(),
			newProfilesCmd(),
			newAuthCmd(),
			newConfigCmd(),
			newServerCmd(),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return ctx, err
			}
			cmd.Root().Metadata[appConfigKey] = cfg
			return ctx, nil
		},
	}
}

// resolveConfig merges the config file, env vars and flags. It runs once
// before any command and the result is read-only afterwards.
func resolveConfig(cmd *cli.Command) (*appConfig, error) {
	cfg := &appConfig{
		Debug:   cmd.Bool(debugFlag),
		Density: cmd.Bool(densityFlag),
		Strict:  cmd.Bool(strictFlag),
		Color:   os.Getenv("NO_COLOR") == "",
	}

	if cfg.Debug {
		logging.SetDefaultCLILogger("debug")
	}

	switch f := strings.ToLower(cmd.String(formatFlag)); f {
	case formatText, "":
		cfg.Format = formatText
	case formatJSON:
		cfg.Format = formatJSON
	case formatYAML, "yml":
		cfg.Format = formatYAML
	default:
		return nil, fmt.Errorf("unsupported format %q, use one of: %s, %s, %s", f, formatText, formatJSON, formatYAML)
	}

	home, err := config.HomeDir()
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		home = "."
	}
	cfg.HomeDir = home

	cfg.ConfigPath = cmd.String(configFlag)
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = filepath.Join(home, config.FileName)
	}

	fc, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Config = fc
	cfg.Workers = fc.Workers

	rulesPath := cmd.String(rulesFlag)
	if rulesPath == "" {
		rulesPath = fc.Rules
	}
	if rulesPath != "" {
		cfg.Rules, err = rule.Load(rulesPath)
	} else {
		cfg.Rules, err = rule.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	presets, err := profile.Default()
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	if cfg.Profiles, err = presets.With(fc.Profiles); err != nil {
		return nil, fmt.Errorf("loading custom profiles: %w", err)
	}

	cfg.Profile = cmd.String(profileFlag)
	if cfg.Profile == "" {
		cfg.Profile = fc.Profile
	}

	cfg.Judge = fc.JudgeConfig(cmd.String(apiKeyFlag))
	if v := cmd.String(baseURLFlag); v != "" {
		cfg.Judge.BaseURL = v
	}
	if v := cmd.String(modelFlag); v != "" {
		cfg.Judge.Model = v
	}

	slog.Debug("config resolved",
		"path", cfg.ConfigPath,
		"profile", cfg.Profile,
		"rules", cfg.Rules.Version(),
		"density", cfg.Density,
		"strict", cfg.Strict,
		"model", cfg.Judge.Model)

	return cfg, nil
}

// newJudge returns a judge client using the flag or env key, else the
// stored key.
func newJudge(ctx context.Context, cfg *appConfig) (*judge.Client, error) {
	jc := cfg.Judge
	if jc.APIKey == "" {
		key, err := auth.Store{Dir: cfg.HomeDir}.Load()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", judge.ErrNoCredential, err)
		}
		jc.APIKey = key
	}
	return judge.NewClient(ctx, jc)
}

// newEngine validates the profile and builds the engine. Strict mode
// without a usable credential falls back to heuristics with a warning.
func newEngine(ctx context.Context, cfg *appConfig, profileName string, strict bool, workers int) (*score.Engine, error) {
	if _, err := cfg.Profiles.Get(profileName); err != nil {
		return nil, err
	}

	opts := []score.Option{
		score.WithDensityFilter(cfg.Density),
		score.WithWorkers(workers),
	}

	if strict {
		j, err := newJudge(ctx, cfg)
		if err != nil {
			slog.Warn("strict mode disabled, using heuristic scores only", "error", err)
		} else {
			opts = append(opts, score.WithJudge(j))
		}
	}

	return score.NewEngine(cfg.Rules, cfg.Profiles, profileName, opts...)
}

func newPrinter(cmd *cli.Command, cfg *appConfig) *render.Printer {
	return render.NewPrinter(cmd.Root().Writer, cfg.Color)
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
