package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/xray/pkg/document"
	"github.com/mchmarny/xray/pkg/render"
	"github.com/mchmarny/xray/pkg/score"
	"github.com/urfave/cli/v3"
)

const (
	dirMode  = 0700
	fileMode = 0644

	selfTestMinComposite = 50
)

const (
	badgeFlag   = "badge"
	workersFlag = "workers"
)

var errSelfTestFailed = errors.New("self-test failed")

func newWorkersFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  workersFlag,
		Usage: "Documents evaluated in parallel (default: number of CPUs)",
	}
}

func newScoreCmd() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Score a single document",
		ArgsUsage: "FILE",
		Action:    cmdScore,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  badgeFlag,
				Usage: "Write an SVG badge of the composite score to this file",
			},
		},
	}
}

func newFleetCmd() *cli.Command {
	return &cli.Command{
		Name:      "fleet",
		Usage:     "Score every .md document in a directory and rank them",
		ArgsUsage: "DIR",
		Action:    cmdFleet,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  badgeFlag,
				Usage: "Write an SVG badge per document into this directory",
			},
			newWorkersFlag(),
		},
	}
}

func newSelfTestCmd() *cli.Command {
	return &cli.Command{
		Name:   "self-test",
		Usage:  "Score the agents in ~/.copilot/agents, fails when any composite is below 50",
		Action: cmdSelfTest,
		Flags: []cli.Flag{
			newWorkersFlag(),
		},
	}
}

func cmdScore(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	if cmd.NArg() != 1 {
		return errors.New("score requires exactly one FILE argument")
	}

	e, err := newEngine(ctx, cfg, cfg.Profile, cfg.Strict, cfg.Workers)
	if err != nil {
		return err
	}

	doc, err := document.Read(cmd.Args().First())
	if err != nil {
		return err
	}

	r := e.Score(ctx, doc.Path, doc.Text)
	slog.Debug("document scored", "file", r.File, "composite", r.Composite, "profile", r.Profile)

	if path := cmd.String(badgeFlag); path != "" {
		if err := writeBadge(path, r.Composite); err != nil {
			return err
		}
	}

	if cfg.Format != formatText {
		return encode(cmd.Root().Writer, cfg.Format, r)
	}
	return newPrinter(cmd, cfg).Chart(r)
}

func cmdFleet(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	if cmd.NArg() != 1 {
		return errors.New("fleet requires exactly one DIR argument")
	}

	reports, err := scoreFleet(ctx, cmd, cfg, cmd.Args().First())
	if err != nil {
		return err
	}

	if dir := cmd.String(badgeFlag); dir != "" {
		if err := writeBadges(dir, reports); err != nil {
			return err
		}
	}

	return printFleet(cmd, cfg, reports)
}

func cmdSelfTest(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home dir: %w", err)
	}
	dir := filepath.Join(home, ".copilot", "agents")

	reports, err := scoreFleet(ctx, cmd, cfg, dir)
	if err != nil {
		return err
	}
	if err := printFleet(cmd, cfg, reports); err != nil {
		return err
	}

	var failed []string
	for _, r := range reports {
		if r.Composite < selfTestMinComposite {
			failed = append(failed, filepath.Base(r.File))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %d below %d: %s", errSelfTestFailed,
			len(failed), selfTestMinComposite, strings.Join(failed, ", "))
	}

	slog.Info("self-test passed", "documents", len(reports))
	return nil
}

// scoreFleet scores the documents in dir ranked by composite. Unreadable
// documents are skipped with a warning. A directory without readable
// documents is an error.
func scoreFleet(ctx context.Context, cmd *cli.Command, cfg *appConfig, dir string) ([]*score.Report, error) {
	workers := cfg.Workers
	if n := cmd.Int(workersFlag); n > 0 {
		workers = n
	}

	e, err := newEngine(ctx, cfg, cfg.Profile, cfg.Strict, workers)
	if err != nil {
		return nil, err
	}

	paths, err := document.Scan(dir)
	if err != nil {
		return nil, err
	}

	inputs := make([]score.Input, 0, len(paths))
	for _, p := range paths {
		doc, err := document.Read(p)
		if err != nil {
			slog.Warn("skipping document", "path", p, "error", err)
			continue
		}
		inputs = append(inputs, score.Input{File: doc.Path, Text: doc.Text})
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: all documents in %s were unreadable", document.ErrNoDocuments, dir)
	}

	reports, err := e.ScoreBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}
	score.Rank(reports)

	slog.Debug("fleet scored", "dir", dir, "documents", len(reports), "skipped", len(paths)-len(inputs))
	return reports, nil
}

func printFleet(cmd *cli.Command, cfg *appConfig, reports []*score.Report) error {
	if cfg.Format != formatText {
		return encode(cmd.Root().Writer, cfg.Format, reports)
	}
	return newPrinter(cmd, cfg).Table(reports)
}

func writeBadge(path string, composite int) (retErr error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("creating badge dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("creating badge %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing badge: %w", cerr)
		}
	}()

	if err := render.Badge(f, composite, ""); err != nil {
		return err
	}
	slog.Debug("badge written", "path", path, "composite", composite)
	return nil
}

func writeBadges(dir string, reports []*score.Report) error {
	for _, r := range reports {
		name := strings.TrimSuffix(filepath.Base(r.File), filepath.Ext(r.File)) + ".svg"
		if err := writeBadge(filepath.Join(dir, name), r.Composite); err != nil {
			return err
		}
	}
	return nil
}
