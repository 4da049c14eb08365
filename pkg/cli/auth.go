package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mchmarny/xray/pkg/auth"
	"github.com/urfave/cli/v3"
)

const deleteFlag = "delete"

func newAuthCmd() *cli.Command {
	return &cli.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Store the judge API key in the OS keychain",
		Action:          cmdAuth,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  deleteFlag,
				Usage: "Remove the stored API key",
			},
		},
	}
}

func cmdAuth(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	store := auth.Store{Dir: cfg.HomeDir}
	w := cmd.Root().Writer

	if cmd.Bool(deleteFlag) {
		if err := store.Delete(); err != nil {
			return fmt.Errorf("deleting API key: %w", err)
		}
		fmt.Fprintln(w, "API key removed")
		return nil
	}

	fmt.Fprint(w, "Enter judge API key: ")
	s := bufio.NewScanner(cmd.Root().Reader)
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return fmt.Errorf("reading user input: %w", err)
		}
		return errors.New("no API key entered")
	}

	if err := store.Save(strings.TrimSpace(s.Text())); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}

	fmt.Fprintln(w, "\nAPI key saved")
	return nil
}
