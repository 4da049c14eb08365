package cli

import (
	"context"

	"github.com/mchmarny/xray/pkg/profile"
	"github.com/urfave/cli/v3"
)

func newProfilesCmd() *cli.Command {
	return &cli.Command{
		Name:   "profiles",
		Usage:  "List the weight profiles",
		Action: cmdProfiles,
	}
}

func cmdProfiles(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	if cfg.Format == formatText {
		return newPrinter(cmd, cfg).Profiles(cfg.Profiles)
	}
	return encode(cmd.Root().Writer, cfg.Format, listProfiles(cfg.Profiles))
}

func listProfiles(set *profile.Set) []profile.Profile {
	names := set.Names()
	list := make([]profile.Profile, 0, len(names))
	for _, n := range names {
		p, err := set.Get(n)
		if err != nil {
			continue
		}
		list = append(list, p)
	}
	return list
}
