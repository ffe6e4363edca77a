package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/goudanet-go/internal/cli/output"
	"github.com/yndnr/goudanet-go/internal/infra/confloader"
	"github.com/yndnr/goudanet-go/internal/peer/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Peer configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the merged peer configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "sanitize",
						Usage: "Mask peer addresses",
					},
					setFlag,
				},
				Action: configShow,
			},
			{
				Name:      "validate",
				Usage:     "Validate a peer configuration file",
				ArgsUsage: "[FILE]",
				Flags:     []cli.Flag{setFlag},
				Action:    configValidate,
			},
		},
	}
}

var setFlag = &cli.StringSliceFlag{
	Name:  "set",
	Usage: "Override a setting (section.key=value), applied last",
}

// loadPeerConfig merges defaults, the file, GOUDANET_ environment
// variables and --set overrides the way goudanet-peer does.
func loadPeerConfig(path string, set []string) (*config.PeerConfig, error) {
	overrides, err := confloader.ParseOverrides(set)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configShow(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	cfg, err := loadPeerConfig(flags.Config, c.StringSlice("set"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("config show: %v", err), 1)
	}
	if c.Bool("sanitize") {
		cfg = config.Sanitize(cfg)
	}
	// Nested sections read better as yaml than as a field table.
	if flags.Output == output.FormatTable {
		return output.NewFormatter(output.FormatYAML, false).Format(c.App.Writer, cfg)
	}
	return render(c, cfg)
}

func configValidate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = ParseGlobalFlags(c).Config
	}
	cfg, err := loadPeerConfig(path, c.StringSlice("set"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("config validate: %v", err), 1)
	}
	if err := config.Verify(cfg); err != nil {
		return cli.Exit(fmt.Sprintf("config validate: %v", err), 1)
	}
	if path == "" {
		path = "(defaults)"
	}
	fmt.Fprintf(c.App.Writer, "configuration is valid: %s\n", path)
	return nil
}
