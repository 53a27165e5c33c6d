package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	"github.com/crawlkit/sessiond/cmd/common"
)

// BuildArgs carries build-time metadata injected via ldflags.
type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// Execute runs the sessiond CLI with the given arguments.
func Execute(args []string, bArgs BuildArgs) error {
	app := cli.App{
		Name:         "sessiond",
		HelpName:     "sessiond",
		Usage:        "A crawler session identity daemon.",
		Version:      fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:    "sessiond <command> [arguments...]",
		OnUsageError: common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:         "serve",
				Aliases:      []string{"s"},
				Usage:        "run the session daemon",
				Action:       serve,
				OnUsageError: common.UsageErrorCallback,
				Flags:        serveFlags,
			},
			{
				Name:         "sessions",
				Usage:        "list sessions recorded in the audit store",
				Action:       sessions,
				OnUsageError: common.UsageErrorCallback,
				Flags:        auditFlags,
			},
			{
				Name:         "cookies",
				Usage:        "show the recorded cookies of a session",
				UsageText:    "sessiond cookies [session]",
				Action:       cookies,
				OnUsageError: common.UsageErrorCallback,
				Flags:        auditFlags,
			},
			{
				Name:  "secret",
				Usage: "manage proxy credentials in the system keyring",
				Subcommands: []cli.Command{
					{
						Name:      "set",
						Usage:     "store a secret",
						UsageText: "sessiond secret set <name> <value>",
						Action:    secretSet,
					},
					{
						Name:      "delete",
						Usage:     "remove a secret",
						UsageText: "sessiond secret delete <name>",
						Action:    secretDelete,
					},
				},
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "prints installed version of sessiond",
				Action:  common.GetVersion,
			},
		},
		Action:      common.Help,
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	buildVersion = bArgs.Version
	buildCommit = bArgs.Commit
	return app.Run(args)
}

var (
	buildVersion string
	buildCommit  string
)
