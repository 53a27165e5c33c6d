package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/crawlkit/sessiond/cmd/common"
	"github.com/crawlkit/sessiond/internal/config"
	"github.com/crawlkit/sessiond/internal/store"
	"github.com/crawlkit/sessiond/pkg/sesslib"
)

func openAudit(ctx *cli.Context) (*store.Store, error) {
	settings, err := config.Load(afero.NewOsFs(), ctx.String("config"))
	if err != nil {
		return nil, err
	}
	if settings.StorePath == "" {
		return nil, errors.New("no store_path configured, nothing to inspect")
	}
	return store.OpenLatest(settings.StorePath)
}

// sessions prints the per-session activity of the most recent run.
func sessions(ctx *cli.Context) error {
	s, err := openAudit(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "sessions", "open", err)
		return nil
	}
	defer s.Close()

	sums, err := s.Sessions()
	if err != nil {
		common.PrintRuntimeErr(ctx, "sessions", "query", err)
		return nil
	}
	if len(sums) == 0 {
		fmt.Printf("run %s: no session activity recorded\n", s.RunID())
		return nil
	}
	fmt.Printf("run %s\n", s.RunID())
	fmt.Printf("%-24s %8s %8s %20s\n", "SESSION", "MERGES", "CLEARS", "LAST ACTIVE")
	for _, sum := range sums {
		fmt.Printf("%-24s %8d %8d %20s\n",
			sum.Session, sum.Merges, sum.Clears,
			time.Unix(sum.LastActive, 0).Format(time.DateTime),
		)
	}
	return nil
}

// cookies prints the latest recorded cookies of one session.
func cookies(ctx *cli.Context) error {
	id := sesslib.SessionID(ctx.Args().First())
	if id == "" {
		id = sesslib.DefaultSession
	}

	s, err := openAudit(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "cookies", "open", err)
		return nil
	}
	defer s.Close()

	list, err := s.Cookies(id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "cookies", "query", err)
		return nil
	}
	if len(list) == 0 {
		fmt.Printf("session %s: no cookies recorded\n", id)
		return nil
	}
	for _, c := range list {
		fmt.Println(c.String())
	}
	return nil
}
