package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/crawlkit/sessiond/cmd/common"
	"github.com/crawlkit/sessiond/internal/config"
	"github.com/crawlkit/sessiond/internal/engine"
	"github.com/crawlkit/sessiond/internal/server"
	"github.com/crawlkit/sessiond/internal/store"
	"github.com/crawlkit/sessiond/pkg/credstore"
	"github.com/crawlkit/sessiond/pkg/logger"
)

var serveFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: "path to the settings file",
		Value: defaultConfigPath(),
	},
	cli.BoolFlag{
		Name:  "verbose",
		Usage: "enable debug logging",
	},
}

var auditFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: "path to the settings file",
		Value: defaultConfigPath(),
	},
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sessiond.yaml"
	}
	return home + "/.config/sessiond/sessiond.yaml"
}

// serve loads the settings, assembles the coordinator pipeline and runs
// until interrupted.
func serve(ctx *cli.Context) error {
	settings, err := config.Load(afero.NewOsFs(), ctx.String("config"))
	if err != nil {
		common.PrintRuntimeErr(ctx, "serve", "config", err)
		return nil
	}

	l := logger.NewStandardLogger(log.New(os.Stderr, "sessiond: ", log.LstdFlags), ctx.Bool("verbose"))
	defer l.Close()

	pool, err := settings.Pool(credstore.New().Lookup)
	if err != nil {
		common.PrintRuntimeErr(ctx, "serve", "profiles", err)
		return nil
	}

	var audit *store.Store
	if settings.StorePath != "" {
		audit, err = store.Open(settings.StorePath)
		if err != nil {
			common.PrintRuntimeErr(ctx, "serve", "store", err)
			return nil
		}
		defer audit.Close()
		l.Info("audit run %s recording to %s", audit.RunID(), settings.StorePath)
	}

	opts := engine.Options{
		Enabled:      settings.Enabled,
		CookieDebug:  settings.CookieDebug,
		ProfilesSync: settings.ProfilesSync,
		Profiles:     pool,
		Logger:       l,
	}
	if audit != nil {
		opts.Audit = audit
	}
	coord, err := engine.New(opts)
	if err != nil {
		common.PrintRuntimeErr(ctx, "serve", "engine", err)
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := engine.NewHTTPTransport()
	loop := engine.NewLoop(runCtx, coord, transport.Send, l, settings.MaxConcurrent)

	rpc := server.NewRPCServer(&server.RPCConfig{
		Secret:  settings.RPCSecret,
		Version: buildVersion,
		Commit:  buildCommit,
	}, coord, audit)
	srv := server.NewServer(l, rpc, settings.Listen)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			common.PrintRuntimeErr(ctx, "serve", "listen", err)
		}
	case s := <-sig:
		l.Info("received %s, shutting down", s.String())
	}

	cancel()
	loop.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Warning("shutdown: %s", err.Error())
	}
	return nil
}
