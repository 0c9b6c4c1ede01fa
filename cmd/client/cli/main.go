package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dmitrijs2005/homekeeper/internal/buildinfo"
	"github.com/dmitrijs2005/homekeeper/internal/client/cli"
	"github.com/dmitrijs2005/homekeeper/internal/client/config"
	"github.com/dmitrijs2005/homekeeper/internal/filex"
	"github.com/dmitrijs2005/homekeeper/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	if cfg.LogFile != "" {
		if _, err := filex.EnsureDir(filepath.Dir(cfg.LogFile)); err != nil {
			log.Fatalf("%v", err)
		}
	}
	logger, closer := logging.NewFileLogger(cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	defer closer.Close()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
