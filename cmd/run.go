package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/0xPolygonHermez/zkevm-xcall/config"
	"github.com/0xPolygonHermez/zkevm-xcall/db"
	"github.com/0xPolygonHermez/zkevm-xcall/devnet"
	"github.com/0xPolygonHermez/zkevm-xcall/metrics"
	"github.com/0xPolygonHermez/zkevm-xcall/utils"
	"github.com/urfave/cli/v2"
)

func runDevnet(cliCtx *cli.Context) error {
	c, err := config.Load(cliCtx.String(flagCfg))
	if err != nil {
		return err
	}
	setupLog(c.Log)

	ctx, cancel := context.WithCancel(cliCtx.Context)
	defer cancel()
	go metrics.StartMetricsHttpServer(ctx, c.Metrics)

	err = db.RunMigrations(c.Database)
	if err != nil {
		log.Error(err)
		return err
	}
	storage, err := db.NewStorage(c.Database)
	if err != nil {
		log.Error(err)
		return err
	}
	defer storage.Close() //nolint:errcheck

	d, err := devnet.New(ctx, c.Devnet, storage, utils.SystemClock{})
	if err != nil {
		log.Error(err)
		return err
	}
	d.Start()
	for _, n := range []*devnet.Network{d.A, d.B} {
		log.Infof("%s: xcall %s, dapp %s, connections %v", n.Chain.ChainID(),
			n.Address(devnet.XCallAddress), n.Address(devnet.DAppAddress), n.Connections())
	}

	// Wait for an interrupt.
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	log.Info("stopping devnet")
	d.Stop()
	return nil
}

func setupLog(c log.Config) {
	log.Init(c)
}
