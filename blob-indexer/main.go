// Package main defines the blob indexer entry point: it tails the beacon
// chain head while back-filling history, forwarding indexed records to
// blobscan.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	runtimeDebug "runtime/debug"
	"syscall"

	joonix "github.com/joonix/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/DillLabs/blobscan-indexer/blob-indexer/flags"
	"github.com/DillLabs/blobscan-indexer/clients"
	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
	"github.com/DillLabs/blobscan-indexer/clients/execution"
	"github.com/DillLabs/blobscan-indexer/indexer"
	"github.com/DillLabs/blobscan-indexer/shared/backoff"
	"github.com/DillLabs/blobscan-indexer/shared/logutil"
	"github.com/DillLabs/blobscan-indexer/shared/params"
	"github.com/DillLabs/blobscan-indexer/shared/prometheus"
	"github.com/DillLabs/blobscan-indexer/shared/version"
)

var log = logrus.WithField("prefix", "main")

var appFlags = []cli.Flag{
	flags.BeaconNodeEndpoint,
	flags.ExecutionNodeEndpoint,
	flags.BlobscanEndpoint,
	flags.BlobscanSecret,
	flags.Network,
	flags.DencunForkSlot,
	flags.SlotsPerSave,
	flags.NumThreads,
	flags.DisableSyncCheckpointSave,
	flags.DisableSyncHistorical,
	flags.StartBlockId,
	flags.EndBlockId,
	flags.Verbosity,
	flags.LogFormat,
	flags.LogFileName,
	flags.MonitoringPort,
	flags.DisableMonitoring,
	flags.ConfigFile,
}

func main() {
	app := &cli.App{}
	app.Name = "blob-indexer"
	app.Usage = "indexes beacon chain blobs and forwards them to blobscan"
	app.Action = startIndexer
	app.Version = version.GetVersion()
	app.Flags = appFlags

	app.Before = func(ctx *cli.Context) error {
		// Load any flags from file, if specified.
		if ctx.IsSet(flags.ConfigFile.Name) {
			if err := altsrc.InitInputSourceWithContext(appFlags, altsrc.NewYamlSourceFromFlagFunc(flags.ConfigFile.Name))(ctx); err != nil {
				return err
			}
		}

		format := ctx.String(flags.LogFormat.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			// If persistent log files are written - we disable the log messages coloring because
			// the colors are ANSI codes and seen as gibberish in the log files.
			formatter.DisableColors = ctx.String(flags.LogFileName.Name) != ""
			logrus.SetFormatter(formatter)
		case "fluentd":
			f := joonix.NewFormatter()
			if err := joonix.DisableTimestampFormat(f); err != nil {
				panic(err)
			}
			logrus.SetFormatter(f)
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		logFileName := ctx.String(flags.LogFileName.Name)
		if logFileName != "" {
			if err := logutil.ConfigurePersistentLogging(logFileName); err != nil {
				log.WithError(err).Error("Failed to configuring logging to disk.")
			}
		}

		level, err := logrus.ParseLevel(ctx.String(flags.Verbosity.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	}

	defer func() {
		if x := recover(); x != nil {
			log.Errorf("Runtime panic: %v\n%v", x, string(runtimeDebug.Stack()))
			panic(x)
		}
	}()

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func startIndexer(cliCtx *cli.Context) error {
	networkConfig, err := params.NetworkConfigByName(cliCtx.String(flags.Network.Name))
	if err != nil {
		return err
	}
	dencunForkSlot := networkConfig.DencunForkSlot
	if cliCtx.IsSet(flags.DencunForkSlot.Name) {
		dencunForkSlot = cliCtx.Uint64(flags.DencunForkSlot.Name)
	}

	var startBlockId, endBlockId *beacon.BlockId
	if cliCtx.IsSet(flags.StartBlockId.Name) {
		blockId, err := beacon.ParseBlockId(cliCtx.String(flags.StartBlockId.Name))
		if err != nil {
			return err
		}
		startBlockId = &blockId
	}
	if cliCtx.IsSet(flags.EndBlockId.Name) {
		blockId, err := beacon.ParseBlockId(cliCtx.String(flags.EndBlockId.Name))
		if err != nil {
			return err
		}
		endBlockId = &blockId
	}

	retry := backoff.DefaultConfig()

	beaconClient, err := beacon.NewClient(&beacon.Config{
		Endpoint:  cliCtx.String(flags.BeaconNodeEndpoint.Name),
		Reconnect: retry,
	})
	if err != nil {
		return err
	}
	executionClient, err := execution.NewClient(cliCtx.Context, cliCtx.String(flags.ExecutionNodeEndpoint.Name))
	if err != nil {
		return err
	}
	defer executionClient.Close()
	blobscanClient, err := blobscan.NewClient(&blobscan.Config{
		Endpoint: cliCtx.String(flags.BlobscanEndpoint.Name),
		Secret:   cliCtx.String(flags.BlobscanSecret.Name),
	})
	if err != nil {
		return err
	}

	if !cliCtx.Bool(flags.DisableMonitoring.Name) {
		monitoring := prometheus.NewService(fmt.Sprintf(":%d", cliCtx.Uint64(flags.MonitoringPort.Name)))
		monitoring.Start()
		defer func() {
			if err := monitoring.Stop(); err != nil {
				log.WithError(err).Error("Failed to stop monitoring service")
			}
		}()
	}

	idx, err := indexer.New(&indexer.Config{
		Clients:               clients.NewContext(beaconClient, executionClient, blobscanClient),
		DencunForkSlot:        dencunForkSlot,
		SlotsCheckpoint:       cliCtx.Uint64(flags.SlotsPerSave.Name),
		NumWorkers:            cliCtx.Uint64(flags.NumThreads.Name),
		DisableCheckpointSave: cliCtx.Bool(flags.DisableSyncCheckpointSave.Name),
		DisableHistorical:     cliCtx.Bool(flags.DisableSyncHistorical.Name),
		Backoff:               retry,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return idx.Run(ctx, startBlockId, endBlockId)
}
