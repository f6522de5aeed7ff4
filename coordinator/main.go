// Package main defines the ceremony coordinator server. The coordinator
// orders contributors into per-circuit waiting queues, dispatches
// verification of uploaded contributions to isolated compute workers and
// seals each circuit with the ceremony closing beacon.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/cryptocole01/p0tion/cmd"
	"github.com/cryptocole01/p0tion/coordinator/flags"
	"github.com/cryptocole01/p0tion/coordinator/node"
	"github.com/cryptocole01/p0tion/io/logs"
	"github.com/cryptocole01/p0tion/runtime/prereqs"
	"github.com/cryptocole01/p0tion/runtime/version"
	joonix "github.com/joonix/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

var appFlags = []cli.Flag{
	cmd.VerbosityFlag,
	cmd.DataDirFlag,
	cmd.EnableTracingFlag,
	cmd.TracingProcessNameFlag,
	cmd.TracingEndpointFlag,
	cmd.TraceSampleFractionFlag,
	cmd.MonitoringHostFlag,
	cmd.DisableMonitoringFlag,
	cmd.LogFileName,
	cmd.LogFormat,
	cmd.ClearDB,
	cmd.ForceClearDB,
	cmd.ConfigFileFlag,
	cmd.BackupWebhookOutputDir,
	flags.HTTPHost,
	flags.HTTPPort,
	flags.HTTPAllowedOrigins,
	flags.AuthTokenFileFlag,
	flags.MonitoringPortFlag,
	flags.DisableTimeoutSweeperFlag,
}

func init() {
	appFlags = cmd.WrapFlags(appFlags)
}

func startNode(cliCtx *cli.Context) error {
	coordinator, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	coordinator.Start()
	return nil
}

func main() {
	app := cli.App{}
	app.Name = "coordinator"
	app.Usage = "launches the trusted setup ceremony coordinator that queues contributors, verifies contributions and finalizes circuits"
	app.Action = startNode
	app.Version = version.GetVersion()
	app.Flags = appFlags

	app.Before = func(ctx *cli.Context) error {
		// Load any flags from file, if specified.
		if ctx.IsSet(cmd.ConfigFileFlag.Name) {
			if err := altsrc.InitInputSourceWithContext(
				appFlags,
				altsrc.NewYamlSourceFromFlagFunc(
					cmd.ConfigFileFlag.Name))(ctx); err != nil {
				return err
			}
		}

		verbosity := ctx.String(cmd.VerbosityFlag.Name)
		level, err := logrus.ParseLevel(verbosity)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		format := ctx.String(cmd.LogFormat.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			// If persistent log files are written - we disable the log messages coloring because
			// the colors are ANSI codes and seen as gibberish in the log files.
			formatter.DisableColors = ctx.String(cmd.LogFileName.Name) != ""
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

		logFileName := ctx.String(cmd.LogFileName.Name)
		if logFileName != "" {
			if err := logs.ConfigurePersistentLogging(logFileName); err != nil {
				log.WithError(err).Error("Failed to configuring logging to disk.")
			}
		}

		prereqs.WarnIfPlatformNotSupported(ctx.Context)

		runtime.GOMAXPROCS(runtime.NumCPU())
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
