// Package flags defines the command line flags specific to the coordinator
// node binary.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// HTTPHost defines the host on which the coordinator API server runs.
	HTTPHost = &cli.StringFlag{
		Name:  "http-host",
		Usage: "Host on which the coordinator HTTP API listens",
		Value: "127.0.0.1",
	}
	// HTTPPort defines the port on which the coordinator API server runs.
	HTTPPort = &cli.IntFlag{
		Name:  "http-port",
		Usage: "Port on which the coordinator HTTP API listens",
		Value: 8547,
	}
	// HTTPAllowedOrigins defines the comma separated CORS origins accepted
	// by the coordinator API server.
	HTTPAllowedOrigins = &cli.StringSliceFlag{
		Name:  "http-cors-domain",
		Usage: "Comma separated list of domains from which to accept cross origin requests",
		Value: cli.NewStringSlice("http://localhost:8547"),
	}
	// AuthTokenFileFlag specifies the file holding the hex encoded HMAC
	// secret used to validate API bearer tokens. The file is watched so the
	// secret can be rotated without a restart.
	AuthTokenFileFlag = &cli.StringFlag{
		Name:     "auth-token-file",
		Usage:    "Path to the file containing the hex encoded JWT secret for API authentication",
		Required: true,
	}
	// MonitoringPortFlag defines the port used by the prometheus service.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used to listen and respond to metrics requests for prometheus",
		Value: 8081,
	}
	// DisableTimeoutSweeperFlag turns off the contribution timeout sweeper.
	// Useful when several coordinator replicas share one database and only
	// one of them should evict blocking contributors.
	DisableTimeoutSweeperFlag = &cli.BoolFlag{
		Name:  "disable-timeout-sweeper",
		Usage: "Do not run the contribution timeout sweeper on this node",
	}
)
