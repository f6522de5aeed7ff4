// Package node defines the coordinator node: it opens the ceremony database,
// constructs the cloud collaborators and wires every coordinator service into
// a runtime registry with a full lifecycle.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cryptocole01/p0tion/cmd"
	"github.com/cryptocole01/p0tion/coordinator/blob"
	"github.com/cryptocole01/p0tion/coordinator/db"
	"github.com/cryptocole01/p0tion/coordinator/db/kv"
	"github.com/cryptocole01/p0tion/coordinator/finalization"
	"github.com/cryptocole01/p0tion/coordinator/flags"
	"github.com/cryptocole01/p0tion/coordinator/progress"
	"github.com/cryptocole01/p0tion/coordinator/queue"
	"github.com/cryptocole01/p0tion/coordinator/rpc"
	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/coordinator/timeout"
	"github.com/cryptocole01/p0tion/coordinator/verification"
	"github.com/cryptocole01/p0tion/coordinator/vm"
	"github.com/cryptocole01/p0tion/monitoring/backup"
	"github.com/cryptocole01/p0tion/monitoring/prometheus"
	"github.com/cryptocole01/p0tion/monitoring/tracing"
	"github.com/cryptocole01/p0tion/runtime"
	"github.com/cryptocole01/p0tion/runtime/version"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "node")

// CoordinatorNode holds the coordinator services and handles the lifecycle
// of the entire system.
type CoordinatorNode struct {
	cliCtx   *cli.Context
	ctx      context.Context
	cancel   context.CancelFunc
	lock     sync.RWMutex
	services *runtime.ServiceRegistry
	stop     chan struct{} // Channel to wait for termination notifications.
	db       db.Database
	clock    *startup.Clock
	workers  vm.Pool
	blobs    blob.Store
}

// New creates a new coordinator node, sets up configuration options and
// registers every required service.
func New(cliCtx *cli.Context) (*CoordinatorNode, error) {
	processName := cliCtx.String(cmd.TracingProcessNameFlag.Name)
	if processName == "" {
		processName = "coordinator"
	}
	if err := tracing.Setup(
		processName,
		cliCtx.String(cmd.TracingEndpointFlag.Name),
		cliCtx.Float64(cmd.TraceSampleFractionFlag.Name),
		cliCtx.Bool(cmd.EnableTracingFlag.Name),
	); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(cliCtx.Context)
	node := &CoordinatorNode{
		cliCtx:   cliCtx,
		ctx:      ctx,
		cancel:   cancel,
		services: runtime.NewServiceRegistry(),
		stop:     make(chan struct{}),
		clock:    startup.NewClock(),
	}

	if err := node.startDB(cliCtx); err != nil {
		return nil, err
	}

	workers, err := vm.NewAWSPool(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not set up worker pool")
	}
	node.workers = workers

	blobs, err := blob.NewS3Store(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not set up blob store")
	}
	node.blobs = blobs

	if err := node.registerQueueService(); err != nil {
		return nil, err
	}
	if err := node.registerProgressService(); err != nil {
		return nil, err
	}
	if !cliCtx.Bool(flags.DisableTimeoutSweeperFlag.Name) {
		if err := node.registerTimeoutService(); err != nil {
			return nil, err
		}
	}
	if err := node.registerRPCService(cliCtx); err != nil {
		return nil, err
	}
	if !cliCtx.Bool(cmd.DisableMonitoringFlag.Name) {
		if err := node.registerPrometheusService(cliCtx); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Start the coordinator node and kick off every registered service.
func (n *CoordinatorNode) Start() {
	n.lock.Lock()

	log.WithFields(logrus.Fields{
		"version": version.GetVersion(),
	}).Info("Starting coordinator node")

	n.services.StartAll()

	stop := n.stop
	n.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the coordinator node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (n *CoordinatorNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	log.Info("Stopping coordinator node")
	n.services.StopAll()
	if err := n.db.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}
	n.cancel()
	close(n.stop)
}

func (n *CoordinatorNode) startDB(cliCtx *cli.Context) error {
	dbPath := cliCtx.String(cmd.DataDirFlag.Name)
	clearDB := cliCtx.Bool(cmd.ClearDB.Name)
	forceClearDB := cliCtx.Bool(cmd.ForceClearDB.Name)

	log.WithField("databasePath", dbPath).Info("Checking DB")
	d, err := db.NewDB(n.ctx, dbPath, kv.WithClock(n.clock))
	if err != nil {
		return err
	}
	clearDBConfirmed := false
	if clearDB && !forceClearDB {
		actionText := "This will delete your ceremony database stored in your data directory. " +
			"Your database backups will not be removed - do you want to proceed? (Y/N)"
		deniedText := "Database will not be deleted. No changes have been made."
		clearDBConfirmed, err = cmd.ConfirmAction(actionText, deniedText)
		if err != nil {
			return err
		}
	}
	if clearDBConfirmed || forceClearDB {
		log.Warning("Removing database")
		if err := d.ClearDB(); err != nil {
			return errors.Wrap(err, "could not clear database")
		}
		d, err = db.NewDB(n.ctx, dbPath, kv.WithClock(n.clock))
		if err != nil {
			return errors.Wrap(err, "could not create new database")
		}
	}
	n.db = d
	return nil
}

func (n *CoordinatorNode) registerQueueService() error {
	svc := queue.NewService(n.ctx, &queue.Config{
		Database: n.db,
		Clock:    n.clock,
	})
	return n.services.RegisterService(svc)
}

func (n *CoordinatorNode) registerProgressService() error {
	svc := progress.NewService(n.ctx, &progress.Config{
		Database: n.db,
	})
	return n.services.RegisterService(svc)
}

func (n *CoordinatorNode) registerTimeoutService() error {
	svc := timeout.NewService(n.ctx, &timeout.Config{
		Database: n.db,
		Workers:  n.workers,
		Clock:    n.clock,
	})
	return n.services.RegisterService(svc)
}

func (n *CoordinatorNode) registerRPCService(cliCtx *cli.Context) error {
	software, err := verification.SoftwareFromEnv()
	if err != nil {
		return err
	}
	verifier, err := verification.NewVerifier(&verification.Config{
		Database: n.db,
		Blob:     n.blobs,
		Workers:  n.workers,
		Clock:    n.clock,
		Software: software,
	})
	if err != nil {
		return err
	}
	finalizer := finalization.NewFinalizer(&finalization.Config{
		Database: n.db,
		Blob:     n.blobs,
	})
	svc, err := rpc.NewService(n.ctx, &rpc.Config{
		Host:           cliCtx.String(flags.HTTPHost.Name),
		Port:           cliCtx.Int(flags.HTTPPort.Name),
		AllowedOrigins: cliCtx.StringSlice(flags.HTTPAllowedOrigins.Name),
		JwtSecretPath:  cliCtx.String(flags.AuthTokenFileFlag.Name),
		Verifier:       verifier,
		Finalizer:      finalizer,
	})
	if err != nil {
		return err
	}
	return n.services.RegisterService(svc)
}

func (n *CoordinatorNode) registerPrometheusService(cliCtx *cli.Context) error {
	var additionalHandlers []prometheus.Handler
	if cliCtx.IsSet(cmd.BackupWebhookOutputDir.Name) {
		additionalHandlers = append(
			additionalHandlers,
			prometheus.Handler{
				Path:    "/db/backup",
				Handler: backup.Handler(n.db, cliCtx.String(cmd.BackupWebhookOutputDir.Name)),
			},
		)
	}
	svc := prometheus.NewService(
		fmt.Sprintf("%s:%d", cliCtx.String(cmd.MonitoringHostFlag.Name), cliCtx.Int(flags.MonitoringPortFlag.Name)),
		n.services,
		additionalHandlers...,
	)
	hook := prometheus.NewLogrusCollector()
	logrus.AddHook(hook)
	return n.services.RegisterService(svc)
}
