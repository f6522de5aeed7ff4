// Package timeout implements the contribution timeout sweeper: it scans open
// ceremonies for contributors that have held their circuit past the allowed
// budget, evicts them from the queue and reaps the circuit's worker.
package timeout

import (
	"context"
	"errors"
	"sync"

	"github.com/cryptocole01/p0tion/async"
	"github.com/cryptocole01/p0tion/config/params"
	"github.com/cryptocole01/p0tion/coordinator/db"
	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/coordinator/vm"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "timeout")

// Config contains the collaborators the sweeper needs. Workers is used to
// reap the worker of a circuit whose contributor timed out.
type Config struct {
	Database db.Database
	Workers  vm.Pool
	Clock    *startup.Clock
}

// Service periodically evicts timed out contributors.
type Service struct {
	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc

	sync.RWMutex
	sweeping bool
}

// NewService sets up a new timeout sweeper service.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the periodic sweep.
func (s *Service) Start() {
	s.Lock()
	s.sweeping = true
	s.Unlock()
	interval := params.CoordinatorConfig().TimeoutSweepInterval
	log.WithField("interval", interval).Info("Starting contribution timeout sweeper")
	async.RunEvery(s.ctx, interval, s.sweepAll)
}

// Stop stops the service.
func (s *Service) Stop() error {
	defer s.cancel()
	s.Lock()
	s.sweeping = false
	s.Unlock()
	return nil
}

// Status returns nil while the service is sweeping.
func (s *Service) Status() error {
	s.RLock()
	defer s.RUnlock()
	if s.sweeping {
		return nil
	}
	return errors.New("not sweeping")
}
