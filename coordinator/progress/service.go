// Package progress implements the contribution refresher: once a verified
// contribution document lands, it attaches the document id to the
// participant's pending contribution entry and advances the participant to
// its next lifecycle state.
package progress

import (
	"context"
	"errors"
	"sync"

	"github.com/cryptocole01/p0tion/coordinator/core/feed"
	contributionfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/contribution"
	"github.com/cryptocole01/p0tion/coordinator/db"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "progress")

// Config contains the ceremony database whose contribution feed the
// refresher consumes.
type Config struct {
	Database db.Database
}

// Service advances participants after their contributions are recorded.
type Service struct {
	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc

	sync.RWMutex
	refreshing bool
}

// NewService sets up a new refresher service.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the contribution feed and begins refreshing.
func (s *Service) Start() {
	ch := make(chan *feed.Event, 1)
	sub := s.cfg.Database.ContributionFeed().Subscribe(ch)
	s.Lock()
	s.refreshing = true
	s.Unlock()
	log.Info("Starting contribution refresher service")
	go s.run(ch, sub)
}

// Stop stops the service.
func (s *Service) Stop() error {
	defer s.cancel()
	s.Lock()
	s.refreshing = false
	s.Unlock()
	return nil
}

// Status returns nil while the service is refreshing.
func (s *Service) Status() error {
	s.RLock()
	defer s.RUnlock()
	if s.refreshing {
		return nil
	}
	return errors.New("not refreshing")
}

func (s *Service) run(ch chan *feed.Event, sub event.Subscription) {
	defer sub.Unsubscribe()

	for {
		select {
		case e := <-ch:
			if e.Type != contributionfeed.Created {
				continue
			}
			data, ok := e.Data.(*contributionfeed.CreatedData)
			if !ok {
				log.Error("Event feed data is not of type *contribution.CreatedData")
				continue
			}
			if err := s.refresh(s.ctx, data); err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"ceremony":     data.CeremonyID,
					"circuit":      data.CircuitID,
					"contribution": data.ContributionID,
				}).Error("Could not refresh participant after contribution")
			}
		case <-s.ctx.Done():
			log.Debug("Context closed, exiting goroutine")
			return
		case err := <-sub.Err():
			log.WithError(err).Error("Could not subscribe to contribution notifier")
			return
		}
	}
}
