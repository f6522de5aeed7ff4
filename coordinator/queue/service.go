// Package queue implements waiting queue coordination: it watches participant
// document transitions and keeps every circuit's contributor queue consistent
// with them, promoting the next contributor whenever a slot frees up.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/cryptocole01/p0tion/coordinator/core/feed"
	participantfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/participant"
	"github.com/cryptocole01/p0tion/coordinator/db"
	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/runtime/logging"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "queue")

// Config contains the collaborators the coordination service needs: the
// ceremony database whose participant feed it consumes, and the clock
// stamping contribution start times.
type Config struct {
	Database db.Database
	Clock    *startup.Clock
}

// Service coordinates circuit waiting queues from participant transitions.
type Service struct {
	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc

	sync.RWMutex
	coordinating bool
}

// NewService sets up a new queue coordination service.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the participant feed and begins coordinating.
func (s *Service) Start() {
	ch := make(chan *feed.Event, 1)
	sub := s.cfg.Database.ParticipantFeed().Subscribe(ch)
	s.Lock()
	s.coordinating = true
	s.Unlock()
	log.Info("Starting queue coordination service")
	go s.run(ch, sub)
}

// Stop stops the service.
func (s *Service) Stop() error {
	defer s.cancel()
	s.Lock()
	s.coordinating = false
	s.Unlock()
	return nil
}

// Status returns nil while the service is coordinating.
func (s *Service) Status() error {
	s.RLock()
	defer s.RUnlock()
	if s.coordinating {
		return nil
	}
	return errors.New("not coordinating")
}

func (s *Service) run(ch chan *feed.Event, sub event.Subscription) {
	defer sub.Unsubscribe()

	for {
		select {
		case e := <-ch:
			if e.Type != participantfeed.Updated {
				continue
			}
			data, ok := e.Data.(*participantfeed.UpdatedData)
			if !ok {
				log.Error("Event feed data is not of type *participant.UpdatedData")
				continue
			}
			s.processUpdate(s.ctx, data)
		case <-s.ctx.Done():
			log.Debug("Context closed, exiting goroutine")
			return
		case err := <-sub.Err():
			log.WithError(err).Error("Could not subscribe to participant notifier")
			return
		}
	}
}

// processUpdate classifies one participant transition and applies the queue
// mutation it calls for. Unrecognized transitions are ignored; failures are
// logged without taking the service down.
func (s *Service) processUpdate(ctx context.Context, data *participantfeed.UpdatedData) {
	class := classify(data.Before, data.After)
	if class == ignored {
		return
	}
	log.WithFields(logging.ParticipantTransitionFields(data)).WithField(
		"class", class,
	).Debug("Coordinating participant transition")

	var err error
	switch class {
	case readyForFirst, readyForNext, resumingAfterTimeout:
		err = s.coordinateSingle(ctx, data.CeremonyID, data.After.UserID, circuitPosition(data.After.ContributionProgress))
	case completedContribution, completedEverything:
		err = s.coordinateMulti(ctx, data.CeremonyID, data.After.UserID, circuitPosition(data.Before.ContributionProgress))
	}
	if err != nil {
		if errors.Is(err, errNotQueueHead) {
			log.WithFields(logging.ParticipantTransitionFields(data)).Debug(
				"Participant is not the queue head, nothing to coordinate")
			return
		}
		log.WithError(err).WithFields(logging.ParticipantTransitionFields(data)).Error(
			"Could not coordinate participant transition")
	}
}
