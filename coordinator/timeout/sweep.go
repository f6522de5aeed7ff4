package timeout

import (
	"context"

	"github.com/cryptocole01/p0tion/config/params"
	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var timedOutContributorsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coordinator",
	Name:      "timed_out_contributors_total",
	Help:      "Count of contributors evicted for exceeding their contribution budget.",
})

// sweepAll scans every open ceremony for contributors over budget.
func (s *Service) sweepAll() {
	ceremonies, err := s.cfg.Database.Ceremonies(s.ctx)
	if err != nil {
		log.WithError(err).Error("Could not get ceremonies for timeout sweep")
		return
	}
	for _, ceremony := range ceremonies {
		if ceremony.State != types.CeremonyOpened {
			continue
		}
		circuits, err := s.cfg.Database.Circuits(s.ctx, ceremony.ID)
		if err != nil {
			log.WithError(err).WithField("ceremony", ceremony.ID).Error("Could not get circuits for timeout sweep")
			continue
		}
		for _, circuit := range circuits {
			if circuit.WaitingQueue.CurrentContributor == "" {
				continue
			}
			if err := s.sweepCircuit(s.ctx, ceremony.ID, circuit.ID); err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"ceremony": ceremony.ID,
					"circuit":  circuit.ID,
				}).Error("Could not sweep circuit")
			}
		}
	}
}

// sweepCircuit evicts the circuit's current contributor when it has held the
// slot past its budget. Eviction, audit entry and promotion of the next
// contributor commit in one transaction; the circuit's worker is reaped
// afterwards, best effort.
func (s *Service) sweepCircuit(ctx context.Context, ceremonyID, circuitID string) error {
	var evicted, instanceID string
	err := s.cfg.Database.RunTransaction(ctx, func(tx iface.Transaction) error {
		circuit, err := tx.Circuit(ceremonyID, circuitID)
		if err != nil {
			return errors.Wrapf(err, "could not get circuit %s", circuitID)
		}
		queue := circuit.WaitingQueue
		current := queue.CurrentContributor
		if current == "" {
			return nil
		}
		p, err := tx.Participant(ceremonyID, current)
		if err != nil {
			return errors.Wrapf(err, "could not get current contributor %s", current)
		}
		if p.Status != types.StatusContributing || p.ContributionStartedAt == 0 {
			return nil
		}
		now := s.cfg.Clock.Millis()
		if now-p.ContributionStartedAt <= contributionBudget(circuit.AvgTimings.FullContribution) {
			return nil
		}

		p.Status = types.StatusTimedOut
		p.Timeouts = append(p.Timeouts, types.Timeout{
			StartDate: now,
			EndDate:   now + params.CoordinatorConfig().TimeoutPenalty.Milliseconds(),
		})
		if err := tx.SaveParticipant(ceremonyID, p); err != nil {
			return errors.Wrap(err, "could not save timed out contributor")
		}

		if len(queue.Contributors) > 0 && queue.Contributors[0] == current {
			queue.Contributors = queue.Contributors[1:]
		}
		if len(queue.Contributors) > 0 {
			next := queue.Contributors[0]
			queue.CurrentContributor = next
			np, err := tx.Participant(ceremonyID, next)
			if err != nil {
				return errors.Wrapf(err, "could not get next contributor %s", next)
			}
			np.Status = types.StatusContributing
			np.ContributionStep = types.StepDownloading
			np.ContributionStartedAt = now
			if err := tx.SaveParticipant(ceremonyID, np); err != nil {
				return errors.Wrap(err, "could not save next contributor")
			}
		} else {
			queue.CurrentContributor = ""
		}
		circuit.WaitingQueue = queue
		if err := tx.SaveCircuit(ceremonyID, circuit); err != nil {
			return errors.Wrap(err, "could not save circuit")
		}

		evicted = current
		instanceID = circuit.InstanceID
		return nil
	})
	if err != nil || evicted == "" {
		return err
	}

	timedOutContributorsTotal.Inc()
	log.WithFields(logrus.Fields{
		"ceremony": ceremonyID,
		"circuit":  circuitID,
		"userId":   evicted,
	}).Info("Evicted contributor after timeout")

	if instanceID != "" {
		if err := s.cfg.Workers.Stop(ctx, instanceID); err != nil {
			log.WithError(err).WithField("instanceId", instanceID).Warn("Could not reap worker of timed out circuit")
		}
	}
	return nil
}

// contributionBudget returns how long a contributor may hold a circuit, in
// milliseconds. Once timing samples exist the budget follows the rolling full
// contribution average widened by the dynamic threshold; before that the
// fixed contribution timeout applies.
func contributionBudget(avgFullContribution int64) int64 {
	cfg := params.CoordinatorConfig()
	if avgFullContribution <= 0 {
		return cfg.ContributionTimeout.Milliseconds()
	}
	return avgFullContribution * (100 + cfg.DynamicTimeoutThreshold) / 100
}
