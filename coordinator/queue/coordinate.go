package queue

import (
	"context"

	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/pkg/errors"
)

// errNotQueueHead marks a completion event for a participant that is not at
// the head of the circuit's queue, e.g. a redelivered event that was already
// coordinated. The transaction aborts without mutation.
var errNotQueueHead = errors.New("participant is not the queue head")

// eventClass identifies which coordination path a participant transition
// dispatches to.
type eventClass int

const (
	ignored eventClass = iota
	readyForFirst
	readyForNext
	resumingAfterTimeout
	completedContribution
	completedEverything
)

// String returns the class name for logging.
func (c eventClass) String() string {
	switch c {
	case readyForFirst:
		return "ready for first"
	case readyForNext:
		return "ready for next"
	case resumingAfterTimeout:
		return "resuming after timeout"
	case completedContribution:
		return "completed contribution"
	case completedEverything:
		return "completed everything"
	default:
		return "ignored"
	}
}

// classify derives the coordination class of a participant transition from
// its before and after document images. The first three classes join or
// resume the queue of the circuit the participant advanced to; the last two
// release the head slot of the circuit the participant just finished.
func classify(before, after *types.Participant) eventClass {
	switch {
	case after.Status == types.StatusReady && before.ContributionProgress == 0:
		return readyForFirst
	case after.Status == types.StatusReady && before.ContributionProgress != 0 &&
		after.ContributionProgress == before.ContributionProgress+1:
		return readyForNext
	case after.Status == types.StatusReady && after.ContributionProgress == before.ContributionProgress:
		return resumingAfterTimeout
	case before.Status == types.StatusContributing && before.ContributionStep == types.StepVerifying &&
		after.Status == types.StatusContributed && after.ContributionStep == types.StepCompleted &&
		after.ContributionProgress == before.ContributionProgress:
		return completedContribution
	case after.Status == types.StatusDone && before.Status != types.StatusDone:
		return completedEverything
	default:
		return ignored
	}
}

// circuitPosition maps a 1-indexed contribution progress to the sequence
// position of the circuit it refers to.
func circuitPosition(progress int) int {
	if progress <= 0 {
		return 0
	}
	return progress - 1
}

// coordinateSingle seats one participant on the circuit at the given sequence
// position: an empty queue makes it the current contributor immediately, the
// current contributor resuming re-enters the downloading step, and anyone
// else is appended to the waiting queue. Queue and participant are written in
// one transaction.
func (s *Service) coordinateSingle(ctx context.Context, ceremonyID, userID string, position int) error {
	return s.cfg.Database.RunTransaction(ctx, func(tx iface.Transaction) error {
		circuit, err := tx.CircuitBySequencePosition(ceremonyID, position)
		if err != nil {
			return errors.Wrapf(err, "could not get circuit at position %d", position)
		}
		p, err := tx.Participant(ceremonyID, userID)
		if err != nil {
			return errors.Wrapf(err, "could not get participant %s", userID)
		}

		queue := circuit.WaitingQueue
		switch {
		case queue.CurrentContributor == "" && len(queue.Contributors) == 0:
			queue.CurrentContributor = userID
			queue.Contributors = append(queue.Contributors, userID)
			p.Status = types.StatusContributing
			p.ContributionStep = types.StepDownloading
			p.ContributionStartedAt = s.cfg.Clock.Millis()
		case queue.CurrentContributor == userID:
			// Resuming the slot it already holds. Keep the original
			// contribution start time so the timeout budget is not reset.
			p.Status = types.StatusContributing
			p.ContributionStep = types.StepDownloading
		default:
			if !contains(queue.Contributors, userID) {
				queue.Contributors = append(queue.Contributors, userID)
			}
			p.Status = types.StatusWaiting
			p.ContributionStartedAt = 0
		}
		circuit.WaitingQueue = queue

		if err := tx.SaveCircuit(ceremonyID, circuit); err != nil {
			return errors.Wrap(err, "could not save circuit")
		}
		if err := tx.SaveParticipant(ceremonyID, p); err != nil {
			return errors.Wrap(err, "could not save participant")
		}
		return nil
	})
}

// coordinateMulti releases the head slot of the circuit at the given
// sequence position after userID finished contributing to it, promoting the
// next waiting contributor if there is one. Queue and promoted participant
// are written in one transaction.
func (s *Service) coordinateMulti(ctx context.Context, ceremonyID, userID string, position int) error {
	return s.cfg.Database.RunTransaction(ctx, func(tx iface.Transaction) error {
		circuit, err := tx.CircuitBySequencePosition(ceremonyID, position)
		if err != nil {
			return errors.Wrapf(err, "could not get circuit at position %d", position)
		}

		queue := circuit.WaitingQueue
		if len(queue.Contributors) == 0 || queue.Contributors[0] != userID {
			return errNotQueueHead
		}
		queue.Contributors = queue.Contributors[1:]
		if len(queue.Contributors) > 0 {
			next := queue.Contributors[0]
			queue.CurrentContributor = next
			np, err := tx.Participant(ceremonyID, next)
			if err != nil {
				return errors.Wrapf(err, "could not get next contributor %s", next)
			}
			np.Status = types.StatusContributing
			np.ContributionStep = types.StepDownloading
			np.ContributionStartedAt = s.cfg.Clock.Millis()
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
		return nil
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
