package progress

import (
	"context"

	contributionfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/contribution"
	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// refresh attaches the created contribution document to the participant's
// pending contribution entry and advances the participant: CONTRIBUTED when
// circuits remain, DONE after the last one. Finalizing coordinators keep
// their status untouched. Everything commits in one transaction.
func (s *Service) refresh(ctx context.Context, data *contributionfeed.CreatedData) error {
	return s.cfg.Database.RunTransaction(ctx, func(tx iface.Transaction) error {
		circuits, err := tx.Circuits(data.CeremonyID)
		if err != nil {
			return errors.Wrap(err, "could not get circuits")
		}
		p, err := tx.Participant(data.CeremonyID, data.Contribution.ParticipantID)
		if err != nil {
			return errors.Wrapf(err, "could not get participant %s", data.Contribution.ParticipantID)
		}

		attached := false
		for i := range p.Contributions {
			entry := &p.Contributions[i]
			if entry.Hash != "" && entry.ComputationTime != 0 && entry.Doc == "" {
				entry.Doc = data.ContributionID
				attached = true
				break
			}
		}
		if !attached {
			log.WithFields(logrus.Fields{
				"userId":       p.UserID,
				"contribution": data.ContributionID,
			}).Warn("No pending contribution entry to attach document to")
		}

		if p.Status != types.StatusFinalizing {
			if p.ContributionProgress+1 > len(circuits) {
				p.Status = types.StatusDone
			} else {
				p.Status = types.StatusContributed
			}
			p.ContributionStep = types.StepCompleted
			p.TempContributionData = nil
		}

		return tx.SaveParticipant(data.CeremonyID, p)
	})
}
