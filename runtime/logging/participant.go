package logging

import (
	participantfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/participant"
	"github.com/sirupsen/logrus"
)

// ParticipantTransitionFields extracts a standard set of fields from a
// participant update event into a logrus.Fields struct which can be passed
// to log.WithFields.
func ParticipantTransitionFields(data *participantfeed.UpdatedData) logrus.Fields {
	return logrus.Fields{
		"ceremony":   data.CeremonyID,
		"userId":     data.UserID,
		"fromStatus": data.Before.Status,
		"toStatus":   data.After.Status,
		"fromStep":   data.Before.ContributionStep,
		"toStep":     data.After.ContributionStep,
		"progress":   data.After.ContributionProgress,
	}
}
