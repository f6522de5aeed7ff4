// Package verification implements contribution verification: it drives the
// circuit's isolated worker through the verification tool run, decides
// validity from the tool output, and records the outcome atomically.
package verification

import (
	"context"
	"strings"
	"time"

	"github.com/cryptocole01/p0tion/config/params"
	"github.com/cryptocole01/p0tion/coordinator/blob"
	"github.com/cryptocole01/p0tion/coordinator/core/helpers"
	"github.com/cryptocole01/p0tion/coordinator/db"
	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/cryptocole01/p0tion/coordinator/vm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
)

var log = logrus.WithField("prefix", "verification")

// Config contains the collaborators a Verifier needs.
type Config struct {
	Database db.Database
	Blob     blob.Store
	Workers  vm.Pool
	Clock    *startup.Clock
	// Software identifies the verification tool and is recorded on every
	// valid contribution document.
	Software *types.VerificationSoftware
}

// Verifier runs contribution verification end to end.
type Verifier struct {
	cfg *Config
}

// NewVerifier validates the configuration and returns a Verifier. A missing
// verification software identity is fatal.
func NewVerifier(cfg *Config) (*Verifier, error) {
	if cfg.Software == nil || cfg.Software.Name == "" || cfg.Software.Version == "" || cfg.Software.CommitHash == "" {
		return nil, errors.New("verification software identity is not configured")
	}
	if cfg.Clock == nil {
		cfg.Clock = startup.NewClock()
	}
	return &Verifier{cfg: cfg}, nil
}

// Request identifies the contribution to verify. UserID is the authenticated
// caller: the current contributor, or the coordinator when finalizing.
type Request struct {
	CeremonyID    string
	CircuitID     string
	UserID        string
	BucketName    string
	IsCoordinator bool
}

// outcome carries everything the recording transaction needs about a
// finished worker run.
type outcome struct {
	valid                 bool
	isFinalizing          bool
	zkeyIndex             string
	zkeyFilename          string
	zkeyStoragePath       string
	transcriptFilename    string
	transcriptStoragePath string
	verificationTime      int64
	handlerStarted        int64
}

// VerifyContribution verifies the candidate zkey the caller produced for the
// given circuit. The circuit's worker is started, runs the verification tool
// against the candidate, and is stopped again no matter how the run went.
// The contribution document, timing averages and queue counters are then
// committed in one transaction. Worker failures record the contribution as
// invalid rather than erroring out.
func (v *Verifier) VerifyContribution(ctx context.Context, req *Request) error {
	ctx, span := trace.StartSpan(ctx, "verification.VerifyContribution")
	defer span.End()
	span.AddAttributes(
		trace.StringAttribute("ceremony", req.CeremonyID),
		trace.StringAttribute("circuit", req.CircuitID),
		trace.StringAttribute("userId", req.UserID),
	)
	cfg := params.CoordinatorConfig()
	ctx, cancel := context.WithTimeout(ctx, cfg.VerifyDeadline)
	defer cancel()

	handlerStarted := v.cfg.Clock.Millis()

	ceremony, err := v.cfg.Database.Ceremony(ctx, req.CeremonyID)
	if err != nil {
		return errors.Wrapf(err, "could not get ceremony %s", req.CeremonyID)
	}
	circuit, err := v.cfg.Database.Circuit(ctx, req.CeremonyID, req.CircuitID)
	if err != nil {
		return errors.Wrapf(err, "could not get circuit %s", req.CircuitID)
	}
	participant, err := v.cfg.Database.Participant(ctx, req.CeremonyID, req.UserID)
	if err != nil {
		return errors.Wrapf(err, "could not get participant %s", req.UserID)
	}

	isFinalizing := ceremony.State == types.CeremonyClosed && req.IsCoordinator
	if !isFinalizing {
		if participant.Status != types.StatusContributing {
			return NewPreconditionError(
				"participant %s has status %s and the ceremony is not being finalized",
				req.UserID, participant.Status,
			)
		}
		// CONTRIBUTING only says the participant holds a slot somewhere;
		// the circuit named in the request must be the one they hold.
		if circuit.WaitingQueue.CurrentContributor != req.UserID {
			return NewPreconditionError(
				"participant %s is not the current contributor of circuit %s",
				req.UserID, req.CircuitID,
			)
		}
	}

	o := &outcome{
		isFinalizing:   isFinalizing,
		zkeyIndex:      helpers.FormatZkeyIndex(circuit.WaitingQueue.CompletedContributions + 1),
		handlerStarted: handlerStarted,
	}
	if isFinalizing {
		o.zkeyIndex = helpers.FinalZkeyIndex
	}
	o.zkeyFilename = helpers.ZkeyFilename(circuit.Prefix, o.zkeyIndex)
	o.zkeyStoragePath = helpers.ContributionStoragePath(circuit.Prefix, o.zkeyFilename)
	o.transcriptFilename = helpers.TranscriptFilename(circuit.Prefix, o.zkeyIndex, req.UserID)
	o.transcriptStoragePath = helpers.TranscriptStoragePath(circuit.Prefix, o.transcriptFilename)

	log.WithFields(logrus.Fields{
		"ceremony":   req.CeremonyID,
		"circuit":    req.CircuitID,
		"userId":     req.UserID,
		"zkeyIndex":  o.zkeyIndex,
		"instanceId": circuit.InstanceID,
	}).Info("Verifying contribution")

	verifyStarted := v.cfg.Clock.Millis()
	output, workerErr := v.runWorker(ctx, circuit.InstanceID,
		verificationScript(req.BucketName, o.zkeyStoragePath, o.transcriptStoragePath))
	o.verificationTime = v.cfg.Clock.Millis() - verifyStarted

	if workerErr != nil {
		log.WithError(workerErr).WithFields(logrus.Fields{
			"circuit":    req.CircuitID,
			"instanceId": circuit.InstanceID,
		}).Error("Worker failed, recording contribution as invalid")
	} else {
		o.valid = strings.Contains(output, validContributionMarker)
	}

	if o.valid {
		// Give the transcript upload time to land before recording.
		if err := wait(ctx, cfg.TranscriptSettleDelay); err != nil {
			return err
		}
	} else if err := v.cfg.Blob.Delete(ctx, req.BucketName, o.zkeyStoragePath); err != nil {
		return errors.Wrapf(err, "could not delete rejected zkey %s", o.zkeyStoragePath)
	}

	if err := v.recordContribution(ctx, req, o); err != nil {
		return err
	}

	if o.valid {
		validContributionsTotal.Inc()
	} else {
		invalidContributionsTotal.Inc()
	}
	verifyContributionMilliseconds.Observe(float64(v.cfg.Clock.Millis() - handlerStarted))
	log.WithFields(logrus.Fields{
		"circuit":   req.CircuitID,
		"userId":    req.UserID,
		"zkeyIndex": o.zkeyIndex,
		"valid":     o.valid,
	}).Info("Contribution verified")
	return nil
}

// runWorker starts the circuit's worker, executes the verification script on
// it and returns the combined command output. The worker is stopped on every
// exit path, the handler deadline included.
func (v *Verifier) runWorker(ctx context.Context, instanceID string, commands []string) (string, error) {
	defer func() {
		if err := v.cfg.Workers.Stop(context.Background(), instanceID); err != nil {
			log.WithError(err).WithField("instanceId", instanceID).Error("Could not stop worker")
		}
	}()

	if err := v.cfg.Workers.Start(ctx, instanceID); err != nil {
		return "", errors.Wrapf(err, "could not start worker %s", instanceID)
	}
	if err := v.waitForWorker(ctx, instanceID); err != nil {
		return "", err
	}
	commandID, err := v.cfg.Workers.RunCommand(ctx, instanceID, commands)
	if err != nil {
		return "", errors.Wrapf(err, "could not run verification command on worker %s", instanceID)
	}
	return v.waitForCommand(ctx, commandID, instanceID)
}

// waitForWorker polls the worker until it reports running. Exhausting the
// startup deadline only logs a warning: a worker that never came up fails
// the command run right after.
func (v *Verifier) waitForWorker(ctx context.Context, instanceID string) error {
	cfg := params.CoordinatorConfig()
	deadline := time.Now().Add(cfg.WorkerStartupDeadline)
	for {
		running, err := v.cfg.Workers.IsRunning(ctx, instanceID)
		if err != nil {
			return errors.Wrapf(err, "could not probe worker %s", instanceID)
		}
		if running {
			return nil
		}
		if time.Now().After(deadline) {
			log.WithField("instanceId", instanceID).Warn("Worker still not running after startup deadline")
			return nil
		}
		if err := wait(ctx, cfg.WorkerPollInterval); err != nil {
			return err
		}
	}
}

// waitForCommand polls the command invocation until it terminates and
// returns its combined output. A failed or stuck command never validates a
// contribution.
func (v *Verifier) waitForCommand(ctx context.Context, commandID, instanceID string) (string, error) {
	cfg := params.CoordinatorConfig()
	deadline := time.Now().Add(cfg.CommandDeadline)
	for {
		out, err := v.cfg.Workers.FetchOutput(ctx, commandID, instanceID)
		if err != nil {
			return "", errors.Wrapf(err, "could not fetch output of command %s", commandID)
		}
		switch {
		case out.State == vm.StateSuccess:
			return out.Output, nil
		case out.State == vm.StateFailed:
			return "", errors.Errorf("verification command %s failed: %s", commandID, out.Output)
		case time.Now().After(deadline):
			return "", errors.Errorf("verification command %s still pending after deadline", commandID)
		}
		if err := wait(ctx, cfg.CommandPollInterval); err != nil {
			return "", err
		}
	}
}

// recordContribution commits the contribution document and, outside
// finalization, the circuit's timing averages and queue counters in one
// transaction. The valid path resolves the participant's unique pending
// contribution entry; zero or several candidates abort the recording.
func (v *Verifier) recordContribution(ctx context.Context, req *Request, o *outcome) error {
	return v.cfg.Database.RunTransaction(ctx, func(tx iface.Transaction) error {
		contribution := &types.Contribution{
			ParticipantID:               req.UserID,
			VerificationComputationTime: o.verificationTime,
			ZkeyIndex:                   o.zkeyIndex,
			Valid:                       o.valid,
		}
		var fullContribution int64
		if o.valid {
			p, err := tx.Participant(req.CeremonyID, req.UserID)
			if err != nil {
				return errors.Wrapf(err, "could not get participant %s", req.UserID)
			}
			entry, err := pendingContribution(p)
			if err != nil {
				return err
			}
			contribution.ContributionComputationTime = entry.ComputationTime
			contribution.Files = &types.ContributionFiles{
				TranscriptFilename:    o.transcriptFilename,
				LastZkeyFilename:      o.zkeyFilename,
				TranscriptStoragePath: o.transcriptStoragePath,
				LastZkeyStoragePath:   o.zkeyStoragePath,
				LastZkeyBlake2bHash:   entry.Hash,
				// The transcript hash stays empty until the worker
				// reports it.
			}
			software := *v.cfg.Software
			contribution.VerificationSoftware = &software
			fullContribution = p.VerificationStartedAt - p.ContributionStartedAt
		}

		if !o.isFinalizing {
			circuit, err := tx.Circuit(req.CeremonyID, req.CircuitID)
			if err != nil {
				return errors.Wrapf(err, "could not get circuit %s", req.CircuitID)
			}
			if o.valid {
				timings := circuit.AvgTimings
				timings.ContributionComputation = helpers.UpdateAverage(timings.ContributionComputation, contribution.ContributionComputationTime)
				timings.FullContribution = helpers.UpdateAverage(timings.FullContribution, fullContribution)
				timings.VerifyCloudFunction = helpers.UpdateAverage(timings.VerifyCloudFunction, v.cfg.Clock.Millis()-o.handlerStarted)
				circuit.AvgTimings = timings
				circuit.WaitingQueue.CompletedContributions++
			} else {
				circuit.WaitingQueue.FailedContributions++
			}
			if err := tx.SaveCircuit(req.CeremonyID, circuit); err != nil {
				return errors.Wrap(err, "could not save circuit")
			}
		}

		return tx.SaveContribution(req.CeremonyID, req.CircuitID, contribution)
	})
}

// pendingContribution returns the unique entry in the participant's
// contribution records that is awaiting its document reference.
func pendingContribution(p *types.Participant) (*types.ParticipantContribution, error) {
	var found *types.ParticipantContribution
	count := 0
	for i := range p.Contributions {
		entry := &p.Contributions[i]
		if entry.Hash != "" && entry.ComputationTime != 0 && entry.Doc == "" {
			found = entry
			count++
		}
	}
	if count != 1 {
		return nil, NewPreconditionError(
			"expected exactly one pending contribution entry for %s, found %d", p.UserID, count)
	}
	return found, nil
}

// wait sleeps for the given duration unless the context ends first.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
