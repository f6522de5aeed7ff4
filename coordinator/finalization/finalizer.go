// Package finalization seals a closed ceremony: it binds the closing beacon
// to each circuit's final contribution and records the hashes of the exported
// verification key and verifier contract.
package finalization

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/cryptocole01/p0tion/coordinator/blob"
	"github.com/cryptocole01/p0tion/coordinator/core/helpers"
	"github.com/cryptocole01/p0tion/coordinator/db"
	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
	"golang.org/x/crypto/blake2b"
)

var log = logrus.WithField("prefix", "finalization")

var finalizedCircuitsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coordinator",
	Name:      "finalized_circuits_total",
	Help:      "Count of circuits whose final contribution has been sealed.",
})

// Config contains the collaborators a Finalizer needs.
type Config struct {
	Database db.Database
	Blob     blob.Store
}

// Finalizer seals final contributions circuit by circuit.
type Finalizer struct {
	cfg *Config
}

// NewFinalizer returns a Finalizer using the given collaborators.
func NewFinalizer(cfg *Config) *Finalizer {
	return &Finalizer{cfg: cfg}
}

// Request identifies the circuit to finalize. UserID is the authenticated
// coordinator and Beacon the public random value closing the ceremony.
type Request struct {
	CeremonyID string
	CircuitID  string
	UserID     string
	BucketName string
	Beacon     string
}

// FinalizeCircuit downloads the circuit's exported verification key and
// verifier contract, hashes them, and updates the final contribution document
// with the artifact locations, their digests and the beacon record. Once
// every circuit of the ceremony carries its beacon the ceremony itself is
// marked finalized.
func (f *Finalizer) FinalizeCircuit(ctx context.Context, req *Request) error {
	ctx, span := trace.StartSpan(ctx, "finalization.FinalizeCircuit")
	defer span.End()
	span.AddAttributes(
		trace.StringAttribute("ceremony", req.CeremonyID),
		trace.StringAttribute("circuit", req.CircuitID),
	)

	ceremony, err := f.cfg.Database.Ceremony(ctx, req.CeremonyID)
	if err != nil {
		return errors.Wrapf(err, "could not get ceremony %s", req.CeremonyID)
	}
	if ceremony.State != types.CeremonyClosed {
		return NewPreconditionError(
			"ceremony %s has state %s, finalization requires %s",
			req.CeremonyID, ceremony.State, types.CeremonyClosed,
		)
	}
	circuit, err := f.cfg.Database.Circuit(ctx, req.CeremonyID, req.CircuitID)
	if err != nil {
		return errors.Wrapf(err, "could not get circuit %s", req.CircuitID)
	}
	participant, err := f.cfg.Database.Participant(ctx, req.CeremonyID, req.UserID)
	if err != nil {
		return errors.Wrapf(err, "could not get participant %s", req.UserID)
	}
	if participant.Status != types.StatusFinalizing {
		return NewPreconditionError(
			"participant %s has status %s, finalization requires %s",
			req.UserID, participant.Status, types.StatusFinalizing,
		)
	}

	vkeyFilename := helpers.VerificationKeyFilename(circuit.Prefix)
	vkeyStoragePath := helpers.VerificationKeyStoragePath(circuit.Prefix)
	contractFilename := helpers.VerifierContractFilename(circuit.Prefix)
	contractStoragePath := helpers.VerifierContractStoragePath(circuit.Prefix)

	log.WithFields(logrus.Fields{
		"ceremony": req.CeremonyID,
		"circuit":  req.CircuitID,
		"bucket":   req.BucketName,
	}).Info("Finalizing circuit")

	tmpDir, err := os.MkdirTemp("", "finalization")
	if err != nil {
		return errors.Wrap(err, "could not create temporary artifact directory")
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			log.WithError(err).Error("Could not remove temporary artifact directory")
		}
	}()

	vkeyHash, err := f.fetchArtifactHash(ctx, req.BucketName, vkeyStoragePath, filepath.Join(tmpDir, vkeyFilename))
	if err != nil {
		return err
	}
	contractHash, err := f.fetchArtifactHash(ctx, req.BucketName, contractStoragePath, filepath.Join(tmpDir, contractFilename))
	if err != nil {
		return err
	}
	beaconHash := sha256.Sum256([]byte(req.Beacon))

	err = f.cfg.Database.RunTransaction(ctx, func(tx iface.Transaction) error {
		contribution, err := tx.ContributionByZkeyIndex(req.CeremonyID, req.CircuitID, helpers.FinalZkeyIndex)
		if err != nil {
			return errors.Wrapf(err, "could not get final contribution of circuit %s", req.CircuitID)
		}
		if contribution.Files == nil {
			contribution.Files = &types.ContributionFiles{}
		}
		contribution.Files.VerificationKeyFilename = vkeyFilename
		contribution.Files.VerificationKeyStoragePath = vkeyStoragePath
		contribution.Files.VerificationKeyBlake2bHash = vkeyHash
		contribution.Files.VerifierContractFilename = contractFilename
		contribution.Files.VerifierContractStoragePath = contractStoragePath
		contribution.Files.VerifierContractBlake2bHash = contractHash
		contribution.Beacon = &types.Beacon{
			Value: req.Beacon,
			Hash:  hex.EncodeToString(beaconHash[:]),
		}
		if err := tx.SaveContribution(req.CeremonyID, req.CircuitID, contribution); err != nil {
			return errors.Wrap(err, "could not save final contribution")
		}
		return maybeFinalizeCeremony(tx, req.CeremonyID)
	})
	if err != nil {
		return err
	}

	finalizedCircuitsTotal.Inc()
	log.WithFields(logrus.Fields{
		"ceremony": req.CeremonyID,
		"circuit":  req.CircuitID,
	}).Info("Circuit finalized")
	return nil
}

// fetchArtifactHash downloads a finalization artifact to localPath and
// returns the hex encoded BLAKE2b-512 digest of its contents.
func (f *Finalizer) fetchArtifactHash(ctx context.Context, bucket, storagePath, localPath string) (string, error) {
	if err := f.cfg.Blob.Download(ctx, bucket, storagePath, localPath); err != nil {
		return "", errors.Wrapf(err, "could not download %s", storagePath)
	}
	data, err := os.ReadFile(localPath) // #nosec G304
	if err != nil {
		return "", errors.Wrapf(err, "could not read %s", localPath)
	}
	digest := blake2b.Sum512(data)
	return hex.EncodeToString(digest[:]), nil
}

// maybeFinalizeCeremony flips the ceremony to FINALIZED once the final
// contribution of every circuit carries its beacon.
func maybeFinalizeCeremony(tx iface.Transaction, ceremonyID string) error {
	circuits, err := tx.Circuits(ceremonyID)
	if err != nil {
		return errors.Wrap(err, "could not get circuits")
	}
	for _, c := range circuits {
		final, err := tx.ContributionByZkeyIndex(ceremonyID, c.ID, helpers.FinalZkeyIndex)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil
			}
			return errors.Wrapf(err, "could not get final contribution of circuit %s", c.ID)
		}
		if final.Beacon == nil {
			return nil
		}
	}
	ceremony, err := tx.Ceremony(ceremonyID)
	if err != nil {
		return errors.Wrap(err, "could not get ceremony")
	}
	ceremony.State = types.CeremonyFinalized
	if err := tx.SaveCeremony(ceremony); err != nil {
		return errors.Wrap(err, "could not save ceremony")
	}
	log.WithField("ceremony", ceremonyID).Info("Every circuit is finalized, sealing ceremony")
	return nil
}
