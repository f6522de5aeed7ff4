// Package iface defines the ceremony database interface, separate from its
// implementations to avoid circular dependencies.
package iface

import (
	"context"
	"io"

	"github.com/cryptocole01/p0tion/coordinator/core/feed/contribution"
	"github.com/cryptocole01/p0tion/coordinator/core/feed/participant"
	"github.com/cryptocole01/p0tion/coordinator/types"
)

// ReadOnlyDatabase defines the read surface over the hierarchical ceremony
// collections ceremonies/{id}/{circuits|participants}/{id}[/contributions/{id}].
type ReadOnlyDatabase interface {
	Ceremony(ctx context.Context, ceremonyID string) (*types.Ceremony, error)
	Ceremonies(ctx context.Context) ([]*types.Ceremony, error)
	Circuit(ctx context.Context, ceremonyID, circuitID string) (*types.Circuit, error)
	Circuits(ctx context.Context, ceremonyID string) ([]*types.Circuit, error)
	CircuitBySequencePosition(ctx context.Context, ceremonyID string, position int) (*types.Circuit, error)
	Participant(ctx context.Context, ceremonyID, userID string) (*types.Participant, error)
	Participants(ctx context.Context, ceremonyID string) ([]*types.Participant, error)
	Contribution(ctx context.Context, ceremonyID, circuitID, contributionID string) (*types.Contribution, error)
	Contributions(ctx context.Context, ceremonyID, circuitID string) ([]*types.Contribution, error)
	ContributionByZkeyIndex(ctx context.Context, ceremonyID, circuitID, zkeyIndex string) (*types.Contribution, error)
	DatabasePath() string
}

// Transaction is a consistent read-write view of the store. Reads observe
// writes staged earlier in the same transaction; all staged writes commit
// atomically, and the document feeds deliver only after the commit.
type Transaction interface {
	Ceremony(ceremonyID string) (*types.Ceremony, error)
	Circuit(ceremonyID, circuitID string) (*types.Circuit, error)
	Circuits(ceremonyID string) ([]*types.Circuit, error)
	CircuitBySequencePosition(ceremonyID string, position int) (*types.Circuit, error)
	Participant(ceremonyID, userID string) (*types.Participant, error)
	ContributionByZkeyIndex(ceremonyID, circuitID, zkeyIndex string) (*types.Contribution, error)
	SaveCeremony(ceremony *types.Ceremony) error
	SaveCircuit(ceremonyID string, circuit *types.Circuit) error
	SaveParticipant(ceremonyID string, p *types.Participant) error
	SaveContribution(ceremonyID, circuitID string, c *types.Contribution) error
}

// Database defines the full ceremony store: reads, single-document saves,
// serializable multi-document transactions, and the change feeds consumed by
// the coordination services.
type Database interface {
	ReadOnlyDatabase
	participant.Notifier
	contribution.Notifier
	io.Closer

	SaveCeremony(ctx context.Context, ceremony *types.Ceremony) error
	SaveCircuit(ctx context.Context, ceremonyID string, circuit *types.Circuit) error
	SaveParticipant(ctx context.Context, ceremonyID string, p *types.Participant) error
	SaveContribution(ctx context.Context, ceremonyID, circuitID string, c *types.Contribution) error
	RunTransaction(ctx context.Context, fn func(tx Transaction) error) error
	ClearDB() error
	Backup(ctx context.Context, outputDir string, permissionOverride bool) error
}
