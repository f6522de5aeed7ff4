package kv

import (
	"context"

	"github.com/cryptocole01/p0tion/coordinator/core/feed"
	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// txn implements iface.Transaction over a single bolt read-write
// transaction. Bolt admits one writer at a time, which makes every
// read-modify-write against the waiting queues serializable.
type txn struct {
	tx     *bolt.Tx
	now    int64
	events []*feed.Event
}

func (t *txn) Ceremony(ceremonyID string) (*types.Ceremony, error) {
	return getCeremony(t.tx, ceremonyID)
}

func (t *txn) Circuit(ceremonyID, circuitID string) (*types.Circuit, error) {
	return getCircuit(t.tx, ceremonyID, circuitID)
}

func (t *txn) Circuits(ceremonyID string) ([]*types.Circuit, error) {
	return getCircuits(t.tx, ceremonyID)
}

func (t *txn) CircuitBySequencePosition(ceremonyID string, position int) (*types.Circuit, error) {
	return getCircuitBySequencePosition(t.tx, ceremonyID, position)
}

func (t *txn) Participant(ceremonyID, userID string) (*types.Participant, error) {
	return getParticipant(t.tx, ceremonyID, userID)
}

func (t *txn) ContributionByZkeyIndex(ceremonyID, circuitID, zkeyIndex string) (*types.Contribution, error) {
	return getContributionByZkeyIndex(t.tx, ceremonyID, circuitID, zkeyIndex)
}

func (t *txn) SaveCeremony(ceremony *types.Ceremony) error {
	return putCeremony(t.tx, ceremony, t.now)
}

func (t *txn) SaveCircuit(ceremonyID string, circuit *types.Circuit) error {
	return putCircuit(t.tx, ceremonyID, circuit, t.now)
}

func (t *txn) SaveParticipant(ceremonyID string, p *types.Participant) error {
	evt, err := stageParticipant(t.tx, ceremonyID, p, t.now)
	if err != nil {
		return err
	}
	if evt != nil {
		t.events = append(t.events, evt)
	}
	return nil
}

func (t *txn) SaveContribution(ceremonyID, circuitID string, c *types.Contribution) error {
	evt, err := stageContribution(t.tx, ceremonyID, circuitID, c, t.now)
	if err != nil {
		return err
	}
	if evt != nil {
		t.events = append(t.events, evt)
	}
	return nil
}

// RunTransaction executes fn against a consistent read-write view of the
// store. All writes staged by fn commit atomically when fn returns nil; a
// non-nil error discards every write. Document feed events deliver only
// after the commit, from the store's dispatcher goroutine, so a service
// committing from its own feed handler can never block itself.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx iface.Transaction) error) error {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.RunTransaction")
	defer span.End()
	t := &txn{now: s.clock.Millis()}
	if err := s.db.Update(func(btx *bolt.Tx) error {
		t.tx = btx
		return fn(t)
	}); err != nil {
		return err
	}
	s.enqueueEvents(t.events...)
	return nil
}
