package kv

import (
	"context"

	"github.com/cryptocole01/p0tion/coordinator/core/feed"
	contributionfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/contribution"
	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// Contribution retrieves a contribution document by its full path.
func (s *Store) Contribution(ctx context.Context, ceremonyID, circuitID, contributionID string) (*types.Contribution, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.Contribution")
	defer span.End()
	var c *types.Contribution
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt, err := contributionBucket(tx, ceremonyID, circuitID, false)
		if err != nil {
			return err
		}
		var enc []byte
		if bkt != nil {
			enc = bkt.Get([]byte(contributionID))
		}
		if len(enc) == 0 {
			return errors.Wrapf(iface.ErrNotFound, "contribution %s/%s/%s", ceremonyID, circuitID, contributionID)
		}
		c = &types.Contribution{}
		if err := decode(enc, c); err != nil {
			return err
		}
		c.ID = contributionID
		return nil
	})
	return c, err
}

// Contributions retrieves all contribution documents of a circuit.
func (s *Store) Contributions(ctx context.Context, ceremonyID, circuitID string) ([]*types.Contribution, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.Contributions")
	defer span.End()
	var contributions []*types.Contribution
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt, err := contributionBucket(tx, ceremonyID, circuitID, false)
		if err != nil || bkt == nil {
			return err
		}
		return bkt.ForEach(func(k, v []byte) error {
			c := &types.Contribution{}
			if err := decode(v, c); err != nil {
				return err
			}
			c.ID = string(k)
			contributions = append(contributions, c)
			return nil
		})
	})
	return contributions, err
}

// ContributionByZkeyIndex retrieves the contribution document carrying the
// given zkey index, such as the literal "final".
func (s *Store) ContributionByZkeyIndex(ctx context.Context, ceremonyID, circuitID, zkeyIndex string) (*types.Contribution, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.ContributionByZkeyIndex")
	defer span.End()
	var c *types.Contribution
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		c, err = getContributionByZkeyIndex(tx, ceremonyID, circuitID, zkeyIndex)
		return err
	})
	return c, err
}

// SaveContribution writes a contribution document, stamping lastUpdated and
// assigning an id when the document carries none. A creation event is
// delivered on the contribution feed once the write commits; overwrites of
// an existing document deliver nothing.
func (s *Store) SaveContribution(ctx context.Context, ceremonyID, circuitID string, c *types.Contribution) error {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.SaveContribution")
	defer span.End()
	var evt *feed.Event
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		evt, err = stageContribution(tx, ceremonyID, circuitID, c, s.clock.Millis())
		return err
	})
	if err != nil {
		return err
	}
	if evt != nil {
		s.enqueueEvents(evt)
	}
	return nil
}

func getContributionByZkeyIndex(tx *bolt.Tx, ceremonyID, circuitID, zkeyIndex string) (*types.Contribution, error) {
	bkt, err := contributionBucket(tx, ceremonyID, circuitID, false)
	if err != nil {
		return nil, err
	}
	var found *types.Contribution
	if bkt != nil {
		if err := bkt.ForEach(func(k, v []byte) error {
			c := &types.Contribution{}
			if err := decode(v, c); err != nil {
				return err
			}
			if c.ZkeyIndex == zkeyIndex {
				c.ID = string(k)
				found = c
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	if found == nil {
		return nil, errors.Wrapf(iface.ErrNotFound, "contribution with zkey index %s in circuit %s/%s", zkeyIndex, ceremonyID, circuitID)
	}
	return found, nil
}

// stageContribution writes the document and returns the creation event to
// deliver after commit, or nil when an existing document was overwritten.
func stageContribution(tx *bolt.Tx, ceremonyID, circuitID string, c *types.Contribution, now int64) (*feed.Event, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	bkt, err := contributionBucket(tx, ceremonyID, circuitID, true)
	if err != nil {
		return nil, err
	}
	existed := len(bkt.Get([]byte(c.ID))) != 0
	c.LastUpdated = now
	enc, err := encode(c)
	if err != nil {
		return nil, err
	}
	if err := bkt.Put([]byte(c.ID), enc); err != nil {
		return nil, err
	}
	if existed {
		return nil, nil
	}
	created := &types.Contribution{}
	if err := decode(enc, created); err != nil {
		return nil, err
	}
	created.ID = c.ID
	return &feed.Event{
		Type: contributionfeed.Created,
		Data: &contributionfeed.CreatedData{
			CeremonyID:     ceremonyID,
			CircuitID:      circuitID,
			ContributionID: c.ID,
			Contribution:   created,
		},
	}, nil
}
