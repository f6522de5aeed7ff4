package kv

import (
	"context"

	"github.com/cryptocole01/p0tion/coordinator/core/feed"
	participantfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/participant"
	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// Participant retrieves a participant document by ceremony and user id.
func (s *Store) Participant(ctx context.Context, ceremonyID, userID string) (*types.Participant, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.Participant")
	defer span.End()
	var p *types.Participant
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		p, err = getParticipant(tx, ceremonyID, userID)
		return err
	})
	return p, err
}

// Participants retrieves all participant documents of a ceremony.
func (s *Store) Participants(ctx context.Context, ceremonyID string) ([]*types.Participant, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.Participants")
	defer span.End()
	var participants []*types.Participant
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt, err := nestedBucket(tx, participantsBucket, ceremonyID, false)
		if err != nil || bkt == nil {
			return err
		}
		return bkt.ForEach(func(k, v []byte) error {
			p := &types.Participant{}
			if err := decode(v, p); err != nil {
				return err
			}
			p.UserID = string(k)
			participants = append(participants, p)
			return nil
		})
	})
	return participants, err
}

// SaveParticipant writes a participant document, stamping lastUpdated. When
// the document already existed, an update event carrying the before and
// after images is delivered on the participant feed once the write commits.
func (s *Store) SaveParticipant(ctx context.Context, ceremonyID string, p *types.Participant) error {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.SaveParticipant")
	defer span.End()
	var evt *feed.Event
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		evt, err = stageParticipant(tx, ceremonyID, p, s.clock.Millis())
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

func getParticipant(tx *bolt.Tx, ceremonyID, userID string) (*types.Participant, error) {
	bkt, err := nestedBucket(tx, participantsBucket, ceremonyID, false)
	if err != nil {
		return nil, err
	}
	var enc []byte
	if bkt != nil {
		enc = bkt.Get([]byte(userID))
	}
	if len(enc) == 0 {
		return nil, errors.Wrapf(iface.ErrNotFound, "participant %s/%s", ceremonyID, userID)
	}
	p := &types.Participant{}
	if err := decode(enc, p); err != nil {
		return nil, err
	}
	p.UserID = userID
	return p, nil
}

// stageParticipant writes the document and returns the update event to
// deliver after commit. A nil event means the document was created, which
// does not trigger coordination.
func stageParticipant(tx *bolt.Tx, ceremonyID string, p *types.Participant, now int64) (*feed.Event, error) {
	if p.UserID == "" {
		return nil, errors.New("participant user id required")
	}
	bkt, err := nestedBucket(tx, participantsBucket, ceremonyID, true)
	if err != nil {
		return nil, err
	}
	var before *types.Participant
	if enc := bkt.Get([]byte(p.UserID)); len(enc) != 0 {
		before = &types.Participant{}
		if err := decode(enc, before); err != nil {
			return nil, err
		}
		before.UserID = p.UserID
	}
	p.LastUpdated = now
	enc, err := encode(p)
	if err != nil {
		return nil, err
	}
	if err := bkt.Put([]byte(p.UserID), enc); err != nil {
		return nil, err
	}
	if before == nil {
		return nil, nil
	}
	// Decode the committed bytes into a fresh snapshot so feed consumers
	// never observe later mutations of the caller's struct.
	after := &types.Participant{}
	if err := decode(enc, after); err != nil {
		return nil, err
	}
	after.UserID = p.UserID
	return &feed.Event{
		Type: participantfeed.Updated,
		Data: &participantfeed.UpdatedData{
			CeremonyID: ceremonyID,
			UserID:     p.UserID,
			Before:     before,
			After:      after,
		},
	}, nil
}
