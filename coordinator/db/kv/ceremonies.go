package kv

import (
	"context"

	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// Ceremony retrieves a ceremony document by id.
func (s *Store) Ceremony(ctx context.Context, ceremonyID string) (*types.Ceremony, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.Ceremony")
	defer span.End()
	var ceremony *types.Ceremony
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		ceremony, err = getCeremony(tx, ceremonyID)
		return err
	})
	return ceremony, err
}

// Ceremonies retrieves all ceremony documents.
func (s *Store) Ceremonies(ctx context.Context) ([]*types.Ceremony, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.Ceremonies")
	defer span.End()
	var ceremonies []*types.Ceremony
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(ceremoniesBucket).ForEach(func(k, v []byte) error {
			c := &types.Ceremony{}
			if err := decode(v, c); err != nil {
				return err
			}
			c.ID = string(k)
			ceremonies = append(ceremonies, c)
			return nil
		})
	})
	return ceremonies, err
}

// SaveCeremony writes a ceremony document, stamping lastUpdated.
func (s *Store) SaveCeremony(ctx context.Context, ceremony *types.Ceremony) error {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.SaveCeremony")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return putCeremony(tx, ceremony, s.clock.Millis())
	})
}

func getCeremony(tx *bolt.Tx, ceremonyID string) (*types.Ceremony, error) {
	enc := tx.Bucket(ceremoniesBucket).Get([]byte(ceremonyID))
	if len(enc) == 0 {
		return nil, errors.Wrapf(iface.ErrNotFound, "ceremony %s", ceremonyID)
	}
	c := &types.Ceremony{}
	if err := decode(enc, c); err != nil {
		return nil, err
	}
	c.ID = ceremonyID
	return c, nil
}

func putCeremony(tx *bolt.Tx, ceremony *types.Ceremony, now int64) error {
	if ceremony.ID == "" {
		return errors.New("ceremony id required")
	}
	ceremony.LastUpdated = now
	enc, err := encode(ceremony)
	if err != nil {
		return err
	}
	return tx.Bucket(ceremoniesBucket).Put([]byte(ceremony.ID), enc)
}
