package kv

import (
	"context"
	"sort"

	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// Circuit retrieves a circuit document by ceremony and circuit id.
func (s *Store) Circuit(ctx context.Context, ceremonyID, circuitID string) (*types.Circuit, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.Circuit")
	defer span.End()
	var circuit *types.Circuit
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		circuit, err = getCircuit(tx, ceremonyID, circuitID)
		return err
	})
	return circuit, err
}

// Circuits retrieves all circuit documents of a ceremony, ordered by
// sequence position.
func (s *Store) Circuits(ctx context.Context, ceremonyID string) ([]*types.Circuit, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.Circuits")
	defer span.End()
	var circuits []*types.Circuit
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		circuits, err = getCircuits(tx, ceremonyID)
		return err
	})
	return circuits, err
}

// CircuitBySequencePosition retrieves the circuit occupying the given
// 0-based sequence position within a ceremony.
func (s *Store) CircuitBySequencePosition(ctx context.Context, ceremonyID string, position int) (*types.Circuit, error) {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.CircuitBySequencePosition")
	defer span.End()
	var circuit *types.Circuit
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		circuit, err = getCircuitBySequencePosition(tx, ceremonyID, position)
		return err
	})
	return circuit, err
}

// SaveCircuit writes a circuit document, stamping lastUpdated.
func (s *Store) SaveCircuit(ctx context.Context, ceremonyID string, circuit *types.Circuit) error {
	_, span := trace.StartSpan(ctx, "CoordinatorDB.SaveCircuit")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return putCircuit(tx, ceremonyID, circuit, s.clock.Millis())
	})
}

func getCircuit(tx *bolt.Tx, ceremonyID, circuitID string) (*types.Circuit, error) {
	bkt, err := nestedBucket(tx, circuitsBucket, ceremonyID, false)
	if err != nil {
		return nil, err
	}
	var enc []byte
	if bkt != nil {
		enc = bkt.Get([]byte(circuitID))
	}
	if len(enc) == 0 {
		return nil, errors.Wrapf(iface.ErrNotFound, "circuit %s/%s", ceremonyID, circuitID)
	}
	c := &types.Circuit{}
	if err := decode(enc, c); err != nil {
		return nil, err
	}
	c.ID = circuitID
	return c, nil
}

func getCircuits(tx *bolt.Tx, ceremonyID string) ([]*types.Circuit, error) {
	bkt, err := nestedBucket(tx, circuitsBucket, ceremonyID, false)
	if err != nil {
		return nil, err
	}
	if bkt == nil {
		return nil, nil
	}
	var circuits []*types.Circuit
	if err := bkt.ForEach(func(k, v []byte) error {
		c := &types.Circuit{}
		if err := decode(v, c); err != nil {
			return err
		}
		c.ID = string(k)
		circuits = append(circuits, c)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(circuits, func(i, j int) bool {
		return circuits[i].SequencePosition < circuits[j].SequencePosition
	})
	return circuits, nil
}

func getCircuitBySequencePosition(tx *bolt.Tx, ceremonyID string, position int) (*types.Circuit, error) {
	circuits, err := getCircuits(tx, ceremonyID)
	if err != nil {
		return nil, err
	}
	for _, c := range circuits {
		if c.SequencePosition == position {
			return c, nil
		}
	}
	return nil, errors.Wrapf(iface.ErrNotFound, "circuit at sequence position %d in ceremony %s", position, ceremonyID)
}

func putCircuit(tx *bolt.Tx, ceremonyID string, circuit *types.Circuit, now int64) error {
	if circuit.ID == "" {
		return errors.New("circuit id required")
	}
	bkt, err := nestedBucket(tx, circuitsBucket, ceremonyID, true)
	if err != nil {
		return err
	}
	circuit.LastUpdated = now
	enc, err := encode(circuit)
	if err != nil {
		return err
	}
	return bkt.Put([]byte(circuit.ID), enc)
}
