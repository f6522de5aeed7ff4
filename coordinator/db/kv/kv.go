// Package kv implements the ceremony document database over an embedded
// bolt key-value store.
package kv

import (
	"context"
	"os"
	"path"
	"sync"

	"github.com/cryptocole01/p0tion/config/params"
	"github.com/cryptocole01/p0tion/coordinator/core/feed"
	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/io/file"
	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var log = logrus.WithField("prefix", "db")

// DatabaseFileName is the name of the coordinator database file.
const DatabaseFileName = "coordinator.db"

// Store defines an implementation of the ceremony Database interface using
// bolt as the underlying persistent kv-store. The store owns the document
// feeds: events captured during a write transaction are delivered only after
// the transaction commits, in commit order, from a dispatcher goroutine
// decoupled from the committer.
type Store struct {
	db               *bolt.DB
	databasePath     string
	clock            *startup.Clock
	participantFeed  event.Feed
	contributionFeed event.Feed

	feedLock   sync.Mutex
	feedCond   *sync.Cond
	feedQueue  []*feed.Event
	feedClosed bool
	feedDone   chan struct{}
}

// StoreOption configures the store at construction time.
type StoreOption func(*Store)

// WithClock overrides the clock used to stamp document writes.
func WithClock(c *startup.Clock) StoreOption {
	return func(s *Store) {
		s.clock = c
	}
}

// NewKVStore initializes a new bolt kv-store at the directory path specified,
// creates the kv-buckets based on the schema, and stores an open connection
// db object as a property of the Store struct.
func NewKVStore(_ context.Context, dirPath string, opts ...StoreOption) (*Store, error) {
	if err := file.MkdirAll(dirPath); err != nil {
		return nil, err
	}
	datafile := path.Join(dirPath, DatabaseFileName)
	boltDB, err := bolt.Open(
		datafile,
		params.CoordinatorIoConfig().ReadWritePermissions,
		&bolt.Options{Timeout: params.CoordinatorIoConfig().BoltTimeout, InitialMmapSize: 10e6},
	)
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}

	kv := &Store{
		db:           boltDB,
		databasePath: dirPath,
		feedDone:     make(chan struct{}),
	}
	kv.feedCond = sync.NewCond(&kv.feedLock)
	for _, o := range opts {
		o(kv)
	}
	if kv.clock == nil {
		kv.clock = startup.NewClock()
	}
	go kv.deliverEvents()

	if err := kv.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(
			tx,
			ceremoniesBucket,
			circuitsBucket,
			participantsBucket,
			contributionsBucket,
		)
	}); err != nil {
		return nil, err
	}

	return kv, nil
}

// ClearDB removes the previously stored database in the data directory.
func (s *Store) ClearDB() error {
	if _, err := os.Stat(s.databasePath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path.Join(s.databasePath, DatabaseFileName))
}

// Close drains pending feed events, stops the dispatcher, and closes the
// underlying bolt database.
func (s *Store) Close() error {
	s.feedLock.Lock()
	s.feedClosed = true
	s.feedLock.Unlock()
	s.feedCond.Signal()
	<-s.feedDone
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// ParticipantFeed returns the feed delivering participant document updates.
func (s *Store) ParticipantFeed() *event.Feed {
	return &s.participantFeed
}

// ContributionFeed returns the feed delivering contribution document
// creations.
func (s *Store) ContributionFeed() *event.Feed {
	return &s.contributionFeed
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

// nestedBucket returns the per-ceremony child bucket under root. When create
// is false and the bucket does not exist, both return values are nil.
func nestedBucket(tx *bolt.Tx, root []byte, ceremonyID string, create bool) (*bolt.Bucket, error) {
	rb := tx.Bucket(root)
	if create {
		return rb.CreateBucketIfNotExists([]byte(ceremonyID))
	}
	return rb.Bucket([]byte(ceremonyID)), nil
}

// contributionBucket returns the per-circuit contributions bucket. When
// create is false and any level does not exist, both return values are nil.
func contributionBucket(tx *bolt.Tx, ceremonyID, circuitID string, create bool) (*bolt.Bucket, error) {
	cb := tx.Bucket(contributionsBucket)
	if create {
		b, err := cb.CreateBucketIfNotExists([]byte(ceremonyID))
		if err != nil {
			return nil, err
		}
		return b.CreateBucketIfNotExists([]byte(circuitID))
	}
	b := cb.Bucket([]byte(ceremonyID))
	if b == nil {
		return nil, nil
	}
	return b.Bucket([]byte(circuitID)), nil
}
