package db

import "github.com/cryptocole01/p0tion/coordinator/db/iface"

// ReadOnlyDatabase exposes the ceremony data backend for read access only.
type ReadOnlyDatabase = iface.ReadOnlyDatabase

// Database defines the necessary methods for the coordinator's data backend.
type Database = iface.Database

// Transaction is a consistent read-write view over the ceremony collections.
type Transaction = iface.Transaction

// ErrNotFound is returned by getters when the referenced document is absent.
var ErrNotFound = iface.ErrNotFound
