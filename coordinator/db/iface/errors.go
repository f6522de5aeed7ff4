package iface

import "github.com/pkg/errors"

// ErrNotFound is returned by getters when the referenced document does not
// exist. Handlers treat it as fatal to the invocation without mutating the
// store.
var ErrNotFound = errors.New("document not found")
