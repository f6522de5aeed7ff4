// Package contribution defines the events fired when contribution documents
// are created, together with their data payloads.
package contribution

import (
	"github.com/cryptocole01/p0tion/coordinator/types"
)

const (
	// Created is sent after a contribution document is first written. The
	// refresher consumes it to advance the contributing participant.
	Created = iota + 1
)

// CreatedData is the data sent with Created events.
type CreatedData struct {
	// CeremonyID of the ceremony the contribution belongs to.
	CeremonyID string
	// CircuitID of the circuit the contribution was recorded for.
	CircuitID string
	// ContributionID identifies the new contribution document.
	ContributionID string
	// Contribution is the document as written.
	Contribution *types.Contribution
}
