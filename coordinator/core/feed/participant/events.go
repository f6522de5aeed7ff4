// Package participant defines the events fired when participant documents
// change, together with their data payloads.
package participant

import (
	"github.com/cryptocole01/p0tion/coordinator/types"
)

const (
	// Updated is sent after a participant document write commits. It carries
	// the document image from before and after the write so that consumers
	// can classify the transition.
	Updated = iota + 1
)

// UpdatedData is the data sent with Updated events.
type UpdatedData struct {
	// CeremonyID of the ceremony the participant belongs to.
	CeremonyID string
	// UserID identifies the participant document.
	UserID string
	// Before is the document image prior to the write.
	Before *types.Participant
	// After is the document image the write committed.
	After *types.Participant
}
