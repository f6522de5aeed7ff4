package participant

import "github.com/ethereum/go-ethereum/event"

// Notifier interface defines the methods of the service that provides
// participant document updates to consumers.
type Notifier interface {
	ParticipantFeed() *event.Feed
}
