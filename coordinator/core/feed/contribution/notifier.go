package contribution

import "github.com/ethereum/go-ethereum/event"

// Notifier interface defines the methods of the service that provides
// contribution document creations to consumers.
type Notifier interface {
	ContributionFeed() *event.Feed
}
