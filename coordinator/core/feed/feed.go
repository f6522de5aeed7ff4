// Package feed defines the event envelope sent over the coordinator's
// document feeds.
//
// How to add a new event to a feed:
//
//  1. Add a file for the feed type if it does not exist (e.g. participant/).
//  2. Add a constant for the event type, continuing the iota sequence.
//  3. Add a data structure with the name of the event suffixed with Data.
package feed

// Event is the event sent with document feed updates.
type Event struct {
	// Type is the type of event.
	Type int
	// Data is event-specific data.
	Data interface{}
}
