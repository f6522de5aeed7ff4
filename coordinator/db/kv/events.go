package kv

import (
	"github.com/cryptocole01/p0tion/coordinator/core/feed"
	contributionfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/contribution"
	participantfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/participant"
)

// enqueueEvents stages committed document events for delivery. Delivery
// happens on the store's dispatcher goroutine, never on the committing
// goroutine: the coordination services both commit writes and subscribe to
// the feeds, so sending from the committer could block on the committer's
// own subscription channel.
func (s *Store) enqueueEvents(events ...*feed.Event) {
	if len(events) == 0 {
		return
	}
	s.feedLock.Lock()
	s.feedQueue = append(s.feedQueue, events...)
	s.feedLock.Unlock()
	s.feedCond.Signal()
}

// deliverEvents drains staged events to the document feeds in commit order.
// It runs for the lifetime of the store and exits once Close is called and
// the queue is empty.
func (s *Store) deliverEvents() {
	defer close(s.feedDone)
	for {
		s.feedLock.Lock()
		for len(s.feedQueue) == 0 && !s.feedClosed {
			s.feedCond.Wait()
		}
		if len(s.feedQueue) == 0 {
			s.feedLock.Unlock()
			return
		}
		evt := s.feedQueue[0]
		s.feedQueue = s.feedQueue[1:]
		s.feedLock.Unlock()

		switch evt.Data.(type) {
		case *participantfeed.UpdatedData:
			s.participantFeed.Send(evt)
		case *contributionfeed.CreatedData:
			s.contributionFeed.Send(evt)
		default:
			log.Errorf("Unknown feed event data type %T", evt.Data)
		}
	}
}
