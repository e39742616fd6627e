package txpool

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/luxfi/mempool/types"
)

// EventKind distinguishes the two event shapes the Announcer fans out.
type EventKind uint8

const (
	EventInserted EventKind = iota
	EventRemoved
)

// Event is a single insertion or removal notification. Reason is
// meaningful only for EventRemoved.
type Event struct {
	Kind   EventKind
	Tx     types.Transaction
	Reason RemovalReason
}

// Announcer broadcasts insertion/removal events to subscribed listeners —
// RPC streams (OnAdd) and the gossip PeerSet — without Pool holding a
// back-reference to its subscribers. It is a thin, purpose-named wrapper
// around github.com/ethereum/go-ethereum/event.Feed/SubscriptionScope.
type Announcer struct {
	feed event.Feed
	subs event.SubscriptionScope
}

func newAnnouncer() *Announcer {
	return &Announcer{}
}

// Subscribe registers ch to receive every future Event until the returned
// Subscription is unsubscribed or the Announcer is closed.
func (a *Announcer) Subscribe(ch chan<- Event) event.Subscription {
	return a.subs.Track(a.feed.Subscribe(ch))
}

// publish fans an event out to all current subscribers. Like
// event.Feed.Send, it blocks until every subscriber's channel has accepted
// the event, so a subscriber with a full channel stalls the caller.
func (a *Announcer) publish(evt Event) {
	a.feed.Send(evt)
}

// Close unsubscribes every listener, used by Pool.Close.
func (a *Announcer) Close() {
	a.subs.Close()
}
