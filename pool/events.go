// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pool

import (
	"sync"

	"github.com/dig-network/chialisten/peer"
)

// EventKind identifies the kind of notification an Event carries (spec
// §4.5.6 subscribe).
type EventKind string

// Recognized event kinds.
const (
	EventPeerConnected    EventKind = "peer_connected"
	EventPeerDisconnected EventKind = "peer_disconnected"
	EventNewPeak          EventKind = "new_peak"
	EventBlockReceived    EventKind = "block_received"
)

// Event is published to subscribers on every kind of pool-level
// occurrence; only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	PeerKey PeerKey
	Reason  string // set on EventPeerDisconnected

	OldPeak *peer.Peak // set on EventNewPeak; nil if this is the first peak observed
	NewPeak *peer.Peak // set on EventNewPeak
	Observer PeerKey   // set on EventNewPeak: the session that reported it

	Height uint32 // set on EventBlockReceived
}

const subscriberBuffer = 64

type subscriber struct {
	kinds map[EventKind]bool
	ch    chan Event
}

// eventBus fans a single publish out to every subscriber whose kind set
// matches, per spec §4.5.6. A slow subscriber never blocks publication:
// an event that would overflow its buffer is dropped for that subscriber,
// logged at trace level, with delivery to every other subscriber
// unaffected.
type eventBus struct {
	mu   sync.Mutex
	subs map[chan Event]*subscriber
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[chan Event]*subscriber)}
}

// subscribe returns a channel that receives every future Event whose Kind
// is in kinds (all kinds, if kinds is empty), and an unsubscribe function.
func (b *eventBus) subscribe(kinds ...EventKind) (<-chan Event, func()) {
	set := make(map[EventKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	ch := make(chan Event, subscriberBuffer)
	sub := &subscriber{kinds: set, ch: ch}

	b.mu.Lock()
	b.subs[ch] = sub
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, sub := range b.subs {
		if len(sub.kinds) > 0 && !sub.kinds[ev.Kind] {
			continue
		}
		select {
		case ch <- ev:
		default:
			log.Tracef("dropping event %s for a slow subscriber", ev.Kind)
		}
	}
}
