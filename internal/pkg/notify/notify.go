// Package notify provides property-change notification for observable state.
package notify

import (
	"github.com/ethereum/go-ethereum/event"
)

// Change describes a single property change on an observable entity.
type Change struct {
	Source   string `json:"source"`   // entity kind, e.g. "account", "status", "transaction"
	Key      string `json:"key"`      // entity identity, e.g. an address or a transaction hash
	Property string `json:"property"` // changed property name
}

// Notifier fans out Change values to subscribers.
// A nil *Notifier is valid and drops every change.
type Notifier struct {
	feed event.Feed
}

// NewNotifier creates a new Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers ch for change notifications. Notify blocks until every
// subscriber has received the change, so subscribers must keep draining ch.
func (n *Notifier) Subscribe(ch chan<- Change) event.Subscription {
	return n.feed.Subscribe(ch)
}

// Notify publishes one change per property.
func (n *Notifier) Notify(source, key string, properties ...string) {
	if n == nil {
		return
	}
	for _, p := range properties {
		n.feed.Send(Change{Source: source, Key: key, Property: p})
	}
}
