package broker

import (
	"sync"

	"github.com/google/uuid"
)

// SubscriberFunc is a local callback invoked whenever a matching message
// is published, including messages bridged in from inbound wire traffic.
//
// Subscribers run synchronously on the publisher's goroutine and must not
// block for extended periods.
type SubscriberFunc func(messageID string, p *Payload)

// localSubscription is one registered callback.
type localSubscription struct {
	id        string
	messageID string
	fn        SubscriberFunc
}

// subscriberRegistry maps message ids to local callbacks. It is read-heavy:
// written only by Subscribe/Unsubscribe, read on every publish.
type subscriberRegistry struct {
	mu        sync.RWMutex
	byID      map[string]*localSubscription
	byMessage map[string][]*localSubscription
}

func newSubscriberRegistry() *subscriberRegistry {
	return &subscriberRegistry{
		byID:      make(map[string]*localSubscription),
		byMessage: make(map[string][]*localSubscription),
	}
}

// add registers a callback and returns its subscription handle.
func (r *subscriberRegistry) add(messageID string, fn SubscriberFunc) string {
	sub := &localSubscription{
		id:        "sub-" + uuid.NewString()[:8],
		messageID: messageID,
		fn:        fn,
	}

	r.mu.Lock()
	r.byID[sub.id] = sub
	r.byMessage[messageID] = append(r.byMessage[messageID], sub)
	r.mu.Unlock()

	return sub.id
}

// remove unregisters a callback by handle.
func (r *subscriberRegistry) remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	delete(r.byID, id)

	subs := r.byMessage[sub.messageID]
	for i, s := range subs {
		if s.id == id {
			r.byMessage[sub.messageID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.byMessage[sub.messageID]) == 0 {
		delete(r.byMessage, sub.messageID)
	}

	return nil
}

// invoke calls every callback registered for messageID, in registration
// order, on the caller's goroutine.
func (r *subscriberRegistry) invoke(messageID string, p *Payload) {
	r.mu.RLock()
	subs := make([]*localSubscription, len(r.byMessage[messageID]))
	copy(subs, r.byMessage[messageID])
	r.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(messageID, p)
	}
}

// count returns the number of callbacks registered for messageID.
func (r *subscriberRegistry) count(messageID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMessage[messageID])
}
