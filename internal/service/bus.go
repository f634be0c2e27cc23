package service

import "sync"

// Event actions.
const (
	ActionSelected = "selected"
	ActionCleared  = "cleared"
	ActionLocated  = "located"
	ActionCreated  = "created"
)

// Event announces a new view for one session.
type Event struct {
	Session string // session ID
	Action  string // one of the Action* constants
	View    View
}

// Subscription receives the events of one session. It holds at most one
// pending event: a newer view replaces an unread older one, so a slow reader
// skips intermediate views but always ends on the latest.
type Subscription struct {
	session string
	ch      chan Event
}

// C returns the event channel. It is closed by Unsubscribe.
func (s *Subscription) C() <-chan Event { return s.ch }

// Session returns the subscribed session ID.
func (s *Subscription) Session() string { return s.session }

// EventBus is a per-session fan-out pub/sub for view change events.
type EventBus struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string]map[*Subscription]struct{})}
}

// Publish delivers an event to the subscribers of its session without
// blocking.
func (b *EventBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[e.Session] {
		select {
		case sub.ch <- e:
		default:
			// replace the stale pending view; publishers are serialized by b.mu
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- e
		}
	}
}

// Subscribe starts receiving the events of one session.
func (b *EventBus) Subscribe(session string) *Subscription {
	sub := &Subscription{session: session, ch: make(chan Event, 1)}
	b.mu.Lock()
	if b.subs[session] == nil {
		b.subs[session] = make(map[*Subscription]struct{})
	}
	b.subs[session][sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[sub.session]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.session)
	}
	close(sub.ch)
}

// Len returns the number of subscriptions across all sessions.
func (b *EventBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

// Subscribers returns the number of subscriptions to one session.
func (b *EventBus) Subscribers(session string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[session])
}
