package world

import (
	"log"

	"lastoasis.ai/internal/protocol"
)

// EventHook observes every appended event. Hooks run on the world loop and
// must not block; a panicking hook is logged and skipped.
type EventHook func(protocol.Event)

// Subscription delivers events appended after it was opened. C is closed
// when the subscriber is removed, including when it falls behind.
type Subscription struct {
	ID uint64
	C  <-chan protocol.Event

	ch chan protocol.Event
}

// EventLog is the bounded, append-only history of world effects.
type EventLog struct {
	max    int
	events []protocol.Event

	clock  Clock
	newID  func() string
	logger *log.Logger

	hooks   []EventHook
	subs    map[uint64]*Subscription
	nextSub uint64

	appended uint64
	lagged   uint64
}

func newEventLog(max int, clock Clock, newID func() string, logger *log.Logger) *EventLog {
	return &EventLog{
		max:    max,
		events: make([]protocol.Event, 0, max),
		clock:  clock,
		newID:  newID,
		logger: logger,
		subs:   map[uint64]*Subscription{},
	}
}

// Append stamps ev with an id and timestamp, fans it out, then trims the
// history. Subscribers see every append even if it is trimmed right away.
func (l *EventLog) Append(ev protocol.Event) protocol.Event {
	ev.ID = l.newID()
	ev.TS = l.clock.Now()
	l.events = append(l.events, ev)
	l.appended++

	l.fanOut(ev)

	if over := len(l.events) - l.max; over > 0 {
		n := copy(l.events, l.events[over:])
		for i := n; i < len(l.events); i++ {
			l.events[i] = protocol.Event{}
		}
		l.events = l.events[:n]
	}
	return ev
}

func (l *EventLog) fanOut(ev protocol.Event) {
	for i, h := range l.hooks {
		l.callHook(i, h, ev)
	}
	for id, s := range l.subs {
		select {
		case s.ch <- ev:
		default:
			// A full buffer means the subscriber can no longer see a gapless
			// stream; drop it so it reconnects for a fresh snapshot.
			close(s.ch)
			delete(l.subs, id)
			l.lagged++
			l.logger.Printf("event subscriber %d lagging, dropped", id)
		}
	}
}

func (l *EventLog) callHook(i int, h EventHook, ev protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("event hook %d panic on %s: %v", i, ev.Type, r)
		}
	}()
	h(ev)
}

func (l *EventLog) addHook(h EventHook) {
	if h != nil {
		l.hooks = append(l.hooks, h)
	}
}

func (l *EventLog) subscribe(buf int) *Subscription {
	if buf <= 0 {
		buf = 256
	}
	l.nextSub++
	ch := make(chan protocol.Event, buf)
	s := &Subscription{ID: l.nextSub, C: ch, ch: ch}
	l.subs[s.ID] = s
	return s
}

func (l *EventLog) unsubscribe(id uint64) {
	s, ok := l.subs[id]
	if !ok {
		return
	}
	close(s.ch)
	delete(l.subs, id)
}

// Events returns a copy of the retained history, oldest first.
func (l *EventLog) Events() []protocol.Event {
	out := make([]protocol.Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *EventLog) Len() int         { return len(l.events) }
func (l *EventLog) Subscribers() int { return len(l.subs) }

// restore replaces the history, keeping only the newest max entries.
func (l *EventLog) restore(events []protocol.Event) {
	if over := len(events) - l.max; over > 0 {
		events = events[over:]
	}
	l.events = append(make([]protocol.Event, 0, l.max), events...)
}
