package testutil

import "sync"

// Event is one published team event.
type Event struct {
	TeamID  string
	Type    string
	Payload interface{}
}

// Drop is one request to end a user's event streams.
type Drop struct {
	TeamID string
	UserID string
}

// Publisher records published events and dropped streams.
type Publisher struct {
	mu     sync.Mutex
	events []Event
	drops  []Drop
}

// PublishTeam records the event.
func (p *Publisher) PublishTeam(teamID, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{TeamID: teamID, Type: eventType, Payload: payload})
}

// DropMember records the drop.
func (p *Publisher) DropMember(teamID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drops = append(p.drops, Drop{TeamID: teamID, UserID: userID})
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Drops returns a copy of every recorded drop.
func (p *Publisher) Drops() []Drop {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Drop(nil), p.drops...)
}
