// Package forum tracks websocket participants in named rooms and fans room events out to them.
package forum

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dtroode/mindhealer-server/internal/logger"
)

// MaxRoomNameLength bounds room names in characters.
const MaxRoomNameLength = 64

var (
	ErrInvalidRoom          = errors.New("invalid room name")
	ErrUnknownParticipant   = errors.New("unknown participant")
	ErrParticipantConnected = errors.New("participant already connected")
)

// ParticipantID identifies one live connection.
type ParticipantID string

// Sink receives events for one participant. Deliver must not block; a sink that
// cannot keep up drops the event.
type Sink interface {
	Deliver(Event)
}

type participant struct {
	sink  Sink
	rooms map[string]struct{}
}

// Coordinator holds room membership for the process. All operations are
// linearized by one mutex, and events are handed to sinks before the lock is
// released, so every member observes a room's events in processing order.
type Coordinator struct {
	mu           sync.Mutex
	rooms        map[string]map[ParticipantID]struct{}
	participants map[ParticipantID]*participant
	observer     Observer
	logger       *logger.Logger
}

type Option func(*Coordinator)

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

func NewCoordinator(logger *logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		rooms:        make(map[string]map[ParticipantID]struct{}),
		participants: make(map[ParticipantID]*participant),
		observer:     nopObserver{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect registers sink under a fresh participant id.
func (c *Coordinator) Connect(sink Sink) ParticipantID {
	for {
		id := ParticipantID(uuid.NewString())
		if err := c.ConnectWithID(id, sink); err == nil {
			return id
		}
	}
}

// ConnectWithID registers sink under id.
func (c *Coordinator) ConnectWithID(id ParticipantID, sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.participants[id]; ok {
		return ErrParticipantConnected
	}
	c.participants[id] = &participant{sink: sink, rooms: make(map[string]struct{})}
	c.observer.ParticipantConnected()

	c.logger.Debug("Forum: participant connected", "participant_id", id)

	return nil
}

// Join adds id to room. Joining a room the participant is already in changes
// nothing and emits nothing.
func (c *Coordinator) Join(id ParticipantID, room string) error {
	room, err := NormalizeRoom(room)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.participants[id]
	if !ok {
		return ErrUnknownParticipant
	}
	if _, ok := p.rooms[room]; ok {
		return nil
	}

	members, ok := c.rooms[room]
	if !ok {
		members = make(map[ParticipantID]struct{})
		c.rooms[room] = members
	}
	members[id] = struct{}{}
	p.rooms[room] = struct{}{}

	count := len(members)
	c.broadcast(members, Event{Name: EventRoomUserCount, Data: RoomUserCount{Room: room, Count: count}})
	c.broadcast(members, Event{Name: EventUserJoined, Data: UserJoined{UserID: id, Room: room}})
	c.observer.RoomSize(room, count)

	c.logger.Debug("Forum: participant joined room",
		"participant_id", id,
		"room", room,
		"count", count)

	return nil
}

// Leave removes id from room. It is a no-op when the participant is not a member.
func (c *Coordinator) Leave(id ParticipantID, room string) error {
	room, err := NormalizeRoom(room)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.participants[id]
	if !ok {
		return nil
	}
	c.leave(id, p, room)

	return nil
}

// Send delivers text from id to every member of room, the sender included.
// A message to an empty or unknown room reaches nobody.
func (c *Coordinator) Send(id ParticipantID, room, text string) (int, error) {
	room, err := NormalizeRoom(room)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.participants[id]; !ok {
		return 0, ErrUnknownParticipant
	}

	members := c.rooms[room]
	c.broadcast(members, Event{Name: EventMessage, Data: Message{UserID: id, Room: room, Message: text}})
	c.observer.MessageSent(room, len(members))

	return len(members), nil
}

// Disconnect removes id from every room it joined and forgets it. Unknown ids are ignored.
func (c *Coordinator) Disconnect(id ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.participants[id]
	if !ok {
		return
	}

	rooms := make([]string, 0, len(p.rooms))
	for room := range p.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	for _, room := range rooms {
		c.leave(id, p, room)
	}

	delete(c.participants, id)
	c.observer.ParticipantDisconnected()

	c.logger.Debug("Forum: participant disconnected",
		"participant_id", id,
		"rooms", len(rooms))
}

// Members returns the sorted participant ids in room.
func (c *Coordinator) Members(room string) []ParticipantID {
	c.mu.Lock()
	defer c.mu.Unlock()

	members := c.rooms[strings.TrimSpace(room)]
	ids := make([]ParticipantID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Count returns the number of participants in room.
func (c *Coordinator) Count(room string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.rooms[strings.TrimSpace(room)])
}

// Stats returns the participant count of every non-empty room.
func (c *Coordinator) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := make(map[string]int, len(c.rooms))
	for room, members := range c.rooms {
		stats[room] = len(members)
	}
	return stats
}

// Participants returns the number of connected participants.
func (c *Coordinator) Participants() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.participants)
}

// NormalizeRoom trims name and checks it is a usable room name.
func NormalizeRoom(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxRoomNameLength {
		return "", ErrInvalidRoom
	}
	return name, nil
}

// leave must be called with c.mu held.
func (c *Coordinator) leave(id ParticipantID, p *participant, room string) {
	if _, ok := p.rooms[room]; !ok {
		return
	}
	delete(p.rooms, room)

	members := c.rooms[room]
	delete(members, id)

	count := len(members)
	if count == 0 {
		delete(c.rooms, room)
	} else {
		c.broadcast(members, Event{Name: EventRoomUserCount, Data: RoomUserCount{Room: room, Count: count}})
	}
	c.observer.RoomSize(room, count)

	c.logger.Debug("Forum: participant left room",
		"participant_id", id,
		"room", room,
		"count", count)
}

// broadcast must be called with c.mu held.
func (c *Coordinator) broadcast(members map[ParticipantID]struct{}, event Event) {
	for id := range members {
		if p, ok := c.participants[id]; ok {
			p.sink.Deliver(event)
		}
	}
}
