package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-gig-live/pkg/pubsub"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/cache"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/config"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/hub"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/testutil"
)

var chatConfig = config.ChatConfig{
	MaxContentLength: 20,
	DefaultPageSize:  50,
	MaxPageSize:      100,
}

type emitRecord struct {
	Room    string
	Event   string
	Payload interface{}
	Except  string
}

type sendRecord struct {
	ClientID string
	Event    string
	Payload  interface{}
}

// fakeRooms is an in-memory Multiplexer that records traffic.
type fakeRooms struct {
	mu      sync.Mutex
	members map[string]map[string]bool
	emits   []emitRecord
	sends   []sendRecord
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{members: make(map[string]map[string]bool)}
}

func (f *fakeRooms) Join(c *hub.Client, room string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[room] == nil {
		f.members[room] = make(map[string]bool)
	}
	f.members[room][c.ID] = true
	return true
}

func (f *fakeRooms) Leave(c *hub.Client, room string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.members[room][c.ID] {
		return false
	}
	delete(f.members[room], c.ID)
	return true
}

func (f *fakeRooms) InRoom(c *hub.Client, room string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[room][c.ID]
}

func (f *fakeRooms) Send(c *hub.Client, event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sendRecord{ClientID: c.ID, Event: event, Payload: payload})
	return nil
}

func (f *fakeRooms) EmitToRoom(room, event string, payload interface{}) (int, error) {
	return f.EmitToRoomExcept(room, event, payload, "")
}

func (f *fakeRooms) EmitToRoomExcept(room, event string, payload interface{}, exceptID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emitRecord{Room: room, Event: event, Payload: payload, Except: exceptID})
	n := 0
	for id := range f.members[room] {
		if id != exceptID {
			n++
		}
	}
	return n, nil
}

func (f *fakeRooms) EmitToUser(userID, event string, payload interface{}) (int, error) {
	return f.EmitToRoom(domain.UserRoom(userID), event, payload)
}

func (f *fakeRooms) emitsTo(room string) []emitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitRecord
	for _, e := range f.emits {
		if e.Room == room {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeRooms) sendsTo(clientID string) []sendRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sendRecord
	for _, s := range f.sends {
		if s.ClientID == clientID {
			out = append(out, s)
		}
	}
	return out
}

type failingEmitter struct{}

func (failingEmitter) EmitToRoom(string, string, interface{}) (int, error) {
	return 0, errors.New("socket server down")
}

func (failingEmitter) EmitToUser(string, string, interface{}) (int, error) {
	return 0, errors.New("socket server down")
}

type panickingEmitter struct{}

func (panickingEmitter) EmitToRoom(string, string, interface{}) (int, error) {
	panic("emit exploded")
}

func (panickingEmitter) EmitToUser(string, string, interface{}) (int, error) {
	panic("emit exploded")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]*pubsub.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[string][]*pubsub.Event)}
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[topic] = append(p.events[topic], event)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) topic(name string) []*pubsub.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[name]
}

// env wires every service against one in-memory database.
type env struct {
	db            *gorm.DB
	clock         *testutil.Clock
	rooms         *fakeRooms
	publisher     *recordingPublisher
	gate          *RoomGate
	directory     *UserDirectory
	chat          ChatService
	conversations ConversationService
	notifications NotificationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock()
	rooms := newFakeRooms()
	publisher := newRecordingPublisher()

	users := repository.NewGormUserRepository(db)
	gate := NewRoomGate(repository.NewConversationThreadStore(db), repository.NewTaskThreadStore(db))
	directory := NewUserDirectory(users, cache.NoopCache{}, time.Minute)
	withClock := WithClock(clock.Now)

	notifications := NewNotificationService(repository.NewGormNotificationRepository(db), rooms, publisher, chatConfig, withClock)
	conversations := NewConversationService(
		repository.NewGormConversationRepository(db),
		repository.NewGormMessageRepository(db),
		users, gate, directory, publisher, chatConfig, withClock,
	)
	chat := NewChatService(rooms, gate, directory, conversations, notifications, publisher, chatConfig, withClock)

	return &env{
		db:            db,
		clock:         clock,
		rooms:         rooms,
		publisher:     publisher,
		gate:          gate,
		directory:     directory,
		chat:          chat,
		conversations: conversations,
		notifications: notifications,
	}
}

func newClient(id, userID string) *hub.Client {
	return hub.NewClient(id, &domain.Identity{UserID: userID, Name: "User " + userID}, nil, nil, config.WebSocketConfig{})
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
