package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ThreadKind tags the two kinds of chat thread.
type ThreadKind string

const (
	ThreadConversation ThreadKind = "conversation"
	ThreadTask         ThreadKind = "task"
)

// Room key prefixes.
const (
	RoomPrefixUser         = "user:"
	RoomPrefixConversation = "conversation:"
	RoomPrefixTask         = "task:"
)

var ErrInvalidThread = errors.New("invalid thread")

// Valid reports whether k is a known kind.
func (k ThreadKind) Valid() bool {
	return k == ThreadConversation || k == ThreadTask
}

// MessageEvent is the outbound event carrying new messages of this kind.
func (k ThreadKind) MessageEvent() string {
	if k == ThreadTask {
		return EventReceiveMessage
	}
	return EventNewMessage
}

// NotifiesOnMessage reports whether a send notifies the other participants.
// Task threads have no unread accounting, so they rely on notifications.
func (k ThreadKind) NotifiesOnMessage() bool {
	return k == ThreadTask
}

// TracksUnread reports whether read state is kept per participant.
func (k ThreadKind) TracksUnread() bool {
	return k == ThreadConversation
}

// ThreadRef names one thread.
type ThreadRef struct {
	Kind ThreadKind `json:"kind"`
	ID   string     `json:"id"`
}

// ConversationRef names a conversation thread.
func ConversationRef(id string) ThreadRef {
	return ThreadRef{Kind: ThreadConversation, ID: id}
}

// TaskRef names a task thread.
func TaskRef(id string) ThreadRef {
	return ThreadRef{Kind: ThreadTask, ID: id}
}

// Validate checks kind and id.
func (r ThreadRef) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidThread, r.Kind)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing %s id", ErrInvalidThread, r.Kind)
	}
	return nil
}

// RoomKey returns the multiplexer room of the thread.
func (r ThreadRef) RoomKey() string {
	return string(r.Kind) + ":" + r.ID
}

func (r ThreadRef) String() string {
	return r.RoomKey()
}

// UserRoom returns the personal room of a user.
func UserRoom(userID string) string {
	return RoomPrefixUser + userID
}
