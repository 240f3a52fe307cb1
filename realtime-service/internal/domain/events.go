package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Client -> server events.
const (
	EventJoinConversation  = "join_conversation"
	EventJoinRoom          = "join_room"
	EventLeaveConversation = "leave_conversation"
	EventLeaveRoom         = "leave_room"
	EventSendMessage       = "send_message"
	EventMarkAsRead        = "mark_as_read"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventPing              = "ping"
)

// Server -> client events.
const (
	EventNewMessage        = "new_message"
	EventReceiveMessage    = "receive_message"
	EventNewNotification   = "new_notification"
	EventJoinedRoom        = "joined_room"
	EventLeftRoom          = "left_room"
	EventError             = "error"
	EventMessagesRead      = "messages_read"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventPong              = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeNotInRoom     = "NOT_IN_ROOM"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Envelope is an inbound frame.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is an outbound frame.
type OutboundEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ErrorMessage is the payload of an error event.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Code:    code,
		Message: message,
	}
}

// RoomTarget is the payload of join/leave/typing/mark events. Clients send
// either a bare id string or an object naming the thread.
type RoomTarget struct {
	ID             string
	ConversationID string
	TaskID         string
}

// ParseRoomTarget accepts `"id"` or `{"conversationId": ...}` / `{"taskId": ...}`.
func ParseRoomTarget(data json.RawMessage) (RoomTarget, bool) {
	var t RoomTarget
	if len(data) == 0 {
		return t, false
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		t.ID = strings.TrimSpace(id)
		return t, t.ID != ""
	}
	var obj struct {
		ConversationID string `json:"conversationId"`
		TaskID         string `json:"taskId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return t, false
	}
	t.ConversationID = strings.TrimSpace(obj.ConversationID)
	t.TaskID = strings.TrimSpace(obj.TaskID)
	return t, t.ConversationID != "" || t.TaskID != ""
}

// Ref resolves the target. A bare id takes fallback as its kind.
func (t RoomTarget) Ref(fallback ThreadKind) ThreadRef {
	switch {
	case t.ConversationID != "":
		return ConversationRef(t.ConversationID)
	case t.TaskID != "":
		return TaskRef(t.TaskID)
	default:
		return ThreadRef{Kind: fallback, ID: t.ID}
	}
}

// RoomPayload acknowledges a join or leave.
type RoomPayload struct {
	Room string     `json:"room"`
	Kind ThreadKind `json:"kind"`
	ID   string     `json:"id"`
}

// NewRoomPayload builds the ack for ref.
func NewRoomPayload(ref ThreadRef) *RoomPayload {
	return &RoomPayload{Room: ref.RoomKey(), Kind: ref.Kind, ID: ref.ID}
}

// MessagesReadPayload tells a room that a participant caught up.
type MessagesReadPayload struct {
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	ReadAt         time.Time `json:"readAt"`
}

// TypingPayload relays a typing indicator.
type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId,omitempty"`
	TaskID         string `json:"taskId,omitempty"`
}

// NewTypingPayload builds the relay for ref.
func NewTypingPayload(userID string, ref ThreadRef) *TypingPayload {
	p := &TypingPayload{UserID: userID}
	if ref.Kind == ThreadTask {
		p.TaskID = ref.ID
	} else {
		p.ConversationID = ref.ID
	}
	return p
}
