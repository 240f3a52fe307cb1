package pubsub

// Topics carrying realtime domain events for downstream consumers
// (search indexing, email digests, analytics). Redis uses them as stream
// names, Kafka as topic names.
const (
	TopicMessages      = "realtime.messages"
	TopicNotifications = "realtime.notifications"
)

// Event types.
const (
	EventMessageCreated      = "message.created"
	EventNotificationCreated = "notification.created"
	EventMessagesRead        = "messages.read"
)

// Topics returns every topic the service publishes to.
func Topics() []string {
	return []string{TopicMessages, TopicNotifications}
}

// MessageCreatedPayload is published after a message is persisted.
type MessageCreatedPayload struct {
	MessageID   string `json:"messageId"`
	ThreadKind  string `json:"threadKind"`
	ThreadID    string `json:"threadId"`
	SenderID    string `json:"senderId"`
	MessageType string `json:"messageType"`
	Content     string `json:"content"`
	CreatedAt   int64  `json:"createdAt"`
}

// NotificationCreatedPayload is published after a notification is persisted.
type NotificationCreatedPayload struct {
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
	Type           string `json:"type"`
	Message        string `json:"message"`
	URL            string `json:"url,omitempty"`
	Delivered      int    `json:"delivered"`
}

// MessagesReadPayload is published after a participant marks a thread read.
type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	ReadAt         int64  `json:"readAt"`
}
