package domain

import "time"

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name      string    `gorm:"type:varchar(100);not null"`
	Avatar    string    `gorm:"type:varchar(500)"`
	Role      string    `gorm:"type:varchar(20);not null;default:'CLIENT'"`
	Suspended bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToDomain() *User {
	return &User{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		Avatar:    m.Avatar,
		Role:      m.Role,
		Suspended: m.Suspended,
		CreatedAt: m.CreatedAt,
	}
}

// TaskModel is the GORM model for the tasks table.
type TaskModel struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Title        string    `gorm:"type:varchar(200);not null"`
	ClientID     string    `gorm:"type:varchar(36);index;not null"`
	FreelancerID *string   `gorm:"type:varchar(36);index"`
	Status       string    `gorm:"type:varchar(20);not null;default:'OPEN'"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (TaskModel) TableName() string {
	return "tasks"
}

func (m *TaskModel) ToDomain() *Task {
	t := &Task{
		ID:        m.ID,
		Title:     m.Title,
		ClientID:  m.ClientID,
		Status:    m.Status,
		UpdatedAt: m.UpdatedAt,
	}
	if m.FreelancerID != nil {
		t.FreelancerID = *m.FreelancerID
	}
	return t
}

// ConversationModel is the GORM model for the conversations table.
type ConversationModel struct {
	ID           string                         `gorm:"type:varchar(36);primaryKey"`
	CreatedAt    time.Time                      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time                      `gorm:"index"`
	Participants []ConversationParticipantModel `gorm:"foreignKey:ConversationID"`
}

func (ConversationModel) TableName() string {
	return "conversations"
}

func (m *ConversationModel) ToDomain() *Conversation {
	c := &Conversation{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for i := range m.Participants {
		c.Participants = append(c.Participants, *m.Participants[i].ToDomain())
	}
	return c
}

// ConversationParticipantModel is keyed by (conversation_id, user_id).
type ConversationParticipantModel struct {
	ConversationID string    `gorm:"type:varchar(36);primaryKey"`
	UserID         string    `gorm:"type:varchar(36);primaryKey;index"`
	LastReadAt     time.Time `gorm:"not null"`
	JoinedAt       time.Time `gorm:"not null"`
}

func (ConversationParticipantModel) TableName() string {
	return "conversation_participants"
}

func (m *ConversationParticipantModel) ToDomain() *Participant {
	return &Participant{
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		LastReadAt:     m.LastReadAt,
		JoinedAt:       m.JoinedAt,
	}
}

// MessageModel is the GORM model for the messages table. Both thread kinds
// share the table; (thread_kind, thread_id, created_at, id) is the read path.
type MessageModel struct {
	ID          string    `gorm:"type:varchar(26);primaryKey;index:idx_messages_thread,priority:4"`
	ThreadKind  string    `gorm:"type:varchar(20);not null;index:idx_messages_thread,priority:1"`
	ThreadID    string    `gorm:"type:varchar(36);not null;index:idx_messages_thread,priority:2"`
	SenderID    string    `gorm:"type:varchar(36);not null;index"`
	Content     string    `gorm:"type:text;not null"`
	MessageType string    `gorm:"type:varchar(10);not null;default:'TEXT'"`
	CreatedAt   time.Time `gorm:"not null;index:idx_messages_thread,priority:3"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:        m.ID,
		Thread:    ThreadRef{Kind: ThreadKind(m.ThreadKind), ID: m.ThreadID},
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      MessageType(m.MessageType),
		CreatedAt: m.CreatedAt,
	}
}

func MessageToModel(m *Message) *MessageModel {
	return &MessageModel{
		ID:          m.ID,
		ThreadKind:  string(m.Thread.Kind),
		ThreadID:    m.Thread.ID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		MessageType: string(m.Type),
		CreatedAt:   m.CreatedAt,
	}
}

// NotificationModel is the GORM model for the notifications table.
type NotificationModel struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	UserID      string    `gorm:"type:varchar(36);not null;index:idx_notifications_user,priority:1"`
	Type        string    `gorm:"type:varchar(40);not null;index"`
	Message     string    `gorm:"type:text;not null"`
	URL         string    `gorm:"type:varchar(500)"`
	TaskID      *string   `gorm:"type:varchar(36)"`
	BidID       *string   `gorm:"type:varchar(36)"`
	MilestoneID *string   `gorm:"type:varchar(36)"`
	IsRead      bool      `gorm:"not null;default:false;index:idx_notifications_user,priority:2"`
	CreatedAt   time.Time `gorm:"not null;index:idx_notifications_user,priority:3"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func (m *NotificationModel) ToDomain() *Notification {
	return &Notification{
		ID:          m.ID,
		UserID:      m.UserID,
		Type:        NotificationType(m.Type),
		Message:     m.Message,
		URL:         m.URL,
		TaskID:      deref(m.TaskID),
		BidID:       deref(m.BidID),
		MilestoneID: deref(m.MilestoneID),
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
}

func NotificationToModel(n *Notification) *NotificationModel {
	return &NotificationModel{
		ID:          n.ID,
		UserID:      n.UserID,
		Type:        string(n.Type),
		Message:     n.Message,
		URL:         n.URL,
		TaskID:      optional(n.TaskID),
		BidID:       optional(n.BidID),
		MilestoneID: optional(n.MilestoneID),
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
}

// Models lists every table for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&UserModel{},
		&TaskModel{},
		&ConversationModel{},
		&ConversationParticipantModel{},
		&MessageModel{},
		&NotificationModel{},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
