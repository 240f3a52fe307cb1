package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

// SeedUser inserts an active user whose name and email derive from id.
func SeedUser(t *testing.T, db *gorm.DB, id, role string) *domain.UserModel {
	t.Helper()
	u := &domain.UserModel{
		ID:    id,
		Email: id + "@example.com",
		Name:  "User " + id,
		Role:  role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SuspendUser marks an existing user as suspended.
func SuspendUser(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Model(&domain.UserModel{}).Where("id = ?", id).Update("suspended", true).Error)
}

// SeedTask inserts a task; an empty freelancerID leaves it unassigned.
func SeedTask(t *testing.T, db *gorm.DB, id, clientID, freelancerID string) *domain.TaskModel {
	t.Helper()
	task := &domain.TaskModel{
		ID:       id,
		Title:    "Task " + id,
		ClientID: clientID,
		Status:   "IN_PROGRESS",
	}
	if freelancerID != "" {
		task.FreelancerID = &freelancerID
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

// AssignTask changes the task's freelancer.
func AssignTask(t *testing.T, db *gorm.DB, id, freelancerID string) {
	t.Helper()
	require.NoError(t, db.Model(&domain.TaskModel{}).Where("id = ?", id).Update("freelancer_id", freelancerID).Error)
}

// SeedConversation inserts a conversation whose members have read up to at.
func SeedConversation(t *testing.T, db *gorm.DB, id string, at time.Time, userIDs ...string) *domain.ConversationModel {
	t.Helper()
	conv := &domain.ConversationModel{ID: id, CreatedAt: at, UpdatedAt: at}
	for _, uid := range userIDs {
		conv.Participants = append(conv.Participants, domain.ConversationParticipantModel{
			ConversationID: id,
			UserID:         uid,
			LastReadAt:     at,
			JoinedAt:       at,
		})
	}
	require.NoError(t, db.Create(conv).Error)
	return conv
}

// SeedMessage inserts a message directly, bypassing authorization.
func SeedMessage(t *testing.T, db *gorm.DB, id string, ref domain.ThreadRef, senderID, content string, at time.Time) *domain.MessageModel {
	t.Helper()
	m := domain.MessageToModel(&domain.Message{
		ID:        id,
		Thread:    ref,
		SenderID:  senderID,
		Content:   content,
		Type:      domain.MessageText,
		CreatedAt: at,
	})
	require.NoError(t, db.Create(m).Error)
	return m
}

// RemoveParticipant deletes a conversation participant row.
func RemoveParticipant(t *testing.T, db *gorm.DB, conversationID, userID string) {
	t.Helper()
	require.NoError(t, db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&domain.ConversationParticipantModel{}).Error)
}
