package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/testutil"
)

func TestRoomGate_AuthorizeJoin(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedConversation(t, db, "c1", testutil.NewClock().Now(), "alice", "bob")
	testutil.SeedTask(t, db, "t1", "client", "freelancer")
	gate := NewRoomGate(repository.NewConversationThreadStore(db), repository.NewTaskThreadStore(db))
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		ref    domain.ThreadRef
		want   bool
	}{
		{"conversation member", "alice", domain.ConversationRef("c1"), true},
		{"conversation outsider", "carol", domain.ConversationRef("c1"), false},
		{"unknown conversation", "alice", domain.ConversationRef("c2"), false},
		{"task client", "client", domain.TaskRef("t1"), true},
		{"task freelancer", "freelancer", domain.TaskRef("t1"), true},
		{"task outsider", "alice", domain.TaskRef("t1"), false},
		{"conversation id used as task", "alice", domain.TaskRef("c1"), false},
		{"anonymous", "", domain.ConversationRef("c1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := gate.AuthorizeJoin(ctx, tt.userID, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err := gate.AuthorizeJoin(ctx, "alice", domain.ThreadRef{Kind: "board", ID: "b1"})
	assert.ErrorIs(t, err, domain.ErrInvalidThread)

	onlyTasks := NewRoomGate(repository.NewTaskThreadStore(db))
	_, err = onlyTasks.AuthorizeJoin(ctx, "alice", domain.ConversationRef("c1"))
	assert.ErrorIs(t, err, domain.ErrInvalidThread)

	ids, err := gate.Participants(ctx, domain.TaskRef("t1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"client", "freelancer"}, ids)
}
