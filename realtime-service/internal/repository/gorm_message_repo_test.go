package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/testutil"
)

func TestGormMessageRepository_ListByThread(t *testing.T) {
	db := testutil.NewDB(t)
	clock := testutil.NewClock()
	ref := domain.ConversationRef("c1")
	same := clock.Advance(time.Second)
	testutil.SeedMessage(t, db, "01A", ref, "alice", "one", same)
	testutil.SeedMessage(t, db, "01B", ref, "bob", "two", same)
	testutil.SeedMessage(t, db, "01C", ref, "alice", "three", clock.Advance(time.Second))
	testutil.SeedMessage(t, db, "01D", domain.TaskRef("c1"), "alice", "other kind", clock.Advance(time.Second))

	repo := NewGormMessageRepository(db)
	ctx := context.Background()

	msgs, total, err := repo.ListByThread(ctx, ref, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, msgs, 2)
	assert.Equal(t, "01C", msgs[0].ID)
	assert.Equal(t, "01B", msgs[1].ID)

	msgs, _, err = repo.ListByThread(ctx, ref, 2, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "01A", msgs[0].ID)
	assert.Equal(t, ref, msgs[0].Thread)

	latest, err := repo.Latest(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "three", latest.Content)

	latest, err = repo.Latest(ctx, domain.ConversationRef("empty"))
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestGormMessageRepository_CountUnread(t *testing.T) {
	db := testutil.NewDB(t)
	clock := testutil.NewClock()
	ref := domain.ConversationRef("c1")
	t0 := clock.Now()

	testutil.SeedMessage(t, db, "01A", ref, "bob", "before", t0.Add(-time.Minute))
	testutil.SeedMessage(t, db, "01B", ref, "bob", "at", t0)
	testutil.SeedMessage(t, db, "01C", ref, "bob", "after", t0.Add(time.Millisecond))
	testutil.SeedMessage(t, db, "01D", ref, "alice", "own", t0.Add(time.Minute))
	testutil.SeedMessage(t, db, "01E", ref, "carol", "after", t0.Add(time.Hour))

	repo := NewGormMessageRepository(db)
	count, err := repo.CountUnread(context.Background(), ref, "alice", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
