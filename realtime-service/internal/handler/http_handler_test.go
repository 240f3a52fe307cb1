package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/testutil"
)

func TestHealth(t *testing.T) {
	s := newStack(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestREST_RequiresAuth(t *testing.T) {
	s := newStack(t)
	testutil.SeedUser(t, s.db, "alice", domain.RoleClient)
	testutil.SuspendUser(t, s.db, "alice")

	w := s.do(t, http.MethodGet, "/api/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decode(t, w, nil)
	assert.False(t, env.Success)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w = s.do(t, http.MethodGet, "/api/v1/conversations", "alice", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestREST_ConversationLifecycle(t *testing.T) {
	s := newStack(t)
	testutil.SeedUser(t, s.db, "alice", domain.RoleClient)
	testutil.SeedUser(t, s.db, "bob", domain.RoleFreelancer)
	testutil.SeedUser(t, s.db, "carol", domain.RoleFreelancer)

	w := s.do(t, http.MethodPost, "/api/v1/conversations", "alice", domain.CreateConversationRequest{ParticipantIDs: []string{"bob"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var conv domain.ConversationSummary
	decode(t, w, &conv)
	require.NotEmpty(t, conv.ID)
	assert.Len(t, conv.Participants, 2)

	path := "/api/v1/conversations/" + conv.ID + "/messages"
	w = s.do(t, http.MethodPost, path, "alice", map[string]string{"content": "hi bob"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var msg domain.MessageResponse
	decode(t, w, &msg)
	assert.Equal(t, conv.ID, msg.ConversationID)
	assert.Equal(t, domain.MessageText, msg.MessageType)

	w = s.do(t, http.MethodPost, path, "carol", map[string]string{"content": "hi all"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, path, "alice", map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/conversations", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Conversations []*domain.ConversationSummary `json:"conversations"`
	}
	decode(t, w, &list)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, int64(1), list.Conversations[0].UnreadCount)
	require.NotNil(t, list.Conversations[0].LastMessage)
	assert.Equal(t, "hi bob", list.Conversations[0].LastMessage.Content)

	w = s.do(t, http.MethodGet, path+"?page=1&limit=10", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page domain.MessagePage
	decode(t, w, &page)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 10, page.Limit)

	w = s.do(t, http.MethodGet, "/api/v1/conversations", "bob", nil)
	decode(t, w, &list)
	assert.Zero(t, list.Conversations[0].UnreadCount)

	w = s.do(t, http.MethodGet, path, "carol", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/conversations/"+conv.ID+"/read", "carol", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodPatch, "/api/v1/conversations/"+conv.ID+"/read", "bob", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestREST_CreateConversationValidation(t *testing.T) {
	s := newStack(t)
	testutil.SeedUser(t, s.db, "alice", domain.RoleClient)

	w := s.do(t, http.MethodPost, "/api/v1/conversations", "alice", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/conversations", "alice", domain.CreateConversationRequest{ParticipantIDs: []string{"alice"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/conversations", "alice", domain.CreateConversationRequest{ParticipantIDs: []string{"ghost"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestREST_TaskMessageBroadcastsToSockets(t *testing.T) {
	s := newStack(t)
	testutil.SeedUser(t, s.db, "client", domain.RoleClient)
	testutil.SeedUser(t, s.db, "freelancer", domain.RoleFreelancer)
	testutil.SeedTask(t, s.db, "t1", "client", "freelancer")
	srv := s.server(t)

	f := s.dial(t, srv, "freelancer")
	send(t, f, domain.EventJoinRoom, "t1")
	require.Equal(t, domain.EventJoinedRoom, read(t, f).Type)

	w := s.do(t, http.MethodPost, "/api/v1/tasks/t1/messages", "client", map[string]string{"content": "scope updated"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, domain.EventReceiveMessage, read(t, f).Type)
	assert.Equal(t, domain.EventNewNotification, read(t, f).Type)

	w = s.do(t, http.MethodGet, "/api/v1/tasks/t1/messages", "freelancer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page domain.MessagePage
	decode(t, w, &page)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "scope updated", page.Messages[0].Content)

	w = s.do(t, http.MethodGet, "/api/v1/tasks/missing/messages", "freelancer", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestREST_SendAttachment(t *testing.T) {
	s := newStack(t)
	testutil.SeedUser(t, s.db, "alice", domain.RoleClient)
	testutil.SeedUser(t, s.db, "bob", domain.RoleFreelancer)
	testutil.SeedConversation(t, s.db, "c1", time.Now().UTC(), "alice", "bob")

	upload := func(userID, filename string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/c1/messages", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		return w
	}

	w := upload("alice", "brief.pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var msg domain.MessageResponse
	decode(t, w, &msg)
	assert.Equal(t, domain.MessageFile, msg.MessageType)
	assert.True(t, strings.HasPrefix(msg.Content, "/uploads/conversation/c1/"), msg.Content)
	assert.True(t, strings.HasSuffix(msg.Content, ".pdf"), msg.Content)

	w = upload("alice", "huge.bin", bytes.Repeat([]byte("x"), 2048))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	testutil.SeedUser(t, s.db, "carol", domain.RoleFreelancer)
	writes := s.store.writes.Load()
	w = upload("carol", "sneaky.pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, writes, s.store.writes.Load(), "outsiders never reach storage")

	// Only the accepted upload is left on disk.
	var files []string
	require.NoError(t, filepath.Walk(s.uploads, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, p)
		}
		return err
	}))
	assert.Len(t, files, 1)
}

func TestREST_Notifications(t *testing.T) {
	s := newStack(t)
	testutil.SeedUser(t, s.db, "dana", domain.RoleFreelancer)
	srv := s.server(t)
	conn := s.dial(t, srv, "dana")

	internal := func(token string, body interface{}) *httptest.ResponseRecorder {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/notifications", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set(InternalTokenHeader, token)
		}
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		return w
	}

	in := domain.NotifyInput{UserID: "dana", Type: "bid_accepted", Message: "Your bid was accepted", TaskID: "t1"}
	assert.Equal(t, http.StatusForbidden, internal("", in).Code)
	assert.Equal(t, http.StatusForbidden, internal("wrong", in).Code)

	w := internal(testInternalToken, in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var n domain.Notification
	decode(t, w, &n)
	assert.Equal(t, domain.NotificationBidAccepted, n.Type)

	got := read(t, conn)
	assert.Equal(t, domain.EventNewNotification, got.Type)

	w = internal(testInternalToken, domain.NotifyInput{UserID: "dana", Type: "NOPE", Message: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", "dana", nil)
	var count struct {
		Count int64 `json:"count"`
	}
	decode(t, w, &count)
	assert.Equal(t, int64(1), count.Count)

	w = s.do(t, http.MethodGet, "/api/v1/notifications?isRead=false&type=BID_ACCEPTED", "dana", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page domain.NotificationPage
	decode(t, w, &page)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, int64(1), page.UnreadCount)

	testutil.SeedUser(t, s.db, "eve", domain.RoleClient)
	w = s.do(t, http.MethodPatch, "/api/v1/notifications/"+n.ID+"/read", "eve", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodPatch, "/api/v1/notifications/missing/read", "dana", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for i := 0; i < 2; i++ {
		w = s.do(t, http.MethodPatch, "/api/v1/notifications/"+n.ID+"/read", "dana", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = s.do(t, http.MethodPatch, "/api/v1/notifications/read-all", "dana", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var updated struct {
		Updated int64 `json:"updated"`
	}
	decode(t, w, &updated)
	assert.Zero(t, updated.Updated)
}

func TestREST_Presence(t *testing.T) {
	s := newStack(t)
	testutil.SeedUser(t, s.db, "alice", domain.RoleClient)
	testutil.SeedUser(t, s.db, "bob", domain.RoleFreelancer)
	srv := s.server(t)

	var conns []*websocket.Conn
	conns = append(conns, s.dial(t, srv, "bob"), s.dial(t, srv, "bob"))
	require.Eventually(t, func() bool { return s.hub.Registry().Connections("bob") == 2 }, time.Second, 5*time.Millisecond)

	var presence struct {
		UserID      string `json:"userId"`
		Online      bool   `json:"online"`
		Connections int    `json:"connections"`
	}
	decode(t, s.do(t, http.MethodGet, "/api/v1/presence/bob", "alice", nil), &presence)
	assert.True(t, presence.Online)
	assert.Equal(t, 2, presence.Connections)

	for _, c := range conns {
		require.NoError(t, c.Close())
	}
	require.Eventually(t, func() bool { return !s.hub.IsOnline("bob") }, 2*time.Second, 10*time.Millisecond)

	decode(t, s.do(t, http.MethodGet, "/api/v1/presence/bob", "alice", nil), &presence)
	assert.False(t, presence.Online)
	assert.Zero(t, presence.Connections)
}
