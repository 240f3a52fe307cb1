package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-gig-live/pkg/jwt"
	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/pkg/middleware"
	"github.com/weiawesome/wes-gig-live/pkg/pubsub"
	"github.com/weiawesome/wes-gig-live/pkg/response"
	"github.com/weiawesome/wes-gig-live/pkg/storage"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/auth"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/cache"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/config"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/hub"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/service"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/testutil"
)

const testInternalToken = "internal-secret"

var testChatConfig = config.ChatConfig{
	MaxContentLength: 500,
	DefaultPageSize:  50,
	MaxPageSize:      100,
	MaxUploadSize:    1 << 10,
}

var testWSConfig = config.WebSocketConfig{
	Path:           "/ws",
	PingInterval:   time.Minute,
	PongWait:       time.Minute,
	WriteWait:      time.Second,
	MaxMessageSize: 16384,
	SendBuffer:     64,
}

// stack is the whole service wired against an in-memory database.
type stack struct {
	db      *gorm.DB
	hub     *hub.Hub
	tokens  *jwt.Manager
	engine  *gin.Engine
	uploads string
	store   *countingStorage
}

// countingStorage counts writes that reach the backend.
type countingStorage struct {
	storage.Storage
	writes atomic.Int64
}

func (s *countingStorage) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	s.writes.Add(1)
	return s.Storage.Write(ctx, key, r, size, contentType)
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	tokens, err := jwt.NewManager("test-secret", "marketplace", time.Hour)
	require.NoError(t, err)

	uploads := t.TempDir()
	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: uploads})
	require.NoError(t, err)
	store := &countingStorage{Storage: local}

	users := repository.NewGormUserRepository(db)
	resolver := auth.NewResolver(tokens, users)
	h := hub.NewHub(nil)
	t.Cleanup(h.Close)

	publisher := pubsub.NoopPublisher{}
	gate := service.NewRoomGate(repository.NewConversationThreadStore(db), repository.NewTaskThreadStore(db))
	directory := service.NewUserDirectory(users, cache.NoopCache{}, time.Minute)
	notifications := service.NewNotificationService(repository.NewGormNotificationRepository(db), h, publisher, testChatConfig)
	conversations := service.NewConversationService(
		repository.NewGormConversationRepository(db),
		repository.NewGormMessageRepository(db),
		users, gate, directory, publisher, testChatConfig,
	)
	chat := service.NewChatService(h, gate, directory, conversations, notifications, publisher, testChatConfig)
	attachments := service.NewAttachmentService(store, testChatConfig.MaxUploadSize, time.Hour)

	r := gin.New()
	r.Use(log.GinMiddleware(log.L(), testWSConfig.Path))
	NewHandler(Services{
		Chat:          chat,
		Conversations: conversations,
		Notifications: notifications,
		Attachments:   attachments,
		Emitter:       h,
		Presence:      h.Registry(),
	}, middleware.NewAuthMiddleware(resolver), testInternalToken).RegisterRoutes(r)
	NewWSHandler(h, chat, resolver, testWSConfig).RegisterRoutes(r)

	return &stack{db: db, hub: h, tokens: tokens, engine: r, uploads: uploads, store: store}
}

func (s *stack) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.tokens.GenerateAccessToken(userID, userID+"@example.com", "CLIENT")
	require.NoError(t, err)
	return tok
}

// do runs a JSON request as userID; an empty userID sends no token.
func (s *stack) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) *envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
	return &env
}

// server exposes the stack over a real listener for websocket tests.
func (s *stack) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.engine)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + testWSConfig.Path
}

func (s *stack) dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token(t, userID))
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return s.hub.IsOnline(userID) }, time.Second, 5*time.Millisecond)
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame{Type: event, Data: raw}))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// expectSilence asserts no frame arrives within a short window. The timed-out
// read leaves conn unusable, so call it last.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var f frame
	err := conn.ReadJSON(&f)
	require.Error(t, err, "unexpected frame %s", f.Type)
}
