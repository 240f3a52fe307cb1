package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/pkg/middleware"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/audit"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/config"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/hub"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/service"
)

// IdentityResolver turns a handshake token into the connection's identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Identity, error)
}

type WSHandler struct {
	hub      *hub.Hub
	service  service.ChatService
	resolver IdentityResolver
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, resolver IdentityResolver, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		resolver: resolver,
		wsCfg:    wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(wsCfg.AllowedOrigins),
		},
	}
}

// originChecker allows any origin when none are configured.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWebSocket authenticates the handshake before upgrading, so a bad
// token is refused with a plain 401 and no socket is ever registered.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := log.Ctx(ctx)

	identity, err := h.resolver.Resolve(ctx, middleware.ExtractToken(r))
	if err != nil {
		if middleware.IsAuthError(err) {
			audit.Log(ctx, audit.ActionAuthFailed, "", err.Error())
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		l.Error().Err(err).Msg("identity resolution failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), identity, h.hub, conn, h.wsCfg)
	h.hub.Register(client)
	audit.LogTarget(client.Context(), audit.ActionConnect, identity.UserID, client.ID, "socket connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage, h.handleClose)
}

func (h *WSHandler) handleClose(client *hub.Client) {
	h.service.HandleDisconnect(client.Context(), client)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx := client.Context()
	l := log.Ctx(ctx)

	var env domain.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		h.reply(client, domain.ErrCodeBadRequest, "Invalid message format")
		return
	}

	var err error
	switch env.Type {
	case domain.EventJoinConversation, domain.EventJoinRoom:
		ref, ok := h.target(client, env, joinFallback(env.Type))
		if !ok {
			return
		}
		err = h.service.HandleJoin(ctx, client, ref)

	case domain.EventLeaveConversation, domain.EventLeaveRoom:
		ref, ok := h.target(client, env, joinFallback(env.Type))
		if !ok {
			return
		}
		err = h.service.HandleLeave(ctx, client, ref)

	case domain.EventSendMessage:
		var req domain.SendMessageRequest
		if uerr := json.Unmarshal(env.Data, &req); uerr != nil {
			h.reply(client, domain.ErrCodeBadRequest, "Invalid send_message payload")
			return
		}
		err = h.service.HandleSendMessage(ctx, client, &req)

	case domain.EventMarkAsRead:
		ref, ok := h.target(client, env, domain.ThreadConversation)
		if !ok {
			return
		}
		if !ref.Kind.TracksUnread() {
			h.reply(client, domain.ErrCodeBadRequest, "Only conversations track read state")
			return
		}
		err = h.service.HandleMarkAsRead(ctx, client, ref.ID)

	case domain.EventTypingStart, domain.EventTypingStop:
		ref, ok := h.target(client, env, domain.ThreadConversation)
		if !ok {
			return
		}
		err = h.service.HandleTyping(ctx, client, ref, env.Type == domain.EventTypingStart)

	case domain.EventPing:
		err = h.hub.Send(client, domain.EventPong, nil)

	default:
		h.reply(client, domain.ErrCodeBadRequest, "Unknown message type")
		return
	}

	if err != nil && !errors.Is(err, hub.ErrClientGone) {
		l.Debug().Err(err).Str(log.FieldEvent, env.Type).Msg("socket event failed")
	}
}

// target parses the room payload, replying BAD_REQUEST when it is missing.
func (h *WSHandler) target(client *hub.Client, env domain.Envelope, fallback domain.ThreadKind) (domain.ThreadRef, bool) {
	t, ok := domain.ParseRoomTarget(env.Data)
	if !ok {
		h.reply(client, domain.ErrCodeBadRequest, "Missing room id for "+env.Type)
		return domain.ThreadRef{}, false
	}
	return t.Ref(fallback), true
}

// joinFallback is the kind a bare id names for a join or leave event.
func joinFallback(event string) domain.ThreadKind {
	if event == domain.EventJoinRoom || event == domain.EventLeaveRoom {
		return domain.ThreadTask
	}
	return domain.ThreadConversation
}

func (h *WSHandler) reply(client *hub.Client, code, message string) {
	_ = h.hub.Send(client, domain.EventError, domain.NewErrorMessage(code, message))
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	path := h.wsCfg.Path
	if path == "" {
		path = "/ws"
	}
	r.GET(path, gin.WrapF(h.HandleWebSocket))
}
