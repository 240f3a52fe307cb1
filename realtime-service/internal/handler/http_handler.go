package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/pkg/middleware"
	"github.com/weiawesome/wes-gig-live/pkg/response"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/service"
)

// InternalTokenHeader carries the shared secret of service-to-service calls.
const InternalTokenHeader = "X-Internal-Token"

// Presence answers online queries from the connection registry.
type Presence interface {
	IsOnline(userID string) bool
	Connections(userID string) int
}

// Handler serves the REST surface of the realtime service.
type Handler struct {
	chat           service.ChatService
	conversations  service.ConversationService
	notifications  service.NotificationService
	attachments    service.AttachmentService
	emitter        service.Emitter
	presence       Presence
	authMiddleware *middleware.AuthMiddleware
	internalToken  string
}

// Services groups the dependencies of Handler.
type Services struct {
	Chat          service.ChatService
	Conversations service.ConversationService
	Notifications service.NotificationService
	Attachments   service.AttachmentService
	Emitter       service.Emitter
	Presence      Presence
}

func NewHandler(svc Services, authMiddleware *middleware.AuthMiddleware, internalToken string) *Handler {
	return &Handler{
		chat:           svc.Chat,
		conversations:  svc.Conversations,
		notifications:  svc.Notifications,
		attachments:    svc.Attachments,
		emitter:        svc.Emitter,
		presence:       svc.Presence,
		authMiddleware: authMiddleware,
		internalToken:  internalToken,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		protected := api.Group("", h.authMiddleware.RequireAuth())

		conversations := protected.Group("/conversations")
		{
			conversations.POST("", h.CreateConversation)
			conversations.GET("", h.ListConversations)
			conversations.GET("/:id/messages", h.GetConversationMessages)
			conversations.POST("/:id/messages", h.SendConversationMessage)
			conversations.PATCH("/:id/read", h.MarkConversationRead)
		}

		tasks := protected.Group("/tasks")
		{
			tasks.GET("/:id/messages", h.GetTaskMessages)
			tasks.POST("/:id/messages", h.SendTaskMessage)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.ListNotifications)
			notifications.GET("/unread-count", h.NotificationUnreadCount)
			notifications.PATCH("/read-all", h.MarkAllNotificationsRead)
			notifications.PATCH("/:id/read", h.MarkNotificationRead)
		}

		protected.GET("/presence/:userId", h.GetPresence)

		internal := api.Group("/internal", middleware.RequireHeaderToken(InternalTokenHeader, h.internalToken))
		{
			internal.POST("/notifications", h.CreateNotification)
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

type pageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type notificationQuery struct {
	IsRead *bool  `form:"isRead"`
	Type   string `form:"type"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

type sendMessageBody struct {
	Content     string `json:"content" form:"content"`
	MessageType string `json:"messageType" form:"messageType"`
}

// CreateConversation starts a thread between the caller and participantIds.
func (h *Handler) CreateConversation(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create conversation request")
		response.BadRequest(c, err.Error())
		return
	}

	conv, err := h.conversations.CreateConversation(ctx, middleware.GetUserID(c), req.ParticipantIDs)
	if err != nil {
		h.fail(c, err, "failed to create conversation")
		return
	}
	response.Created(c, conv)
}

func (h *Handler) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()

	convs, err := h.conversations.ListConversations(ctx, middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err, "failed to list conversations")
		return
	}
	response.Success(c, gin.H{"conversations": convs})
}

// GetConversationMessages pages history and marks the thread read.
func (h *Handler) GetConversationMessages(c *gin.Context) {
	ctx := c.Request.Context()

	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.conversations.GetConversationMessages(ctx, middleware.GetUserID(c), c.Param("id"), q.Page, q.Limit)
	if err != nil {
		h.fail(c, err, "failed to load messages")
		return
	}
	response.Success(c, result)
}

func (h *Handler) GetTaskMessages(c *gin.Context) {
	ctx := c.Request.Context()

	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.conversations.GetThreadMessages(ctx, middleware.GetUserID(c), domain.TaskRef(c.Param("id")), q.Page, q.Limit)
	if err != nil {
		h.fail(c, err, "failed to load messages")
		return
	}
	response.Success(c, result)
}

func (h *Handler) SendConversationMessage(c *gin.Context) {
	h.sendMessage(c, domain.ConversationRef(c.Param("id")))
}

func (h *Handler) SendTaskMessage(c *gin.Context) {
	h.sendMessage(c, domain.TaskRef(c.Param("id")))
}

// sendMessage runs the same pipeline as the socket send_message event. A
// multipart body with a "file" part is stored first and sent as its URL.
func (h *Handler) sendMessage(c *gin.Context, ref domain.ThreadRef) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var body sendMessageBody
	if err := c.ShouldBind(&body); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	var attachment *service.Attachment
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			response.BadRequest(c, err.Error())
			return
		}
		if file != nil {
			if h.attachments == nil {
				response.BadRequest(c, "attachments are disabled")
				return
			}
			if err := h.chat.Authorize(ctx, middleware.GetUserID(c), ref); err != nil {
				h.fail(c, err, "failed to authorize attachment")
				return
			}
			attachment, err = h.attachments.Upload(ctx, ref, file)
			if err != nil {
				h.fail(c, err, "failed to store attachment")
				return
			}
			body.Content = attachment.URL
			body.MessageType = string(attachment.Type)
		}
	}

	req := &domain.SendMessageRequest{Content: body.Content, MessageType: body.MessageType}
	switch ref.Kind {
	case domain.ThreadConversation:
		req.ConversationID = ref.ID
	case domain.ThreadTask:
		req.TaskID = ref.ID
	}

	sender := &domain.Identity{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
	if p := middleware.GetPrincipal(c); p != nil {
		sender.Email = p.Email
		sender.Name = p.Name
	}

	msg, err := h.chat.SendMessage(ctx, sender, req)
	if err != nil {
		if attachment != nil {
			h.attachments.Discard(ctx, attachment)
		}
		h.fail(c, err, "failed to send message")
		return
	}
	response.Created(c, msg)
}

// MarkConversationRead moves the caller's read marker and tells the room.
func (h *Handler) MarkConversationRead(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	userID := middleware.GetUserID(c)
	conversationID := c.Param("id")

	readAt, err := h.conversations.MarkAsRead(ctx, userID, conversationID)
	if err != nil {
		h.fail(c, err, "failed to mark conversation read")
		return
	}

	payload := &domain.MessagesReadPayload{UserID: userID, ConversationID: conversationID, ReadAt: readAt}
	if h.emitter != nil {
		if _, err := h.emitter.EmitToRoom(domain.ConversationRef(conversationID).RoomKey(), domain.EventMessagesRead, payload); err != nil {
			l.Warn().Err(err).Msg("failed to emit messages_read")
		}
	}
	response.Success(c, payload)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()

	var q notificationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, err := h.notifications.List(ctx, middleware.GetUserID(c), domain.NotificationFilter{
		IsRead: q.IsRead,
		Type:   domain.NotificationType(strings.ToUpper(q.Type)),
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		h.fail(c, err, "failed to list notifications")
		return
	}
	response.Success(c, page)
}

func (h *Handler) NotificationUnreadCount(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.notifications.UnreadCount(ctx, middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err, "failed to count notifications")
		return
	}
	response.Success(c, gin.H{"count": count})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	ctx := c.Request.Context()

	n, err := h.notifications.MarkRead(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to mark notification read")
		return
	}
	response.Success(c, n)
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.notifications.MarkAllRead(ctx, middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err, "failed to mark notifications read")
		return
	}
	response.Success(c, gin.H{"updated": count})
}

func (h *Handler) GetPresence(c *gin.Context) {
	userID := c.Param("userId")
	response.Success(c, gin.H{
		"userId":      userID,
		"online":      h.presence.IsOnline(userID),
		"connections": h.presence.Connections(userID),
	})
}

// CreateNotification is the entry point for business events raised by other
// services.
func (h *Handler) CreateNotification(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var in domain.NotifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		l.Warn().Err(err).Msg("failed to bind notification request")
		response.BadRequest(c, err.Error())
		return
	}
	in.Type = domain.NotificationType(strings.ToUpper(string(in.Type)))

	n, err := h.notifications.Notify(ctx, in)
	if err != nil {
		h.fail(c, err, "failed to create notification")
		return
	}
	response.Created(c, n)
}

// fail maps service errors to responses. Anything unrecognized is logged and
// answered with msg.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrInvalidMessage),
		errors.Is(err, service.ErrInvalidConversation),
		errors.Is(err, service.ErrInvalidNotification):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotParticipant):
		response.Forbidden(c, "not a participant")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "forbidden")
	case errors.Is(err, service.ErrNotificationNotFound):
		response.NotFound(c, "notification not found")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrAttachmentTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
	case errors.Is(err, repository.ErrDuplicate):
		response.Conflict(c, "already exists")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		response.InternalError(c, msg)
	}
}
