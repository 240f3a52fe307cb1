package audit

import (
	"context"

	"github.com/weiawesome/wes-gig-live/pkg/log"
)

// Audit actions for realtime-service.
const (
	ActionConnect          = "realtime.connect"
	ActionAuthFailed       = "realtime.auth_failed"
	ActionJoinRoom         = "realtime.join_room"
	ActionJoinDenied       = "realtime.join_denied"
	ActionLeaveRoom        = "realtime.leave_room"
	ActionSendMessage      = "realtime.send_message"
	ActionSendDenied       = "realtime.send_denied"
	ActionMarkRead         = "realtime.mark_read"
	ActionDisconnect       = "realtime.disconnect"
	ActionCreateConv       = "conversation.create"
	ActionNotify           = "notification.create"
	ActionNotificationRead = "notification.read"
	ActionNotificationsAll = "notification.read_all"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogTarget emits an audit entry about a specific room, thread or record.
func LogTarget(ctx context.Context, action, userID, targetID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
