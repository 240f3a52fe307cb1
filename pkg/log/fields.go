package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID = "user_id"
	FieldRole   = "role"

	// Realtime
	FieldSocketID       = "socket_id"
	FieldRoom           = "room"
	FieldThreadKind     = "thread_kind"
	FieldThreadID       = "thread_id"
	FieldMessageID      = "message_id"
	FieldNotificationID = "notification_id"
	FieldEvent          = "event"

	// Service
	FieldService  = "service"
	FieldInstance = "instance"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
