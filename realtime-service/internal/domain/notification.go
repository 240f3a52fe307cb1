package domain

import (
	"errors"
	"time"
)

// NotificationType enumerates the business events users are notified about.
type NotificationType string

const (
	NotificationNewMessage         NotificationType = "NEW_MESSAGE"
	NotificationNewBid             NotificationType = "NEW_BID"
	NotificationBidAccepted        NotificationType = "BID_ACCEPTED"
	NotificationBidRejected        NotificationType = "BID_REJECTED"
	NotificationTaskAssigned       NotificationType = "TASK_ASSIGNED"
	NotificationTaskCompleted      NotificationType = "TASK_COMPLETED"
	NotificationMilestoneCreated   NotificationType = "MILESTONE_CREATED"
	NotificationMilestoneSubmitted NotificationType = "MILESTONE_SUBMITTED"
	NotificationMilestoneApproved  NotificationType = "MILESTONE_APPROVED"
	NotificationMilestoneRejected  NotificationType = "MILESTONE_REJECTED"
	NotificationPaymentReceived    NotificationType = "PAYMENT_RECEIVED"
	NotificationPaymentReleased    NotificationType = "PAYMENT_RELEASED"
	NotificationBookingConfirmed   NotificationType = "BOOKING_CONFIRMED"
	NotificationBookingCancelled   NotificationType = "BOOKING_CANCELLED"
	NotificationSystem             NotificationType = "SYSTEM"
)

var knownNotificationTypes = map[NotificationType]struct{}{
	NotificationNewMessage:         {},
	NotificationNewBid:             {},
	NotificationBidAccepted:        {},
	NotificationBidRejected:        {},
	NotificationTaskAssigned:       {},
	NotificationTaskCompleted:      {},
	NotificationMilestoneCreated:   {},
	NotificationMilestoneSubmitted: {},
	NotificationMilestoneApproved:  {},
	NotificationMilestoneRejected:  {},
	NotificationPaymentReceived:    {},
	NotificationPaymentReleased:    {},
	NotificationBookingConfirmed:   {},
	NotificationBookingCancelled:   {},
	NotificationSystem:             {},
}

var ErrInvalidNotification = errors.New("invalid notification")

// Valid reports whether t is a known type.
func (t NotificationType) Valid() bool {
	_, ok := knownNotificationTypes[t]
	return ok
}

// Notification is a durable notice for exactly one recipient.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	URL         string           `json:"url,omitempty"`
	TaskID      string           `json:"taskId,omitempty"`
	BidID       string           `json:"bidId,omitempty"`
	MilestoneID string           `json:"milestoneId,omitempty"`
	IsRead      bool             `json:"isRead"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// NotifyInput is what a business action supplies to the fan-out.
type NotifyInput struct {
	UserID      string           `json:"userId" binding:"required"`
	Type        NotificationType `json:"type" binding:"required"`
	Message     string           `json:"message" binding:"required"`
	URL         string           `json:"url"`
	TaskID      string           `json:"taskId"`
	BidID       string           `json:"bidId"`
	MilestoneID string           `json:"milestoneId"`
}

// NotificationFilter narrows a listing. Nil fields do not filter.
type NotificationFilter struct {
	IsRead *bool
	Type   NotificationType
	Page   int
	Limit  int
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Notifications []*Notification `json:"notifications"`
	Page          int             `json:"page"`
	Limit         int             `json:"limit"`
	Total         int64           `json:"total"`
	TotalPages    int             `json:"totalPages"`
	UnreadCount   int64           `json:"unreadCount"`
}
