package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeTransaction NotificationType = "TRANSACTION"
	NotificationTypeWalletAlert NotificationType = "WALLET_ALERT"
	NotificationTypeSecurity    NotificationType = "SECURITY"
	NotificationTypeSystem      NotificationType = "SYSTEM"
)

type NotificationStatus string

const (
	NotificationStatusUnread   NotificationStatus = "UNREAD"
	NotificationStatusRead     NotificationStatus = "READ"
	NotificationStatusArchived NotificationStatus = "ARCHIVED"
)

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      NotificationType
	Status    NotificationStatus
	Title     string
	Message   string
	Metadata  json.RawMessage
	ReadAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
