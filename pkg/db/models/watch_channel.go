package models

import (
	"time"

	"github.com/google/uuid"
)

// WatchChannel tracks a Drive push-notification subscription. Channels expire
// (nominally 7 days out) and must be renewed before expiration; polling never
// depends on one being alive.
type WatchChannel struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChannelID  string    `gorm:"column:channel_id;not null;unique" json:"channelId"`
	ResourceID string    `gorm:"column:resource_id;not null" json:"resourceId"`
	FolderID   *string   `gorm:"column:folder_id" json:"folderId,omitempty"`
	WebhookURL string    `gorm:"column:webhook_url;not null" json:"webhookUrl"`
	Expiration int64     `gorm:"column:expiration;not null" json:"expiration"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (WatchChannel) TableName() string {
	return "watch_channels"
}

// ExpiresAt converts the provider's epoch-millisecond expiration.
func (w WatchChannel) ExpiresAt() time.Time {
	return time.UnixMilli(w.Expiration).UTC()
}
