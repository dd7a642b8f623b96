package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge-ops/carebridge-backend/pkg/enums"
)

// Recording is the platform's record of one call/recording attempt. The drive
// file id columns are filled in as files are discovered and are never
// overwritten once set.
type Recording struct {
	ID                    uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AlertID               *uuid.UUID            `gorm:"column:alert_id;type:uuid" json:"alertId,omitempty"`
	SOPResponseID         *uuid.UUID            `gorm:"column:sop_response_id;type:uuid" json:"sopResponseId,omitempty"`
	ClientID              uuid.UUID             `gorm:"column:client_id;type:uuid;not null" json:"clientId"`
	RecordedBy            uuid.UUID             `gorm:"column:recorded_by;type:uuid;not null" json:"recordedBy"`
	Source                enums.RecordingSource `gorm:"column:source;not null" json:"source"`
	MeetingID             *string               `gorm:"column:meeting_id" json:"meetingId,omitempty"`
	MeetingURL            *string               `gorm:"column:meeting_url" json:"meetingUrl,omitempty"`
	VideoDriveFileID      *string               `gorm:"column:video_drive_file_id" json:"videoDriveFileId,omitempty"`
	TranscriptDriveFileID *string               `gorm:"column:transcript_drive_file_id" json:"transcriptDriveFileId,omitempty"`
	ProcessingStatus      enums.RecordingStatus `gorm:"column:processing_status;not null;default:pending" json:"processingStatus"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt             time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Recording) TableName() string {
	return "recordings"
}
