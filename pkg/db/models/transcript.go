package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge-ops/carebridge-backend/pkg/enums"
)

// Transcript holds the parsed plain-text content extracted from the
// provider's auto-generated meeting document. One row per processed recording.
type Transcript struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RecordingID      uuid.UUID              `gorm:"column:recording_id;type:uuid;not null;unique" json:"recordingId"`
	TranscriptText   string                 `gorm:"column:transcript_text;not null" json:"transcriptText"`
	TranscriptSource enums.TranscriptSource `gorm:"column:transcript_source;not null" json:"transcriptSource"`
	DriveFileID      string                 `gorm:"column:drive_file_id;not null" json:"driveFileId"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Transcript) TableName() string {
	return "transcripts"
}
