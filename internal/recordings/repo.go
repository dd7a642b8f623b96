package recordings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	"github.com/carebridge-ops/carebridge-backend/pkg/enums"
)

// Repository exposes recording and transcript persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a recordings repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a recording row. Callers set the ID; status defaults to pending.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) (*models.Recording, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.ProcessingStatus == "" {
		rec.ProcessingStatus = enums.RecordingStatusPending
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByID retrieves a recording by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	var rec models.Recording
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindPendingMeetCreatedSince returns pending Meet recordings created on or
// after the cutoff, oldest first, capped at limit.
func (r *Repository) FindPendingMeetCreatedSince(ctx context.Context, cutoff time.Time, limit int) ([]models.Recording, error) {
	var recs []models.Recording
	q := r.db.WithContext(ctx).
		Where("processing_status = ?", enums.RecordingStatusPending).
		Where("source = ?", enums.RecordingSourceGoogleMeet).
		Where("created_at >= ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// FindWebhookCandidates returns pending Meet recordings that either already
// reference the given drive file or have not been matched to any file yet,
// newest first.
func (r *Repository) FindWebhookCandidates(ctx context.Context, fileID string) ([]models.Recording, error) {
	var recs []models.Recording
	err := r.db.WithContext(ctx).
		Where("processing_status = ?", enums.RecordingStatusPending).
		Where("source = ?", enums.RecordingSourceGoogleMeet).
		Where(
			r.db.Where("video_drive_file_id = ?", fileID).
				Or("transcript_drive_file_id = ?", fileID).
				Or("video_drive_file_id IS NULL AND transcript_drive_file_id IS NULL"),
		).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// TransitionStatus atomically moves a recording from one status to another.
// Returns false when the row was not in the expected status, which means a
// concurrent worker won the race.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.RecordingStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Recording{}).
		Where("id = ? AND processing_status = ?", id, from).
		Update("processing_status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FillDriveFileIDs records discovered file ids, filling each column only when
// it is still NULL. Already-set columns are left untouched.
func (r *Repository) FillDriveFileIDs(ctx context.Context, id uuid.UUID, videoFileID, transcriptFileID string) error {
	updates := map[string]interface{}{}
	if videoFileID != "" {
		updates["video_drive_file_id"] = gorm.Expr("COALESCE(video_drive_file_id, ?)", videoFileID)
	}
	if transcriptFileID != "" {
		updates["transcript_drive_file_id"] = gorm.Expr("COALESCE(transcript_drive_file_id, ?)", transcriptFileID)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Recording{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Cancel marks a pending recording cancelled. Returns false when the
// recording had already left pending.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.TransitionStatus(ctx, id, enums.RecordingStatusPending, enums.RecordingStatusCancelled)
}

// ResetStaleProcessing returns recordings stuck in processing longer than the
// threshold back to pending so a later run can retry them. Returns the number
// of rows reset.
func (r *Repository) ResetStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Recording{}).
		Where("processing_status = ?", enums.RecordingStatusProcessing).
		Where("updated_at < ?", olderThan).
		Update("processing_status", enums.RecordingStatusPending)
	return res.RowsAffected, res.Error
}

// CreateTranscript persists a parsed transcript. The recording_id unique
// constraint guarantees at most one transcript per recording.
func (r *Repository) CreateTranscript(ctx context.Context, transcript *models.Transcript) (*models.Transcript, error) {
	if transcript.ID == uuid.Nil {
		transcript.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(transcript).Error; err != nil {
		return nil, err
	}
	return transcript, nil
}

// FindTranscriptByRecording retrieves the transcript for a recording, if any.
func (r *Repository) FindTranscriptByRecording(ctx context.Context, recordingID uuid.UUID) (*models.Transcript, error) {
	var t models.Transcript
	if err := r.db.WithContext(ctx).First(&t, "recording_id = ?", recordingID).Error; err != nil {
		return nil, err
	}
	return &t, nil
}
