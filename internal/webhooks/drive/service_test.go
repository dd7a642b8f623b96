package drive

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/carebridge-ops/carebridge-backend/internal/recordings"
	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	pkgdrive "github.com/carebridge-ops/carebridge-backend/pkg/drive"
	"github.com/carebridge-ops/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

type fakeDrive struct {
	exportText string
}

func (f *fakeDrive) ListRecordingFiles(context.Context, resilience.CallOptions, time.Time, time.Time) ([]pkgdrive.FileMeta, error) {
	return nil, nil
}

func (f *fakeDrive) ExportDoc(context.Context, resilience.CallOptions, string) (string, error) {
	return f.exportText, nil
}

func (f *fakeDrive) DownloadFile(context.Context, resilience.CallOptions, string) ([]byte, error) {
	return []byte("video"), nil
}

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{`
CREATE TABLE IF NOT EXISTS recordings (
  id TEXT PRIMARY KEY,
  alert_id TEXT,
  sop_response_id TEXT,
  client_id TEXT NOT NULL,
  recorded_by TEXT NOT NULL,
  source TEXT NOT NULL,
  meeting_id TEXT,
  meeting_url TEXT,
  video_drive_file_id TEXT,
  transcript_drive_file_id TEXT,
  processing_status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS transcripts (
  id TEXT PRIMARY KEY,
  recording_id TEXT NOT NULL UNIQUE,
  transcript_text TEXT NOT NULL,
  transcript_source TEXT NOT NULL,
  drive_file_id TEXT NOT NULL,
  created_at DATETIME
);`}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type webhookFixture struct {
	db      *gorm.DB
	repo    *recordings.Repository
	service *Service
	drive   *fakeDrive
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	db := setupWebhookTestDB(t)
	repo := recordings.NewRepository(db)
	fake := &fakeDrive{exportText: "Transcript\n\nMaria Lopez: Hello.\n\nMeeting ended after 00:05:00\n"}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	locator, err := recordings.NewLocator(fake, 30*time.Minute)
	require.NoError(t, err)
	processor, err := recordings.NewProcessor(recordings.ProcessorParams{
		Repo:    repo,
		Locator: locator,
		Drive:   fake,
		Logger:  logg,
	})
	require.NoError(t, err)

	service, err := NewService(repo, processor, logg)
	require.NoError(t, err)
	return &webhookFixture{db: db, repo: repo, service: service, drive: fake}
}

func (f *webhookFixture) seed(t *testing.T, mutate func(*models.Recording)) *models.Recording {
	t.Helper()

	rec := &models.Recording{
		ClientID:   uuid.New(),
		RecordedBy: uuid.New(),
		Source:     enums.RecordingSourceGoogleMeet,
	}
	if mutate != nil {
		mutate(rec)
	}
	created, err := f.repo.Create(context.Background(), rec)
	require.NoError(t, err)
	return created
}

func TestHandleNotificationFirstContact(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	rec := f.seed(t, nil)

	result, err := f.service.HandleNotification(ctx, "doc-77")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, result.Status)
	require.NotNil(t, result.RecordingID)
	assert.Equal(t, rec.ID, *result.RecordingID)

	// Unknown file id is assumed to be the transcript.
	updated, err := f.repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RecordingStatusCompleted, updated.ProcessingStatus)
	require.NotNil(t, updated.TranscriptDriveFileID)
	assert.Equal(t, "doc-77", *updated.TranscriptDriveFileID)
}

func TestHandleNotificationRedelivery(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	f.seed(t, nil)

	first, err := f.service.HandleNotification(ctx, "doc-77")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, first.Status)

	// Second delivery finds no pending candidate and is a no-op.
	second, err := f.service.HandleNotification(ctx, "doc-77")
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, second.Status)

	transcript, err := f.repo.FindTranscriptByRecording(ctx, *first.RecordingID)
	require.NoError(t, err)
	assert.NotEmpty(t, transcript.TranscriptText)
}

func TestHandleNotificationNoMatch(t *testing.T) {
	f := newWebhookFixture(t)

	f.seed(t, func(r *models.Recording) {
		known := "doc-known"
		r.TranscriptDriveFileID = &known
		r.VideoDriveFileID = &known
	})

	result, err := f.service.HandleNotification(context.Background(), "doc-unrelated")
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, result.Status)
	assert.Nil(t, result.RecordingID)
}

func TestHandleNotificationKnownVideoFile(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	rec := f.seed(t, func(r *models.Recording) {
		video := "vid-55"
		doc := "doc-55"
		r.VideoDriveFileID = &video
		r.TranscriptDriveFileID = &doc
	})

	result, err := f.service.HandleNotification(ctx, "vid-55")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, result.Status)

	updated, err := f.repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "vid-55", *updated.VideoDriveFileID)
	assert.Equal(t, "doc-55", *updated.TranscriptDriveFileID)
}

func TestHandleNotificationNewestCandidateWins(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	older := f.seed(t, nil)

	// Push the older row's created_at back so ordering is deterministic.
	require.NoError(t, f.db.Model(&models.Recording{}).
		Where("id = ?", older.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	newer := f.seed(t, nil)

	result, err := f.service.HandleNotification(ctx, "doc-88")
	require.NoError(t, err)
	require.NotNil(t, result.RecordingID)
	assert.Equal(t, newer.ID, *result.RecordingID)
}

func TestHandleNotificationEmptyFileID(t *testing.T) {
	f := newWebhookFixture(t)

	_, err := f.service.HandleNotification(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
