package recordings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	"github.com/carebridge-ops/carebridge-backend/pkg/drive"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

type stubLister struct {
	files []drive.FileMeta
	from  time.Time
	to    time.Time
	err   error
}

func (s *stubLister) ListRecordingFiles(_ context.Context, _ resilience.CallOptions, from, to time.Time) ([]drive.FileMeta, error) {
	s.from = from
	s.to = to
	return s.files, s.err
}

func testRecording(createdAt time.Time) *models.Recording {
	return &models.Recording{
		ID:        uuid.New(),
		ClientID:  uuid.New(),
		CreatedAt: createdAt,
	}
}

func TestLocatePrefersRecordingIDInName(t *testing.T) {
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rec := testRecording(start)

	lister := &stubLister{files: []drive.FileMeta{
		{ID: "doc-near", Name: "Weekly check-in - Transcript", MimeType: drive.DocMimeType, CreatedTime: start.Add(time.Minute)},
		{ID: "doc-tagged", Name: "rec " + rec.ID.String() + " transcript", MimeType: drive.DocMimeType, CreatedTime: start.Add(25 * time.Minute)},
	}}

	locator, err := NewLocator(lister, 30*time.Minute)
	require.NoError(t, err)

	located, err := locator.Locate(context.Background(), resilience.DefaultCallOptions(), rec)
	require.NoError(t, err)
	require.NotNil(t, located.Transcript)
	assert.Equal(t, "doc-tagged", located.Transcript.ID)
	assert.Nil(t, located.Video)
}

func TestLocateFallsBackToAlertID(t *testing.T) {
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rec := testRecording(start)
	alertID := uuid.New()
	rec.AlertID = &alertID

	lister := &stubLister{files: []drive.FileMeta{
		{ID: "vid-near", Name: "Check-in (2026-08-20)", MimeType: drive.VideoMimeType, CreatedTime: start.Add(time.Minute)},
		{ID: "vid-alert", Name: "Alert " + alertID.String() + " follow-up", MimeType: drive.VideoMimeType, CreatedTime: start.Add(20 * time.Minute)},
	}}

	locator, err := NewLocator(lister, 30*time.Minute)
	require.NoError(t, err)

	located, err := locator.Locate(context.Background(), resilience.DefaultCallOptions(), rec)
	require.NoError(t, err)
	require.NotNil(t, located.Video)
	assert.Equal(t, "vid-alert", located.Video.ID)
}

func TestLocateClosestToStartWins(t *testing.T) {
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rec := testRecording(start)

	lister := &stubLister{files: []drive.FileMeta{
		{ID: "doc-far", Name: "Morning call - Transcript", MimeType: drive.DocMimeType, CreatedTime: start.Add(-25 * time.Minute)},
		{ID: "doc-close", Name: "Afternoon call - Transcript", MimeType: drive.DocMimeType, CreatedTime: start.Add(3 * time.Minute)},
		{ID: "vid-close", Name: "Afternoon call", MimeType: drive.VideoMimeType, CreatedTime: start.Add(4 * time.Minute)},
	}}

	locator, err := NewLocator(lister, 30*time.Minute)
	require.NoError(t, err)

	located, err := locator.Locate(context.Background(), resilience.DefaultCallOptions(), rec)
	require.NoError(t, err)
	require.NotNil(t, located.Transcript)
	require.NotNil(t, located.Video)
	assert.Equal(t, "doc-close", located.Transcript.ID)
	assert.Equal(t, "vid-close", located.Video.ID)
}

func TestLocateSearchWindow(t *testing.T) {
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rec := testRecording(start)

	lister := &stubLister{}
	locator, err := NewLocator(lister, 30*time.Minute)
	require.NoError(t, err)

	located, err := locator.Locate(context.Background(), resilience.DefaultCallOptions(), rec)
	require.NoError(t, err)
	assert.Nil(t, located.Transcript)
	assert.Nil(t, located.Video)
	assert.Equal(t, start.Add(-30*time.Minute), lister.from)
	assert.Equal(t, start.Add(30*time.Minute), lister.to)
}

func TestNewLocatorRequiresClient(t *testing.T) {
	_, err := NewLocator(nil, time.Minute)
	assert.Error(t, err)
}
