package recordings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	"github.com/carebridge-ops/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
)

func newServiceFixture(t *testing.T) (*processorFixture, Service) {
	t.Helper()

	f := newProcessorFixture(t)
	svc, err := NewService(f.repo, f.processor)
	require.NoError(t, err)
	return f, svc
}

func TestServiceProcessPending(t *testing.T) {
	f, svc := newServiceFixture(t)

	rec := seedRecording(t, f.repo, nil)

	resp, err := svc.Process(context.Background(), ProcessRequest{RecordingID: rec.ID})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.TranscriptID)
	assert.Equal(t, rec.ID, resp.RecordingID)
}

func TestServiceProcessCompletedIsNoop(t *testing.T) {
	f, svc := newServiceFixture(t)
	ctx := context.Background()

	rec := seedRecording(t, f.repo, nil)
	_, err := svc.Process(ctx, ProcessRequest{RecordingID: rec.ID})
	require.NoError(t, err)

	before := f.locator.calls
	resp, err := svc.Process(ctx, ProcessRequest{RecordingID: rec.ID})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "recording already processed", resp.Message)
	require.NotNil(t, resp.TranscriptID)
	assert.Equal(t, before, f.locator.calls)
}

func TestServiceProcessAlreadyProcessing(t *testing.T) {
	f, svc := newServiceFixture(t)

	rec := seedRecording(t, f.repo, func(r *models.Recording) {
		r.ProcessingStatus = enums.RecordingStatusProcessing
	})

	_, err := svc.Process(context.Background(), ProcessRequest{RecordingID: rec.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestServiceProcessTerminalStates(t *testing.T) {
	f, svc := newServiceFixture(t)

	for _, status := range []enums.RecordingStatus{
		enums.RecordingStatusFailed,
		enums.RecordingStatusCancelled,
	} {
		rec := seedRecording(t, f.repo, func(r *models.Recording) {
			r.ProcessingStatus = status
		})

		_, err := svc.Process(context.Background(), ProcessRequest{RecordingID: rec.ID})
		require.Error(t, err)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "status %s", status)
	}
}

func TestServiceProcessUnknownRecording(t *testing.T) {
	_, svc := newServiceFixture(t)

	_, err := svc.Process(context.Background(), ProcessRequest{RecordingID: uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestServiceCancel(t *testing.T) {
	f, svc := newServiceFixture(t)
	ctx := context.Background()

	rec := seedRecording(t, f.repo, nil)
	require.NoError(t, svc.Cancel(ctx, rec.ID))

	found, err := f.repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RecordingStatusCancelled, found.ProcessingStatus)

	// Cancel is only valid while pending.
	err = svc.Cancel(ctx, rec.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	err = svc.Cancel(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
