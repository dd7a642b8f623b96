package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebridge-ops/carebridge-backend/api/responses"
	"github.com/carebridge-ops/carebridge-backend/api/validators"
	"github.com/carebridge-ops/carebridge-backend/internal/recordings"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
)

type processRecordingPayload struct {
	RecordingID           string `json:"recording_id" validate:"required,uuid"`
	VideoDriveFileID      string `json:"video_drive_file_id,omitempty"`
	TranscriptDriveFileID string `json:"transcript_drive_file_id,omitempty"`
}

// ProcessRecording triggers processing of one recording on demand.
func ProcessRecording(svc recordings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recordings service unavailable"))
			return
		}

		var payload processRecordingPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		recordingID, err := uuid.Parse(payload.RecordingID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recording id"))
			return
		}

		resp, err := svc.Process(ctx, recordings.ProcessRequest{
			RecordingID:           recordingID,
			VideoDriveFileID:      payload.VideoDriveFileID,
			TranscriptDriveFileID: payload.TranscriptDriveFileID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, resp)
	}
}

// CancelRecording cancels a pending recording.
func CancelRecording(svc recordings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recordings service unavailable"))
			return
		}

		recordingID, err := uuid.Parse(chi.URLParam(r, "recordingId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recording id"))
			return
		}

		if err := svc.Cancel(ctx, recordingID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"recording_id": recordingID,
			"status":       "cancelled",
		})
	}
}
