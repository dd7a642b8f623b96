package recordings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridge-ops/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

// ProcessRequest is a manual processing trigger for one recording.
type ProcessRequest struct {
	RecordingID           uuid.UUID
	VideoDriveFileID      string
	TranscriptDriveFileID string
}

// ProcessResponse reports the outcome of a manual trigger.
type ProcessResponse struct {
	Success        bool       `json:"success"`
	RecordingID    uuid.UUID  `json:"recording_id"`
	TranscriptID   *uuid.UUID `json:"transcript_id,omitempty"`
	ProcessingTime string     `json:"processing_time"`
	Message        string     `json:"message"`
}

type statusReader interface {
	recordingsRepository
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

type meetProcessor interface {
	ProcessMeetRecording(ctx context.Context, input ProcessInput) ProcessResult
}

// Service exposes recording lifecycle operations for the HTTP surface.
type Service interface {
	Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo      statusReader
	processor meetProcessor
}

// NewService constructs a recordings service.
func NewService(repo *Repository, processor *Processor) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("recordings repository required")
	}
	if processor == nil {
		return nil, fmt.Errorf("recording processor required")
	}
	return &service{repo: repo, processor: processor}, nil
}

func (s *service) Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	if req.RecordingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recording id is required")
	}

	rec, err := s.repo.FindByID(ctx, req.RecordingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "recording not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading recording")
	}

	switch rec.ProcessingStatus {
	case enums.RecordingStatusCompleted:
		// Re-triggering a finished recording is a harmless no-op.
		resp := &ProcessResponse{
			Success:        true,
			RecordingID:    rec.ID,
			ProcessingTime: time.Duration(0).String(),
			Message:        "recording already processed",
		}
		if transcript, terr := s.repo.FindTranscriptByRecording(ctx, rec.ID); terr == nil {
			resp.TranscriptID = &transcript.ID
		}
		return resp, nil
	case enums.RecordingStatusProcessing:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "recording is already being processed")
	case enums.RecordingStatusFailed, enums.RecordingStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("recording is %s and cannot be reprocessed", rec.ProcessingStatus))
	}

	result := s.processor.ProcessMeetRecording(ctx, ProcessInput{
		RecordingID:           req.RecordingID,
		VideoDriveFileID:      req.VideoDriveFileID,
		TranscriptDriveFileID: req.TranscriptDriveFileID,
		Trigger:               "manual",
		Options:               resilience.DefaultCallOptions(),
	})
	if result.Err != nil {
		if pkgerrors.Is(result.Err, pkgerrors.CodeStateConflict) {
			// Lost the claim between the status check and the transition.
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "recording is already being processed")
		}
		return nil, result.Err
	}

	return &ProcessResponse{
		Success:        true,
		RecordingID:    req.RecordingID,
		TranscriptID:   result.TranscriptID,
		ProcessingTime: result.ProcessingTime.String(),
		Message:        "recording processed",
	}, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recording id is required")
	}

	cancelled, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling recording")
	}
	if cancelled {
		return nil
	}

	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "recording not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading recording")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("recording is %s and can no longer be cancelled", rec.ProcessingStatus))
}
