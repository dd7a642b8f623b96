package drive

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carebridge-ops/carebridge-backend/internal/recordings"
	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

type candidateFinder interface {
	FindWebhookCandidates(ctx context.Context, fileID string) ([]models.Recording, error)
}

type meetProcessor interface {
	ProcessMeetRecording(ctx context.Context, input recordings.ProcessInput) recordings.ProcessResult
}

// NotificationResult tells the push provider what happened. Every outcome
// short of an internal failure acknowledges the delivery: the provider
// retries unacked notifications, and polling already covers missed ones.
type NotificationResult struct {
	Status      string     `json:"status"`
	Message     string     `json:"message"`
	RecordingID *uuid.UUID `json:"recording_id,omitempty"`
}

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusIgnored   = "ignored"
	StatusFailed    = "failed"
)

// Service ingests Drive push notifications: it maps a notified file id onto
// a pending recording and hands it to the processor.
type Service struct {
	repo      candidateFinder
	processor meetProcessor
	logger    *logger.Logger
}

// NewService constructs the webhook ingestor.
func NewService(repo candidateFinder, processor meetProcessor, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("recordings repository required")
	}
	if processor == nil {
		return nil, fmt.Errorf("recording processor required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, processor: processor, logger: logg}, nil
}

// HandleNotification processes one decoded file id. Candidates are pending
// Meet recordings that reference the file or have no files matched yet; the
// most recently created one wins the first-contact case.
func (s *Service) HandleNotification(ctx context.Context, fileID string) (NotificationResult, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return NotificationResult{}, pkgerrors.New(pkgerrors.CodeValidation, "file id is required")
	}
	ctx = s.logger.WithDriveFileID(ctx, fileID)

	candidates, err := s.repo.FindWebhookCandidates(ctx, fileID)
	if err != nil {
		return NotificationResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up webhook candidates")
	}
	if len(candidates) == 0 {
		s.logger.Info(ctx, "notification matched no pending recording")
		return NotificationResult{Status: StatusIgnored, Message: "no matching recording"}, nil
	}

	candidate := candidates[0]
	input := recordings.ProcessInput{
		RecordingID: candidate.ID,
		Trigger:     "webhook",
		Options:     resilience.DefaultCallOptions(),
	}
	switch {
	case candidate.VideoDriveFileID != nil && *candidate.VideoDriveFileID == fileID:
		input.VideoDriveFileID = fileID
	default:
		// Unknown or transcript-matching file: transcripts are the
		// success-critical artifact, so assume transcript.
		input.TranscriptDriveFileID = fileID
	}

	result := s.processor.ProcessMeetRecording(ctx, input)
	switch {
	case result.Success:
		return NotificationResult{
			Status:      StatusProcessed,
			Message:     "recording processed",
			RecordingID: &candidate.ID,
		}, nil
	case pkgerrors.Is(result.Err, pkgerrors.CodeStateConflict):
		// The poll path (or an earlier delivery) won the race.
		return NotificationResult{
			Status:      StatusSkipped,
			Message:     "recording already claimed",
			RecordingID: &candidate.ID,
		}, nil
	default:
		return NotificationResult{
			Status:      StatusFailed,
			Message:     "recording processing failed",
			RecordingID: &candidate.ID,
		}, result.Err
	}
}
