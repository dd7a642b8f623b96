package recordings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	"github.com/carebridge-ops/carebridge-backend/pkg/enums"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

type recordingsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.RecordingStatus) (bool, error)
	FillDriveFileIDs(ctx context.Context, id uuid.UUID, videoFileID, transcriptFileID string) error
	CreateTranscript(ctx context.Context, transcript *models.Transcript) (*models.Transcript, error)
	FindTranscriptByRecording(ctx context.Context, recordingID uuid.UUID) (*models.Transcript, error)
}

type fileLocator interface {
	Locate(ctx context.Context, opts resilience.CallOptions, rec *models.Recording) (LocatedFiles, error)
}

type driveFetcher interface {
	ExportDoc(ctx context.Context, opts resilience.CallOptions, fileID string) (string, error)
	DownloadFile(ctx context.Context, opts resilience.CallOptions, fileID string) ([]byte, error)
}

type analysisTrigger interface {
	PublishTranscriptReady(ctx context.Context, recordingID, transcriptID, clientID uuid.UUID) error
}

type outcomeSink interface {
	RecordOutcome(ctx context.Context, recordingID uuid.UUID, status, trigger string, duration time.Duration, errorCode string) error
}

// ProcessInput identifies the recording to process and carries any file ids
// the caller already knows (e.g. from a webhook notification).
type ProcessInput struct {
	RecordingID           uuid.UUID
	VideoDriveFileID      string
	TranscriptDriveFileID string
	Trigger               string
	Options               resilience.CallOptions
}

// ProcessResult reports the outcome of one processing attempt.
type ProcessResult struct {
	Success        bool
	TranscriptID   *uuid.UUID
	ProcessingTime time.Duration
	Err            error
}

// ProcessorParams bundles the processor's collaborators.
type ProcessorParams struct {
	Repo     recordingsRepository
	Locator  fileLocator
	Drive    driveFetcher
	Analysis analysisTrigger
	Outcomes outcomeSink
	Logger   *logger.Logger
}

// Processor runs the full pipeline for one recording: claim, locate files,
// extract the transcript, persist, hand off to analysis. It is safe for the
// webhook and poll paths to race on the same recording: the pending →
// processing transition has exactly one winner, the loser gets a state
// conflict and must not retry.
type Processor struct {
	repo     recordingsRepository
	locator  fileLocator
	drive    driveFetcher
	analysis analysisTrigger
	outcomes outcomeSink
	logger   *logger.Logger
}

// NewProcessor validates collaborators and builds a processor. Analysis and
// Outcomes are optional.
func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Repo == nil {
		return nil, errors.New("recordings repository required")
	}
	if params.Locator == nil {
		return nil, errors.New("file locator required")
	}
	if params.Drive == nil {
		return nil, errors.New("drive client required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Processor{
		repo:     params.Repo,
		locator:  params.Locator,
		drive:    params.Drive,
		analysis: params.Analysis,
		outcomes: params.Outcomes,
		logger:   params.Logger,
	}, nil
}

// ProcessMeetRecording drives one recording from pending to a terminal
// status. The recording is never left in processing: every failure path
// after the claim transitions it to failed before returning.
func (p *Processor) ProcessMeetRecording(ctx context.Context, input ProcessInput) ProcessResult {
	started := time.Now()
	ctx = p.logger.WithRecordingID(ctx, input.RecordingID.String())

	rec, err := p.repo.FindByID(ctx, input.RecordingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "recording not found")
		} else {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading recording")
		}
		return p.finish(ctx, input, started, ProcessResult{Err: err})
	}

	claimed, err := p.repo.TransitionStatus(ctx, rec.ID, enums.RecordingStatusPending, enums.RecordingStatusProcessing)
	if err != nil {
		return p.finish(ctx, input, started, ProcessResult{
			Err: pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claiming recording"),
		})
	}
	if !claimed {
		return p.finish(ctx, input, started, ProcessResult{
			Err: pkgerrors.New(pkgerrors.CodeStateConflict, "recording is not pending"),
		})
	}

	result := p.runClaimed(ctx, rec, input)
	if result.Err != nil {
		// The claim succeeded, so a terminal status is on us.
		if _, ferr := p.repo.TransitionStatus(ctx, rec.ID, enums.RecordingStatusProcessing, enums.RecordingStatusFailed); ferr != nil {
			p.logger.Error(ctx, "marking recording failed", ferr)
		}
	}
	return p.finish(ctx, input, started, result)
}

func (p *Processor) runClaimed(ctx context.Context, rec *models.Recording, input ProcessInput) ProcessResult {
	videoFileID := firstNonEmpty(input.VideoDriveFileID, deref(rec.VideoDriveFileID))
	transcriptFileID := firstNonEmpty(input.TranscriptDriveFileID, deref(rec.TranscriptDriveFileID))

	if transcriptFileID == "" || videoFileID == "" {
		located, err := p.locator.Locate(ctx, input.Options, rec)
		if err != nil {
			return ProcessResult{Err: err}
		}
		if transcriptFileID == "" && located.Transcript != nil {
			transcriptFileID = located.Transcript.ID
		}
		if videoFileID == "" && located.Video != nil {
			videoFileID = located.Video.ID
		}
	}

	if transcriptFileID == "" {
		return ProcessResult{Err: pkgerrors.New(pkgerrors.CodeEmptyTranscriptSource, "no transcript file found for recording")}
	}

	raw, err := p.drive.ExportDoc(ctx, input.Options, transcriptFileID)
	if err != nil {
		return ProcessResult{Err: err}
	}
	text, err := ParseMeetTranscript(raw)
	if err != nil {
		return ProcessResult{Err: err}
	}

	// Video is an enrichment; the transcript alone decides success.
	if videoFileID != "" {
		if body, err := p.drive.DownloadFile(ctx, input.Options, videoFileID); err != nil {
			p.logger.Warn(p.logger.WithDriveFileID(ctx, videoFileID), "video download failed, continuing without it")
		} else {
			p.logger.Info(p.logger.WithFields(ctx, map[string]any{
				"drive_file_id": videoFileID,
				"video_bytes":   len(body),
			}), "video downloaded")
		}
	}

	if err := p.repo.FillDriveFileIDs(ctx, rec.ID, videoFileID, transcriptFileID); err != nil {
		return ProcessResult{Err: pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording file ids")}
	}

	transcript, err := p.repo.CreateTranscript(ctx, &models.Transcript{
		RecordingID:      rec.ID,
		TranscriptText:   text,
		TranscriptSource: enums.TranscriptSourceMeetAuto,
		DriveFileID:      transcriptFileID,
	})
	if err != nil {
		// A previous attempt may already have stored the transcript.
		existing, findErr := p.repo.FindTranscriptByRecording(ctx, rec.ID)
		if findErr != nil {
			return ProcessResult{Err: pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing transcript")}
		}
		transcript = existing
	}

	if p.analysis != nil {
		if err := p.analysis.PublishTranscriptReady(ctx, rec.ID, transcript.ID, rec.ClientID); err != nil {
			// Transcript is durable; analysis can be re-triggered later.
			p.logger.Error(ctx, "publishing transcript.ready", err)
		}
	}

	completed, err := p.repo.TransitionStatus(ctx, rec.ID, enums.RecordingStatusProcessing, enums.RecordingStatusCompleted)
	if err != nil {
		return ProcessResult{Err: pkgerrors.Wrap(pkgerrors.CodeInternal, err, "completing recording")}
	}
	if !completed {
		return ProcessResult{Err: pkgerrors.New(pkgerrors.CodeStateConflict, "recording left processing unexpectedly")}
	}

	return ProcessResult{Success: true, TranscriptID: &transcript.ID}
}

func (p *Processor) finish(ctx context.Context, input ProcessInput, started time.Time, result ProcessResult) ProcessResult {
	result.ProcessingTime = time.Since(started)

	status := "failed"
	errorCode := ""
	switch {
	case result.Success:
		status = "completed"
	case pkgerrors.Is(result.Err, pkgerrors.CodeStateConflict):
		status = "skipped"
	}
	if result.Err != nil {
		if typed := pkgerrors.As(result.Err); typed != nil {
			errorCode = string(typed.Code())
		}
	}

	if p.outcomes != nil {
		if err := p.outcomes.RecordOutcome(ctx, input.RecordingID, status, input.Trigger, result.ProcessingTime, errorCode); err != nil {
			p.logger.Error(ctx, "recording processing outcome", err)
		}
	}

	switch {
	case result.Success:
		p.logger.Info(ctx, "recording processed")
	case status == "skipped":
		p.logger.Info(ctx, "recording already claimed, skipping")
	default:
		p.logger.Error(ctx, "recording processing failed", result.Err)
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
