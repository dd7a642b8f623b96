package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
)

// EventTranscriptReady is published after a transcript has been durably
// stored and is ready for tag extraction and escalation analysis.
const EventTranscriptReady = "transcript.ready"

// TranscriptReadyEvent is the payload handed to the downstream analyzer.
type TranscriptReadyEvent struct {
	EventType    string    `json:"event_type"`
	RecordingID  uuid.UUID `json:"recording_id"`
	TranscriptID uuid.UUID `json:"transcript_id"`
	ClientID     uuid.UUID `json:"client_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

// Publisher emits transcript.ready events. Publishing is best-effort by
// contract: the transcript is already stored when an event is emitted, so a
// failed publish is logged and the next reprocessing or a manual trigger can
// re-emit it.
type Publisher struct {
	pub    publisher
	logger *logger.Logger
}

// NewPublisher wraps a Pub/Sub publisher handle. A nil handle yields a
// disabled publisher that treats every publish as a logged no-op.
func NewPublisher(pub *gcppubsub.Publisher, logg *logger.Logger) *Publisher {
	var p publisher
	if pub != nil {
		p = &gcpPublisher{pub: pub}
	}
	return &Publisher{pub: p, logger: logg}
}

// PublishTranscriptReady emits a transcript.ready event and waits for the
// broker acknowledgement.
func (p *Publisher) PublishTranscriptReady(ctx context.Context, recordingID, transcriptID, clientID uuid.UUID) error {
	if p == nil || p.pub == nil {
		if p != nil && p.logger != nil {
			p.logger.Warn(ctx, "analysis publisher disabled, transcript.ready event dropped")
		}
		return nil
	}

	event := TranscriptReadyEvent{
		EventType:    EventTranscriptReady,
		RecordingID:  recordingID,
		TranscriptID: transcriptID,
		ClientID:     clientID,
		OccurredAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	result := p.pub.Publish(ctx, &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":   EventTranscriptReady,
			"recording_id": recordingID.String(),
		},
	})
	if result == nil {
		return errors.New("publish returned no result")
	}
	if _, err := result.Get(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDownstream, err, "publishing transcript.ready event")
	}

	if p.logger != nil {
		p.logger.Info(p.logger.WithRecordingID(ctx, recordingID.String()), "transcript.ready event published")
	}
	return nil
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (g *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if g == nil || g.pub == nil {
		return nil
	}
	return g.pub.Publish(ctx, msg)
}
