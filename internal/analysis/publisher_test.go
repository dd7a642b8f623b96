package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
)

type fakeResult struct {
	id  string
	err error
}

func (f fakeResult) Get(context.Context) (string, error) { return f.id, f.err }

type fakePublisher struct {
	msg    *gcppubsub.Message
	result publishResult
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.msg = msg
	return f.result
}

func TestPublishTranscriptReady(t *testing.T) {
	fake := &fakePublisher{result: fakeResult{id: "m-1"}}
	pub := &Publisher{pub: fake}

	recordingID := uuid.New()
	transcriptID := uuid.New()
	clientID := uuid.New()

	err := pub.PublishTranscriptReady(context.Background(), recordingID, transcriptID, clientID)
	require.NoError(t, err)
	require.NotNil(t, fake.msg)

	assert.Equal(t, EventTranscriptReady, fake.msg.Attributes["event_type"])
	assert.Equal(t, recordingID.String(), fake.msg.Attributes["recording_id"])

	var event TranscriptReadyEvent
	require.NoError(t, json.Unmarshal(fake.msg.Data, &event))
	assert.Equal(t, EventTranscriptReady, event.EventType)
	assert.Equal(t, recordingID, event.RecordingID)
	assert.Equal(t, transcriptID, event.TranscriptID)
	assert.Equal(t, clientID, event.ClientID)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestPublishTranscriptReadyBrokerError(t *testing.T) {
	fake := &fakePublisher{result: fakeResult{err: errors.New("broker down")}}
	pub := &Publisher{pub: fake}

	err := pub.PublishTranscriptReady(context.Background(), uuid.New(), uuid.New(), uuid.New())
	assert.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDownstream))
}

func TestPublishTranscriptReadyDisabled(t *testing.T) {
	pub := NewPublisher(nil, nil)

	err := pub.PublishTranscriptReady(context.Background(), uuid.New(), uuid.New(), uuid.New())
	assert.NoError(t, err)
}
