package enums

// TranscriptSource records which pipeline produced a transcript's text.
type TranscriptSource string

const (
	TranscriptSourceMeetAuto     TranscriptSource = "meet_auto"
	TranscriptSourceManualUpload TranscriptSource = "manual_upload"
)

func (s TranscriptSource) String() string {
	return string(s)
}
