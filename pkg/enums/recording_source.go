package enums

import "fmt"

// RecordingSource identifies where a recording artifact originated.
type RecordingSource string

const (
	RecordingSourceGoogleMeet   RecordingSource = "google_meet"
	RecordingSourceManualUpload RecordingSource = "manual_upload"
)

var validRecordingSources = []RecordingSource{
	RecordingSourceGoogleMeet,
	RecordingSourceManualUpload,
}

func (s RecordingSource) String() string {
	return string(s)
}

func (s RecordingSource) IsValid() bool {
	for _, candidate := range validRecordingSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRecordingSource converts raw input into a RecordingSource.
func ParseRecordingSource(value string) (RecordingSource, error) {
	for _, candidate := range validRecordingSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recording source %q", value)
}
