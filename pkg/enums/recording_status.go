package enums

import "fmt"

// RecordingStatus describes the processing lifecycle of a recording.
type RecordingStatus string

const (
	RecordingStatusPending    RecordingStatus = "pending"
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusCompleted  RecordingStatus = "completed"
	RecordingStatusFailed     RecordingStatus = "failed"
	RecordingStatusCancelled  RecordingStatus = "cancelled"
)

var validRecordingStatuses = []RecordingStatus{
	RecordingStatusPending,
	RecordingStatusProcessing,
	RecordingStatusCompleted,
	RecordingStatusFailed,
	RecordingStatusCancelled,
}

// String returns the literal string for the status.
func (s RecordingStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s RecordingStatus) IsValid() bool {
	for _, candidate := range validRecordingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transition applies.
func (s RecordingStatus) IsTerminal() bool {
	switch s {
	case RecordingStatusCompleted, RecordingStatusFailed, RecordingStatusCancelled:
		return true
	}
	return false
}

// ParseRecordingStatus converts raw input into a RecordingStatus.
func ParseRecordingStatus(value string) (RecordingStatus, error) {
	for _, candidate := range validRecordingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recording status %q", value)
}
