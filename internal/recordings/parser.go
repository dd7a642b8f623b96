package recordings

import (
	"strings"

	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
)

const (
	transcriptMarker = "Transcript"
	meetingEndMarker = "Meeting ended"
)

// ParseMeetTranscript extracts the spoken-text body from a Meet transcript
// doc exported as plain text. The export carries the meeting title and
// attendance header before a "Transcript" heading, and a "Meeting ended ..."
// footer after the dialogue. When no heading is present the whole body is
// taken as dialogue.
//
// A document with no dialogue at all is an error: downstream analysis has
// nothing to work with and retrying will not change the file's content.
func ParseMeetTranscript(raw string) (string, error) {
	// The document resolved and exported; no usable text inside it is an
	// empty transcript, not a missing source.
	if strings.TrimSpace(raw) == "" {
		return "", pkgerrors.New(pkgerrors.CodeEmptyTranscript, "transcript document is empty")
	}

	lines := strings.Split(raw, "\n")

	body := lines
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), transcriptMarker) {
			body = lines[i+1:]
			break
		}
	}

	var kept []string
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, meetingEndMarker) {
			break
		}
		kept = append(kept, strings.TrimRight(line, " \t\r"))
	}

	text := strings.TrimSpace(strings.Join(kept, "\n"))
	if text == "" {
		return "", pkgerrors.New(pkgerrors.CodeEmptyTranscript, "transcript contains no dialogue")
	}
	return text, nil
}
