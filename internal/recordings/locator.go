package recordings

import (
	"context"
	"strings"
	"time"

	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	"github.com/carebridge-ops/carebridge-backend/pkg/drive"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

type driveLister interface {
	ListRecordingFiles(ctx context.Context, opts resilience.CallOptions, from, to time.Time) ([]drive.FileMeta, error)
}

// LocatedFiles is the outcome of a Drive search for one recording. Either
// pointer may be nil when no matching file was found.
type LocatedFiles struct {
	Video      *drive.FileMeta
	Transcript *drive.FileMeta
}

// Locator matches Drive files to recordings. Meet names its artifacts after
// the meeting title, so matching is heuristic: an explicit id reference in
// the file name wins, otherwise the file created closest to the recording's
// start inside the search window is taken.
type Locator struct {
	drive      driveLister
	timeWindow time.Duration
}

// NewLocator constructs a file locator over the given Drive client.
func NewLocator(driveClient driveLister, timeWindow time.Duration) (*Locator, error) {
	if driveClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "drive client required")
	}
	if timeWindow <= 0 {
		timeWindow = 30 * time.Minute
	}
	return &Locator{drive: driveClient, timeWindow: timeWindow}, nil
}

// Locate searches Drive for the recording's video and transcript files
// created within the time window around the recording's creation.
func (l *Locator) Locate(ctx context.Context, opts resilience.CallOptions, rec *models.Recording) (LocatedFiles, error) {
	from := rec.CreatedAt.Add(-l.timeWindow)
	to := rec.CreatedAt.Add(l.timeWindow)

	files, err := l.drive.ListRecordingFiles(ctx, opts, from, to)
	if err != nil {
		return LocatedFiles{}, err
	}

	var docs, videos []drive.FileMeta
	for _, f := range files {
		switch {
		case f.IsDoc():
			docs = append(docs, f)
		case f.IsVideo():
			videos = append(videos, f)
		}
	}

	return LocatedFiles{
		Video:      l.pickBest(videos, rec),
		Transcript: l.pickBest(docs, rec),
	}, nil
}

func (l *Locator) pickBest(files []drive.FileMeta, rec *models.Recording) *drive.FileMeta {
	if len(files) == 0 {
		return nil
	}

	if f := matchByToken(files, rec.ID.String()); f != nil {
		return f
	}
	if rec.AlertID != nil {
		if f := matchByToken(files, rec.AlertID.String()); f != nil {
			return f
		}
	}

	// No explicit reference: take the file created closest to the
	// recording's start.
	best := files[0]
	bestDelta := absDuration(best.CreatedTime.Sub(rec.CreatedAt))
	for _, f := range files[1:] {
		delta := absDuration(f.CreatedTime.Sub(rec.CreatedAt))
		if delta < bestDelta {
			best = f
			bestDelta = delta
		}
	}
	return &best
}

func matchByToken(files []drive.FileMeta, token string) *drive.FileMeta {
	if token == "" {
		return nil
	}
	needle := strings.ToLower(token)
	for i := range files {
		if strings.Contains(strings.ToLower(files[i].Name), needle) {
			return &files[i]
		}
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
