package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := drivev3.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	return &Client{
		svc:      svc,
		gate:     resilience.New(config.ResilienceConfig{}),
		folderID: "folder-123",
		timeout:  5 * time.Second,
	}
}

func TestListRecordingFiles(t *testing.T) {
	var gotQuery string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(drivev3.FileList{
			Files: []*drivev3.File{
				{
					Id:          "doc-1",
					Name:        "Weekly check-in - Transcript",
					MimeType:    DocMimeType,
					CreatedTime: "2026-08-20T10:05:00Z",
				},
				{
					Id:          "vid-1",
					Name:        "Weekly check-in (2026-08-20)",
					MimeType:    VideoMimeType,
					CreatedTime: "2026-08-20T10:04:00Z",
					Size:        1024,
				},
			},
		})
	})

	client := newTestClient(t, handler)

	from := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	to := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	files, err := client.ListRecordingFiles(context.Background(), resilience.DefaultCallOptions(), from, to)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.True(t, files[0].IsDoc())
	assert.False(t, files[0].IsVideo())
	assert.True(t, files[1].IsVideo())
	assert.Equal(t, time.Date(2026, 8, 20, 10, 5, 0, 0, time.UTC), files[0].CreatedTime)

	assert.Contains(t, gotQuery, "trashed = false")
	assert.Contains(t, gotQuery, "createdTime >= '2026-08-20T09:30:00Z'")
	assert.Contains(t, gotQuery, "createdTime <= '2026-08-20T10:30:00Z'")
	assert.Contains(t, gotQuery, "'folder-123' in parents")
}

func TestGetFileMetadataNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"code": 404, "message": "File not found"}}`))
	})

	client := newTestClient(t, handler)

	_, err := client.GetFileMetadata(context.Background(), resilience.DefaultCallOptions(), "missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pkgerrors.Code
	}{
		{
			name: "not found",
			err:  &googleapi.Error{Code: http.StatusNotFound},
			want: pkgerrors.CodeNotFound,
		},
		{
			name: "too many requests",
			err:  &googleapi.Error{Code: http.StatusTooManyRequests},
			want: pkgerrors.CodeRateLimited,
		},
		{
			name: "quota forbidden",
			err: &googleapi.Error{
				Code:   http.StatusForbidden,
				Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}},
			},
			want: pkgerrors.CodeRateLimited,
		},
		{
			name: "plain forbidden",
			err:  &googleapi.Error{Code: http.StatusForbidden},
			want: pkgerrors.CodeExternal,
		},
		{
			name: "server error",
			err:  &googleapi.Error{Code: http.StatusInternalServerError},
			want: pkgerrors.CodeExternal,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyAPIError("drive.files.get", tc.err)
			assert.True(t, pkgerrors.Is(got, tc.want))
		})
	}
}

func TestWatchChangesRequiresURL(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := client.WatchChanges(context.Background(), resilience.DefaultCallOptions(), "  ", time.Hour)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
