package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

const (
	// MIME types produced by Meet auto-recording.
	DocMimeType   = "application/vnd.google-apps.document"
	VideoMimeType = "video/mp4"

	exportMimeType = "text/plain"
	listPageSize   = 100
)

// FileMeta is the subset of Drive file metadata the pipeline cares about.
type FileMeta struct {
	ID          string
	Name        string
	MimeType    string
	CreatedTime time.Time
	Size        int64
	WebViewLink string
}

// IsDoc reports whether the file is a Google Doc (transcript candidate).
func (f FileMeta) IsDoc() bool {
	return f.MimeType == DocMimeType
}

// IsVideo reports whether the file is a video recording candidate.
func (f FileMeta) IsVideo() bool {
	return strings.HasPrefix(f.MimeType, "video/")
}

// Channel describes a registered push-notification subscription.
type Channel struct {
	ChannelID  string
	ResourceID string
	Expiration int64
}

// Client wraps the Drive v3 API. Every call passes through the shared
// resilience gate before touching the network.
type Client struct {
	svc      *drive.Service
	gate     *resilience.Gate
	folderID string
	timeout  time.Duration
}

// NewClient builds a Drive client using service-account credentials.
func NewClient(ctx context.Context, cfg config.DriveConfig, gcp config.GCPConfig, gate *resilience.Gate, logg *logger.Logger) (*Client, error) {
	if gate == nil {
		return nil, errors.New("resilience gate is required")
	}

	opts := []option.ClientOption{option.WithScopes(drive.DriveScope)}
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	if logg != nil {
		logg.Info(ctx, "drive client initialized")
	}

	return &Client{
		svc:      svc,
		gate:     gate,
		folderID: strings.TrimSpace(cfg.RecordingsFolderID),
		timeout:  timeout,
	}, nil
}

// RecordingsFolderID returns the configured Meet recordings folder, if any.
func (c *Client) RecordingsFolderID() string {
	return c.folderID
}

// ListRecordingFiles returns doc and video files created inside [from, to],
// scoped to the recordings folder when one is configured.
func (c *Client) ListRecordingFiles(ctx context.Context, opts resilience.CallOptions, from, to time.Time) ([]FileMeta, error) {
	clauses := []string{
		fmt.Sprintf("(mimeType = '%s' or mimeType contains 'video/')", DocMimeType),
		"trashed = false",
		fmt.Sprintf("createdTime >= '%s'", from.UTC().Format(time.RFC3339)),
		fmt.Sprintf("createdTime <= '%s'", to.UTC().Format(time.RFC3339)),
	}
	if c.folderID != "" {
		clauses = append(clauses, fmt.Sprintf("'%s' in parents", c.folderID))
	}
	query := strings.Join(clauses, " and ")

	var files []FileMeta
	err := c.do(ctx, "drive.files.list", opts, func(callCtx context.Context) error {
		files = files[:0]
		pageToken := ""
		for {
			call := c.svc.Files.List().
				Q(query).
				PageSize(listPageSize).
				OrderBy("createdTime desc").
				Fields("nextPageToken, files(id, name, mimeType, createdTime, size, webViewLink)").
				Context(callCtx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			list, err := call.Do()
			if err != nil {
				return err
			}
			for _, f := range list.Files {
				files = append(files, toFileMeta(f))
			}
			if list.NextPageToken == "" {
				return nil
			}
			pageToken = list.NextPageToken
		}
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// GetFileMetadata fetches name/createdTime/size/webViewLink for one file.
func (c *Client) GetFileMetadata(ctx context.Context, opts resilience.CallOptions, fileID string) (FileMeta, error) {
	var meta FileMeta
	err := c.do(ctx, "drive.files.get", opts, func(callCtx context.Context) error {
		f, err := c.svc.Files.Get(fileID).
			Fields("id, name, mimeType, createdTime, size, webViewLink").
			Context(callCtx).
			Do()
		if err != nil {
			return err
		}
		meta = toFileMeta(f)
		return nil
	})
	if err != nil {
		return FileMeta{}, err
	}
	return meta, nil
}

// DownloadFile streams the binary content of a file into memory.
func (c *Client) DownloadFile(ctx context.Context, opts resilience.CallOptions, fileID string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, "drive.files.download", opts, func(callCtx context.Context) error {
		resp, err := c.svc.Files.Get(fileID).Context(callCtx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// ExportDoc asks Drive to export a Google Doc as plain text. The export still
// carries the provider's headers and boilerplate; parsing happens upstream.
func (c *Client) ExportDoc(ctx context.Context, opts resilience.CallOptions, fileID string) (string, error) {
	var text string
	err := c.do(ctx, "drive.files.export", opts, func(callCtx context.Context) error {
		resp, err := c.svc.Files.Export(fileID, exportMimeType).Context(callCtx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		text = string(raw)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// WatchChanges registers a push-notification channel on the changes feed.
// The provider caps channel lifetime (nominally 7 days).
func (c *Client) WatchChanges(ctx context.Context, opts resilience.CallOptions, webhookURL string, ttl time.Duration) (Channel, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return Channel{}, pkgerrors.New(pkgerrors.CodeValidation, "webhook url is required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	var channel Channel
	err := c.do(ctx, "drive.changes.watch", opts, func(callCtx context.Context) error {
		token, err := c.svc.Changes.GetStartPageToken().Context(callCtx).Do()
		if err != nil {
			return err
		}
		requested := &drive.Channel{
			Id:         uuid.NewString(),
			Type:       "web_hook",
			Address:    webhookURL,
			Expiration: time.Now().Add(ttl).UnixMilli(),
		}
		created, err := c.svc.Changes.Watch(token.StartPageToken, requested).Context(callCtx).Do()
		if err != nil {
			return err
		}
		channel = Channel{
			ChannelID:  created.Id,
			ResourceID: created.ResourceId,
			Expiration: created.Expiration,
		}
		return nil
	})
	if err != nil {
		return Channel{}, err
	}
	return channel, nil
}

func (c *Client) do(ctx context.Context, op string, opts resilience.CallOptions, fn func(context.Context) error) error {
	err := c.gate.Do(ctx, op, opts, func(gateCtx context.Context) error {
		callCtx, cancel := context.WithTimeout(gateCtx, c.timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return classifyAPIError(op, err)
}

func classifyAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("%s: file not found", op))
		case apiErr.Code == http.StatusTooManyRequests, isRateLimitedForbidden(apiErr):
			return pkgerrors.Wrap(pkgerrors.CodeRateLimited, err, fmt.Sprintf("%s: provider rate limit", op))
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeExternal, err, fmt.Sprintf("%s failed", op))
}

// Drive reports quota exhaustion as 403 with a rate-limit reason.
func isRateLimitedForbidden(apiErr *googleapi.Error) bool {
	if apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, e := range apiErr.Errors {
		if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

func toFileMeta(f *drive.File) FileMeta {
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	return FileMeta{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		CreatedTime: created,
		Size:        f.Size,
		WebViewLink: f.WebViewLink,
	}
}
