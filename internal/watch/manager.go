package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	"github.com/carebridge-ops/carebridge-backend/pkg/drive"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

type channelWatcher interface {
	WatchChanges(ctx context.Context, opts resilience.CallOptions, webhookURL string, ttl time.Duration) (drive.Channel, error)
}

// Repository persists watch channel registrations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a watch channel repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a channel registration.
func (r *Repository) Create(ctx context.Context, channel *models.WatchChannel) (*models.WatchChannel, error) {
	if channel.ID == uuid.Nil {
		channel.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return nil, err
	}
	return channel, nil
}

// Latest returns the most recently registered channel, or nil when none exists.
func (r *Repository) Latest(ctx context.Context) (*models.WatchChannel, error) {
	var channel models.WatchChannel
	err := r.db.WithContext(ctx).Order("created_at DESC").First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// Manager registers and renews Drive push-notification channels. The
// provider caps channel lifetime (nominally 7 days); polling stays the
// safety net, so a lapsed channel degrades delivery latency, not
// correctness.
type Manager struct {
	repo   *Repository
	drive  channelWatcher
	cfg    config.WatchConfig
	logger *logger.Logger
}

// NewManager builds a watch channel manager.
func NewManager(repo *Repository, driveClient channelWatcher, cfg config.WatchConfig, logg *logger.Logger) (*Manager, error) {
	if repo == nil {
		return nil, fmt.Errorf("watch repository required")
	}
	if driveClient == nil {
		return nil, fmt.Errorf("drive client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Manager{repo: repo, drive: driveClient, cfg: cfg, logger: logg}, nil
}

// SetupDriveWatch registers a push channel for the webhook URL and persists
// the registration.
func (m *Manager) SetupDriveWatch(ctx context.Context, webhookURL, folderID string) (*models.WatchChannel, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook url is required")
	}

	created, err := m.drive.WatchChanges(ctx, resilience.DefaultCallOptions(), webhookURL, m.cfg.TTL)
	if err != nil {
		return nil, err
	}

	channel := &models.WatchChannel{
		ChannelID:  created.ChannelID,
		ResourceID: created.ResourceID,
		WebhookURL: webhookURL,
		Expiration: created.Expiration,
	}
	if folderID = strings.TrimSpace(folderID); folderID != "" {
		channel.FolderID = &folderID
	}

	stored, err := m.repo.Create(ctx, channel)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing watch channel")
	}

	m.logger.Info(m.logger.WithFields(ctx, map[string]any{
		"channel_id": stored.ChannelID,
		"expires_at": stored.ExpiresAt().Format(time.RFC3339),
	}), "drive watch channel registered")
	return stored, nil
}

// ActiveChannel returns the latest registration, expired or not, so
// operators can see staleness.
func (m *Manager) ActiveChannel(ctx context.Context) (*models.WatchChannel, error) {
	return m.repo.Latest(ctx)
}

// NeedsRenewal reports whether the channel is missing, expired, or inside
// the renewal margin.
func (m *Manager) NeedsRenewal(channel *models.WatchChannel, now time.Time) bool {
	if channel == nil {
		return true
	}
	return now.Add(m.cfg.RenewalMargin).After(channel.ExpiresAt())
}

// RenewIfNeeded re-registers the current channel when it is close to expiry.
// Without a prior registration there is no webhook URL to renew against, so
// it is a no-op until an operator calls SetupDriveWatch once.
func (m *Manager) RenewIfNeeded(ctx context.Context) error {
	channel, err := m.repo.Latest(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading watch channel")
	}
	if channel == nil {
		m.logger.Info(ctx, "no watch channel registered, skipping renewal")
		return nil
	}
	if !m.NeedsRenewal(channel, time.Now()) {
		return nil
	}

	folderID := ""
	if channel.FolderID != nil {
		folderID = *channel.FolderID
	}
	_, err = m.SetupDriveWatch(ctx, channel.WebhookURL, folderID)
	return err
}
