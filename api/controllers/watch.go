package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/carebridge-ops/carebridge-backend/api/responses"
	"github.com/carebridge-ops/carebridge-backend/api/validators"
	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
)

type watchManager interface {
	SetupDriveWatch(ctx context.Context, webhookURL, folderID string) (*models.WatchChannel, error)
}

type setupWatchPayload struct {
	WebhookURL string `json:"webhook_url" validate:"required,url"`
	FolderID   string `json:"folder_id,omitempty"`
}

type watchChannelResponse struct {
	ChannelID  string `json:"channel_id"`
	ResourceID string `json:"resource_id"`
	Expiration string `json:"expiration"`
}

// SetupWatch registers a Drive change notification channel pointed at the
// given webhook URL.
func SetupWatch(mgr watchManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if mgr == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "watch manager unavailable"))
			return
		}

		var payload setupWatchPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		channel, err := mgr.SetupDriveWatch(ctx, payload.WebhookURL, payload.FolderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"channel": watchChannelResponse{
				ChannelID:  channel.ChannelID,
				ResourceID: channel.ResourceID,
				Expiration: channel.ExpiresAt().UTC().Format(time.RFC3339),
			},
			"message": "watch channel registered",
		})
	}
}
