package webhooks

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/carebridge-ops/carebridge-backend/api/responses"
	"github.com/carebridge-ops/carebridge-backend/api/validators"
	drivewebhook "github.com/carebridge-ops/carebridge-backend/internal/webhooks/drive"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
)

type notificationHandler interface {
	HandleNotification(ctx context.Context, fileID string) (drivewebhook.NotificationResult, error)
}

// pushEnvelope is the Pub/Sub push delivery wrapper. The data field carries
// the base64-encoded Drive file id.
type pushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId,omitempty"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		PublishTime string            `json:"publishTime,omitempty"`
	} `json:"message"`
	Subscription    string `json:"subscription,omitempty"`
	DeliveryAttempt int    `json:"deliveryAttempt,omitempty"`
}

// DriveNotification ingests a Pub/Sub push delivery for a Drive file change.
// Unmatched notifications are acknowledged with 200 so the broker does not
// redeliver them forever.
func DriveNotification(svc notificationHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		var envelope pushEnvelope
		if err := validators.DecodeJSONBody(r, &envelope); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		fileID, err := decodePushData(envelope.Message.Data)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.HandleNotification(ctx, fileID)
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeValidation) {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if result.Status == "" {
				// The failure happened before a processing decision, e.g.
				// the candidate lookup: let the broker redeliver.
				responses.WriteError(ctx, logg, w, err)
				return
			}
			// Processing failures are reported in the body, not the status:
			// a non-2xx here would trigger endless push retries.
			logg.Error(ctx, "drive notification processing failed", err)
		}
		responses.WriteSuccess(w, result)
	}
}

// DriveChallenge answers the endpoint verification handshake by echoing the
// challenge token back unchanged.
func DriveChallenge(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		challenge := r.URL.Query().Get("challenge")
		if challenge == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "challenge parameter is required"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"challenge": challenge})
	}
}

func decodePushData(data string) (string, error) {
	if strings.TrimSpace(data) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "message data is required")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(data)
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "message data is not valid base64")
	}
	return strings.TrimSpace(string(raw)), nil
}
