package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/taskhub/internal/database/models"
	"github.com/hugh/taskhub/internal/notify"
	"github.com/hugh/taskhub/pkg/crypto"
	"gorm.io/gorm"
)

type Handler struct {
	db         *gorm.DB
	logger     *slog.Logger
	encryptor  *crypto.Encryptor
	mailer     notify.Mailer
	purgeGrace time.Duration
	now        func() time.Time
}

func NewHandler(db *gorm.DB, logger *slog.Logger, encryptor *crypto.Encryptor, mailer notify.Mailer, purgeGrace time.Duration) *Handler {
	return &Handler{
		db:         db,
		logger:     logger,
		encryptor:  encryptor,
		mailer:     mailer,
		purgeGrace: purgeGrace,
		now:        time.Now,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOTPDeliver, h.HandleOTPDeliver)
	mux.HandleFunc(TypeOTPPurge, h.HandleOTPPurge)
}

func (h *Handler) HandleOTPDeliver(ctx context.Context, t *asynq.Task) error {
	var payload OTPDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	code, err := h.encryptor.Open(payload.SealedCode)
	if err != nil {
		// A payload sealed under another key will never open.
		return fmt.Errorf("open code for user %d: %v: %w", payload.UserID, err, asynq.SkipRetry)
	}

	if err := h.mailer.SendCode(ctx, payload.Email, code); err != nil {
		h.logger.Error("code delivery failed", "user_id", payload.UserID, "error", err)
		return err
	}

	h.logger.Info("delivered verification code", "user_id", payload.UserID)
	return nil
}

// HandleOTPPurge deletes codes that expired, or were consumed, more than
// the grace period ago.
func (h *Handler) HandleOTPPurge(ctx context.Context, _ *asynq.Task) error {
	cutoff := h.now().UTC().Add(-h.purgeGrace)

	res := h.db.WithContext(ctx).
		Where("expires_at < ? OR consumed_at < ?", cutoff, cutoff).
		Delete(&models.OneTimeCode{})
	if res.Error != nil {
		return fmt.Errorf("purge codes: %w", res.Error)
	}

	h.logger.Info("purged verification codes", "deleted", res.RowsAffected, "cutoff", cutoff)
	return nil
}
