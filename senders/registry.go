package senders

import (
	"context"
	"net/http"

	"github.com/YGao2005/ucla-class-tracker/config"
	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sender delivers one notification event to one recipient. The returned id
// identifies the delivery on the platform (message id, mail id) for log
// correlation. Delivery is best-effort; failures are the caller's to log,
// never to retry.
type Sender interface {
	SendEvent(ctx context.Context, recipient string, state *models.ClassState, event models.NotificationEvent) (string, error)
}

type Registry map[string]Sender

func NewRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper, session *discordgo.Session) Registry {
	base := base{log, cfg, transport}

	registry := Registry{
		models.PlatformDiscord: &discordSender{base, session},
	}
	if cfg.Mailgun.Domain != "" {
		registry[models.PlatformEmail] = &mailgunSender{base}
	} else {
		log.Sugar().Info("Mailgun not configured, email notifications disabled")
	}
	return registry
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
