// Package bot runs the Discord slash-command interface: on-demand checks,
// subscription management, and per-user status overviews.
package bot

import (
	"context"

	"github.com/YGao2005/ucla-class-tracker/config"
	"github.com/YGao2005/ucla-class-tracker/lib"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewSession(cfg *config.Config) (*discordgo.Session, error) {
	return discordgo.New("Bot " + cfg.DiscordToken)
}

type Bot struct {
	cfg     *config.Config
	log     *zap.Logger
	svc     *lib.Service
	session *discordgo.Session

	registeredCommands []*discordgo.ApplicationCommand
}

func NewBot(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service, session *discordgo.Session) *Bot {
	b := &Bot{cfg: cfg, log: log, svc: svc, session: session}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return b.start() },
		OnStop:  func(ctx context.Context) error { return b.stop() },
	})
	return b
}

func (b *Bot) start() error {
	b.session.AddHandler(func(s *discordgo.Session, ready *discordgo.Ready) {
		b.log.Sugar().Infof("Discord bot logged in as %s", ready.User.Username)
	})

	handlers := map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"check":       b.check,
		"subscribe":   b.subscribe,
		"unsubscribe": b.unsubscribe,
		"list":        b.list,
		"status":      b.status,
	}
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if h, ok := handlers[i.ApplicationCommandData().Name]; ok {
			h(s, i)
		}
	})

	if err := b.session.Open(); err != nil {
		return err
	}

	for _, command := range commands() {
		cmd, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.cfg.DiscordGuildID, command)
		if err != nil {
			b.log.Sugar().Errorf("Could not register command %s: %v", command.Name, err)
			continue
		}
		b.log.Sugar().Infof("Registered command /%s", cmd.Name)
		b.registeredCommands = append(b.registeredCommands, cmd)
	}
	return nil
}

func (b *Bot) stop() error {
	for _, cmd := range b.registeredCommands {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.DiscordGuildID, cmd.ID); err != nil {
			b.log.Sugar().Warnf("Unable to delete command /%s: %v", cmd.Name, err)
		}
	}
	return b.session.Close()
}

func commands() []*discordgo.ApplicationCommand {
	classOptions := []*discordgo.ApplicationCommandOption{
		{
			Name:        "subject",
			Description: "Subject area, e.g. COM SCI",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		},
		{
			Name:        "course",
			Description: "Catalog number, e.g. 35L",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		},
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "check",
			Description: "Check current availability of a UCLA class",
			Options:     classOptions,
		},
		{
			Name:        "subscribe",
			Description: "Get notified when a class has open spots",
			Options:     classOptions,
		},
		{
			Name:        "unsubscribe",
			Description: "Stop receiving notifications for a class",
			Options:     classOptions,
		},
		{
			Name:        "list",
			Description: "Show all classes you are subscribed to",
		},
		{
			Name:        "status",
			Description: "Re-check every class you are subscribed to",
		},
	}
}

// interactionUserID works for interactions created in a guild or in DMs.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.User == nil {
		return i.Member.User.ID
	}
	return i.User.ID
}

func classOptionValues(i *discordgo.InteractionCreate) (subject, course string) {
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "subject":
			subject = opt.StringValue()
		case "course":
			course = opt.StringValue()
		}
	}
	return subject, course
}
