package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/YGao2005/ucla-class-tracker/lib/scraper"
	"github.com/bwmarrin/discordgo"
)

func (b *Bot) check(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	subject, course := classOptionValues(i)
	b.deferReply(s, i, false)

	res, err := b.svc.CheckNow(ctx, subject, course)
	if errors.Is(err, scraper.ErrCourseNotFound) {
		b.followupText(s, i, fmt.Sprintf("Couldn't find %s %s in the %s schedule. Check the subject and catalog number.", subject, course, b.cfg.Term))
		return
	}
	if err != nil {
		b.log.Sugar().Errorf("check %s %s failed: %v", subject, course, err)
		b.followupText(s, i, "Something went wrong while checking that class. Try again in a bit.")
		return
	}

	embed := classEmbed(&res.State)
	if b.isSubscribed(ctx, interactionUserID(i), res.State.ClassKey) {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "🔔 You're subscribed to this class"}
	} else {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Use /subscribe to get notified when this class opens"}
	}
	b.followupEmbed(s, i, embed)
}

func (b *Bot) subscribe(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	subject, course := classOptionValues(i)
	userID := interactionUserID(i)
	b.deferReply(s, i, true)

	state, created, err := b.svc.Subscribe(ctx, models.PlatformDiscord, userID, subject, course)
	if err != nil {
		b.log.Sugar().Errorf("subscribe %s to %s %s failed: %v", userID, subject, course, err)
		b.followupText(s, i, "Couldn't create that subscription. Try again in a bit.")
		return
	}
	if !created {
		b.followupText(s, i, fmt.Sprintf("You're already subscribed to %s %s.", subject, course))
		return
	}

	msg := fmt.Sprintf("Subscribed! You'll get a DM when %s %s changes.", subject, course)
	if state != nil {
		msg += fmt.Sprintf(" It is currently **%s**.", state.Status)
	}
	b.followupText(s, i, msg)
}

func (b *Bot) unsubscribe(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	subject, course := classOptionValues(i)
	userID := interactionUserID(i)

	removed, err := b.svc.Unsubscribe(ctx, models.PlatformDiscord, userID, subject, course)
	if err != nil {
		b.log.Sugar().Errorf("unsubscribe %s from %s %s failed: %v", userID, subject, course, err)
		b.replyText(s, i, "Couldn't remove that subscription. Try again in a bit.")
		return
	}
	if !removed {
		b.replyText(s, i, fmt.Sprintf("You weren't subscribed to %s %s.", subject, course))
		return
	}
	b.replyText(s, i, fmt.Sprintf("Unsubscribed from %s %s.", subject, course))
}

func (b *Bot) list(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	userID := interactionUserID(i)

	overviews, err := b.svc.ListSubscriptions(ctx, models.PlatformDiscord, userID)
	if err != nil {
		b.log.Sugar().Errorf("listing subscriptions of %s failed: %v", userID, err)
		b.replyText(s, i, "Couldn't load your subscriptions. Try again in a bit.")
		return
	}
	if len(overviews) == 0 {
		b.replyText(s, i, "You aren't subscribed to any classes yet. Use /subscribe to add one.")
		return
	}

	embed := overviewEmbed("📋 Your Subscriptions", overviews)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Use /unsubscribe to remove classes"}
	b.replyEmbed(s, i, embed)
}

// status re-checks every subscribed class right now rather than showing the
// last polled values.
func (b *Bot) status(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	userID := interactionUserID(i)
	b.deferReply(s, i, true)

	overviews, err := b.svc.ListSubscriptions(ctx, models.PlatformDiscord, userID)
	if err != nil {
		b.log.Sugar().Errorf("listing subscriptions of %s failed: %v", userID, err)
		b.followupText(s, i, "Couldn't load your subscriptions. Try again in a bit.")
		return
	}
	if len(overviews) == 0 {
		b.followupText(s, i, "You aren't subscribed to any classes yet. Use /subscribe to add one.")
		return
	}

	for idx, overview := range overviews {
		subject, course, _ := models.ParseClassKey(overview.ClassKey)
		res, err := b.svc.CheckNow(ctx, subject, course)
		if err != nil {
			b.log.Sugar().Warnf("status check of %s failed: %v", overview.ClassKey, err)
			continue
		}
		state := res.State
		overviews[idx].State = &state
	}

	embed := overviewEmbed("📊 Current Status", overviews)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Classes are re-checked every %d minutes", b.cfg.PollIntervalMins)}
	b.followupEmbed(s, i, embed)
}

func (b *Bot) isSubscribed(ctx context.Context, userID, classKey string) bool {
	overviews, err := b.svc.ListSubscriptions(ctx, models.PlatformDiscord, userID)
	if err != nil {
		return false
	}
	for _, overview := range overviews {
		if overview.ClassKey == classKey {
			return true
		}
	}
	return false
}

func (b *Bot) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: responseFlags(ephemeral)},
	})
	if err != nil {
		b.log.Sugar().Warnf("deferring interaction reply: %v", err)
	}
}

func (b *Bot) replyText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.log.Sugar().Warnf("sending interaction reply: %v", err)
	}
}

func (b *Bot) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Sugar().Warnf("sending interaction reply: %v", err)
	}
}

func responseFlags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (b *Bot) followupText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: content}); err != nil {
		b.log.Sugar().Warnf("sending interaction followup: %v", err)
	}
}

func (b *Bot) followupEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	params := &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		b.log.Sugar().Warnf("sending interaction followup: %v", err)
	}
}
